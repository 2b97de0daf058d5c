package hdmint

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Scanner matches pooled candidates against the chain and hands the mints
// it finds to the tracker.
type Scanner struct {
	wallet  *Wallet
	tracker *Tracker
	chain   Blockchain
	decoder CoinDecoder
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewScanner returns a scanner for w.
func NewScanner(w *Wallet, tracker *Tracker, chain Blockchain, decoder CoinDecoder, clk clock.Clock) *Scanner {
	return &Scanner{
		wallet:  w,
		tracker: tracker,
		chain:   chain,
		decoder: decoder,
		clock:   clk,
		logger:  klog.Scanner,
	}
}

// SyncWithChain walks the mint pool looking for candidates that appear in
// the chain. Each pass optionally tops the pool up first; passes repeat
// while the previous one found something. A hash is checked at most once
// per call. A candidate whose mint transaction cannot be loaded advances
// the counter without counting as progress. An output that does not
// decode back to the pooled hash ends the sync.
func (s *Scanner) SyncWithChain(ctx context.Context, generate bool) error {
	checked := make(map[types.Hash]struct{})
	found := true
	for found {
		if err := ctx.Err(); err != nil {
			return err
		}
		found = false
		if generate {
			if err := s.wallet.GenerateMintPool(ctx, 0, 0); err != nil {
				return err
			}
		}

		stop := false
		for _, entry := range s.wallet.pool.List() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := checked[entry.Hash]; ok {
				continue
			}
			checked[entry.Hash] = struct{}{}

			if s.tracker.HasPubcoinHash(entry.Hash) {
				if err := s.wallet.RemoveMintsFromPool([]types.Hash{entry.Hash}); err != nil {
					return err
				}
				continue
			}

			txid, ok := s.chain.FindMintTransaction(entry.Hash)
			if !ok {
				continue
			}
			mintTx, blockHash, ok := s.chain.GetTransaction(txid)
			if !ok {
				s.logger.Warn().
					Str("pubcoin", entry.Hash.Short()).
					Str("tx", txid.Short()).
					Msg("Mint transaction not loadable")
				if err := s.wallet.advanceCount(entry.Count); err != nil {
					return err
				}
				continue
			}

			value, denom, ok := s.matchOutput(mintTx, entry.Hash)
			if !ok {
				s.logger.Error().
					Str("pubcoin", entry.Hash.Short()).
					Str("tx", txid.Short()).
					Msg("No output decodes to pooled pubcoin")
				stop = true
				break
			}

			var height uint64
			var blockTime time.Time
			if hdr, ok := s.chain.BlockHeader(blockHash); ok {
				height = hdr.Height
				blockTime = time.Unix(int64(hdr.Timestamp), 0).UTC()
			}
			if err := s.recordWalletTx(txid, mintTx, blockHash, height, blockTime, true, false); err != nil {
				return err
			}
			if err := s.setMintSeen(value, height, txid, denom); err != nil {
				return err
			}
			found = true
		}
		if stop {
			break
		}
	}
	next, last := s.wallet.GetState()
	s.logger.Debug().Uint32("next", next).Uint32("last_generated", last).Msg("Chain sync done")
	return nil
}

func (s *Scanner) matchOutput(t *tx.Transaction, pubcoin types.Hash) (*big.Int, zerocoin.Denomination, bool) {
	for _, out := range t.Outputs {
		value, denom, err := s.decoder.ExtractCoin(out)
		if err != nil {
			continue
		}
		if zerocoin.CommitmentHash(value) == pubcoin {
			return value, denom, true
		}
	}
	return nil, zerocoin.DenomError, false
}

// recordWalletTx stores a wallet transaction once per txid. The block
// time is used when known, otherwise the current time.
func (s *Scanner) recordWalletTx(txid types.Hash, t *tx.Transaction, blockHash types.Hash, height uint64, at time.Time, isMint, isSpend bool) error {
	store := s.wallet.store
	exists, err := store.HasWalletTx(txid)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if at.IsZero() {
		at = s.clock.Now().UTC()
	}
	wtx := &walletdb.WalletTx{
		TxID:      txid,
		Tx:        t,
		BlockHash: blockHash,
		Height:    height,
		Time:      at,
		IsMint:    isMint,
		IsSpend:   isSpend,
	}
	if err := store.WriteWalletTx(wtx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

func (s *Scanner) setMintSeen(value *big.Int, height uint64, txid types.Hash, denom zerocoin.Denomination) error {
	pubcoin := zerocoin.CommitmentHash(value)
	count, ok := s.wallet.pool.Get(pubcoin)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInPool, pubcoin.Short())
	}

	coin, d, err := s.wallet.GenerateMint(count, denom)
	if err != nil {
		return err
	}
	coin.Zero()
	if d.CommitmentHash() != pubcoin {
		return fmt.Errorf("count %d: regenerated pubcoin %s != %s: %w",
			count, d.CommitmentHash().Short(), pubcoin.Short(), zerocoin.ErrDerivationInconsistency)
	}
	d.TxID = txid
	d.Height = height

	if _, spendTxID, spent := s.chain.IsSerialSpent(d.SerialHash); spent {
		d.Used = true
		if spendTx, blockHash, ok := s.chain.GetTransaction(spendTxID); ok {
			var spendHeight uint64
			var spendTime time.Time
			if hdr, ok := s.chain.BlockHeader(blockHash); ok {
				spendHeight = hdr.Height
				spendTime = time.Unix(int64(hdr.Timestamp), 0).UTC()
			}
			if err := s.recordWalletTx(spendTxID, spendTx, blockHash, spendHeight, spendTime, false, true); err != nil {
				return err
			}
		}
	}

	if err := s.tracker.Add(d, true, false); err != nil {
		return err
	}
	if err := s.wallet.advanceCount(count); err != nil {
		return err
	}
	if err := s.wallet.RemoveMintsFromPool([]types.Hash{pubcoin}); err != nil {
		return err
	}
	s.wallet.metrics.mintFound()
	s.logger.Info().
		Uint32("count", count).
		Str("pubcoin", pubcoin.Short()).
		Str("denom", denom.String()).
		Uint64("height", height).
		Bool("used", d.Used).
		Msg("Recovered mint")
	return nil
}
