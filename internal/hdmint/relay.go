package hdmint

import (
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// DefaultPendingExpiry is how long an unconfirmed spend is replayed into
// the pool after a restart.
const DefaultPendingExpiry = 72 * time.Hour

// TxPool is the pending-transaction pool spends are relayed through.
type TxPool interface {
	MempoolView
	Add(t *tx.Transaction) error
	Remove(txid types.Hash)
	SpenderOf(serialHash types.Hash) (types.Hash, bool)
	RemoveConfirmed(txs []*tx.Transaction)
}

// RelayConfig wires a Relay to its collaborators.
type RelayConfig struct {
	Store   *walletdb.Store
	Pool    TxPool
	Chain   Blockchain
	Tracker *Tracker
	Clock   clock.Clock   // nil selects the system clock
	MaxAge  time.Duration // 0 replays pending spends until they confirm
}

// Relay submits the wallet's spends to the pool and keeps them across
// restarts. Every submitted spend is stored as an unconfirmed wallet
// transaction; Load puts the ones still pending back into the pool and
// BlockConnected records their confirmation.
type Relay struct {
	store   *walletdb.Store
	pool    TxPool
	chain   Blockchain
	tracker *Tracker
	clock   clock.Clock
	maxAge  time.Duration
	logger  zerolog.Logger
}

// NewRelay returns a relay over cfg.
func NewRelay(cfg RelayConfig) *Relay {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Relay{
		store:   cfg.Store,
		pool:    cfg.Pool,
		chain:   cfg.Chain,
		tracker: cfg.Tracker,
		clock:   clk,
		maxAge:  cfg.MaxAge,
		logger:  klog.Relay,
	}
}

// Submit adds a signed spend of tracked mints to the pool, records it and
// marks the mints it spends as used.
func (r *Relay) Submit(t *tx.Transaction) error {
	serials := zerocoin.SpentSerials(t)
	if len(serials) == 0 {
		return ErrNotASpend
	}
	metas := make([]MintMeta, 0, len(serials))
	for _, sh := range serials {
		m, ok := r.tracker.Get(sh)
		if !ok || m.Archived {
			return fmt.Errorf("%w: serial %s", ErrStaleTrackerEntry, sh.Short())
		}
		if m.Used {
			return fmt.Errorf("%w: serial %s", ErrMintUsed, sh.Short())
		}
		metas = append(metas, m)
	}
	if err := t.VerifySignatures(); err != nil {
		return err
	}
	if err := r.pool.Add(t); err != nil {
		return err
	}

	txid := t.Hash()
	wtx := &walletdb.WalletTx{
		TxID:    txid,
		Tx:      t,
		Time:    r.clock.Now().UTC(),
		IsSpend: true,
	}
	if err := r.store.WriteWalletTx(wtx); err != nil {
		r.pool.Remove(txid)
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	for i := range metas {
		if err := r.tracker.SetPubcoinUsed(metas[i].CommitmentHash(), txid); err != nil {
			return err
		}
	}
	r.logger.Info().
		Str("txid", txid.Short()).
		Int("mints", len(metas)).
		Msg("Spend submitted")
	return nil
}

// Load puts the stored spends that are still unconfirmed back into the
// pool and restores the tracker's pending view of them. Spends older than
// the configured maximum age, or whose serial the chain already reveals,
// are left out. It returns the number of spends loaded.
func (r *Relay) Load() (int, error) {
	wtxs, err := r.store.ListWalletTxs()
	if err != nil {
		return 0, err
	}
	var cutoff time.Time
	if r.maxAge > 0 {
		cutoff = r.clock.Now().Add(-r.maxAge)
	}

	loaded := 0
	for _, wtx := range wtxs {
		if !wtx.IsSpend || wtx.Height != 0 || wtx.Tx == nil {
			continue
		}
		if !cutoff.IsZero() && wtx.Time.Before(cutoff) {
			r.logger.Debug().Str("txid", wtx.TxID.Short()).Msg("Pending spend expired")
			continue
		}
		if r.spentOnChain(wtx.Tx) {
			continue
		}
		if err := r.pool.Add(wtx.Tx); err != nil {
			r.logger.Warn().Err(err).Str("txid", wtx.TxID.Short()).Msg("Pending spend rejected")
			continue
		}
		loaded++
	}

	for _, sh := range r.tracker.GetSerialHashes() {
		txid, ok := r.pool.SpenderOf(sh)
		if !ok {
			continue
		}
		m, ok := r.tracker.Get(sh)
		if !ok {
			continue
		}
		if err := r.tracker.SetPubcoinUsed(m.CommitmentHash(), txid); err != nil {
			return loaded, err
		}
	}
	if loaded > 0 {
		r.logger.Info().Int("count", loaded).Msg("Pending spends loaded")
	}
	return loaded, nil
}

func (r *Relay) spentOnChain(t *tx.Transaction) bool {
	for _, sh := range zerocoin.SpentSerials(t) {
		if _, _, spent := r.chain.IsSerialSpent(sh); spent {
			return true
		}
	}
	return false
}

// BlockConnected drops the block's transactions, and any pending spend
// they conflict with, from the pool and stamps the wallet transactions it
// confirms with their block.
func (r *Relay) BlockConnected(blk *block.Block) error {
	r.pool.RemoveConfirmed(blk.Transactions)

	blockHash := blk.Hash()
	height := blk.Header.Height
	for _, t := range blk.Transactions {
		wtx, err := r.store.ReadWalletTx(t.Hash())
		if errors.Is(err, walletdb.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if wtx.BlockHash == blockHash && wtx.Height == height {
			continue
		}
		wtx.BlockHash = blockHash
		wtx.Height = height
		if err := r.store.WriteWalletTx(wtx); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
		r.logger.Debug().
			Str("txid", wtx.TxID.Short()).
			Uint64("height", height).
			Msg("Wallet transaction confirmed")
	}
	return nil
}
