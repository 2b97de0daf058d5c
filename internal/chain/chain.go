// Package chain maintains a storage-backed index of the active chain's
// zerocoin mints and spends.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Chain index errors.
var (
	ErrEmptyChain    = errors.New("chain index is empty")
	ErrNotExtending  = errors.New("block does not extend the tip")
	ErrDuplicateMint = errors.New("coin already minted")
	ErrSerialSpent   = errors.New("serial already spent")
	ErrBadForkHeight = errors.New("fork height above tip")
	ErrBlockNotFound = errors.New("block not found")
	ErrInvalidBlock  = errors.New("invalid block")
)

// Index tracks the active chain and its zerocoin mint and spend indexes.
// Disconnected blocks and their transactions stay readable so that wallets
// can tell an orphaned mint from a missing one.
type Index struct {
	mu     sync.RWMutex // Protects state and all index mutations.
	state  State
	blocks *BlockStore
	logger zerolog.Logger
}

// New opens an index over db, recovering the tip if one was stored.
func New(db storage.DB) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	blocks := NewBlockStore(db)
	tipHash, height, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}

	idx := &Index{
		state:  State{TipHash: tipHash, Height: height},
		blocks: blocks,
		logger: klog.Chain,
	}
	if !tipHash.IsZero() {
		blk, err := blocks.GetBlock(tipHash)
		if err != nil {
			return nil, fmt.Errorf("load tip block: %w", err)
		}
		idx.state.TipTimestamp = blk.Header.Timestamp
	}
	return idx, nil
}

// ConnectBlock appends blk to the active chain. The first block connected
// to an empty index anchors it at that block's height.
func (c *Index) ConnectBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(blk)
}

func (c *Index) connectLocked(blk *block.Block) error {
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	if !c.state.IsEmpty() {
		if blk.Header.PrevHash != c.state.TipHash || blk.Header.Height != c.state.Height+1 {
			return fmt.Errorf("%w: block %d prev %s, tip %d %s", ErrNotExtending,
				blk.Header.Height, blk.Header.PrevHash.Short(), c.state.Height, c.state.TipHash.Short())
		}
	}

	hash := blk.Hash()
	height := blk.Header.Height

	b := storage.NewBatch(c.blocks.db)
	if err := putBlock(b, blk); err != nil {
		return err
	}
	if err := b.Put(heightKey(height), hash[:]); err != nil {
		return err
	}

	var mints, spends int
	seenMint := make(map[types.Hash]bool)
	for _, t := range blk.Transactions {
		txHash := t.Hash()
		if err := b.Put(txKey(txHash), heightAndHash(height, hash)); err != nil {
			return err
		}
		for _, ch := range zerocoin.MintedCoins(t) {
			has, err := c.blocks.HasMint(ch)
			if err != nil {
				return fmt.Errorf("mint index lookup: %w", err)
			}
			if has || seenMint[ch] {
				return fmt.Errorf("%w: %s", ErrDuplicateMint, ch.Short())
			}
			seenMint[ch] = true
			if err := b.Put(hashKey(prefixMint, ch), txHash[:]); err != nil {
				return err
			}
			mints++
		}
		for _, sh := range zerocoin.SpentSerials(t) {
			has, err := c.blocks.HasSpend(sh)
			if err != nil {
				return fmt.Errorf("spend index lookup: %w", err)
			}
			if has {
				return fmt.Errorf("%w: %s", ErrSerialSpent, sh.Short())
			}
			if err := b.Put(hashKey(prefixSpend, sh), heightAndHash(height, txHash)); err != nil {
				return err
			}
			spends++
		}
	}
	if err := putTip(b, hash, height); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", height, err)
	}

	c.state = State{Height: height, TipHash: hash, TipTimestamp: blk.Header.Timestamp}
	c.logger.Debug().
		Uint64("height", height).
		Str("hash", hash.Short()).
		Int("mints", mints).
		Int("spends", spends).
		Msg("Block connected")
	return nil
}

// State returns a copy of the current tip state.
func (c *Index) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Height returns the current tip height.
func (c *Index) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Height
}

// TipHash returns the hash of the current tip.
func (c *Index) TipHash() types.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.TipHash
}

// GetBlock retrieves a stored block by hash, active or not.
func (c *Index) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves the active-chain block at height.
func (c *Index) GetBlockByHeight(height uint64) (*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks.GetBlockByHeight(height)
}

// HasCoin reports whether a coin with the given commitment hash is minted
// on the active chain.
func (c *Index) HasCoin(commitmentHash types.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	has, err := c.blocks.HasMint(commitmentHash)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", commitmentHash.Short()).Msg("Mint index lookup failed")
		return false
	}
	return has
}

// FindMintTransaction returns the id of the active-chain transaction that
// minted commitmentHash.
func (c *Index) FindMintTransaction(commitmentHash types.Hash) (types.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	txid, err := c.blocks.GetMintTx(commitmentHash)
	if err != nil {
		c.logMiss(err, "Mint transaction lookup failed", commitmentHash)
		return types.Hash{}, false
	}
	return txid, true
}

// IsSerialSpent reports the height and transaction that spent serialHash
// on the active chain.
func (c *Index) IsSerialSpent(serialHash types.Hash) (uint64, types.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	height, txid, err := c.blocks.GetSpend(serialHash)
	if err != nil {
		c.logMiss(err, "Spend index lookup failed", serialHash)
		return 0, types.Hash{}, false
	}
	return height, txid, true
}

// GetTransaction returns a stored transaction and the hash of the block it
// was last connected in. That block may no longer be on the active chain.
func (c *Index) GetTransaction(txid types.Hash) (*tx.Transaction, types.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, err := c.blocks.GetTxLocation(txid)
	if err != nil {
		c.logMiss(err, "Tx index lookup failed", txid)
		return nil, types.Hash{}, false
	}
	blk, err := c.blocks.GetBlock(loc.BlockHash)
	if err != nil {
		c.logger.Warn().Err(err).Str("txid", txid.Short()).Msg("Block for indexed tx missing")
		return nil, types.Hash{}, false
	}
	for _, t := range blk.Transactions {
		if t.Hash() == txid {
			return t, loc.BlockHash, true
		}
	}
	c.logger.Warn().Str("txid", txid.Short()).Str("hash", loc.BlockHash.Short()).Msg("Tx index points at block without tx")
	return nil, types.Hash{}, false
}

// BlockHeader returns the header of a stored block.
func (c *Index) BlockHeader(blockHash types.Hash) (*block.Header, bool) {
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		c.logMiss(err, "Block lookup failed", blockHash)
		return nil, false
	}
	return blk.Header, true
}

// IsOnActiveChain reports whether blockHash is part of the active chain.
func (c *Index) IsOnActiveChain(blockHash types.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActiveLocked(blockHash)
}

func (c *Index) isActiveLocked(blockHash types.Hash) bool {
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		return false
	}
	if blk.Header.Height > c.state.Height {
		return false
	}
	active, err := c.blocks.GetHashByHeight(blk.Header.Height)
	if err != nil {
		return false
	}
	return active == blockHash
}

// logMiss logs lookup failures other than plain absence.
func (c *Index) logMiss(err error, msg string, hash types.Hash) {
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	c.logger.Warn().Err(err).Str("hash", hash.Short()).Msg(msg)
}
