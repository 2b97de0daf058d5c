package chain

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
)

// MaxReorgDepth bounds the number of blocks a single Reorganize may revert.
const MaxReorgDepth = 1000

// ErrReorgTooDeep is returned when a reorg exceeds MaxReorgDepth.
var ErrReorgTooDeep = errors.New("reorg too deep")

// DisconnectTip removes the tip block from the active chain together with
// its mint and spend index entries. The block and its transaction index
// entries stay in the store. It returns the disconnected block.
func (c *Index) DisconnectTip() (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Index) disconnectLocked() (*block.Block, error) {
	if c.state.IsEmpty() {
		return nil, ErrEmptyChain
	}
	blk, err := c.blocks.GetBlock(c.state.TipHash)
	if err != nil {
		return nil, fmt.Errorf("load tip block: %w", err)
	}
	height := blk.Header.Height

	b := storage.NewBatch(c.blocks.db)
	if err := b.Delete(heightKey(height)); err != nil {
		return nil, err
	}
	for _, t := range blk.Transactions {
		for _, ch := range zerocoin.MintedCoins(t) {
			if err := b.Delete(hashKey(prefixMint, ch)); err != nil {
				return nil, err
			}
		}
		for _, sh := range zerocoin.SpentSerials(t) {
			if err := b.Delete(hashKey(prefixSpend, sh)); err != nil {
				return nil, err
			}
		}
	}

	// The block that anchored the index has no stored parent.
	next := State{}
	if height > 0 {
		if prevHash, err := c.blocks.GetHashByHeight(height - 1); err == nil && prevHash == blk.Header.PrevHash {
			prev, err := c.blocks.GetBlock(prevHash)
			if err != nil {
				return nil, fmt.Errorf("load parent block: %w", err)
			}
			next = State{Height: height - 1, TipHash: prevHash, TipTimestamp: prev.Header.Timestamp}
		}
	}
	if next.IsEmpty() {
		err = deleteTip(b)
	} else {
		err = putTip(b, next.TipHash, next.Height)
	}
	if err != nil {
		return nil, err
	}
	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("commit disconnect %d: %w", height, err)
	}

	c.state = next
	c.logger.Debug().
		Uint64("height", height).
		Str("hash", blk.Hash().Short()).
		Msg("Block disconnected")
	return blk, nil
}

// Reorganize disconnects every active block above forkHeight and connects
// newBlocks in order. If a new block fails to connect, the original branch
// is restored and the connect error is returned.
func (c *Index) Reorganize(forkHeight uint64, newBlocks []*block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsEmpty() {
		return ErrEmptyChain
	}
	if forkHeight > c.state.Height {
		return fmt.Errorf("%w: fork %d, tip %d", ErrBadForkHeight, forkHeight, c.state.Height)
	}
	if depth := c.state.Height - forkHeight; depth > MaxReorgDepth {
		return fmt.Errorf("%w: %d blocks", ErrReorgTooDeep, depth)
	}

	var reverted []*block.Block
	for c.state.Height > forkHeight {
		blk, err := c.disconnectLocked()
		if err != nil {
			return fmt.Errorf("disconnect at height %d: %w", c.state.Height, err)
		}
		reverted = append(reverted, blk)
	}

	for i, blk := range newBlocks {
		if err := c.connectLocked(blk); err != nil {
			if rerr := c.restoreLocked(forkHeight, reverted); rerr != nil {
				return fmt.Errorf("connect new block %d: %w (restore failed: %v)", i, err, rerr)
			}
			return fmt.Errorf("connect new block %d: %w", i, err)
		}
	}

	c.logger.Info().
		Uint64("fork_height", forkHeight).
		Int("reverted", len(reverted)).
		Int("connected", len(newBlocks)).
		Uint64("height", c.state.Height).
		Msg("Chain reorganized")
	return nil
}

// restoreLocked rewinds to forkHeight and reconnects reverted, which is
// ordered tip first.
func (c *Index) restoreLocked(forkHeight uint64, reverted []*block.Block) error {
	for c.state.Height > forkHeight {
		if _, err := c.disconnectLocked(); err != nil {
			return err
		}
	}
	for i := len(reverted) - 1; i >= 0; i-- {
		if err := c.connectLocked(reverted[i]); err != nil {
			return err
		}
	}
	return nil
}

