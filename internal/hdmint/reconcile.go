package hdmint

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// ListMints returns the tracked mints that pass the filters. With
// updateStatus the index is reloaded from the store and every unarchived
// mint is reconciled against the chain and one mempool snapshot; changed
// records are written in a single batch after the pass.
func (t *Tracker) ListMints(unusedOnly, matureOnly, updateStatus, includeWrongSeed bool) ([]MintMeta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if updateStatus {
		if err := t.reloadLocked(); err != nil {
			return nil, err
		}
	}

	mempool := mempoolSet(t.mempool)
	tip := t.tip()

	var (
		dmints  []*zerocoin.DeterministicMint
		entries []*zerocoin.ZerocoinEntry
		out     []MintMeta
	)
	for sh, m := range t.mints {
		if m.Archived {
			continue
		}
		if updateStatus && t.chain != nil {
			updated, changed := t.updateStatusInternal(mempool, m)
			if changed {
				if updated.Archived {
					if err := t.archiveLocked(updated); err != nil {
						return nil, err
					}
					t.mints[sh] = updated
					continue
				}
				t.mints[sh] = updated
				switch r := updated.record().(type) {
				case *zerocoin.DeterministicMint:
					dmints = append(dmints, r)
				case *zerocoin.ZerocoinEntry:
					entries = append(entries, r)
				}
				m = updated
			}
		}

		if unusedOnly && m.Used {
			continue
		}
		if matureOnly && !isMature(m.Height, tip, t.confirmations) {
			continue
		}
		if !includeWrongSeed && !m.SeedCorrect {
			continue
		}
		out = append(out, *m.Clone())
	}

	if len(dmints) > 0 || len(entries) > 0 {
		if err := t.store.WriteMints(dmints, entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
		t.logger.Debug().
			Int("deterministic", len(dmints)).
			Int("legacy", len(entries)).
			Msg("Updated mint states")
	}
	sortMetas(out)
	return out, nil
}

// reloadLocked adds every live record from the store. Archived records
// are left to UnArchive.
func (t *Tracker) reloadLocked() error {
	dmints, err := t.store.ListDeterministicMints()
	if err != nil {
		return fmt.Errorf("list deterministic mints: %w", err)
	}
	for _, d := range dmints {
		if _, err := t.addLocked(d, false, false); err != nil {
			return err
		}
	}
	entries, err := t.store.ListZerocoinEntries()
	if err != nil {
		return fmt.Errorf("list mints: %w", err)
	}
	for _, e := range entries {
		if _, err := t.addLocked(e, false, false); err != nil {
			return err
		}
	}
	return nil
}

// updateStatusInternal reconciles one mint with the chain. It returns the
// corrected meta and whether anything differs from meta. Pending spends
// that left the mempool or were confirmed are dropped from the tracker as
// a side effect.
func (t *Tracker) updateStatusInternal(mempool map[types.Hash]struct{}, meta *MintMeta) (*MintMeta, bool) {
	m := meta.Clone()
	pubcoin := m.CommitmentHash()
	inChain := t.chain.HasCoin(pubcoin)

	_, _, spentOnChain := t.chain.IsSerialSpent(m.SerialHash)
	pending, hasPending := t.pendingSpends[m.SerialHash]
	if hasPending {
		if _, inPool := mempool[pending]; !inPool || spentOnChain {
			delete(t.pendingSpends, m.SerialHash)
			hasPending = false
		}
	}
	isUsed := hasPending || spentOnChain

	// A reorg can move the mint to another block, or another transaction,
	// while the coin stays in the chain.
	var chainTx types.Hash
	if inChain {
		chainTx, _ = t.chain.FindMintTransaction(pubcoin)
	}
	if m.Height != 0 && inChain && isUsed == m.Used &&
		chainTx == m.TxID && t.mintHeight(chainTx) == m.Height {
		return m, false
	}

	if m.TxID.IsZero() || (!chainTx.IsZero() && chainTx != m.TxID) {
		if !inChain {
			t.logger.Debug().Str("pubcoin", pubcoin.Short()).Msg("Mint has no transaction and is not in chain")
			m.Archived = true
			return m, true
		}
		if chainTx.IsZero() {
			m.Archived = true
			return m, true
		}
		m.TxID = chainTx
	}

	if _, ok := mempool[m.TxID]; ok {
		return m, !m.sameState(meta)
	}

	_, blockHash, ok := t.chain.GetTransaction(m.TxID)
	if !ok {
		t.logger.Debug().
			Str("pubcoin", pubcoin.Short()).
			Str("tx", m.TxID.Short()).
			Msg("Mint transaction not found")
		m.Archived = true
		return m, true
	}

	if !t.chain.IsOnActiveChain(blockHash) {
		m.Height = 0
		m.Used = false
		if !m.sameState(meta) {
			t.metrics.orphanRolledBack()
			t.logger.Info().
				Str("pubcoin", pubcoin.Short()).
				Str("block", blockHash.Short()).
				Msg("Mint block orphaned, rolled back")
		}
		return m, !m.sameState(meta)
	}

	if hdr, ok := t.chain.BlockHeader(blockHash); ok {
		m.Height = hdr.Height
	}
	m.Used = isUsed
	return m, !m.sameState(meta)
}

// mintHeight returns the height of the block holding txid, or 0 when the
// transaction or its block is unknown.
func (t *Tracker) mintHeight(txid types.Hash) uint64 {
	_, blockHash, ok := t.chain.GetTransaction(txid)
	if !ok {
		return 0
	}
	hdr, ok := t.chain.BlockHeader(blockHash)
	if !ok {
		return 0
	}
	return hdr.Height
}

// FindMints checks metas against chain truth. It returns the metas whose
// transaction, height, denomination or used state need correcting and the
// metas whose mint is not in the chain at all. Nothing is written.
func (t *Tracker) FindMints(metas []MintMeta) (toUpdate, missing []MintMeta) {
	for i := range metas {
		meta := &metas[i]
		pubcoin := meta.CommitmentHash()

		txid, ok := t.chain.FindMintTransaction(pubcoin)
		if !ok {
			missing = append(missing, *meta.Clone())
			continue
		}
		mintTx, blockHash, ok := t.chain.GetTransaction(txid)
		if !ok {
			missing = append(missing, *meta.Clone())
			continue
		}
		hdr, ok := t.chain.BlockHeader(blockHash)
		if !ok {
			missing = append(missing, *meta.Clone())
			continue
		}

		m := meta.Clone()
		m.TxID = txid
		m.Height = hdr.Height

		m.Used = false
		if _, spendTx, spent := t.chain.IsSerialSpent(m.SerialHash); spent {
			if _, _, found := t.chain.GetTransaction(spendTx); found {
				m.Used = true
			}
		}

		for _, out := range mintTx.Outputs {
			value, denom, err := zerocoin.ExtractCoin(out)
			if err != nil || value.Cmp(m.Value) != 0 {
				continue
			}
			m.Denom = denom
			break
		}

		if !m.sameState(meta) {
			toUpdate = append(toUpdate, *m)
		}
	}
	return toUpdate, missing
}
