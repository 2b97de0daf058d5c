package hdmint

import (
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// MintRecord is the persisted form of a mint: a *zerocoin.DeterministicMint
// or a legacy *zerocoin.ZerocoinEntry.
type MintRecord interface {
	CommitmentHash() types.Hash
}

// MintMeta is the tracker's view of one mint, keyed by serial hash.
// Used and Archived are independent.
type MintMeta struct {
	Value       *big.Int
	SerialHash  types.Hash
	TxID        types.Hash
	Height      uint64
	Denom       zerocoin.Denomination
	Used        bool
	Archived    bool
	SeedCorrect bool

	// Record is the stored record the meta was built from.
	Record MintRecord
}

// newMeta projects rec into a meta. It rejects unknown record types.
func newMeta(rec MintRecord) (*MintMeta, error) {
	switch r := rec.(type) {
	case *zerocoin.DeterministicMint:
		return &MintMeta{
			Value:      new(big.Int).Set(r.Value),
			SerialHash: r.SerialHash,
			TxID:       r.TxID,
			Height:     r.Height,
			Denom:      r.Denom,
			Used:       r.Used,
			Record:     r.Clone(),
		}, nil
	case *zerocoin.ZerocoinEntry:
		c := cloneEntry(r)
		return &MintMeta{
			Value:       new(big.Int).Set(r.Value),
			SerialHash:  r.SerialHash(),
			TxID:        r.TxID,
			Height:      r.Height,
			Denom:       r.Denom,
			Used:        r.Used,
			SeedCorrect: true,
			Record:      c,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported mint record %T", rec)
	}
}

// CommitmentHash returns the pubcoin hash of the mint.
func (m *MintMeta) CommitmentHash() types.Hash {
	return zerocoin.CommitmentHash(m.Value)
}

// IsDeterministic reports whether the mint was derived from a seed.
func (m *MintMeta) IsDeterministic() bool {
	_, ok := m.Record.(*zerocoin.DeterministicMint)
	return ok
}

// Deterministic returns the deterministic record, if any.
func (m *MintMeta) Deterministic() (*zerocoin.DeterministicMint, bool) {
	d, ok := m.Record.(*zerocoin.DeterministicMint)
	return d, ok
}

// Clone returns a copy of m that shares nothing mutable with it.
func (m *MintMeta) Clone() *MintMeta {
	c := *m
	if m.Value != nil {
		c.Value = new(big.Int).Set(m.Value)
	}
	switch r := m.Record.(type) {
	case *zerocoin.DeterministicMint:
		c.Record = r.Clone()
	case *zerocoin.ZerocoinEntry:
		c.Record = cloneEntry(r)
	}
	return &c
}

// sameState reports whether m and o agree on every tracked field.
func (m *MintMeta) sameState(o *MintMeta) bool {
	return m.TxID == o.TxID &&
		m.Height == o.Height &&
		m.Denom == o.Denom &&
		m.Used == o.Used &&
		m.Archived == o.Archived
}

// record returns the stored record updated with m's mutable fields.
func (m *MintMeta) record() MintRecord {
	switch r := m.Record.(type) {
	case *zerocoin.DeterministicMint:
		d := r.Clone()
		d.TxID = m.TxID
		d.Height = m.Height
		d.Denom = m.Denom
		d.Used = m.Used
		return d
	case *zerocoin.ZerocoinEntry:
		e := cloneEntry(r)
		e.TxID = m.TxID
		e.Height = m.Height
		e.Denom = m.Denom
		e.Used = m.Used
		return e
	}
	return nil
}

func (m *MintMeta) String() string {
	return fmt.Sprintf("MintMeta{pubcoin=%s serial=%s denom=%s tx=%s height=%d used=%t archived=%t deterministic=%t}",
		m.CommitmentHash().Short(), m.SerialHash.Short(), m.Denom, m.TxID.Short(),
		m.Height, m.Used, m.Archived, m.IsDeterministic())
}

func cloneEntry(e *zerocoin.ZerocoinEntry) *zerocoin.ZerocoinEntry {
	c := *e
	if e.Value != nil {
		c.Value = new(big.Int).Set(e.Value)
	}
	if e.Randomness != nil {
		c.Randomness = new(big.Int).Set(e.Randomness)
	}
	if e.SerialNumber != nil {
		c.SerialNumber = new(big.Int).Set(e.SerialNumber)
	}
	c.SpendKey = append([]byte(nil), e.SpendKey...)
	return &c
}

// isMature reports whether a mint at height is buried deeper than
// confirmations below tip.
func isMature(height, tip, confirmations uint64) bool {
	return height != 0 && tip >= confirmations && height < tip-confirmations
}
