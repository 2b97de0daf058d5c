package chain

import "github.com/Klingon-tech/klingnet-hdmint/pkg/types"

// State holds the current chain tip state.
type State struct {
	Height       uint64
	TipHash      types.Hash
	TipTimestamp uint64 // Timestamp of the current tip block.
}

// IsEmpty returns true if no block has been connected yet.
func (s *State) IsEmpty() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
