package zerocoin

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// DeterministicMint is the persisted record of a derived coin. It carries
// no secrets: the serial and randomness are recomputed from the seed.
type DeterministicMint struct {
	Count      uint32
	SeedHash   types.Hash
	SerialHash types.Hash
	Value      *big.Int // commitment value
	TxID       types.Hash
	Height     uint64
	Denom      Denomination
	Used       bool
}

// NewDeterministicMint returns an unconfirmed, unused mint record.
func NewDeterministicMint(count uint32, seedHash, serialHash types.Hash, value *big.Int) *DeterministicMint {
	return &DeterministicMint{
		Count:      count,
		SeedHash:   seedHash,
		SerialHash: serialHash,
		Value:      new(big.Int).Set(value),
	}
}

// CommitmentHash returns the hash of the public commitment value.
func (m *DeterministicMint) CommitmentHash() types.Hash {
	return CommitmentHash(m.Value)
}

// Clone returns a deep copy of m.
func (m *DeterministicMint) Clone() *DeterministicMint {
	c := *m
	if m.Value != nil {
		c.Value = new(big.Int).Set(m.Value)
	}
	return &c
}

func (m *DeterministicMint) String() string {
	return fmt.Sprintf("DeterministicMint{count=%d seed=%s serial=%s pubcoin=%s denom=%s tx=%s height=%d used=%t}",
		m.Count, m.SeedHash.Short(), m.SerialHash.Short(), m.CommitmentHash().Short(),
		m.Denom, m.TxID.Short(), m.Height, m.Used)
}

type deterministicMintJSON struct {
	Count      uint32       `json:"count"`
	SeedHash   types.Hash   `json:"seed_hash"`
	SerialHash types.Hash   `json:"serial_hash"`
	Value      string       `json:"value"`
	TxID       types.Hash   `json:"txid"`
	Height     uint64       `json:"height"`
	Denom      Denomination `json:"denom"`
	Used       bool         `json:"used"`
}

// MarshalJSON encodes the record with the commitment value in hex.
func (m *DeterministicMint) MarshalJSON() ([]byte, error) {
	return json.Marshal(deterministicMintJSON{
		Count:      m.Count,
		SeedHash:   m.SeedHash,
		SerialHash: m.SerialHash,
		Value:      bigHex(m.Value),
		TxID:       m.TxID,
		Height:     m.Height,
		Denom:      m.Denom,
		Used:       m.Used,
	})
}

// UnmarshalJSON decodes a record written by MarshalJSON.
func (m *DeterministicMint) UnmarshalJSON(data []byte) error {
	var j deterministicMintJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	v, err := parseBigHex(j.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*m = DeterministicMint{
		Count:      j.Count,
		SeedHash:   j.SeedHash,
		SerialHash: j.SerialHash,
		Value:      v,
		TxID:       j.TxID,
		Height:     j.Height,
		Denom:      j.Denom,
		Used:       j.Used,
	}
	return nil
}

// ZerocoinEntry is a coin whose secrets are stored directly: legacy
// randomly generated mints, and deterministic mints after regeneration.
type ZerocoinEntry struct {
	Value        *big.Int
	Denom        Denomination
	Randomness   *big.Int
	SerialNumber *big.Int
	SpendKey     []byte
	TxID         types.Hash
	Height       uint64
	Used         bool
}

// CommitmentHash returns the hash of the public commitment value.
func (e *ZerocoinEntry) CommitmentHash() types.Hash {
	return CommitmentHash(e.Value)
}

// SerialHash returns the hash of the serial number.
func (e *ZerocoinEntry) SerialHash() types.Hash {
	return SerialHash(e.SerialNumber)
}

type zerocoinEntryJSON struct {
	Value        string       `json:"value"`
	Denom        Denomination `json:"denom"`
	Randomness   string       `json:"randomness"`
	SerialNumber string       `json:"serial"`
	SpendKey     string       `json:"spend_key,omitempty"`
	TxID         types.Hash   `json:"txid"`
	Height       uint64       `json:"height"`
	Used         bool         `json:"used"`
}

// MarshalJSON encodes the entry with big integers in hex.
func (e *ZerocoinEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(zerocoinEntryJSON{
		Value:        bigHex(e.Value),
		Denom:        e.Denom,
		Randomness:   bigHex(e.Randomness),
		SerialNumber: bigHex(e.SerialNumber),
		SpendKey:     hex.EncodeToString(e.SpendKey),
		TxID:         e.TxID,
		Height:       e.Height,
		Used:         e.Used,
	})
}

// UnmarshalJSON decodes an entry written by MarshalJSON.
func (e *ZerocoinEntry) UnmarshalJSON(data []byte) error {
	var j zerocoinEntryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	value, err := parseBigHex(j.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	r, err := parseBigHex(j.Randomness)
	if err != nil {
		return fmt.Errorf("randomness: %w", err)
	}
	serial, err := parseBigHex(j.SerialNumber)
	if err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	var key []byte
	if j.SpendKey != "" {
		if key, err = hex.DecodeString(j.SpendKey); err != nil {
			return fmt.Errorf("spend key: %w", err)
		}
	}
	*e = ZerocoinEntry{
		Value:        value,
		Denom:        j.Denom,
		Randomness:   r,
		SerialNumber: serial,
		SpendKey:     key,
		TxID:         j.TxID,
		Height:       j.Height,
		Used:         j.Used,
	}
	return nil
}

func bigHex(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.Text(16)
}

func parseBigHex(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("bad hex integer %q", s)
	}
	return v, nil
}
