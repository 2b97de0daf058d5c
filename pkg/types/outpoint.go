package types

import "fmt"

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// NewOutpoint returns the outpoint for output index of txid.
func NewOutpoint(txid Hash, index uint32) Outpoint {
	return Outpoint{TxID: txid, Index: index}
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
// Zerocoin spend inputs carry a zero outpoint.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}
