package wallet

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Balance summarizes the value of unspent mints in base units.
type Balance struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
}

// Total returns confirmed plus unconfirmed value.
func (b Balance) Total() uint64 {
	return b.Confirmed + b.Unconfirmed
}

// FormatCoins renders a base-unit amount as whole coins with eight
// decimal places.
func FormatCoins(amount uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -8).StringFixed(8)
}
