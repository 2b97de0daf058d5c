package zerocoin

import (
	"fmt"
	"strconv"
)

// Coin is the number of base units in one whole coin.
const Coin uint64 = 100_000_000

// Denomination is the face value of a coin in whole coins.
type Denomination uint32

const (
	DenomError      Denomination = 0
	DenomOne        Denomination = 1
	DenomTen        Denomination = 10
	DenomTwentyFive Denomination = 25
	DenomFifty      Denomination = 50
	DenomOneHundred Denomination = 100
)

// Denominations lists the valid denominations in ascending order.
var Denominations = []Denomination{DenomOne, DenomTen, DenomTwentyFive, DenomFifty, DenomOneHundred}

// IsValid reports whether d is one of Denominations.
func (d Denomination) IsValid() bool {
	switch d {
	case DenomOne, DenomTen, DenomTwentyFive, DenomFifty, DenomOneHundred:
		return true
	}
	return false
}

// Amount returns the value of the denomination in base units.
func (d Denomination) Amount() uint64 {
	return uint64(d) * Coin
}

func (d Denomination) String() string {
	if !d.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(d), 10)
}

// AmountToDenomination maps an exact base-unit amount to its denomination.
// Amounts that are not exactly a denomination give DenomError.
func AmountToDenomination(amount uint64) Denomination {
	if amount%Coin != 0 {
		return DenomError
	}
	d := Denomination(amount / Coin)
	if !d.IsValid() {
		return DenomError
	}
	return d
}

// ParseDenomination parses a whole-coin denomination such as "10".
func ParseDenomination(s string) (Denomination, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return DenomError, fmt.Errorf("%w: %q", ErrInvalidDenomination, s)
	}
	d := Denomination(n)
	if !d.IsValid() {
		return DenomError, fmt.Errorf("%w: %d", ErrInvalidDenomination, n)
	}
	return d, nil
}
