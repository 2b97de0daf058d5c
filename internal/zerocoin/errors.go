package zerocoin

import "errors"

var (
	// ErrDerivationInconsistency means a regenerated coin does not match
	// what was recorded, or no valid commitment could be found.
	ErrDerivationInconsistency = errors.New("derivation inconsistency")
	ErrInvalidDenomination     = errors.New("invalid denomination")
	ErrNotMintScript           = errors.New("output is not a zerocoin mint")
	ErrNotSpendScript          = errors.New("input is not a zerocoin spend")
	ErrInvalidCoinValue        = errors.New("invalid coin value")
)
