package tx

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/crypto"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Structural limits.
const (
	MaxTxInputs   = 256
	MaxTxOutputs  = 256
	MaxScriptData = 512
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrDuplicateSerial    = errors.New("duplicate spend serial")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrMissingPubKey      = errors.New("input missing public key")
	ErrMissingSig         = errors.New("input missing signature")
	ErrInvalidSig         = errors.New("invalid signature")
	ErrEmptySerial        = errors.New("spend input has empty serial")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrScriptDataTooLarge = errors.New("script data too large")
)

// Validate checks transaction structure. It does not check that spent
// outputs exist or that a revealed serial is unspent.
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxTxInputs)
	}
	if len(tx.Outputs) > MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxTxOutputs)
	}

	seen := make(map[types.Outpoint]bool, len(tx.Inputs))
	var serials [][]byte
	for i, in := range tx.Inputs {
		if len(in.Script.Data) > MaxScriptData {
			return fmt.Errorf("input %d: %w", i, ErrScriptDataTooLarge)
		}
		if in.Script.IsZerocoinSpend() {
			if len(in.Script.Data) == 0 {
				return fmt.Errorf("input %d: %w", i, ErrEmptySerial)
			}
			for _, s := range serials {
				if bytes.Equal(s, in.Script.Data) {
					return fmt.Errorf("input %d: %w", i, ErrDuplicateSerial)
				}
			}
			serials = append(serials, in.Script.Data)
		} else {
			if seen[in.PrevOut] {
				return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
			}
			seen[in.PrevOut] = true
		}
		if len(in.PubKey) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingPubKey)
		}
		if len(in.Signature) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingSig)
		}
	}

	var total uint64
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Script.Data) > MaxScriptData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptDataTooLarge, len(out.Script.Data), MaxScriptData)
		}
		if total > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		total += out.Value
	}

	return nil
}

// VerifySignatures checks every input signature against the transaction hash.
func (tx *Transaction) VerifySignatures() error {
	hash := tx.Hash()
	for i, in := range tx.Inputs {
		if !crypto.VerifySignature(hash[:], in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSig)
		}
	}
	return nil
}
