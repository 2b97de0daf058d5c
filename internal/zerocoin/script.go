package zerocoin

import (
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// MintScript returns the output script publishing a coin commitment.
func MintScript(value *big.Int) types.Script {
	return types.Script{Type: types.ScriptTypeZerocoinMint, Data: value.Bytes()}
}

// MintOutput returns a mint output for value at denom.
func MintOutput(value *big.Int, denom Denomination) tx.Output {
	return tx.Output{Value: denom.Amount(), Script: MintScript(value)}
}

// ExtractCoin decodes the commitment value and denomination carried by a
// mint output.
func ExtractCoin(out tx.Output) (*big.Int, Denomination, error) {
	if !out.Script.IsZerocoinMint() {
		return nil, DenomError, ErrNotMintScript
	}
	value := new(big.Int).SetBytes(out.Script.Data)
	if value.Sign() == 0 {
		return nil, DenomError, ErrInvalidCoinValue
	}
	denom := AmountToDenomination(out.Value)
	if denom == DenomError {
		return nil, DenomError, fmt.Errorf("%w: output value %d", ErrInvalidDenomination, out.Value)
	}
	return value, denom, nil
}

// Decoder extracts coins from transaction outputs.
type Decoder struct{}

// ExtractCoin implements the coin decoder used by the chain scanner.
func (Decoder) ExtractCoin(out tx.Output) (*big.Int, Denomination, error) {
	return ExtractCoin(out)
}

// SpendScript returns the input script revealing serial.
func SpendScript(serial *big.Int) types.Script {
	return types.Script{Type: types.ScriptTypeZerocoinSpend, Data: serial.Bytes()}
}

// ExtractSpendSerial returns the serial revealed by a spend input.
func ExtractSpendSerial(in tx.Input) (*big.Int, error) {
	if !in.Script.IsZerocoinSpend() {
		return nil, ErrNotSpendScript
	}
	if len(in.Script.Data) == 0 {
		return nil, ErrInvalidCoinValue
	}
	return new(big.Int).SetBytes(in.Script.Data), nil
}

// MintedCoins returns the commitment hashes of every well-formed mint
// output in t, indexed by output position.
func MintedCoins(t *tx.Transaction) map[uint32]types.Hash {
	out := make(map[uint32]types.Hash)
	for i, o := range t.Outputs {
		value, _, err := ExtractCoin(o)
		if err != nil {
			continue
		}
		out[uint32(i)] = CommitmentHash(value)
	}
	return out
}

// SpentSerials returns the serial hashes revealed by t's spend inputs.
func SpentSerials(t *tx.Transaction) []types.Hash {
	var out []types.Hash
	for _, in := range t.Inputs {
		serial, err := ExtractSpendSerial(in)
		if err != nil {
			continue
		}
		out = append(out, SerialHash(serial))
	}
	return out
}
