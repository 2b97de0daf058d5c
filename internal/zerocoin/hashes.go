package zerocoin

import (
	"math/big"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/crypto"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// CommitmentHash identifies a coin by its public commitment value.
func CommitmentHash(value *big.Int) types.Hash {
	return crypto.Hash(value.Bytes())
}

// SerialHash identifies a coin by its serial number without revealing it.
func SerialHash(serial *big.Int) types.Hash {
	return crypto.Hash(serial.Bytes())
}

// SeedHash identifies a master seed without revealing it.
func SeedHash(seed MasterSeed) types.Hash {
	return crypto.Hash(seed[:])
}
