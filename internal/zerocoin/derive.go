package zerocoin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/crypto"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// MasterSeed is the 256-bit secret every deterministic coin is derived from.
type MasterSeed [32]byte

// MaxCommitmentAttempts bounds the search for a valid commitment. With
// prime density around 1/ln(Modulus) a valid value is found in a few
// hundred steps; hitting the bound indicates broken parameters.
const MaxCommitmentAttempts = 1 << 16

// maxKeyRehash bounds the search for an in-range spend key scalar.
const maxKeyRehash = 16

// DerivedCoin is the full secret state of one coin. It is recomputed on
// demand from the seed and never persisted.
type DerivedCoin struct {
	Counter         uint32
	SerialNumber    *big.Int
	Randomness      *big.Int
	CommitmentValue *big.Int
	Denomination    Denomination
	SpendKey        *crypto.PrivateKey
}

// CommitmentHash returns the hash of the public commitment value.
func (c *DerivedCoin) CommitmentHash() types.Hash {
	return CommitmentHash(c.CommitmentValue)
}

// SerialHash returns the hash of the serial number.
func (c *DerivedCoin) SerialHash() types.Hash {
	return SerialHash(c.SerialNumber)
}

// SignSpend authorizes a spend of this coin by signing msgHash with the
// key the serial number was derived from.
func (c *DerivedCoin) SignSpend(msgHash types.Hash) ([]byte, error) {
	if c.SpendKey == nil {
		return nil, errors.New("coin has no spend key")
	}
	return c.SpendKey.Sign(msgHash[:])
}

// Entry converts the coin to a full wallet entry.
func (c *DerivedCoin) Entry() *ZerocoinEntry {
	e := &ZerocoinEntry{
		Value:        new(big.Int).Set(c.CommitmentValue),
		Denom:        c.Denomination,
		Randomness:   new(big.Int).Set(c.Randomness),
		SerialNumber: new(big.Int).Set(c.SerialNumber),
	}
	if c.SpendKey != nil {
		e.SpendKey = c.SpendKey.Serialize()
	}
	return e
}

// Zero clears the secret parts of the coin.
func (c *DerivedCoin) Zero() {
	if c.SpendKey != nil {
		c.SpendKey.Zero()
	}
	if c.SerialNumber != nil {
		c.SerialNumber.SetInt64(0)
	}
	if c.Randomness != nil {
		c.Randomness.SetInt64(0)
	}
}

// Deriver turns (seed, counter) pairs into coins under one parameter set.
type Deriver struct {
	params *Params
}

// NewDeriver returns a deriver for params.
func NewDeriver(params *Params) *Deriver {
	return &Deriver{params: params}
}

// Params returns the commitment group parameters.
func (d *Deriver) Params() *Params {
	return d.params
}

// Derive computes the coin at counter. The result depends only on the
// arguments and the parameters.
func (d *Deriver) Derive(seed MasterSeed, counter uint32, denom Denomination) (*DerivedCoin, error) {
	seedZ := counterSeed(seed, counter)
	defer clear(seedZ[:])

	key, serial, err := d.serialFromSeed(seedZ[:32])
	if err != nil {
		return nil, fmt.Errorf("counter %d: %w", counter, err)
	}

	randomnessSeed := seedZ[32:]
	rh := crypto.DoubleHash(randomnessSeed)
	r := new(big.Int).SetBytes(rh[:])
	r.Mod(r, d.params.GroupOrder)

	p := d.params
	c := new(big.Int).Exp(p.G, serial, p.Modulus)
	c.Mul(c, new(big.Int).Exp(p.H, r, p.Modulus))
	c.Mod(c, p.Modulus)

	buf := make([]byte, len(randomnessSeed)+32)
	copy(buf, randomnessSeed)
	defer clear(buf)
	for attempt := uint32(0); !p.IsValidCoinValue(c); {
		attempt++
		if attempt > MaxCommitmentAttempts {
			key.Zero()
			return nil, fmt.Errorf("counter %d: no valid commitment after %d attempts: %w",
				counter, MaxCommitmentAttempts, ErrDerivationInconsistency)
		}
		binary.LittleEndian.PutUint32(buf[len(randomnessSeed):], attempt)
		dh := crypto.DoubleHash(buf)
		delta := new(big.Int).SetBytes(dh[:])
		delta.Mod(delta, p.GroupOrder)

		r.Add(r, delta)
		r.Mod(r, p.GroupOrder)
		c.Mul(c, new(big.Int).Exp(p.H, delta, p.Modulus))
		c.Mod(c, p.Modulus)
	}

	return &DerivedCoin{
		Counter:         counter,
		SerialNumber:    serial,
		Randomness:      r,
		CommitmentValue: c,
		Denomination:    denom,
		SpendKey:        key,
	}, nil
}

// DeriveSerial computes only the serial number at counter, skipping the
// commitment search.
func (d *Deriver) DeriveSerial(seed MasterSeed, counter uint32) (*big.Int, error) {
	seedZ := counterSeed(seed, counter)
	defer clear(seedZ[:])

	key, serial, err := d.serialFromSeed(seedZ[:32])
	if err != nil {
		return nil, fmt.Errorf("counter %d: %w", counter, err)
	}
	key.Zero()
	return serial, nil
}

// counterSeed returns Hash512(seed || LE32(counter)).
func counterSeed(seed MasterSeed, counter uint32) [64]byte {
	var buf [36]byte
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint32(buf[32:], counter)
	defer clear(buf[:])
	return crypto.Hash512(buf[:])
}

// serialFromSeed derives the spend key from the first half of the counter
// seed and hashes its public key to a serial number.
func (d *Deriver) serialFromSeed(privSeed []byte) (*crypto.PrivateKey, *big.Int, error) {
	h := crypto.DoubleHash(privSeed)
	var key *crypto.PrivateKey
	var err error
	for i := 0; i < maxKeyRehash; i++ {
		key, err = crypto.PrivateKeyFromSeed(h)
		if err == nil {
			break
		}
		h = crypto.Hash(h[:])
	}
	if err != nil {
		return nil, nil, fmt.Errorf("spend key: %w", ErrDerivationInconsistency)
	}

	serial, err := hashPubKey(key.PublicKey())
	if err != nil {
		key.Zero()
		return nil, nil, err
	}
	serial.Mod(serial, d.params.GroupOrder)
	if serial.Sign() == 0 {
		key.Zero()
		return nil, nil, fmt.Errorf("zero serial: %w", ErrDerivationInconsistency)
	}
	return key, serial, nil
}

// hashPubKey maps a 33-byte compressed public key into the bn254 scalar
// field with MiMC. The key is split into two field elements so each block
// is canonical.
func hashPubKey(pub []byte) (*big.Int, error) {
	if len(pub) != 33 {
		return nil, fmt.Errorf("public key must be 33 bytes, got %d", len(pub))
	}
	var lo, hi fr.Element
	lo.SetBytes(pub[:16])
	hi.SetBytes(pub[16:])

	h := mimc.NewMiMC()
	for _, e := range []fr.Element{lo, hi} {
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, fmt.Errorf("mimc write: %w", err)
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}
