package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
)

// SeedSize is the length of a BIP-39 seed in bytes (512 bits).
const SeedSize = 64

// SeedFromMnemonic derives a 512-bit seed from a mnemonic and optional passphrase
// using PBKDF2-SHA512 as specified in BIP-39.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return seed, nil
}

// MintSeedFromMnemonic derives the master seed of the mint wallet: the
// private key at m/44'/8888'/0'/2'.
func MintSeedFromMnemonic(mnemonic, passphrase string) (zerocoin.MasterSeed, error) {
	var out zerocoin.MasterSeed

	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return out, err
	}
	defer clear(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return out, err
	}
	key, err := master.DeriveMintKey(0)
	if err != nil {
		return out, err
	}
	priv := key.PrivateKeyBytes()
	if len(priv) != len(out) {
		return out, fmt.Errorf("mint key has %d bytes", len(priv))
	}
	copy(out[:], priv)
	return out, nil
}
