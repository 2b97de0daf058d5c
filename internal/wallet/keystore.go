package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Keystore errors.
var (
	ErrLocked        = errors.New("keystore is locked")
	ErrWrongPassword = errors.New("wrong password")
	ErrSeedNotFound  = errors.New("seed not found")
)

// Keystore keeps master seeds encrypted in the wallet database. While
// unlocked it holds the password and the seeds it has decrypted.
type Keystore struct {
	store  *walletdb.Store
	params EncryptionParams

	mu       sync.RWMutex
	password []byte
	seeds    map[types.Hash]zerocoin.MasterSeed
}

// NewKeystore returns a locked keystore over store.
func NewKeystore(store *walletdb.Store, params EncryptionParams) *Keystore {
	return &Keystore{store: store, params: params}
}

// IsLocked reports whether seeds are currently unavailable.
func (ks *Keystore) IsLocked() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.password == nil
}

// Unlock makes seeds available. When the wallet already has an active seed
// the password is checked against it.
func (ks *Keystore) Unlock(password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("%w: empty password", ErrWrongPassword)
	}
	seeds := make(map[types.Hash]zerocoin.MasterSeed)

	current, err := ks.store.ReadCurrentSeedHash()
	switch {
	case errors.Is(err, walletdb.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read seed hash: %w", err)
	default:
		seed, err := ks.decryptSeed(current, password)
		if err != nil {
			return err
		}
		seeds[current] = seed
	}

	ks.mu.Lock()
	ks.password = append([]byte(nil), password...)
	ks.seeds = seeds
	ks.mu.Unlock()
	return nil
}

// Lock forgets the password and every decrypted seed.
func (ks *Keystore) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	clear(ks.password)
	ks.password = nil
	for h := range ks.seeds {
		ks.seeds[h] = zerocoin.MasterSeed{}
	}
	ks.seeds = nil
}

// AddDeterministicSeed encrypts seed and stores it under its hash.
func (ks *Keystore) AddDeterministicSeed(seed zerocoin.MasterSeed) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.password == nil {
		return ErrLocked
	}
	cipher, err := Encrypt(seed[:], ks.password, ks.params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}
	h := zerocoin.SeedHash(seed)
	if err := ks.store.PutSeedCipher(h, cipher); err != nil {
		return err
	}
	ks.seeds[h] = seed
	return nil
}

// GetDeterministicSeed returns the seed whose hash is seedHash.
func (ks *Keystore) GetDeterministicSeed(seedHash types.Hash) (zerocoin.MasterSeed, error) {
	ks.mu.RLock()
	if ks.password == nil {
		ks.mu.RUnlock()
		return zerocoin.MasterSeed{}, ErrLocked
	}
	if seed, ok := ks.seeds[seedHash]; ok {
		ks.mu.RUnlock()
		return seed, nil
	}
	password := append([]byte(nil), ks.password...)
	ks.mu.RUnlock()
	defer clear(password)

	seed, err := ks.decryptSeed(seedHash, password)
	if err != nil {
		return zerocoin.MasterSeed{}, err
	}
	ks.mu.Lock()
	if ks.seeds != nil {
		ks.seeds[seedHash] = seed
	}
	ks.mu.Unlock()
	return seed, nil
}

// NewSeed returns a fresh random master seed.
func (ks *Keystore) NewSeed() (zerocoin.MasterSeed, error) {
	var seed zerocoin.MasterSeed
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("generate seed: %w", err)
	}
	return seed, nil
}

func (ks *Keystore) decryptSeed(seedHash types.Hash, password []byte) (zerocoin.MasterSeed, error) {
	var seed zerocoin.MasterSeed
	cipher, err := ks.store.GetSeedCipher(seedHash)
	if errors.Is(err, walletdb.ErrNotFound) {
		return seed, fmt.Errorf("%w: %s", ErrSeedNotFound, seedHash.Short())
	}
	if err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}
	plain, err := Decrypt(cipher, password)
	if errors.Is(err, ErrDecrypt) {
		return seed, ErrWrongPassword
	}
	if err != nil {
		return seed, err
	}
	defer clear(plain)
	if len(plain) != len(seed) {
		return seed, fmt.Errorf("stored seed has %d bytes", len(plain))
	}
	copy(seed[:], plain)
	if zerocoin.SeedHash(seed) != seedHash {
		clear(seed[:])
		return seed, fmt.Errorf("stored seed does not match hash %s", seedHash.Short())
	}
	return seed, nil
}
