// Package walletdb persists HD mint wallet state over a storage.DB.
//
// Key layout:
//
//	zc/count                              -> LE32 last used counter
//	zc/seedhash                           -> 32-byte hash of the active seed
//	zc/seed/<seedHash>                    -> encrypted master seed
//	zc/dmint/<pubcoinHash>                -> DeterministicMint JSON
//	zc/dmint-archive/<pubcoinHash>        -> DeterministicMint JSON
//	zc/mint/<pubcoinHash>                 -> ZerocoinEntry JSON
//	zc/mint-archive/<pubcoinHash>         -> ZerocoinEntry JSON
//	zc/pool/<seedHash><pubcoinHash>       -> LE32 counter
//	zc/wtx/<txid>                         -> WalletTx JSON
package walletdb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("walletdb: not found")

var (
	keyCount           = []byte("zc/count")
	keySeedHash        = []byte("zc/seedhash")
	prefixSeed         = []byte("zc/seed/")
	prefixDMint        = []byte("zc/dmint/")
	prefixDMintArchive = []byte("zc/dmint-archive/")
	prefixMint         = []byte("zc/mint/")
	prefixMintArchive  = []byte("zc/mint-archive/")
	prefixPool         = []byte("zc/pool/")
	prefixWalletTx     = []byte("zc/wtx/")
)

// Store reads and writes wallet records. Every write replaces a whole
// record, so a crash leaves either the old or the new value.
type Store struct {
	db storage.DB
}

// New creates a wallet store over db.
func New(db storage.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database.
func (s *Store) DB() storage.DB {
	return s.db
}

func hashKey(prefix []byte, h types.Hash) []byte {
	key := make([]byte, len(prefix)+types.HashSize)
	copy(key, prefix)
	copy(key[len(prefix):], h[:])
	return key
}

func hashFromKey(prefix, key []byte) (types.Hash, bool) {
	if len(key) != len(prefix)+types.HashSize {
		return types.Hash{}, false
	}
	var h types.Hash
	copy(h[:], key[len(prefix):])
	return h, true
}

// get maps storage misses to ErrNotFound.
func (s *Store) get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// ReadZerocoinCount returns the last used counter, or 0 for a new wallet.
func (s *Store) ReadZerocoinCount() (uint32, error) {
	data, err := s.get(keyCount)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("read count: corrupt record (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteZerocoinCount persists the last used counter.
func (s *Store) WriteZerocoinCount(count uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], count)
	if err := s.db.Put(keyCount, buf[:]); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	return nil
}

// ReadCurrentSeedHash returns the hash of the active master seed.
func (s *Store) ReadCurrentSeedHash() (types.Hash, error) {
	data, err := s.get(keySeedHash)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(data)
}

// WriteCurrentSeedHash records which master seed is active.
func (s *Store) WriteCurrentSeedHash(h types.Hash) error {
	if err := s.db.Put(keySeedHash, h[:]); err != nil {
		return fmt.Errorf("write seed hash: %w", err)
	}
	return nil
}

// PutSeedCipher stores an encrypted master seed under its hash.
func (s *Store) PutSeedCipher(seedHash types.Hash, cipher []byte) error {
	if err := s.db.Put(hashKey(prefixSeed, seedHash), cipher); err != nil {
		return fmt.Errorf("write seed: %w", err)
	}
	return nil
}

// GetSeedCipher returns the encrypted master seed stored under seedHash.
func (s *Store) GetSeedCipher(seedHash types.Hash) ([]byte, error) {
	return s.get(hashKey(prefixSeed, seedHash))
}

// WriteDeterministicMint stores a live deterministic mint record.
func (s *Store) WriteDeterministicMint(m *zerocoin.DeterministicMint) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("dmint marshal: %w", err)
	}
	if err := s.db.Put(hashKey(prefixDMint, m.CommitmentHash()), data); err != nil {
		return fmt.Errorf("write dmint: %w", err)
	}
	return nil
}

// ReadDeterministicMint returns the live record for pubcoinHash.
func (s *Store) ReadDeterministicMint(pubcoinHash types.Hash) (*zerocoin.DeterministicMint, error) {
	return readJSON[zerocoin.DeterministicMint](s, hashKey(prefixDMint, pubcoinHash))
}

// ListDeterministicMints returns all live deterministic mints.
func (s *Store) ListDeterministicMints() ([]*zerocoin.DeterministicMint, error) {
	return listJSON[zerocoin.DeterministicMint](s, prefixDMint)
}

// ListArchivedDeterministicMints returns all archived deterministic mints.
func (s *Store) ListArchivedDeterministicMints() ([]*zerocoin.DeterministicMint, error) {
	return listJSON[zerocoin.DeterministicMint](s, prefixDMintArchive)
}

// ArchiveDeterministicOrphan moves a deterministic mint to the archive.
func (s *Store) ArchiveDeterministicOrphan(m *zerocoin.DeterministicMint) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("dmint marshal: %w", err)
	}
	h := m.CommitmentHash()
	return s.move(hashKey(prefixDMint, h), hashKey(prefixDMintArchive, h), data)
}

// UnarchiveDeterministicMint moves an archived deterministic mint back to
// the live set and returns it.
func (s *Store) UnarchiveDeterministicMint(pubcoinHash types.Hash) (*zerocoin.DeterministicMint, error) {
	from := hashKey(prefixDMintArchive, pubcoinHash)
	m, err := readJSON[zerocoin.DeterministicMint](s, from)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("dmint marshal: %w", err)
	}
	if err := s.move(from, hashKey(prefixDMint, pubcoinHash), data); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteZerocoinEntry stores a live full-secret mint record.
func (s *Store) WriteZerocoinEntry(e *zerocoin.ZerocoinEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("mint marshal: %w", err)
	}
	if err := s.db.Put(hashKey(prefixMint, e.CommitmentHash()), data); err != nil {
		return fmt.Errorf("write mint: %w", err)
	}
	return nil
}

// ReadZerocoinEntry returns the live entry for pubcoinHash.
func (s *Store) ReadZerocoinEntry(pubcoinHash types.Hash) (*zerocoin.ZerocoinEntry, error) {
	return readJSON[zerocoin.ZerocoinEntry](s, hashKey(prefixMint, pubcoinHash))
}

// ListZerocoinEntries returns all live full-secret entries.
func (s *Store) ListZerocoinEntries() ([]*zerocoin.ZerocoinEntry, error) {
	return listJSON[zerocoin.ZerocoinEntry](s, prefixMint)
}

// ListArchivedZerocoinEntries returns all archived full-secret entries.
func (s *Store) ListArchivedZerocoinEntries() ([]*zerocoin.ZerocoinEntry, error) {
	return listJSON[zerocoin.ZerocoinEntry](s, prefixMintArchive)
}

// ArchiveMintOrphan moves a full-secret entry to the archive.
func (s *Store) ArchiveMintOrphan(e *zerocoin.ZerocoinEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("mint marshal: %w", err)
	}
	h := e.CommitmentHash()
	return s.move(hashKey(prefixMint, h), hashKey(prefixMintArchive, h), data)
}

// UnarchiveZerocoinMint moves an archived entry back to the live set.
func (s *Store) UnarchiveZerocoinMint(pubcoinHash types.Hash) (*zerocoin.ZerocoinEntry, error) {
	from := hashKey(prefixMintArchive, pubcoinHash)
	e, err := readJSON[zerocoin.ZerocoinEntry](s, from)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("mint marshal: %w", err)
	}
	if err := s.move(from, hashKey(prefixMint, pubcoinHash), data); err != nil {
		return nil, err
	}
	return e, nil
}

// WriteMints stores several records in one batch.
func (s *Store) WriteMints(dmints []*zerocoin.DeterministicMint, entries []*zerocoin.ZerocoinEntry) error {
	if len(dmints) == 0 && len(entries) == 0 {
		return nil
	}
	batch := storage.NewBatch(s.db)
	for _, m := range dmints {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("dmint marshal: %w", err)
		}
		if err := batch.Put(hashKey(prefixDMint, m.CommitmentHash()), data); err != nil {
			return err
		}
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("mint marshal: %w", err)
		}
		if err := batch.Put(hashKey(prefixMint, e.CommitmentHash()), data); err != nil {
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("write mints: %w", err)
	}
	return nil
}

// move writes data under to and deletes from in one batch.
func (s *Store) move(from, to, data []byte) error {
	batch := storage.NewBatch(s.db)
	if err := batch.Put(to, data); err != nil {
		return err
	}
	if err := batch.Delete(from); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("move record: %w", err)
	}
	return nil
}

func readJSON[T any](s *Store, key []byte) (*T, error) {
	data, err := s.get(key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &v, nil
}

func listJSON[T any](s *Store, prefix []byte) ([]*T, error) {
	var out []*T
	err := s.db.ForEach(prefix, func(key, value []byte) error {
		if _, ok := hashFromKey(prefix, key); !ok {
			return nil
		}
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("unmarshal %s: %w", prefix, err)
		}
		out = append(out, &v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
