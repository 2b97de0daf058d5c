package hdmint

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// TrackerConfig wires a Tracker to its collaborators.
type TrackerConfig struct {
	Store         *walletdb.Store
	Chain         Blockchain
	Mempool       MempoolView
	Confirmations uint64 // 0 selects DefaultMintConfirmations
	Metrics       *Metrics
}

// Tracker owns the per-serial index of known mints and the in-memory
// pending spends. The index is a cache of the wallet store and can be
// rebuilt from it at any time.
type Tracker struct {
	mu            sync.Mutex
	store         *walletdb.Store
	chain         Blockchain
	mempool       MempoolView
	confirmations uint64
	seedChecker   SeedChecker
	metrics       *Metrics
	logger        zerolog.Logger

	mints         map[types.Hash]*MintMeta  // serialHash -> meta
	pendingSpends map[types.Hash]types.Hash // serialHash -> spend txid
	initialized   bool
}

// NewTracker returns an empty tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	conf := cfg.Confirmations
	if conf == 0 {
		conf = DefaultMintConfirmations
	}
	return &Tracker{
		store:         cfg.Store,
		chain:         cfg.Chain,
		mempool:       cfg.Mempool,
		confirmations: conf,
		metrics:       cfg.Metrics,
		logger:        klog.Tracker,
		mints:         make(map[types.Hash]*MintMeta),
		pendingSpends: make(map[types.Hash]types.Hash),
	}
}

// SetSeedChecker sets the checker that decides SeedCorrect for
// deterministic mints. Without one every deterministic mint is treated as
// belonging to a foreign seed.
func (t *Tracker) SetSeedChecker(c SeedChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seedChecker = c
}

// Init loads every stored mint and reconciles it once.
func (t *Tracker) Init() error {
	t.mu.Lock()
	done := t.initialized
	t.mu.Unlock()
	if done {
		return nil
	}
	if _, err := t.ListMints(false, false, true, true); err != nil {
		return err
	}
	t.mu.Lock()
	t.initialized = true
	t.mu.Unlock()
	return nil
}

// Add inserts or replaces the meta for rec. When isNew the record is
// written to the store as well.
func (t *Tracker) Add(rec MintRecord, isNew, isArchived bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.addLocked(rec, isNew, isArchived)
	return err
}

// AddIfAbsent inserts rec unless its serial is already tracked. It returns
// the meta that was there before and whether rec was inserted.
func (t *Tracker) AddIfAbsent(rec MintRecord, isNew bool) (MintMeta, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	meta, err := newMeta(rec)
	if err != nil {
		return MintMeta{}, false, err
	}
	if prior, ok := t.mints[meta.SerialHash]; ok {
		return *prior.Clone(), false, nil
	}
	if _, err := t.addLocked(rec, isNew, false); err != nil {
		return MintMeta{}, false, err
	}
	return MintMeta{}, true, nil
}

func (t *Tracker) addLocked(rec MintRecord, isNew, isArchived bool) (*MintMeta, error) {
	meta, err := newMeta(rec)
	if err != nil {
		return nil, err
	}
	meta.Archived = isArchived
	if d, ok := meta.Deterministic(); ok {
		meta.SeedCorrect = t.seedChecker != nil && t.seedChecker.CheckSeed(d)
	}
	t.mints[meta.SerialHash] = meta
	t.metrics.setTracked(len(t.mints))

	if isNew {
		if err := t.writeRecord(meta.record()); err != nil {
			return meta, err
		}
	}
	return meta, nil
}

func (t *Tracker) writeRecord(rec MintRecord) error {
	var err error
	switch r := rec.(type) {
	case *zerocoin.DeterministicMint:
		err = t.store.WriteDeterministicMint(r)
	case *zerocoin.ZerocoinEntry:
		err = t.store.WriteZerocoinEntry(r)
	default:
		return fmt.Errorf("unsupported mint record %T", rec)
	}
	if err != nil {
		t.logger.Error().Err(err).Str("hash", rec.CommitmentHash().Short()).Msg("Failed to write mint")
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

// Archive flags meta archived and moves its stored record to the archive.
func (t *Tracker) Archive(meta *MintMeta) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.archiveLocked(meta)
}

func (t *Tracker) archiveLocked(meta *MintMeta) error {
	meta.Archived = true
	if m, ok := t.mints[meta.SerialHash]; ok {
		m.Archived = true
	}
	t.metrics.mintArchived()

	var err error
	switch r := meta.record().(type) {
	case *zerocoin.DeterministicMint:
		err = t.store.ArchiveDeterministicOrphan(r)
	case *zerocoin.ZerocoinEntry:
		err = t.store.ArchiveMintOrphan(r)
	}
	if err != nil {
		return fmt.Errorf("%w: archive %s: %w", ErrStorageWrite, meta.CommitmentHash().Short(), err)
	}
	t.logger.Warn().Str("hash", meta.CommitmentHash().Short()).Msg("Archived mint")
	return nil
}

// UnArchive restores an archived record and tracks it again.
func (t *Tracker) UnArchive(pubcoinHash types.Hash, deterministic bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rec MintRecord
	if deterministic {
		m, err := t.store.UnarchiveDeterministicMint(pubcoinHash)
		if err != nil {
			return fmt.Errorf("unarchive deterministic mint %s: %w", pubcoinHash.Short(), err)
		}
		rec = m
	} else {
		e, err := t.store.UnarchiveZerocoinMint(pubcoinHash)
		if err != nil {
			return fmt.Errorf("unarchive mint %s: %w", pubcoinHash.Short(), err)
		}
		rec = e
	}
	if _, err := t.addLocked(rec, false, false); err != nil {
		return err
	}
	t.logger.Info().Str("hash", pubcoinHash.Short()).Msg("Unarchived mint")
	return nil
}

// Get returns the meta for serialHash.
func (t *Tracker) Get(serialHash types.Hash) (MintMeta, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mints[serialHash]
	if !ok {
		return MintMeta{}, false
	}
	return *m.Clone(), true
}

// GetMetaFromPubcoin returns the meta whose commitment hashes to pubcoinHash.
func (t *Tracker) GetMetaFromPubcoin(pubcoinHash types.Hash) (MintMeta, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.byPubcoinLocked(pubcoinHash)
	if m == nil {
		return MintMeta{}, false
	}
	return *m.Clone(), true
}

func (t *Tracker) byPubcoinLocked(pubcoinHash types.Hash) *MintMeta {
	for _, m := range t.mints {
		if m.CommitmentHash() == pubcoinHash {
			return m
		}
	}
	return nil
}

// GetSerialHashes returns the serial hashes of every unarchived mint.
func (t *Tracker) GetSerialHashes() []types.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Hash, 0, len(t.mints))
	for h, m := range t.mints {
		if !m.Archived {
			out = append(out, h)
		}
	}
	return out
}

// HasPubcoin reports whether a mint with commitment value is tracked.
func (t *Tracker) HasPubcoin(value *big.Int) bool {
	return t.HasPubcoinHash(zerocoin.CommitmentHash(value))
}

// HasPubcoinHash reports whether a mint with pubcoinHash is tracked.
func (t *Tracker) HasPubcoinHash(pubcoinHash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byPubcoinLocked(pubcoinHash) != nil
}

// HasSerial reports whether serial belongs to a tracked mint.
func (t *Tracker) HasSerial(serial *big.Int) bool {
	return t.HasSerialHash(zerocoin.SerialHash(serial))
}

// HasSerialHash reports whether serialHash belongs to a tracked mint.
func (t *Tracker) HasSerialHash(serialHash types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.mints[serialHash]
	return ok
}

// HasMintTx reports whether any tracked mint was created by txid.
func (t *Tracker) HasMintTx(txid types.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.mints {
		if m.TxID == txid {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no mint is tracked.
func (t *Tracker) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mints) == 0
}

// GetBalance sums the denominations of unused, unarchived mints. With
// confirmedOnly only mature mints count; with unconfirmedOnly only
// immature ones.
func (t *Tracker) GetBalance(confirmedOnly, unconfirmedOnly bool) uint64 {
	tip := t.tip()
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, m := range t.mints {
		if m.Used || m.Archived {
			continue
		}
		confirmed := isMature(m.Height, tip, t.confirmations)
		if confirmedOnly && !confirmed {
			continue
		}
		if unconfirmedOnly && confirmed {
			continue
		}
		total += m.Denom.Amount()
	}
	return total
}

// GetUnconfirmedBalance sums unused, unarchived mints that are not mature.
func (t *Tracker) GetUnconfirmedBalance() uint64 {
	return t.GetBalance(false, true)
}

// GetMints returns unused, unarchived mints ordered by height.
func (t *Tracker) GetMints(confirmedOnly bool) []MintMeta {
	tip := t.tip()
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []MintMeta
	for _, m := range t.mints {
		if m.Archived || m.Used {
			continue
		}
		if confirmedOnly && !isMature(m.Height, tip, t.confirmations) {
			continue
		}
		out = append(out, *m.Clone())
	}
	sortMetas(out)
	return out
}

// ListArchived returns the metas of every archived record in the store.
// Init does not load archived records, so they are read from the store.
func (t *Tracker) ListArchived() ([]MintMeta, error) {
	dmints, err := t.store.ListArchivedDeterministicMints()
	if err != nil {
		return nil, fmt.Errorf("list archived deterministic mints: %w", err)
	}
	entries, err := t.store.ListArchivedZerocoinEntries()
	if err != nil {
		return nil, fmt.Errorf("list archived mints: %w", err)
	}

	out := make([]MintMeta, 0, len(dmints)+len(entries))
	add := func(rec MintRecord) error {
		meta, err := newMeta(rec)
		if err != nil {
			return err
		}
		meta.Archived = true
		out = append(out, *meta)
		return nil
	}
	for _, m := range dmints {
		if err := add(m); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	sortMetas(out)
	return out, nil
}

// SetPubcoinUsed marks the mint spent by the pending transaction txid.
func (t *Tracker) SetPubcoinUsed(pubcoinHash, txid types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.byPubcoinLocked(pubcoinHash)
	if m == nil {
		return fmt.Errorf("%w: pubcoin %s", ErrStaleTrackerEntry, pubcoinHash.Short())
	}
	meta := m.Clone()
	meta.Used = true
	t.pendingSpends[meta.SerialHash] = txid
	return t.updateStateLocked(meta)
}

// SetPubcoinNotUsed reverses SetPubcoinUsed.
func (t *Tracker) SetPubcoinNotUsed(pubcoinHash types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.byPubcoinLocked(pubcoinHash)
	if m == nil {
		return fmt.Errorf("%w: pubcoin %s", ErrStaleTrackerEntry, pubcoinHash.Short())
	}
	meta := m.Clone()
	meta.Used = false
	delete(t.pendingSpends, meta.SerialHash)
	return t.updateStateLocked(meta)
}

// PendingSpend returns the pending spend recorded for serialHash.
func (t *Tracker) PendingSpend(serialHash types.Hash) (types.Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	txid, ok := t.pendingSpends[serialHash]
	return txid, ok
}

// RemovePending forgets the pending spend made by txid.
func (t *Tracker) RemovePending(txid types.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removePendingLocked(txid)
}

func (t *Tracker) removePendingLocked(txid types.Hash) {
	for sh, pending := range t.pendingSpends {
		if pending == txid {
			delete(t.pendingSpends, sh)
		}
	}
}

// UpdateState writes meta to the store and replaces the tracked meta. An
// archived deterministic record is unarchived first.
func (t *Tracker) UpdateState(meta MintMeta) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateStateLocked(meta.Clone())
}

func (t *Tracker) updateStateLocked(meta *MintMeta) error {
	if meta.Record == nil {
		return fmt.Errorf("%w: meta %s has no record", ErrStaleTrackerEntry, meta.SerialHash.Short())
	}
	pubcoin := meta.CommitmentHash()
	if meta.IsDeterministic() {
		_, err := t.store.ReadDeterministicMint(pubcoin)
		if errors.Is(err, walletdb.ErrNotFound) {
			if !meta.Archived {
				return fmt.Errorf("%w: deterministic mint %s not in store", ErrStaleTrackerEntry, pubcoin.Short())
			}
			if _, err := t.store.UnarchiveDeterministicMint(pubcoin); err != nil {
				return fmt.Errorf("unarchive deterministic mint %s: %w", pubcoin.Short(), err)
			}
			meta.Archived = false
		} else if err != nil {
			return fmt.Errorf("read deterministic mint %s: %w", pubcoin.Short(), err)
		}
	}

	// The record write is the source of truth; memory follows even if it fails.
	t.mints[meta.SerialHash] = meta
	return t.writeRecord(meta.record())
}

// UpdateZerocoinEntry replaces the state of a tracked legacy entry.
func (t *Tracker) UpdateZerocoinEntry(e *zerocoin.ZerocoinEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	sh := e.SerialHash()
	m, ok := t.mints[sh]
	if !ok {
		return fmt.Errorf("%w: serial %s", ErrStaleTrackerEntry, sh.Short())
	}
	meta := m.Clone()
	meta.Used = e.Used
	meta.Denom = e.Denom
	meta.Height = e.Height
	meta.TxID = e.TxID
	meta.Record = cloneEntry(e)
	t.mints[sh] = meta
	return t.writeRecord(meta.record())
}

// UpdateMints changes the used state of the given mints in bulk. With
// reset their pending spends are dropped and they are marked unused;
// otherwise, with updateStatus, they are marked used = status.
func (t *Tracker) UpdateMints(serialHashes []types.Hash, reset, updateStatus, status bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sh := range serialHashes {
		m, ok := t.mints[sh]
		if !ok {
			return fmt.Errorf("%w: serial %s", ErrStaleTrackerEntry, sh.Short())
		}
		meta := m.Clone()
		switch {
		case reset:
			delete(t.pendingSpends, sh)
			meta.Used = false
		case updateStatus:
			meta.Used = status
		default:
			continue
		}
		if meta.sameState(m) {
			continue
		}
		if err := t.updateStateLocked(meta); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops every tracked mint and pending spend.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mints = make(map[types.Hash]*MintMeta)
	t.pendingSpends = make(map[types.Hash]types.Hash)
	t.initialized = false
	t.metrics.setTracked(0)
}

// Count returns the number of tracked mints, archived included.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mints)
}

func (t *Tracker) tip() uint64 {
	if t.chain == nil {
		return 0
	}
	return t.chain.Height()
}

func sortMetas(ms []MintMeta) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Height != ms[j].Height {
			return ms[i].Height < ms[j].Height
		}
		return ms[i].SerialHash.String() < ms[j].SerialHash.String()
	})
}
