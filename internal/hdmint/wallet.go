package hdmint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// SeedState is either Locked or Unlocked.
type SeedState interface {
	isSeedState()
}

// Locked means the master seed is not in memory.
type Locked struct{}

// Unlocked carries the active master seed. The wallet zeroes Seed in place
// when it locks or switches seeds.
type Unlocked struct {
	Seed zerocoin.MasterSeed
}

func (Locked) isSeedState()    {}
func (*Unlocked) isSeedState() {}

// WalletOptions configures a Wallet. Store, Vault and Deriver are
// required. Chain scanning is available when Tracker, Chain and Decoder
// are all set.
type WalletOptions struct {
	Store   *walletdb.Store
	Vault   SeedVault
	Deriver *zerocoin.Deriver

	Tracker *Tracker
	Chain   Blockchain
	Decoder CoinDecoder

	Lookahead   uint32 // 0 selects DefaultLookahead
	Parallelism int    // 0 selects GOMAXPROCS
	Metrics     *Metrics
	Clock       clock.Clock
}

// Wallet owns the master seed and the last used counter and drives mint
// pool generation.
type Wallet struct {
	seedMu   sync.RWMutex
	state    SeedState
	seedHash types.Hash

	countMu  sync.Mutex
	lastUsed uint32

	store       *walletdb.Store
	vault       SeedVault
	deriver     *zerocoin.Deriver
	tracker     *Tracker
	pool        *MintPool
	scanner     *Scanner
	lookahead   uint32
	parallelism int
	metrics     *Metrics
	logger      zerolog.Logger
}

// NewWallet opens the wallet held in opts.Store. On first run with an
// unlocked vault a new master seed is generated and stored. A locked vault
// yields a locked wallet that can be unlocked later.
func NewWallet(opts WalletOptions) (*Wallet, error) {
	if opts.Store == nil || opts.Vault == nil || opts.Deriver == nil {
		return nil, errors.New("wallet needs a store, a seed vault and a deriver")
	}

	lastUsed, err := opts.Store.ReadZerocoinCount()
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		state:       Locked{},
		lastUsed:    lastUsed,
		store:       opts.Store,
		vault:       opts.Vault,
		deriver:     opts.Deriver,
		tracker:     opts.Tracker,
		pool:        NewMintPool(lastUsed),
		lookahead:   opts.Lookahead,
		parallelism: opts.Parallelism,
		metrics:     opts.Metrics,
		logger:      klog.Wallet,
	}
	if w.lookahead == 0 {
		w.lookahead = DefaultLookahead
	}
	if w.parallelism <= 0 {
		w.parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.Tracker != nil {
		opts.Tracker.SetSeedChecker(w)
		if opts.Chain != nil && opts.Decoder != nil {
			clk := opts.Clock
			if clk == nil {
				clk = clock.NewDefaultClock()
			}
			w.scanner = NewScanner(w, opts.Tracker, opts.Chain, opts.Decoder, clk)
		}
	}
	w.metrics.setLastUsed(lastUsed)

	seedHash, err := opts.Store.ReadCurrentSeedHash()
	firstRun := errors.Is(err, walletdb.ErrNotFound)
	if err != nil && !firstRun {
		return nil, fmt.Errorf("read seed hash: %w", err)
	}
	w.seedHash = seedHash

	if opts.Vault.IsLocked() {
		w.logger.Info().Bool("first_run", firstRun).Msg("Wallet opened locked")
		return w, nil
	}

	if firstRun {
		seed, err := opts.Vault.NewSeed()
		if err != nil {
			return nil, err
		}
		if err := w.SetMasterSeed(seed, true); err != nil {
			return nil, err
		}
		w.logger.Info().Str("seed", w.seedHash.Short()).Msg("Generated new master seed")
		return w, nil
	}

	seed, err := opts.Vault.GetDeterministicSeed(seedHash)
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", seedHash.Short(), err)
	}
	if err := w.SetMasterSeed(seed, false); err != nil {
		return nil, err
	}
	return w, nil
}

// SetMasterSeed makes seed the active seed. With resetCount the counter
// restarts at zero; otherwise the stored counter is kept. The mint pool is
// emptied either way.
func (w *Wallet) SetMasterSeed(seed zerocoin.MasterSeed, resetCount bool) error {
	if w.vault.IsLocked() {
		return ErrWalletLocked
	}
	if err := w.vault.AddDeterministicSeed(seed); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	h := zerocoin.SeedHash(seed)
	if err := w.store.WriteCurrentSeedHash(h); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	w.seedMu.Lock()
	w.setStateLocked(&Unlocked{Seed: seed})
	w.seedHash = h
	w.seedMu.Unlock()

	var count uint32
	if resetCount {
		if err := w.store.WriteZerocoinCount(0); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
	} else {
		c, err := w.store.ReadZerocoinCount()
		if err != nil {
			return err
		}
		count = c
	}
	w.countMu.Lock()
	w.lastUsed = count
	w.countMu.Unlock()

	w.pool.Reset(count)
	w.metrics.setLastUsed(count)
	w.metrics.setPoolSize(0)
	return nil
}

// Lock drops the seed from memory and locks the vault.
func (w *Wallet) Lock() {
	w.seedMu.Lock()
	w.setStateLocked(Locked{})
	w.seedMu.Unlock()
	w.vault.Lock()
	w.logger.Info().Msg("Wallet locked")
}

// Unlock loads the active seed from the vault, which must already be
// unlocked.
func (w *Wallet) Unlock() error {
	if w.vault.IsLocked() {
		return ErrWalletLocked
	}
	seedHash, err := w.store.ReadCurrentSeedHash()
	if errors.Is(err, walletdb.ErrNotFound) {
		seed, err := w.vault.NewSeed()
		if err != nil {
			return err
		}
		return w.SetMasterSeed(seed, true)
	}
	if err != nil {
		return fmt.Errorf("read seed hash: %w", err)
	}
	seed, err := w.vault.GetDeterministicSeed(seedHash)
	if err != nil {
		return fmt.Errorf("load seed %s: %w", seedHash.Short(), err)
	}

	w.seedMu.Lock()
	w.setStateLocked(&Unlocked{Seed: seed})
	w.seedHash = seedHash
	w.seedMu.Unlock()
	clear(seed[:])
	w.logger.Info().Str("seed", seedHash.Short()).Msg("Wallet unlocked")
	return nil
}

// setStateLocked replaces the seed state, zeroing the seed it held. Must be
// called with seedMu held.
func (w *Wallet) setStateLocked(next SeedState) {
	if u, ok := w.state.(*Unlocked); ok && u != next {
		clear(u.Seed[:])
	}
	w.state = next
}

// IsLocked reports whether the seed is unavailable.
func (w *Wallet) IsLocked() bool {
	w.seedMu.RLock()
	defer w.seedMu.RUnlock()
	_, locked := w.state.(Locked)
	return locked
}

// State returns the current seed state. The seed inside an *Unlocked is
// zeroed once the wallet locks.
func (w *Wallet) State() SeedState {
	w.seedMu.RLock()
	defer w.seedMu.RUnlock()
	return w.state
}

// SeedHash returns the hash of the active seed. It stays known while the
// wallet is locked.
func (w *Wallet) SeedHash() types.Hash {
	w.seedMu.RLock()
	defer w.seedMu.RUnlock()
	return w.seedHash
}

func (w *Wallet) currentSeed() (zerocoin.MasterSeed, types.Hash, error) {
	w.seedMu.RLock()
	defer w.seedMu.RUnlock()
	u, ok := w.state.(*Unlocked)
	if !ok {
		return zerocoin.MasterSeed{}, types.Hash{}, ErrWalletLocked
	}
	return u.Seed, w.seedHash, nil
}

// Pool returns the wallet's mint pool.
func (w *Wallet) Pool() *MintPool {
	return w.pool
}

// GenerateMintPool derives pubcoin hashes for count counters starting at
// start and adds the ones not already pooled. start 0 means the counter
// after the last used one; count 0 means the configured look-ahead.
// Cancelling ctx stops generation; counters derived before that point are
// kept.
func (w *Wallet) GenerateMintPool(ctx context.Context, start, count uint32) error {
	seed, seedHash, err := w.currentSeed()
	if err != nil {
		return err
	}
	defer clear(seed[:])

	n := start
	if n == 0 {
		n = w.GetCount() + 1
	}
	if count == 0 {
		count = w.lookahead
	}
	stop := n + count
	if stop < n {
		stop = math.MaxUint32
	}

	var todo []uint32
	for i := n; i < stop; i++ {
		if !w.pool.HasCount(i) {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	hashes := make([]types.Hash, len(todo))
	done := make([]bool, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for idx, c := range todo {
		idx, c := idx, c
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			coin, err := w.deriver.Derive(seed, c, zerocoin.DenomOne)
			if err != nil {
				return err
			}
			hashes[idx] = coin.CommitmentHash()
			coin.Zero()
			done[idx] = true
			return nil
		})
	}
	genErr := g.Wait()

	added := 0
	for idx, c := range todo {
		if !done[idx] {
			break
		}
		w.pool.Add(hashes[idx], c)
		if err := w.store.WriteMintPoolPair(seedHash, hashes[idx], c); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
		added++
	}
	w.metrics.setPoolSize(w.pool.Len())
	klog.MintPool.Debug().
		Uint32("start", n).
		Int("added", added).
		Uint32("last_generated", w.pool.CountOfLastGenerated()).
		Msg("Generated mint pool")

	if genErr != nil {
		return genErr
	}
	return ctx.Err()
}

// LoadMintPoolFromDB restores the pooled hashes stored for the active seed.
func (w *Wallet) LoadMintPoolFromDB() error {
	seedHash := w.SeedHash()
	pairs, err := w.store.ListMintPool(seedHash)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		w.pool.Add(p.Hash, p.Count)
	}
	w.metrics.setPoolSize(w.pool.Len())
	klog.MintPool.Debug().Int("entries", len(pairs)).Msg("Loaded mint pool")
	return nil
}

// RemoveMintsFromPool drops hashes from the pool and its stored hints.
func (w *Wallet) RemoveMintsFromPool(hashes []types.Hash) error {
	seedHash := w.SeedHash()
	for _, h := range hashes {
		w.pool.Remove(h)
		if err := w.store.EraseMintPoolPair(seedHash, h); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
	}
	w.metrics.setPoolSize(w.pool.Len())
	return nil
}

// GetState returns the next counter to use and the last generated one.
func (w *Wallet) GetState() (uint32, uint32) {
	return w.GetCount() + 1, w.pool.CountOfLastGenerated()
}

// GetCount returns the last used counter.
func (w *Wallet) GetCount() uint32 {
	w.countMu.Lock()
	defer w.countMu.Unlock()
	return w.lastUsed
}

// SetCount sets the last used counter in memory only.
func (w *Wallet) SetCount(count uint32) {
	w.countMu.Lock()
	w.lastUsed = count
	w.countMu.Unlock()
	w.metrics.setLastUsed(count)
}

// UpdateCountLocal increments the last used counter in memory.
func (w *Wallet) UpdateCountLocal() {
	w.countMu.Lock()
	w.lastUsed++
	count := w.lastUsed
	w.countMu.Unlock()
	w.metrics.setLastUsed(count)
}

// UpdateCountDB persists the in-memory counter.
func (w *Wallet) UpdateCountDB() error {
	if err := w.store.WriteZerocoinCount(w.GetCount()); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

// UpdateCount increments the counter and persists it.
func (w *Wallet) UpdateCount() error {
	w.UpdateCountLocal()
	return w.UpdateCountDB()
}

// advanceCount raises the counter to count if it is higher and persists
// it. The counter never moves backwards.
func (w *Wallet) advanceCount(count uint32) error {
	w.countMu.Lock()
	if count <= w.lastUsed {
		w.countMu.Unlock()
		return nil
	}
	w.lastUsed = count
	w.countMu.Unlock()
	w.metrics.setLastUsed(count)
	return w.UpdateCountDB()
}

// GenerateMint derives the coin at count and its persisted record.
func (w *Wallet) GenerateMint(count uint32, denom zerocoin.Denomination) (*zerocoin.DerivedCoin, *zerocoin.DeterministicMint, error) {
	if !denom.IsValid() {
		return nil, nil, fmt.Errorf("%w: %d", zerocoin.ErrInvalidDenomination, denom)
	}
	seed, seedHash, err := w.currentSeed()
	if err != nil {
		return nil, nil, err
	}
	defer clear(seed[:])

	coin, err := w.deriver.Derive(seed, count, denom)
	if err != nil {
		return nil, nil, err
	}
	d := zerocoin.NewDeterministicMint(count, seedHash, coin.SerialHash(), coin.CommitmentValue)
	d.Denom = denom
	return coin, d, nil
}

// GenerateDeterministicMint derives the coin at the next counter. Unless
// generateOnly the counter is consumed.
func (w *Wallet) GenerateDeterministicMint(denom zerocoin.Denomination, generateOnly bool) (*zerocoin.DerivedCoin, *zerocoin.DeterministicMint, error) {
	coin, d, err := w.GenerateMint(w.GetCount()+1, denom)
	if err != nil {
		return nil, nil, err
	}
	if !generateOnly {
		if err := w.UpdateCount(); err != nil {
			coin.Zero()
			return nil, nil, err
		}
	}
	return coin, d, nil
}

// RegenerateMint recomputes the secrets of d from the active seed.
func (w *Wallet) RegenerateMint(d *zerocoin.DeterministicMint) (*zerocoin.ZerocoinEntry, error) {
	if !w.CheckSeed(d) {
		return nil, fmt.Errorf("%w: mint %s has seed %s", ErrSeedMismatch, d.CommitmentHash().Short(), d.SeedHash.Short())
	}
	coin, _, err := w.GenerateMint(d.Count, d.Denom)
	if err != nil {
		return nil, err
	}
	defer coin.Zero()

	if coin.CommitmentHash() != d.CommitmentHash() {
		return nil, fmt.Errorf("regenerate count %d: pubcoin %s != %s: %w",
			d.Count, coin.CommitmentHash().Short(), d.CommitmentHash().Short(), zerocoin.ErrDerivationInconsistency)
	}
	if coin.SerialHash() != d.SerialHash {
		return nil, fmt.Errorf("regenerate count %d: serial mismatch: %w", d.Count, zerocoin.ErrDerivationInconsistency)
	}

	e := coin.Entry()
	e.TxID = d.TxID
	e.Height = d.Height
	e.Used = d.Used
	return e, nil
}

// CheckSeed reports whether d was derived from the active seed.
func (w *Wallet) CheckSeed(d *zerocoin.DeterministicMint) bool {
	w.seedMu.RLock()
	defer w.seedMu.RUnlock()
	return !w.seedHash.IsZero() && d.SeedHash == w.seedHash
}

// MintMetaToZerocoinEntries regenerates full entries for metas. Legacy
// metas are returned as stored.
func (w *Wallet) MintMetaToZerocoinEntries(metas []MintMeta) ([]*zerocoin.ZerocoinEntry, error) {
	out := make([]*zerocoin.ZerocoinEntry, 0, len(metas))
	for i := range metas {
		m := metas[i].Clone()
		switch r := m.record().(type) {
		case *zerocoin.DeterministicMint:
			e, err := w.RegenerateMint(r)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		case *zerocoin.ZerocoinEntry:
			out = append(out, r)
		}
	}
	return out, nil
}

// SetMintSeen records that the pooled mint with commitment value was found
// on chain in txid at height. The coin is regenerated and checked, handed
// to the tracker, removed from the pool, and the counter advances past it.
func (w *Wallet) SetMintSeen(value *big.Int, height uint64, txid types.Hash, denom zerocoin.Denomination) error {
	if w.scanner == nil {
		return fmt.Errorf("%w: wallet has no chain attached", ErrLookupFailure)
	}
	return w.scanner.setMintSeen(value, height, txid, denom)
}

// SyncWithChain recovers mints from the chain. See Scanner.SyncWithChain.
func (w *Wallet) SyncWithChain(ctx context.Context, generate bool) error {
	if w.scanner == nil {
		return fmt.Errorf("%w: wallet has no chain attached", ErrLookupFailure)
	}
	return w.scanner.SyncWithChain(ctx, generate)
}
