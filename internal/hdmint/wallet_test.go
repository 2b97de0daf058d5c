package hdmint

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

func TestNewWallet_FirstRun(t *testing.T) {
	h := newHarness(t)
	if h.wallet.IsLocked() {
		t.Fatal("wallet over an unlocked vault should be unlocked")
	}
	stored, err := h.store.ReadCurrentSeedHash()
	if err != nil {
		t.Fatalf("ReadCurrentSeedHash() error: %v", err)
	}
	if stored != zerocoin.SeedHash(testMasterSeed()) || stored != h.wallet.SeedHash() {
		t.Errorf("seed hash %s does not match the active seed", stored.Short())
	}
	if _, ok := h.wallet.State().(*Unlocked); !ok {
		t.Errorf("State() = %T, want Unlocked", h.wallet.State())
	}
}

func TestNewWallet_ReopensExistingSeed(t *testing.T) {
	h := newHarness(t)
	h.wallet.SetCount(7)
	if err := h.wallet.UpdateCountDB(); err != nil {
		t.Fatalf("UpdateCountDB() error: %v", err)
	}

	w, err := NewWallet(WalletOptions{
		Store:   h.store,
		Vault:   newKeystore(t, h.store, true),
		Deriver: zerocoin.NewDeriver(zerocoin.RegtestParams()),
	})
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	if w.SeedHash() != h.wallet.SeedHash() {
		t.Error("reopened wallet has a different seed")
	}
	if w.GetCount() != 7 {
		t.Errorf("GetCount() = %d, want 7", w.GetCount())
	}
}

func TestWallet_LockedLifecycle(t *testing.T) {
	h := newHarness(t)
	seedHash := h.wallet.SeedHash()

	ks := newKeystore(t, h.store, false)
	w, err := NewWallet(WalletOptions{
		Store:   h.store,
		Vault:   ks,
		Deriver: zerocoin.NewDeriver(zerocoin.RegtestParams()),
	})
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	if !w.IsLocked() {
		t.Fatal("wallet over a locked vault should be locked")
	}
	if w.SeedHash() != seedHash {
		t.Error("locked wallet should still know its seed hash")
	}
	if err := w.GenerateMintPool(context.Background(), 0, 0); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("GenerateMintPool() error = %v, want ErrWalletLocked", err)
	}
	if err := w.Unlock(); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("Unlock() with locked vault error = %v, want ErrWalletLocked", err)
	}

	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("keystore Unlock() error: %v", err)
	}
	if err := w.Unlock(); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if w.IsLocked() {
		t.Fatal("wallet should be unlocked")
	}

	w.Lock()
	if !w.IsLocked() || !ks.IsLocked() {
		t.Error("Lock() should lock the wallet and the vault")
	}
	if _, _, err := w.GenerateMint(1, zerocoin.DenomTen); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("GenerateMint() error = %v, want ErrWalletLocked", err)
	}
}

func TestWallet_LockZeroesSeed(t *testing.T) {
	h := newHarness(t)
	u, ok := h.wallet.State().(*Unlocked)
	if !ok {
		t.Fatalf("State() = %T, want *Unlocked", h.wallet.State())
	}
	if u.Seed != testMasterSeed() {
		t.Fatal("unlocked state does not hold the active seed")
	}

	h.wallet.Lock()
	if u.Seed != (zerocoin.MasterSeed{}) {
		t.Errorf("seed after Lock() = %x, want zeroes", u.Seed[:8])
	}
}

func TestWallet_SetMasterSeed_ZeroesPreviousSeed(t *testing.T) {
	h := newHarness(t)
	old, ok := h.wallet.State().(*Unlocked)
	if !ok {
		t.Fatalf("State() = %T, want *Unlocked", h.wallet.State())
	}

	var next zerocoin.MasterSeed
	next[0] = 0x42
	if err := h.wallet.SetMasterSeed(next, true); err != nil {
		t.Fatalf("SetMasterSeed() error: %v", err)
	}
	if old.Seed != (zerocoin.MasterSeed{}) {
		t.Error("previous seed not zeroed after switching seeds")
	}
	if cur, ok := h.wallet.State().(*Unlocked); !ok || cur.Seed != next {
		t.Error("new seed not active")
	}
}

func TestWallet_GenerateMintPool(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.wallet.GenerateMintPool(ctx, 0, 0); err != nil {
		t.Fatalf("GenerateMintPool() error: %v", err)
	}
	list := h.wallet.Pool().List()
	if len(list) != DefaultLookahead {
		t.Fatalf("pool has %d entries, want %d", len(list), DefaultLookahead)
	}
	for i, e := range list {
		if e.Count != uint32(i+1) {
			t.Fatalf("entry %d has count %d, want %d", i, e.Count, i+1)
		}
	}
	coin := h.coinAt(t, 5, zerocoin.DenomOneHundred)
	if c, ok := h.wallet.Pool().Get(coin.CommitmentHash()); !ok || c != 5 {
		t.Errorf("pool Get(coin 5) = %d, %v", c, ok)
	}

	next, last := h.wallet.GetState()
	if next != 1 || last != DefaultLookahead {
		t.Errorf("GetState() = %d, %d; want 1, %d", next, last, DefaultLookahead)
	}

	// A second call over the same range adds nothing.
	if err := h.wallet.GenerateMintPool(ctx, 1, DefaultLookahead); err != nil {
		t.Fatalf("GenerateMintPool() error: %v", err)
	}
	if h.wallet.Pool().Len() != DefaultLookahead {
		t.Errorf("pool grew to %d on repeat", h.wallet.Pool().Len())
	}

	stored, err := h.store.ListMintPool(h.wallet.SeedHash())
	if err != nil {
		t.Fatalf("ListMintPool() error: %v", err)
	}
	if len(stored) != DefaultLookahead {
		t.Errorf("stored %d pool pairs, want %d", len(stored), DefaultLookahead)
	}
}

func TestWallet_GenerateMintPool_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.wallet.GenerateMintPool(ctx, 0, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("GenerateMintPool() error = %v, want context.Canceled", err)
	}
	if h.wallet.Pool().Len() != 0 {
		t.Errorf("cancelled generation added %d entries", h.wallet.Pool().Len())
	}
}

func TestWallet_LoadAndRemovePool(t *testing.T) {
	h := newHarness(t)
	if err := h.wallet.GenerateMintPool(context.Background(), 1, 5); err != nil {
		t.Fatalf("GenerateMintPool() error: %v", err)
	}
	first := h.wallet.Pool().List()[0].Hash
	if err := h.wallet.RemoveMintsFromPool([]types.Hash{first}); err != nil {
		t.Fatalf("RemoveMintsFromPool() error: %v", err)
	}

	w, err := NewWallet(WalletOptions{
		Store:   h.store,
		Vault:   h.keystore,
		Deriver: zerocoin.NewDeriver(zerocoin.RegtestParams()),
	})
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	if err := w.LoadMintPoolFromDB(); err != nil {
		t.Fatalf("LoadMintPoolFromDB() error: %v", err)
	}
	if w.Pool().Len() != 4 {
		t.Errorf("loaded %d entries, want 4", w.Pool().Len())
	}
	if w.Pool().Has(first) {
		t.Error("removed entry came back from the store")
	}
}

func TestWallet_CounterMonotonic(t *testing.T) {
	h := newHarness(t)

	if err := h.wallet.advanceCount(5); err != nil {
		t.Fatalf("advanceCount(5) error: %v", err)
	}
	if err := h.wallet.advanceCount(3); err != nil {
		t.Fatalf("advanceCount(3) error: %v", err)
	}
	if h.wallet.GetCount() != 5 {
		t.Errorf("GetCount() = %d, want 5", h.wallet.GetCount())
	}
	stored, err := h.store.ReadZerocoinCount()
	if err != nil || stored != 5 {
		t.Errorf("stored count = %d, %v; want 5", stored, err)
	}

	if err := h.wallet.UpdateCount(); err != nil {
		t.Fatalf("UpdateCount() error: %v", err)
	}
	if stored, _ := h.store.ReadZerocoinCount(); stored != 6 {
		t.Errorf("stored count = %d after UpdateCount, want 6", stored)
	}

	h.wallet.UpdateCountLocal()
	if stored, _ := h.store.ReadZerocoinCount(); stored != 6 {
		t.Errorf("UpdateCountLocal() persisted the counter")
	}
	if h.wallet.GetCount() != 7 {
		t.Errorf("GetCount() = %d, want 7", h.wallet.GetCount())
	}
}

func TestWallet_SetMasterSeed_KeepsCount(t *testing.T) {
	h := newHarness(t)
	if err := h.wallet.advanceCount(9); err != nil {
		t.Fatalf("advanceCount() error: %v", err)
	}
	var other zerocoin.MasterSeed
	other[0] = 0x42
	if err := h.wallet.SetMasterSeed(other, false); err != nil {
		t.Fatalf("SetMasterSeed() error: %v", err)
	}
	if h.wallet.GetCount() != 9 {
		t.Errorf("GetCount() = %d, want 9", h.wallet.GetCount())
	}
	if h.wallet.SeedHash() != zerocoin.SeedHash(other) {
		t.Error("seed hash not switched")
	}
	if err := h.wallet.SetMasterSeed(other, true); err != nil {
		t.Fatalf("SetMasterSeed(reset) error: %v", err)
	}
	if h.wallet.GetCount() != 0 {
		t.Errorf("GetCount() = %d after reset, want 0", h.wallet.GetCount())
	}
}

func TestWallet_GenerateDeterministicMint(t *testing.T) {
	h := newHarness(t)

	coin, d, err := h.wallet.GenerateDeterministicMint(zerocoin.DenomTen, true)
	if err != nil {
		t.Fatalf("GenerateDeterministicMint() error: %v", err)
	}
	coin.Zero()
	if d.Count != 1 || h.wallet.GetCount() != 0 {
		t.Errorf("generateOnly: count %d, wallet count %d; want 1, 0", d.Count, h.wallet.GetCount())
	}

	coin, d, err = h.wallet.GenerateDeterministicMint(zerocoin.DenomTen, false)
	if err != nil {
		t.Fatalf("GenerateDeterministicMint() error: %v", err)
	}
	coin.Zero()
	if d.Count != 1 || h.wallet.GetCount() != 1 {
		t.Errorf("count %d, wallet count %d; want 1, 1", d.Count, h.wallet.GetCount())
	}
	if d.Denom != zerocoin.DenomTen || d.SeedHash != h.wallet.SeedHash() {
		t.Errorf("record = %v", d)
	}

	if _, _, err := h.wallet.GenerateMint(2, zerocoin.Denomination(7)); !errors.Is(err, zerocoin.ErrInvalidDenomination) {
		t.Errorf("GenerateMint(bad denom) error = %v, want ErrInvalidDenomination", err)
	}
}

func TestWallet_RegenerateMint(t *testing.T) {
	h := newHarness(t)
	coin, d, err := h.wallet.GenerateMint(4, zerocoin.DenomFifty)
	if err != nil {
		t.Fatalf("GenerateMint() error: %v", err)
	}
	d.TxID = types.Hash{0x01}
	d.Height = 12

	e, err := h.wallet.RegenerateMint(d)
	if err != nil {
		t.Fatalf("RegenerateMint() error: %v", err)
	}
	if e.SerialNumber.Cmp(coin.SerialNumber) != 0 || e.Randomness.Cmp(coin.Randomness) != 0 {
		t.Error("regenerated secrets differ")
	}
	if e.TxID != d.TxID || e.Height != 12 || e.Denom != zerocoin.DenomFifty {
		t.Errorf("regenerated entry lost record state: %+v", e)
	}

	foreign := d.Clone()
	foreign.SeedHash = types.Hash{0xff}
	if _, err := h.wallet.RegenerateMint(foreign); !errors.Is(err, ErrSeedMismatch) {
		t.Errorf("RegenerateMint(foreign) error = %v, want ErrSeedMismatch", err)
	}

	tampered := d.Clone()
	tampered.Count = 5
	if _, err := h.wallet.RegenerateMint(tampered); !errors.Is(err, zerocoin.ErrDerivationInconsistency) {
		t.Errorf("RegenerateMint(tampered) error = %v, want ErrDerivationInconsistency", err)
	}
}

func TestWallet_MintMetaToZerocoinEntries(t *testing.T) {
	h := newHarness(t)
	_, d, err := h.wallet.GenerateMint(2, zerocoin.DenomTen)
	if err != nil {
		t.Fatalf("GenerateMint() error: %v", err)
	}
	legacy := legacyEntry(t, 1, zerocoin.DenomOne)
	for _, rec := range []MintRecord{d, legacy} {
		if err := h.tracker.Add(rec, true, false); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}
	metas, err := h.tracker.ListMints(false, false, false, true)
	if err != nil {
		t.Fatalf("ListMints() error: %v", err)
	}
	entries, err := h.wallet.MintMetaToZerocoinEntries(metas)
	if err != nil {
		t.Fatalf("MintMetaToZerocoinEntries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.SerialNumber == nil || e.SerialNumber.Sign() == 0 {
			t.Errorf("entry %s has no serial", e.CommitmentHash().Short())
		}
	}
}

func TestWallet_SyncWithoutChain(t *testing.T) {
	h := newHarness(t)
	w, err := NewWallet(WalletOptions{
		Store:   h.store,
		Vault:   h.keystore,
		Deriver: zerocoin.NewDeriver(zerocoin.RegtestParams()),
	})
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	if err := w.SyncWithChain(context.Background(), true); !errors.Is(err, ErrLookupFailure) {
		t.Errorf("SyncWithChain() error = %v, want ErrLookupFailure", err)
	}
}
