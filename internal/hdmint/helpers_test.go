package hdmint

import (
	"math/big"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/Klingon-tech/klingnet-hdmint/internal/chain"
	"github.com/Klingon-tech/klingnet-hdmint/internal/mempool"
	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/internal/wallet"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

var testPassword = []byte("correct horse")

var testNow = time.Unix(1_700_000_000, 0)

func testMasterSeed() zerocoin.MasterSeed {
	var s zerocoin.MasterSeed
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

// harness wires a wallet, tracker, chain index and mempool over in-memory
// storage, the way the CLI wires them over a database.
type harness struct {
	store    *walletdb.Store
	keystore *wallet.Keystore
	chain    *chain.Index
	mempool  *mempool.Pool
	tracker  *Tracker
	wallet   *Wallet
	clock    *clock.TestClock
}

type harnessOption func(*WalletOptions)

func withDecoder(d CoinDecoder) harnessOption {
	return func(o *WalletOptions) { o.Decoder = d }
}

func newKeystore(t *testing.T, store *walletdb.Store, unlock bool) *wallet.Keystore {
	t.Helper()
	ks := wallet.NewKeystore(store, wallet.EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1})
	if unlock {
		if err := ks.Unlock(testPassword); err != nil {
			t.Fatalf("Unlock() error: %v", err)
		}
	}
	return ks
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := walletdb.New(storage.NewMemory())
	idx, err := chain.New(storage.NewMemory())
	if err != nil {
		t.Fatalf("chain.New() error: %v", err)
	}
	h := &harness{
		store:    store,
		keystore: newKeystore(t, store, true),
		chain:    idx,
		mempool:  mempool.New(0),
		clock:    clock.NewTestClock(testNow),
	}
	h.tracker = NewTracker(TrackerConfig{Store: store, Chain: idx, Mempool: h.mempool})

	wo := WalletOptions{
		Store:       store,
		Vault:       h.keystore,
		Deriver:     zerocoin.NewDeriver(zerocoin.RegtestParams()),
		Tracker:     h.tracker,
		Chain:       idx,
		Decoder:     zerocoin.Decoder{},
		Parallelism: 4,
		Clock:       h.clock,
	}
	for _, o := range opts {
		o(&wo)
	}
	w, err := NewWallet(wo)
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	if err := w.SetMasterSeed(testMasterSeed(), true); err != nil {
		t.Fatalf("SetMasterSeed() error: %v", err)
	}
	h.wallet = w
	return h
}

func fundingInput(n byte) tx.Input {
	return tx.Input{
		PrevOut:   types.NewOutpoint(types.Hash{n, 0xf0}, 0),
		Script:    types.Script{Type: types.ScriptTypeP2PKH, Data: make([]byte, 20)},
		Signature: []byte("sig"),
		PubKey:    []byte("key"),
	}
}

func mintTx(n byte, value *big.Int, denom zerocoin.Denomination) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{fundingInput(n)},
		Outputs: []tx.Output{zerocoin.MintOutput(value, denom)},
	}
}

func spendTx(serial *big.Int) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{{
			Script:    zerocoin.SpendScript(serial),
			Signature: []byte("sig"),
			PubKey:    []byte("key"),
		}},
		Outputs: []tx.Output{{Value: 1000, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: make([]byte, 20)}}},
	}
}

// blockAt builds a block at height on top of prev. With a nil prev the
// block anchors an empty index.
func blockAt(prev *block.Block, height uint64, txs ...*tx.Transaction) *block.Block {
	h := &block.Header{
		Version:   block.CurrentVersion,
		Timestamp: uint64(testNow.Unix()) + height,
		Height:    height,
	}
	if prev != nil {
		h.PrevHash = prev.Hash()
	}
	return block.NewBlock(h, txs)
}

func (h *harness) connect(t *testing.T, blk *block.Block) {
	t.Helper()
	if err := h.chain.ConnectBlock(blk); err != nil {
		t.Fatalf("ConnectBlock(%d) error: %v", blk.Header.Height, err)
	}
}

// coinAt derives the wallet's coin at count.
func (h *harness) coinAt(t *testing.T, count uint32, denom zerocoin.Denomination) *zerocoin.DerivedCoin {
	t.Helper()
	coin, _, err := h.wallet.GenerateMint(count, denom)
	if err != nil {
		t.Fatalf("GenerateMint(%d) error: %v", count, err)
	}
	return coin
}

// legacyEntry derives a coin from a foreign seed and returns it as a
// legacy entry.
func legacyEntry(t *testing.T, count uint32, denom zerocoin.Denomination) *zerocoin.ZerocoinEntry {
	t.Helper()
	var seed zerocoin.MasterSeed
	seed[0] = 0xee
	coin, err := zerocoin.NewDeriver(zerocoin.RegtestParams()).Derive(seed, count, denom)
	if err != nil {
		t.Fatalf("Derive(%d) error: %v", count, err)
	}
	return coin.Entry()
}

func findMeta(metas []MintMeta, pubcoin types.Hash) (MintMeta, bool) {
	for _, m := range metas {
		if m.CommitmentHash() == pubcoin {
			return m, true
		}
	}
	return MintMeta{}, false
}

func fillerTx(n byte) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{fundingInput(n)},
		Outputs: []tx.Output{{Value: 500, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: make([]byte, 20)}}},
	}
}

// extend connects n blocks carrying filler transactions on top of prev and
// returns the new tip.
func (h *harness) extend(t *testing.T, prev *block.Block, n int) *block.Block {
	t.Helper()
	for i := 0; i < n; i++ {
		height := prev.Header.Height + 1
		blk := blockAt(prev, height, fillerTx(byte(height)))
		h.connect(t, blk)
		prev = blk
	}
	return prev
}
