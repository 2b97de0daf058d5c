// Klingnet HD mint wallet.
//
// Usage:
//
//	klingnet-hdmint [options] <command> [args]
//	klingnet-hdmint --help
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-hdmint/config"
	"github.com/Klingon-tech/klingnet-hdmint/internal/chain"
	"github.com/Klingon-tech/klingnet-hdmint/internal/hdmint"
	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/mempool"
	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/internal/wallet"
	"github.com/Klingon-tech/klingnet-hdmint/internal/walletdb"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
)

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	if !cfg.Wallet.Enabled {
		fatal("wallet is disabled in %s", cfg.ConfigFile())
	}

	cmd, args := flags.Args[0], flags.Args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openApp(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer app.close()

	switch cmd {
	case "create":
		cmdCreate(app)
	case "restore":
		cmdRestore(app, args)
	case "mintpool":
		cmdMintPool(ctx, app, args)
	case "connect":
		cmdConnect(app, args)
	case "submit":
		cmdSubmit(app, args)
	case "sync":
		cmdSync(ctx, app)
	case "listmints":
		cmdListMints(app, flags.All)
	case "balance":
		cmdBalance(app)
	case "state":
		cmdState(app)
	default:
		fatal("Unknown command: %s\nRun 'klingnet-hdmint --help' for usage.", cmd)
	}
}

// ── Wiring ──────────────────────────────────────────────────────────────

// Key prefixes of the wallet store and the local chain index inside the
// shared database.
var (
	prefixWallet = []byte("w/")
	prefixChain  = []byte("c/")
)

type app struct {
	cfg      *config.Config
	db       storage.DB
	store    *walletdb.Store
	keystore *wallet.Keystore
	index    *chain.Index
	pool     *mempool.Pool
	tracker  *hdmint.Tracker
	relay    *hdmint.Relay
	wallet   *hdmint.Wallet
	server   *http.Server
}

func openApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	params, err := zerocoin.ParamsForNetwork(string(cfg.Network))
	if err != nil {
		return nil, err
	}

	a.db, err = storage.Open(cfg.Wallet.Backend, cfg.WalletPath())
	if err != nil {
		return nil, fmt.Errorf("open wallet db: %w", err)
	}
	a.index, err = chain.New(storage.NewPrefixDB(a.db, prefixChain))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open chain index: %w", err)
	}

	var metrics *hdmint.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics, err = hdmint.NewMetrics(reg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.serveMetrics(reg)
	}

	a.store = walletdb.New(storage.NewPrefixDB(a.db, prefixWallet))
	a.keystore = wallet.NewKeystore(a.store, wallet.DefaultParams())
	a.pool = mempool.New(0)
	a.tracker = hdmint.NewTracker(hdmint.TrackerConfig{
		Store:         a.store,
		Chain:         a.index,
		Mempool:       a.pool,
		Confirmations: cfg.Wallet.MintConfirmations,
		Metrics:       metrics,
	})
	// The keystore starts locked, so the wallet opens locked and the
	// commands that need the seed unlock it.
	a.wallet, err = hdmint.NewWallet(hdmint.WalletOptions{
		Store:     a.store,
		Vault:     a.keystore,
		Deriver:   zerocoin.NewDeriver(params),
		Tracker:   a.tracker,
		Chain:     a.index,
		Decoder:   zerocoin.Decoder{},
		Lookahead: cfg.Wallet.Lookahead,
		Metrics:   metrics,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	if err := a.tracker.Init(); err != nil {
		a.close()
		return nil, fmt.Errorf("load mints: %w", err)
	}

	// The pool lives only as long as the process, so the spends still
	// waiting for a block are put back on every run.
	a.relay = hdmint.NewRelay(hdmint.RelayConfig{
		Store:   a.store,
		Pool:    a.pool,
		Chain:   a.index,
		Tracker: a.tracker,
		MaxAge:  cfg.Wallet.PendingExpiry,
	})
	if _, err := a.relay.Load(); err != nil {
		a.close()
		return nil, fmt.Errorf("load pending spends: %w", err)
	}
	return a, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Error().Err(err).Str("addr", a.cfg.Metrics.Addr).Msg("Metrics server stopped")
		}
	}()
	klog.Info().Str("addr", a.cfg.Metrics.Addr).Msg("Serving metrics")
}

func (a *app) close() {
	if a.wallet != nil {
		a.wallet.Lock()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.server.Shutdown(ctx)
		cancel()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// unlock prompts for the wallet password and loads the active seed.
func (a *app) unlock() {
	if !a.hasSeed() {
		fatal("no wallet found in %s; run 'create' or 'restore' first", a.cfg.WalletPath())
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)
	if err := a.keystore.Unlock(password); err != nil {
		fatal("unlock: %v", err)
	}
	if err := a.wallet.Unlock(); err != nil {
		fatal("unlock wallet: %v", err)
	}
	if err := a.wallet.LoadMintPoolFromDB(); err != nil {
		fatal("load mint pool: %v", err)
	}
}

func (a *app) hasSeed() bool {
	return !a.wallet.SeedHash().IsZero()
}

// ── Seed commands ───────────────────────────────────────────────────────

func cmdCreate(a *app) {
	if a.hasSeed() {
		fatal("wallet already has a seed (%s)", a.wallet.SeedHash())
	}
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	installSeed(a, mnemonic)
}

func cmdRestore(a *app, args []string) {
	if len(args) == 0 {
		fatal("Usage: klingnet-hdmint restore <word1 word2 ...>")
	}
	mnemonic := strings.Join(args, " ")
	if !wallet.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}
	installSeed(a, mnemonic)
	fmt.Println("Run 'sync' to recover mints from the chain index.")
}

// installSeed encrypts the mnemonic's mint seed under a new password and
// makes it the active seed with the counter reset.
func installSeed(a *app, mnemonic string) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(confirm)
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.MintSeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed[:])

	if err := a.keystore.Unlock(password); err != nil {
		fatal("unlock: %v", err)
	}
	if err := a.wallet.SetMasterSeed(seed, true); err != nil {
		fatal("set seed: %v", err)
	}
	fmt.Printf("Seed: %s\n", a.wallet.SeedHash())
}

// ── Pool and chain commands ─────────────────────────────────────────────

func cmdMintPool(ctx context.Context, a *app, args []string) {
	var count uint32
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fatal("invalid count %q: %v", args[0], err)
		}
		count = uint32(n)
	}
	a.unlock()
	if err := a.wallet.GenerateMintPool(ctx, 0, count); err != nil {
		fatal("generate mint pool: %v", err)
	}
	next, last := a.wallet.GetState()
	fmt.Printf("Mint pool: %d entries (next counter %d, last generated %d)\n",
		a.wallet.Pool().Len(), next, last)
}

func cmdConnect(a *app, args []string) {
	if len(args) != 1 {
		fatal("Usage: klingnet-hdmint connect <blocks.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal("read block file: %v", err)
	}
	var blocks []*block.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		fatal("invalid block JSON: %v", err)
	}
	for i, blk := range blocks {
		if blk == nil {
			fatal("block %d is null", i)
		}
		if err := a.index.ConnectBlock(blk); err != nil {
			fatal("connect block %d: %v", i, err)
		}
		if err := a.relay.BlockConnected(blk); err != nil {
			fatal("record block %d: %v", i, err)
		}
	}
	st := a.index.State()
	fmt.Printf("Connected %d blocks\n", len(blocks))
	fmt.Printf("  Tip:    %s\n", st.TipHash)
	fmt.Printf("  Height: %d\n", st.Height)
}

func cmdSubmit(a *app, args []string) {
	if len(args) != 1 {
		fatal("Usage: klingnet-hdmint submit <txs.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal("read transaction file: %v", err)
	}
	var txs []*tx.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		fatal("invalid transaction JSON: %v", err)
	}
	for i, t := range txs {
		if t == nil {
			fatal("transaction %d is null", i)
		}
		if err := a.relay.Submit(t); err != nil {
			fatal("submit transaction %d: %v", i, err)
		}
		fmt.Printf("Submitted %s\n", t.Hash())
	}
	fmt.Printf("Pending transactions: %d\n", a.pool.Count())
}

func cmdSync(ctx context.Context, a *app) {
	a.unlock()
	before := a.wallet.GetCount()
	if err := a.wallet.SyncWithChain(ctx, true); err != nil {
		fatal("sync: %v", err)
	}
	metas, err := a.tracker.ListMints(false, false, true, false)
	if err != nil {
		fatal("reconcile: %v", err)
	}
	fmt.Printf("Synced to height %d\n", a.index.Height())
	fmt.Printf("  Counter: %d -> %d\n", before, a.wallet.GetCount())
	fmt.Printf("  Mints:   %d\n", len(metas))
}

// ── Read commands ───────────────────────────────────────────────────────

func cmdListMints(a *app, all bool) {
	var (
		metas []hdmint.MintMeta
		err   error
	)
	if all {
		metas, err = a.tracker.ListMints(false, false, true, true)
		if err == nil {
			var archived []hdmint.MintMeta
			archived, err = a.tracker.ListArchived()
			metas = append(metas, archived...)
		}
	} else {
		metas, err = a.tracker.ListMints(true, true, true, false)
	}
	if err != nil {
		fatal("list mints: %v", err)
	}
	if len(metas) == 0 {
		fmt.Println("No mints.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tDENOM\tHEIGHT\tUSED\tARCHIVED\tDETERMINISTIC\tTXID")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%t\t%t\t%s\n",
			m.SerialHash.Short(), m.Denom, m.Height, m.Used, m.Archived, m.IsDeterministic(), m.TxID.Short())
	}
	w.Flush()
}

func cmdBalance(a *app) {
	if _, err := a.tracker.ListMints(false, false, true, false); err != nil {
		fatal("reconcile: %v", err)
	}
	bal := wallet.Balance{
		Confirmed:   a.tracker.GetBalance(true, false),
		Unconfirmed: a.tracker.GetUnconfirmedBalance(),
	}
	fmt.Printf("Confirmed:   %s\n", wallet.FormatCoins(bal.Confirmed))
	fmt.Printf("Unconfirmed: %s\n", wallet.FormatCoins(bal.Unconfirmed))
	fmt.Printf("Total:       %s\n", wallet.FormatCoins(bal.Total()))
}

func cmdState(a *app) {
	next, last := a.wallet.GetState()
	fmt.Printf("Network:        %s\n", a.cfg.Network)
	fmt.Printf("Wallet:         %s\n", a.cfg.WalletPath())
	fmt.Printf("Seed:           %s\n", a.wallet.SeedHash())
	fmt.Printf("Locked:         %t\n", a.wallet.IsLocked())
	fmt.Printf("Next counter:   %d\n", next)
	fmt.Printf("Last generated: %d\n", last)
	fmt.Printf("Tracked mints:  %d\n", a.tracker.Count())
	fmt.Printf("Pending spends: %d\n", a.pool.Count())
	fmt.Printf("Chain height:   %d\n", a.index.Height())
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
