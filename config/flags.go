package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is the wallet release reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	Regtest bool
	DataDir string
	Config  string

	// Wallet
	WalletFile    string
	Backend       string
	Lookahead     uint
	Confirmations uint64
	All           bool // listmints: include spent, immature and foreign-seed mints

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Command and its arguments
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetLogJSON bool
}

// ParseFlags parses command-line flags from args (without the program
// name). Parsing stops at the first non-flag argument, which starts the
// command.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingnet-hdmint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet or regtest)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.BoolVar(&f.Regtest, "regtest", false, "Use regtest (shorthand for --network=regtest)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Wallet
	fs.StringVar(&f.WalletFile, "wallet-file", "", "Wallet database path")
	fs.StringVar(&f.Backend, "backend", "", "Storage backend (badger or bolt)")
	fs.UintVar(&f.Lookahead, "lookahead", 0, "Mint pool look-ahead")
	fs.Uint64Var(&f.Confirmations, "confirmations", 0, "Mint confirmations")
	fs.BoolVar(&f.All, "all", false, "List every mint, not only spendable ones")

	// Metrics
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			f.Help = true
			return f, nil
		}
		return nil, err
	}

	switch {
	case f.Regtest:
		f.Network = string(Regtest)
	case f.Testnet:
		f.Network = string(Testnet)
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// Flags after the command are not parsed; catch them instead of
	// silently treating them as arguments.
	for _, arg := range f.Args[min(1, len(f.Args)):] {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q must come before the command", arg)
		}
	}
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Wallet
	if f.WalletFile != "" {
		cfg.Wallet.FilePath = f.WalletFile
	}
	if f.Backend != "" {
		cfg.Wallet.Backend = strings.ToLower(f.Backend)
	}
	if f.Lookahead != 0 {
		cfg.Wallet.Lookahead = uint32(f.Lookahead)
	}
	if f.Confirmations != 0 {
		cfg.Wallet.MintConfirmations = f.Confirmations
	}

	// Metrics
	if f.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the command-line help to w.
func PrintUsage(w io.Writer) {
	usage := `Klingnet HD Mint Wallet - deterministic zerocoin mints from one seed

Usage:
  klingnet-hdmint [options] <command> [args]

Commands:
  create                 Create a wallet from a new mnemonic
  restore <mnemonic>     Restore a wallet from a mnemonic
  mintpool [count]       Derive look-ahead mints into the pool
  connect <blocks.json>  Connect blocks to the local chain index
  submit <txs.json>      Submit spends of wallet mints to the pending pool
  sync                   Recover mints from the local chain index
  listmints              List spendable mints (--all for every mint)
  balance                Show confirmed and unconfirmed balance
  state                  Show counter and lock state

Core Options:
  --network       Network type: mainnet (default), testnet or regtest
  --testnet       Shorthand for --network=testnet
  --regtest       Shorthand for --network=regtest
  --datadir       Data directory (default: ~/.klingnet-hdmint)
  --config, -c    Config file path (default: <datadir>/klingnet-hdmint.conf)

Wallet Options:
  --wallet-file     Wallet database path (default: <datadir>/<network>/wallet/wallet.db)
  --backend         Storage backend: badger (default) or bolt
  --lookahead       Mint pool look-ahead (default: 20)
  --confirmations   Mint confirmations (default: 6)
  --all             listmints: include spent, immature and foreign-seed mints

Metrics Options:
  --metrics-addr  Serve Prometheus metrics on host:port while the command runs

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  klingnet-hdmint --regtest create
  klingnet-hdmint mintpool 100
  klingnet-hdmint --all listmints
`
	fmt.Fprint(w, usage)
}

// Load builds the configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help {
		PrintUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingnet-hdmint version " + Version)
		os.Exit(0)
	}

	// Determine network first (needed for defaults)
	cfg := Default(NetworkType(strings.ToLower(flags.Network)))
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.WalletDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
