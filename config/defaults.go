package config

import "time"

// DefaultLookahead, DefaultMintConfirmations and DefaultPendingExpiry
// mirror the wallet defaults.
const (
	DefaultLookahead         = 20
	DefaultMintConfirmations = 6
	DefaultPendingExpiry     = 72 * time.Hour
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Wallet: WalletConfig{
			Enabled:           true,
			Backend:           BackendBadger,
			Lookahead:         DefaultLookahead,
			MintConfirmations: DefaultMintConfirmations,
			PendingExpiry:     DefaultPendingExpiry,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Metrics.Addr = "127.0.0.1:9465"
	return cfg
}

// DefaultRegtest returns the default configuration for regtest. Mints
// confirm after a single block.
func DefaultRegtest() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Regtest
	cfg.Wallet.MintConfirmations = 1
	cfg.Metrics.Addr = "127.0.0.1:9466"
	cfg.Log.Level = "debug"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Regtest:
		return DefaultRegtest()
	default:
		return DefaultMainnet()
	}
}
