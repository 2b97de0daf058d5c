package config

import (
	"fmt"
	"net"
)

// MaxLookahead caps the mint pool size. Every pooled counter costs a full
// commitment derivation.
const MaxLookahead = 10_000

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Regtest:
	default:
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Regtest)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	if cfg.Wallet.Backend == "" {
		cfg.Wallet.Backend = BackendBadger
	}
	switch cfg.Wallet.Backend {
	case BackendBadger, BackendBolt:
	default:
		return fmt.Errorf("wallet.backend must be %q or %q", BackendBadger, BackendBolt)
	}
	if cfg.Wallet.Lookahead == 0 || cfg.Wallet.Lookahead > MaxLookahead {
		return fmt.Errorf("wallet.lookahead must be in range [1, %d]", MaxLookahead)
	}
	if cfg.Wallet.PendingExpiry < 0 {
		return fmt.Errorf("wallet.pendingexpiry must not be negative")
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
