// Package config handles application configuration.
//
// Settings come from three layers, later ones winning: network defaults,
// the config file, and command-line flags. Commitment group parameters
// are not configurable; they follow from the network.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet, testnet or regtest.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
)

// Storage backends for the wallet and chain databases.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Config holds runtime configuration for the HD mint wallet.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Wallet
	Wallet WalletConfig

	// Metrics endpoint
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// WalletConfig holds wallet settings.
type WalletConfig struct {
	Enabled           bool          `conf:"wallet.enabled"`
	Backend           string        `conf:"wallet.backend"`       // badger or bolt
	Lookahead         uint32        `conf:"wallet.lookahead"`     // mint pool size ahead of the last used counter
	MintConfirmations uint64        `conf:"wallet.confirmations"`  // depth before a mint counts as confirmed
	PendingExpiry     time.Duration `conf:"wallet.pendingexpiry"` // age after which unconfirmed spends are not replayed
	FilePath          string        `conf:"wallet.file"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-hdmint
//	macOS:   ~/Library/Application Support/KlingnetHDMint
//	Windows: %APPDATA%\KlingnetHDMint
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-hdmint"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetHDMint")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetHDMint")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetHDMint")
	default:
		return filepath.Join(home, ".klingnet-hdmint")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// WalletDir returns the wallet storage directory.
func (c *Config) WalletDir() string {
	return filepath.Join(c.ChainDataDir(), "wallet")
}

// WalletPath returns the wallet database path. A relative wallet.file is
// resolved against WalletDir.
func (c *Config) WalletPath() string {
	name := c.Wallet.FilePath
	if name == "" {
		name = "wallet.db"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.WalletDir(), name)
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingnet-hdmint.conf")
}
