package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Networks(t *testing.T) {
	tests := []struct {
		network NetworkType
		conf    uint64
	}{
		{Mainnet, DefaultMintConfirmations},
		{Testnet, DefaultMintConfirmations},
		{Regtest, 1},
	}
	for _, tt := range tests {
		cfg := Default(tt.network)
		if cfg.Network != tt.network {
			t.Errorf("Default(%s).Network = %s", tt.network, cfg.Network)
		}
		if cfg.Wallet.MintConfirmations != tt.conf {
			t.Errorf("Default(%s) confirmations = %d, want %d", tt.network, cfg.Wallet.MintConfirmations, tt.conf)
		}
		if cfg.Wallet.Lookahead != DefaultLookahead || cfg.Wallet.Backend != BackendBadger {
			t.Errorf("Default(%s) wallet = %+v", tt.network, cfg.Wallet)
		}
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate(Default(%s)) error: %v", tt.network, err)
		}
	}
}

func TestPaths(t *testing.T) {
	cfg := Default(Regtest)
	cfg.DataDir = "/data"

	if got := cfg.ChainDataDir(); got != filepath.Join("/data", "regtest") {
		t.Errorf("ChainDataDir() = %s", got)
	}
	if got := cfg.WalletPath(); got != filepath.Join("/data", "regtest", "wallet", "wallet.db") {
		t.Errorf("WalletPath() = %s", got)
	}
	cfg.Wallet.FilePath = "other.db"
	if got := cfg.WalletPath(); got != filepath.Join("/data", "regtest", "wallet", "other.db") {
		t.Errorf("WalletPath(relative) = %s", got)
	}
	cfg.Wallet.FilePath = "/elsewhere/w.db"
	if got := cfg.WalletPath(); got != "/elsewhere/w.db" {
		t.Errorf("WalletPath(absolute) = %s", got)
	}
	if got := cfg.ConfigFile(); got != filepath.Join("/data", "klingnet-hdmint.conf") {
		t.Errorf("ConfigFile() = %s", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.conf")
	content := `# comment
network = regtest
wallet.backend = BOLT
wallet.lookahead = 50
wallet.confirmations = 3
wallet.pendingexpiry = 30m
metrics.enabled = yes
metrics.addr = "127.0.0.1:9999"
log.level = debug
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}

	if cfg.Network != Regtest {
		t.Errorf("Network = %s, want regtest", cfg.Network)
	}
	if cfg.Wallet.Backend != BackendBolt || cfg.Wallet.Lookahead != 50 || cfg.Wallet.MintConfirmations != 3 ||
		cfg.Wallet.PendingExpiry != 30*time.Minute {
		t.Errorf("Wallet = %+v", cfg.Wallet)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9999" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("LoadFile() = %v, want empty", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("network regtest\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() should reject a line without '='")
	}
}

func TestApplyFileConfig_BadNumber(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"wallet.lookahead": "many"})
	if err == nil || !strings.Contains(err.Error(), "wallet.lookahead") {
		t.Errorf("ApplyFileConfig() error = %v, want key in message", err)
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klingnet-hdmint.conf")
	if err := WriteDefaultConfig(path, Regtest); err != nil {
		t.Fatalf("WriteDefaultConfig() error: %v", err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}
	if cfg.Network != Regtest || cfg.Wallet.MintConfirmations != 1 || cfg.Wallet.PendingExpiry != DefaultPendingExpiry {
		t.Errorf("round-tripped config = %+v", cfg)
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--regtest", "--lookahead", "40", "--all", "--log-json", "listmints"})
	if err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if f.Network != string(Regtest) || f.Lookahead != 40 || !f.All || !f.SetLogJSON {
		t.Errorf("flags = %+v", f)
	}
	if len(f.Args) != 1 || f.Args[0] != "listmints" {
		t.Errorf("Args = %v", f.Args)
	}

	cfg := DefaultMainnet()
	ApplyFlags(cfg, f)
	if cfg.Network != Regtest || cfg.Wallet.Lookahead != 40 || !cfg.Log.JSON {
		t.Errorf("ApplyFlags() = %+v", cfg)
	}
}

func TestParseFlags_FlagAfterCommand(t *testing.T) {
	if _, err := ParseFlags([]string{"listmints", "--all"}); err == nil {
		t.Fatal("ParseFlags() should reject flags after the command")
	}
}

func TestApplyFlags_MetricsAddr(t *testing.T) {
	cfg := DefaultMainnet()
	ApplyFlags(cfg, &Flags{MetricsAddr: "0.0.0.0:9100"})
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "0.0.0.0:9100" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"bad network", func(c *Config) { c.Network = "devnet" }, false},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, false},
		{"bad backend", func(c *Config) { c.Wallet.Backend = "sqlite" }, false},
		{"empty backend defaults", func(c *Config) { c.Wallet.Backend = "" }, true},
		{"zero lookahead", func(c *Config) { c.Wallet.Lookahead = 0 }, false},
		{"huge lookahead", func(c *Config) { c.Wallet.Lookahead = MaxLookahead + 1 }, false},
		{"no pending expiry", func(c *Config) { c.Wallet.PendingExpiry = 0 }, true},
		{"negative pending expiry", func(c *Config) { c.Wallet.PendingExpiry = -time.Second }, false},
		{"bad metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "nope" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			cfg.DataDir = t.TempDir()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.ok && err != nil {
				t.Errorf("Validate() error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) should fail")
	}
}

func TestEnsureDataDirs(t *testing.T) {
	cfg := Default(Regtest)
	cfg.DataDir = t.TempDir()
	if err := EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs() error: %v", err)
	}
	for _, dir := range []string{cfg.ChainDataDir(), cfg.WalletDir(), cfg.LogsDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Errorf("config file not written: %v", err)
	}
	if err := EnsureDataDirs(cfg); err != nil {
		t.Errorf("second EnsureDataDirs() error: %v", err)
	}
}
