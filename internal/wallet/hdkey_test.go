package wallet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// testSeed returns the BIP-39 seed of "abandon" x11 + "about" with passphrase "TREZOR".
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func TestNewMasterKey(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	if !master.IsPrivate() {
		t.Error("master key should be private")
	}
	if master.Depth() != 0 {
		t.Errorf("master depth = %d, want 0", master.Depth())
	}
	if len(master.PrivateKeyBytes()) != 32 {
		t.Errorf("private key length = %d, want 32", len(master.PrivateKeyBytes()))
	}
	if len(master.PublicKeyBytes()) != 33 {
		t.Errorf("public key length = %d, want 33", len(master.PublicKeyBytes()))
	}
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 16, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestDerivePath(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}

	viaPath, err := master.DerivePath(PurposeBIP44, CoinTypeKlingnet, bip32.FirstHardenedChild, ChainMint)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	viaMint, err := master.DeriveMintKey(0)
	if err != nil {
		t.Fatalf("DeriveMintKey() error: %v", err)
	}
	if viaPath.Depth() != 4 {
		t.Errorf("depth = %d, want 4", viaPath.Depth())
	}
	if !bytes.Equal(viaPath.PrivateKeyBytes(), viaMint.PrivateKeyBytes()) {
		t.Error("DeriveMintKey(0) should equal m/44'/8888'/0'/2'")
	}

	other, err := master.DeriveMintKey(1)
	if err != nil {
		t.Fatalf("DeriveMintKey(1) error: %v", err)
	}
	if bytes.Equal(other.PrivateKeyBytes(), viaMint.PrivateKeyBytes()) {
		t.Error("different accounts should give different keys")
	}
}

func TestMintSeedFromMnemonic(t *testing.T) {
	s1, err := MintSeedFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("MintSeedFromMnemonic() error: %v", err)
	}
	s2, err := MintSeedFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("MintSeedFromMnemonic() error: %v", err)
	}
	if s1 != s2 {
		t.Error("mint seed is not deterministic")
	}
	if s1 == (zerocoin.MasterSeed{}) {
		t.Error("mint seed should not be zero")
	}

	s3, err := MintSeedFromMnemonic(testMnemonic, "passphrase")
	if err != nil {
		t.Fatalf("MintSeedFromMnemonic() error: %v", err)
	}
	if s1 == s3 {
		t.Error("passphrase should change the mint seed")
	}

	if _, err := MintSeedFromMnemonic("not a mnemonic", ""); err == nil {
		t.Error("invalid mnemonic should be rejected")
	}
}

func TestGenerateMnemonic(t *testing.T) {
	m1, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if words := strings.Fields(m1); len(words) != 24 {
		t.Errorf("word count = %d, want 24", len(words))
	}
	if !ValidateMnemonic(m1) {
		t.Error("generated mnemonic should validate")
	}
	m2, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if m1 == m2 {
		t.Error("two generated mnemonics should not be identical")
	}
}
