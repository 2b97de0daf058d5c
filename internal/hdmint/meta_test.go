package hdmint

import (
	"testing"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

type fakeRecord struct{}

func (fakeRecord) CommitmentHash() types.Hash { return types.Hash{} }

func TestIsMature(t *testing.T) {
	tests := []struct {
		height, tip, conf uint64
		want              bool
	}{
		{0, 100, 6, false},
		{93, 100, 6, true},
		{94, 100, 6, false},
		{100, 100, 6, false},
		{1, 5, 6, false},
		{1, 2, 0, true},
	}
	for _, tt := range tests {
		if got := isMature(tt.height, tt.tip, tt.conf); got != tt.want {
			t.Errorf("isMature(%d, %d, %d) = %v, want %v", tt.height, tt.tip, tt.conf, got, tt.want)
		}
	}
}

func TestNewMeta_UnsupportedRecord(t *testing.T) {
	if _, err := newMeta(fakeRecord{}); err == nil {
		t.Fatal("newMeta() should reject unknown record types")
	}
}

func TestMintMeta_RecordCarriesState(t *testing.T) {
	e := legacyEntry(t, 1, zerocoin.DenomTen)
	m, err := newMeta(e)
	if err != nil {
		t.Fatalf("newMeta() error: %v", err)
	}
	m.Height = 9
	m.Used = true

	rec, ok := m.record().(*zerocoin.ZerocoinEntry)
	if !ok {
		t.Fatalf("record() = %T", m.record())
	}
	if rec.Height != 9 || !rec.Used {
		t.Errorf("record height=%d used=%v, want 9, true", rec.Height, rec.Used)
	}
	if e.Height != 0 || e.Used {
		t.Error("record() modified the original entry")
	}

	c := m.Clone()
	c.Value.SetInt64(1)
	if m.Value.Cmp(c.Value) == 0 {
		t.Error("Clone() shares the commitment value")
	}
}
