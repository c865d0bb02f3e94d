package discriminator

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestForInstructionMatchesAnchorConvention(t *testing.T) {
	sum := sha256.Sum256([]byte("global:lend"))
	got := ForInstruction("lend")
	if !bytes.Equal(got[:], sum[:8]) {
		t.Errorf("expected %x, got %x", sum[:8], got[:])
	}
}

func TestNamespacesDiffer(t *testing.T) {
	if ForInstruction("Pool") == ForAccount("Pool") {
		t.Error("instruction and account namespaces must not collide")
	}
	if ForAccount("Lent") == ForEvent("Lent") {
		t.Error("account and event namespaces must not collide")
	}
}

func TestFromBytes(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}

	d := ForAccount("Amm")
	data := d.Prefix([]byte{0xAA})
	got, err := FromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != d {
		t.Errorf("expected %x, got %x", d[:], got[:])
	}
	if len(data) != Size+1 || data[Size] != 0xAA {
		t.Errorf("unexpected prefixed data %x", data)
	}
}

func TestMatcher(t *testing.T) {
	m := MustNewMatcher(ForInstruction, "lend", "redeem", "lend_cash")

	tests := []struct {
		name   string
		target Discriminator
		want   string
		found  bool
	}{
		{name: "first", target: ForInstruction("lend"), want: "lend", found: true},
		{name: "last", target: ForInstruction("lend_cash"), want: "lend_cash", found: true},
		{name: "other namespace", target: ForAccount("lend"), found: false},
		{name: "unknown", target: Discriminator{9, 9, 9, 9, 9, 9, 9, 9}, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.target)
			if ok != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, ok)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if m.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", m.Len())
	}
}

func TestMatcherRejectsDuplicates(t *testing.T) {
	if _, err := NewMatcher(ForInstruction, "lend", "lend"); err == nil {
		t.Error("expected collision error")
	}
}

func TestMatchData(t *testing.T) {
	m := MustNewMatcher(ForEvent, "Lent")

	name, payload, err := m.MatchData(ForEvent("Lent").Prefix([]byte{7}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Lent" || !bytes.Equal(payload, []byte{7}) {
		t.Errorf("unexpected result %q %x", name, payload)
	}

	if _, _, err := m.MatchData(ForEvent("Other").Bytes()); err == nil {
		t.Error("expected unknown discriminator error")
	}
}
