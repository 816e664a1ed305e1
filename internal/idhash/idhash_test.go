package idhash

import "testing"

func TestCompute_Deterministic(t *testing.T) {
	a := Compute("mint1", "100000000")
	b := Compute("mint1", "100000000")
	if a != b {
		t.Errorf("expected identical hashes, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestCompute_SeparatorMatters(t *testing.T) {
	if Compute("ab", "c") == Compute("a", "bc") {
		t.Error("parts should not collide across the separator")
	}
}

func TestShort(t *testing.T) {
	full := Compute("x")
	if got := Short(16, "x"); got != full[:16] {
		t.Errorf("expected prefix of full hash, got %s", got)
	}
	if got := Short(0, "x"); len(got) != 1 {
		t.Errorf("expected clamp to 1, got %q", got)
	}
	if got := Short(100, "x"); got != full {
		t.Errorf("expected clamp to full hash, got %q", got)
	}
}
