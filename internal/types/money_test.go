package types

import "testing"

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{255, 255},
		{107.999999, 108},
		{1.005, 1.0},
		{12.345678, 12.35},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Fatalf("expected two distinct non-empty ids, got %q and %q", a, b)
	}
}
