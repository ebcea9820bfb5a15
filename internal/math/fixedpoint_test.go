package math_test

import (
	stdmath "math"
	"testing"

	fpmath "OutcomeLedger/internal/math"
)

// ============================================================================
// Test: checked arithmetic
// ============================================================================

func TestCheckedAdd_Normal(t *testing.T) {
	got, err := fpmath.CheckedAdd(40_000_000, 10_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 50_000_000 {
		t.Errorf("got %d, want 50000000", got)
	}
}

func TestCheckedAdd_OverflowPositive(t *testing.T) {
	if _, err := fpmath.CheckedAdd(stdmath.MaxInt64, 1); err == nil {
		t.Error("expected overflow error")
	}
}

func TestCheckedAdd_OverflowNegative(t *testing.T) {
	if _, err := fpmath.CheckedAdd(stdmath.MinInt64, -1); err == nil {
		t.Error("expected overflow error")
	}
}

func TestCheckedSub_MinInt64(t *testing.T) {
	if _, err := fpmath.CheckedSub(0, stdmath.MinInt64); err == nil {
		t.Error("expected overflow error when subtracting MinInt64")
	}
}

func TestMin64(t *testing.T) {
	if got := fpmath.Min64(3, 7); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := fpmath.Min64(7, 3); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := fpmath.Min64(5, 5); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

// ============================================================================
// Test: amount parsing and formatting
// ============================================================================

func TestParseAmount_Valid(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 1_000_000},
		{"40.5", 40_500_000},
		{"0.000001", 1},
		{"100", 100_000_000},
		{"-5", -5_000_000},
	}
	for _, tc := range cases {
		got, err := fpmath.ParseAmount(tc.in)
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	cases := []string{
		"",
		"abc",
		"1.2.3",
		"0.0000001", // more fractional digits than the scale carries
		"99999999999999999999999999",
	}
	for _, in := range cases {
		if _, err := fpmath.ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q): expected error", in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{1_000_000, "1"},
		{40_500_000, "40.5"},
		{1, "0.000001"},
	}
	for _, tc := range cases {
		if got := fpmath.FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormat_RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "40.5", "0.000001", "123456.789"} {
		v, err := fpmath.ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		if got := fpmath.FormatAmount(v); got != s {
			t.Errorf("round trip %q -> %d -> %q", s, v, got)
		}
	}
}
