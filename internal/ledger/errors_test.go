package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"OutcomeLedger/internal/ledger"
)

// ============================================================================
// Test: error taxonomy
// ============================================================================

func TestKindOf_Tagged(t *testing.T) {
	err := &ledger.Error{Kind: ledger.KindInsufficientBalance, Op: "split"}
	if got := ledger.KindOf(err); got != ledger.KindInsufficientBalance {
		t.Errorf("got %v, want InsufficientBalance", got)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := &ledger.Error{Kind: ledger.KindMarketNotFound, Op: "split"}
	wrapped := fmt.Errorf("handling request: %w", inner)

	if got := ledger.KindOf(wrapped); got != ledger.KindMarketNotFound {
		t.Errorf("got %v, want MarketNotFound", got)
	}
	if !ledger.IsKind(wrapped, ledger.KindMarketNotFound) {
		t.Error("IsKind should see through wrapping")
	}
}

func TestKindOf_Untagged(t *testing.T) {
	if got := ledger.KindOf(errors.New("boom")); got != ledger.KindUnknown {
		t.Errorf("got %v, want Unknown", got)
	}
	if got := ledger.KindOf(nil); got != ledger.KindUnknown {
		t.Errorf("got %v, want Unknown for nil", got)
	}
}

func TestKindString_Closed(t *testing.T) {
	kinds := []ledger.Kind{
		ledger.KindInvalidAmount,
		ledger.KindUserNotFound,
		ledger.KindMarketNotFound,
		ledger.KindPositionNotFound,
		ledger.KindInsufficientBalance,
		ledger.KindNegativeHolding,
		ledger.KindNothingToMerge,
		ledger.KindStoreFailure,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "Unknown" {
			t.Errorf("kind %d renders as Unknown", k)
		}
		if seen[s] {
			t.Errorf("duplicate kind string %q", s)
		}
		seen[s] = true
	}
}

func TestIsConflict(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", ledger.ErrTxConflict)
	if !ledger.IsConflict(wrapped) {
		t.Error("wrapped ErrTxConflict should be a conflict")
	}
	if ledger.IsConflict(errors.New("boom")) {
		t.Error("plain error should not be a conflict")
	}
}
