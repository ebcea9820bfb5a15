package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/query"
	"OutcomeLedger/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func setupQueryService(t *testing.T) (*query.Service, *ledger.Engine, uuid.UUID, string) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{
		ID: userID, Email: "reader@example.com", Balance: 100_000_000,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	marketID := "rates-cut-q3"
	if err := st.CreateMarket(ctx, &store.Market{
		ID: marketID, Name: "Rate cut in Q3", EndAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create market: %v", err)
	}

	eng := ledger.NewEngine(st, st, nil, zerolog.Nop())
	return query.NewService(st), eng, userID, marketID
}

// ============================================================================
// Test: read side
// ============================================================================

func TestBalance_FormatsDecimal(t *testing.T) {
	svc, eng, userID, marketID := setupQueryService(t)
	ctx := context.Background()

	if _, err := eng.Split(ctx, userID, marketID, 40_500_000); err != nil {
		t.Fatalf("split: %v", err)
	}

	res, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if res.Balance != "59.5" {
		t.Errorf("balance = %q, want %q", res.Balance, "59.5")
	}
}

func TestBalance_UserNotFound(t *testing.T) {
	svc, _, _, _ := setupQueryService(t)

	_, err := svc.Balance(context.Background(), uuid.New())
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

func TestPositions_ReportsLockedCollateral(t *testing.T) {
	svc, eng, userID, marketID := setupQueryService(t)
	ctx := context.Background()

	if _, err := eng.Split(ctx, userID, marketID, 40_000_000); err != nil {
		t.Fatalf("split: %v", err)
	}

	positions, err := svc.Positions(ctx, userID)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	p := positions[0]
	if p.MarketID != marketID {
		t.Errorf("market = %q, want %q", p.MarketID, marketID)
	}
	if p.YesHolding != "40" || p.NoHolding != "40" || p.Locked != "40" {
		t.Errorf("position = %s/%s locked %s, want 40/40 locked 40",
			p.YesHolding, p.NoHolding, p.Locked)
	}
}

func TestEntries_NewestFirst(t *testing.T) {
	svc, eng, userID, marketID := setupQueryService(t)
	ctx := context.Background()

	if _, err := eng.Split(ctx, userID, marketID, 40_000_000); err != nil {
		t.Fatalf("split: %v", err)
	}
	if _, err := eng.Merge(ctx, userID, marketID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	entries, err := svc.Entries(ctx, userID, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Type != "Merge" || entries[1].Type != "Split" {
		t.Errorf("order = %s, %s; want Merge, Split", entries[0].Type, entries[1].Type)
	}
	if entries[0].Amount != "40" || entries[0].BalanceAfter != "100" {
		t.Errorf("merge entry = %s/%s, want 40/100",
			entries[0].Amount, entries[0].BalanceAfter)
	}
}
