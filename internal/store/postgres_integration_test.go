package store_test

import (
	"context"
	"testing"
	"time"

	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/observability"
	"OutcomeLedger/internal/persistence"
	"OutcomeLedger/internal/store"
	"OutcomeLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ============================================================================
// Test: Postgres store (integration, requires docker-compose.test.yml)
// ============================================================================

func TestPostgresStore_SplitMergeRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", observability.NewLogger("test"))
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.NewPostgresStore(db)

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{
		ID:        userID,
		Email:     "integration@example.com",
		Balance:   100_000_000,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := st.CreateMarket(ctx, &store.Market{
		ID:        "pg-test-market",
		Name:      "Integration market",
		EndAt:     time.Now().Add(time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create market: %v", err)
	}

	eng := ledger.NewEngine(st, st, nil, zerolog.Nop())

	if _, err := eng.Split(ctx, userID, "pg-test-market", 40_000_000); err != nil {
		t.Fatalf("split: %v", err)
	}
	res, err := eng.Merge(ctx, userID, "pg-test-market")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Balance != 100_000_000 {
		t.Errorf("balance = %d, want 100000000", res.Balance)
	}

	u, err := st.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Balance != 100_000_000 {
		t.Errorf("stored balance = %d, want 100000000", u.Balance)
	}

	// Zero row retained after a full merge.
	positions, err := st.GetPositions(ctx, userID)
	if err != nil {
		t.Fatalf("get positions: %v", err)
	}
	if len(positions) != 1 || !positions[0].IsFlat() {
		t.Errorf("positions = %+v, want one flat row", positions)
	}

	entries, err := st.GetEntries(ctx, userID, 10)
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestPostgresStore_ConcurrentSplits(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", observability.NewLogger("test"))
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.NewPostgresStore(db)

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{
		ID: userID, Email: "race@example.com", Balance: 50_000_000, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := st.CreateMarket(ctx, &store.Market{
		ID: "race-market", Name: "Race market",
		EndAt: time.Now().Add(time.Hour).UTC(), CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create market: %v", err)
	}

	eng := ledger.NewEngine(st, st, nil, zerolog.Nop())

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := eng.Split(ctx, userID, "race-market", 40_000_000)
			errs <- err
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case ledger.IsKind(err, ledger.KindInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("got %d successes, %d rejections, want 1 and 1", succeeded, rejected)
	}

	u, _ := st.GetUser(ctx, userID)
	if u.Balance != 10_000_000 {
		t.Errorf("final balance = %d, want 10000000", u.Balance)
	}
}
