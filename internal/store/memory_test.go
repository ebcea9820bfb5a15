package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/store"

	"github.com/google/uuid"
)

// ============================================================================
// Test: transaction staging
// ============================================================================

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{ID: userID, Email: "a@example.com", Balance: 100}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.SetUserBalance(ctx, userID, 7); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := tx.SetPosition(ctx, &ledger.Position{
		UserID: userID, MarketID: "m1", YesHolding: 5, NoHolding: 5,
	}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	u, err := st.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Balance != 100 {
		t.Errorf("balance = %d, want 100 after rollback", u.Balance)
	}
	positions, _ := st.GetPositions(ctx, userID)
	if len(positions) != 0 {
		t.Errorf("positions survived rollback: %+v", positions)
	}
}

func TestMemoryStore_TxReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{ID: userID, Email: "a@example.com", Balance: 100}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := tx.SetUserBalance(ctx, userID, 60); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, ok, err := tx.UserBalance(ctx, userID)
	if err != nil || !ok {
		t.Fatalf("read balance: ok=%v err=%v", ok, err)
	}
	if balance != 60 {
		t.Errorf("balance = %d, want staged 60", balance)
	}
}

func TestMemoryStore_CommitFaultLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{ID: userID, Email: "a@example.com", Balance: 100}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	st.FailNext(store.FaultCommit, errors.New("boom"))

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.SetUserBalance(ctx, userID, 1); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatal("expected commit to fail")
	}

	u, _ := st.GetUser(ctx, userID)
	if u.Balance != 100 {
		t.Errorf("balance = %d, want 100 after failed commit", u.Balance)
	}

	// The fault is one-shot; the store is usable afterwards.
	tx2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("begin after fault: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Errorf("commit after fault: %v", err)
	}
}

// ============================================================================
// Test: CRUD
// ============================================================================

func TestMemoryStore_DuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	if err := st.CreateUser(ctx, &store.User{ID: uuid.New(), Email: "dup@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := st.CreateUser(ctx, &store.User{ID: uuid.New(), Email: "dup@example.com"})
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("got %v, want ConflictError", err)
	}
}

func TestMemoryStore_GetUserNotFound(t *testing.T) {
	st := store.NewMemoryStore()

	_, err := st.GetUser(context.Background(), uuid.New())
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

func TestMemoryStore_MarketLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	m := &store.Market{
		ID:        "eth-merge",
		Name:      "ETH test market",
		EndAt:     time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("create market: %v", err)
	}

	ok, err := st.MarketExists(ctx, "eth-merge")
	if err != nil || !ok {
		t.Fatalf("market should exist: ok=%v err=%v", ok, err)
	}
	ok, _ = st.MarketExists(ctx, "nope")
	if ok {
		t.Error("missing market reported as existing")
	}

	if err := st.SetMarketOutcome(ctx, "eth-merge", "YES"); err != nil {
		t.Fatalf("set outcome: %v", err)
	}
	got, err := st.GetMarket(ctx, "eth-merge")
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if got.Outcome == nil || *got.Outcome != "YES" {
		t.Errorf("outcome = %v, want YES", got.Outcome)
	}
}

func TestMemoryStore_GetEntriesNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	userID := uuid.New()
	if err := st.CreateUser(ctx, &store.User{ID: userID, Email: "a@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	for i := 1; i <= 3; i++ {
		tx, err := st.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := tx.AppendEntry(ctx, &ledger.Entry{
			EntryID:   uuid.New(),
			UserID:    userID,
			Type:      ledger.EntryTypeDeposit,
			Amount:    int64(i),
			CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("append entry: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	entries, err := st.GetEntries(ctx, userID, 2)
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Amount != 3 || entries[1].Amount != 2 {
		t.Errorf("entries out of order: %d, %d", entries[0].Amount, entries[1].Amount)
	}
}
