// Package store provides the persistence implementations behind the
// ledger: PostgreSQL as the source of truth, an in-memory store for
// tests and development, and a Redis read-through cache for market
// metadata. Balances and positions are never cached; every ledger
// operation re-reads them inside its own transaction.
package store

import (
	"context"
	"time"

	"OutcomeLedger/internal/ledger"

	"github.com/google/uuid"
)

// User is an account record. Balance is fixed-point collateral.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Market is the metadata record for a binary-outcome market. Outcome is
// nil until an operator resolves the market.
type Market struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	EndAt       time.Time `json:"endAt"`
	Outcome     *string   `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the full persistence surface: the transactional ledger
// boundary plus the user/market CRUD and read queries around it.
type Store interface {
	ledger.Store
	ledger.MarketDirectory

	// --- Users ---
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// --- Markets ---
	CreateMarket(ctx context.Context, m *Market) error
	GetMarket(ctx context.Context, id string) (*Market, error)
	ListMarkets(ctx context.Context) ([]Market, error)
	SetMarketOutcome(ctx context.Context, id, outcome string) error

	// --- Read queries ---
	GetPositions(ctx context.Context, userID uuid.UUID) ([]ledger.Position, error)
	GetEntries(ctx context.Context, userID uuid.UUID, limit int) ([]ledger.Entry, error)
}

// NotFoundError is returned by CRUD reads when the record does not
// exist. The ledger engine has its own error taxonomy; this type is for
// the request layer's plain reads.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " " + e.ID + " not found"
}

// ConflictError is returned when a unique constraint is violated
// (duplicate user email, duplicate market).
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return e.Entity + " " + e.ID + " already exists"
}
