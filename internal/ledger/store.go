package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store is the transactional persistence boundary the engine runs on.
// Implementations must guarantee that a transaction behaves with at
// least read-committed isolation and row-level locking on the user and
// position records it touches: two transactions mutating the same user
// serialize (block or conflict), never interleave. Conflicts surface
// wrapped in ErrTxConflict.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction-scoped handle. Reads reflect writes made earlier
// in the same transaction; locked reads re-validate against committed
// state, never against values read before the transaction opened.
// Either Commit or Rollback must be called exactly once.
type Tx interface {
	// UserBalance reads the user's collateral balance with a write lock
	// on the row. ok is false when the user does not exist.
	UserBalance(ctx context.Context, userID uuid.UUID) (balance int64, ok bool, err error)

	// SetUserBalance overwrites the user's collateral balance.
	SetUserBalance(ctx context.Context, userID uuid.UUID, balance int64) error

	// Position reads the user's holding pair for a market with a write
	// lock on the row. Returns nil when no position exists; absence is
	// not an error at this layer.
	Position(ctx context.Context, userID uuid.UUID, marketID string) (*Position, error)

	// SetPosition creates or overwrites the position identified by
	// (pos.UserID, pos.MarketID).
	SetPosition(ctx context.Context, pos *Position) error

	// AppendEntry records an immutable ledger entry.
	AppendEntry(ctx context.Context, e *Entry) error

	Commit() error
	Rollback() error
}

// MarketDirectory is the read-only market metadata collaborator used to
// validate split preconditions.
type MarketDirectory interface {
	MarketExists(ctx context.Context, marketID string) (bool, error)
}
