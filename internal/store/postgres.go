package store

import (
	"context"
	"database/sql"
	"fmt"

	"OutcomeLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store on database/sql + lib/pq. Ledger
// transactions run at READ COMMITTED with SELECT ... FOR UPDATE row
// locks on the touched user and position rows, so two concurrent
// operations against the same user serialize at the store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Begin opens a ledger transaction.
func (s *PostgresStore) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, wrapPQ("begin", err)
	}
	return &pgTx{tx: tx}, nil
}

// pgTx is the transaction-scoped handle handed to the ledger managers.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) UserBalance(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapPQ("user balance", err)
	}
	return balance, true, nil
}

func (t *pgTx) SetUserBalance(ctx context.Context, userID uuid.UUID, balance int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET balance = $2, updated_at = now() WHERE id = $1`,
		userID, balance,
	)
	if err != nil {
		return wrapPQ("set balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapPQ("set balance", err)
	}
	if n == 0 {
		return fmt.Errorf("set balance: user %s vanished mid-transaction", userID)
	}
	return nil
}

func (t *pgTx) Position(ctx context.Context, userID uuid.UUID, marketID string) (*ledger.Position, error) {
	pos := ledger.Position{UserID: userID, MarketID: marketID}
	err := t.tx.QueryRowContext(ctx,
		`SELECT yes_holding, no_holding FROM positions
		 WHERE user_id = $1 AND market_id = $2 FOR UPDATE`,
		userID, marketID,
	).Scan(&pos.YesHolding, &pos.NoHolding)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPQ("position", err)
	}
	return &pos, nil
}

func (t *pgTx) SetPosition(ctx context.Context, pos *ledger.Position) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO positions (user_id, market_id, yes_holding, no_holding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, market_id) DO UPDATE
		 SET yes_holding = EXCLUDED.yes_holding,
		     no_holding  = EXCLUDED.no_holding,
		     updated_at  = now()`,
		pos.UserID, pos.MarketID, pos.YesHolding, pos.NoHolding,
	)
	return wrapPQ("set position", err)
}

func (t *pgTx) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO ledger_entries
		 (entry_id, user_id, market_id, entry_type, amount, balance_after, yes_after, no_after, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		e.EntryID, e.UserID, e.MarketID, int32(e.Type),
		e.Amount, e.BalanceAfter, e.YesAfter, e.NoAfter, e.CreatedAt,
	)
	return wrapPQ("append entry", err)
}

func (t *pgTx) Commit() error {
	return wrapPQ("commit", t.tx.Commit())
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback()
}

// --- Market directory ---

func (s *PostgresStore) MarketExists(ctx context.Context, marketID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM markets WHERE id = $1)`, marketID,
	).Scan(&exists)
	if err != nil {
		return false, wrapPQ("market exists", err)
	}
	return exists, nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, balance, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.Balance, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ConflictError{Entity: "user", ID: u.Email}
	}
	return wrapPQ("create user", err)
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, balance, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Balance, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "user", ID: id.String()}
	}
	if err != nil {
		return nil, wrapPQ("get user", err)
	}
	return &u, nil
}

// --- Markets ---

func (s *PostgresStore) CreateMarket(ctx context.Context, m *Market) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markets (id, name, description, image_url, end_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.Description, m.ImageURL, m.EndAt, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ConflictError{Entity: "market", ID: m.ID}
	}
	return wrapPQ("create market", err)
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*Market, error) {
	var m Market
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, image_url, end_at, outcome, created_at
		 FROM markets WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.ImageURL, &m.EndAt, &m.Outcome, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "market", ID: id}
	}
	if err != nil {
		return nil, wrapPQ("get market", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]Market, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, image_url, end_at, outcome, created_at
		 FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapPQ("list markets", err)
	}
	defer rows.Close()

	var markets []Market
	for rows.Next() {
		var m Market
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.ImageURL,
			&m.EndAt, &m.Outcome, &m.CreatedAt); err != nil {
			return nil, wrapPQ("list markets", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) SetMarketOutcome(ctx context.Context, id, outcome string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE markets SET outcome = $2 WHERE id = $1`, id, outcome)
	if err != nil {
		return wrapPQ("set outcome", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapPQ("set outcome", err)
	}
	if n == 0 {
		return &NotFoundError{Entity: "market", ID: id}
	}
	return nil
}

// --- Read queries ---

func (s *PostgresStore) GetPositions(ctx context.Context, userID uuid.UUID) ([]ledger.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT market_id, yes_holding, no_holding FROM positions
		 WHERE user_id = $1 ORDER BY market_id`, userID)
	if err != nil {
		return nil, wrapPQ("get positions", err)
	}
	defer rows.Close()

	var positions []ledger.Position
	for rows.Next() {
		pos := ledger.Position{UserID: userID}
		if err := rows.Scan(&pos.MarketID, &pos.YesHolding, &pos.NoHolding); err != nil {
			return nil, wrapPQ("get positions", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) GetEntries(ctx context.Context, userID uuid.UUID, limit int) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, market_id, entry_type, amount, balance_after, yes_after, no_after, created_at
		 FROM ledger_entries WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, wrapPQ("get entries", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e := ledger.Entry{UserID: userID}
		var marketID sql.NullString
		var entryType int32
		if err := rows.Scan(&e.EntryID, &marketID, &entryType,
			&e.Amount, &e.BalanceAfter, &e.YesAfter, &e.NoAfter, &e.CreatedAt); err != nil {
			return nil, wrapPQ("get entries", err)
		}
		e.MarketID = marketID.String
		e.Type = ledger.EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// wrapPQ translates driver errors. Serialization failures (40001) and
// deadlock victims (40P01) wrap ledger.ErrTxConflict so the engine can
// retry them.
func wrapPQ(op string, err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%s: %w: %v", op, ledger.ErrTxConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
