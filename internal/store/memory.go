package store

import (
	"context"
	"sort"
	"sync"

	"OutcomeLedger/internal/ledger"

	"github.com/google/uuid"
)

// Fault points for MemoryStore.FailNext. Tests arm a fault to verify
// that an aborted transaction leaves no partial writes behind.
const (
	FaultBegin       = "begin"
	FaultSetBalance  = "set_balance"
	FaultSetPosition = "set_position"
	FaultAppendEntry = "append_entry"
	FaultCommit      = "commit"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development; not suitable for production (no persistence).
//
// Concurrency model: the store mutex is held from Begin until Commit or
// Rollback, so transactions are fully serialized. A stricter guarantee
// than the row locks Postgres provides, but the same observable
// behavior for the ledger. Writes are staged on the transaction and
// applied only at Commit, so an abort at any point leaves committed
// state untouched.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]User
	markets   map[string]Market
	positions map[positionKey]ledger.Position
	entries   []ledger.Entry

	faultMu sync.Mutex
	faults  map[string]error
}

type positionKey struct {
	UserID   uuid.UUID
	MarketID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uuid.UUID]User),
		markets:   make(map[string]Market),
		positions: make(map[positionKey]ledger.Position),
		faults:    make(map[string]error),
	}
}

// FailNext arms a one-shot fault: the next call hitting the given fault
// point returns err instead of performing its work.
func (s *MemoryStore) FailNext(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *MemoryStore) takeFault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err := s.faults[op]
	if err != nil {
		delete(s.faults, op)
	}
	return err
}

// Begin opens a transaction, blocking until any in-flight transaction
// commits or rolls back.
func (s *MemoryStore) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := s.takeFault(FaultBegin); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &memTx{
		store:     s,
		balances:  make(map[uuid.UUID]int64),
		positions: make(map[positionKey]ledger.Position),
	}, nil
}

// memTx stages all writes; nothing touches committed state until Commit.
type memTx struct {
	store     *MemoryStore
	balances  map[uuid.UUID]int64
	positions map[positionKey]ledger.Position
	entries   []ledger.Entry
	done      bool
}

func (t *memTx) UserBalance(_ context.Context, userID uuid.UUID) (int64, bool, error) {
	if b, ok := t.balances[userID]; ok {
		return b, true, nil
	}
	u, ok := t.store.users[userID]
	if !ok {
		return 0, false, nil
	}
	return u.Balance, true, nil
}

func (t *memTx) SetUserBalance(_ context.Context, userID uuid.UUID, balance int64) error {
	if err := t.store.takeFault(FaultSetBalance); err != nil {
		return err
	}
	t.balances[userID] = balance
	return nil
}

func (t *memTx) Position(_ context.Context, userID uuid.UUID, marketID string) (*ledger.Position, error) {
	key := positionKey{UserID: userID, MarketID: marketID}
	if pos, ok := t.positions[key]; ok {
		out := pos
		return &out, nil
	}
	pos, ok := t.store.positions[key]
	if !ok {
		return nil, nil
	}
	out := pos
	return &out, nil
}

func (t *memTx) SetPosition(_ context.Context, pos *ledger.Position) error {
	if err := t.store.takeFault(FaultSetPosition); err != nil {
		return err
	}
	key := positionKey{UserID: pos.UserID, MarketID: pos.MarketID}
	t.positions[key] = *pos
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, e *ledger.Entry) error {
	if err := t.store.takeFault(FaultAppendEntry); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()

	if err := t.store.takeFault(FaultCommit); err != nil {
		return err
	}

	for id, balance := range t.balances {
		u := t.store.users[id]
		u.Balance = balance
		t.store.users[id] = u
	}
	for key, pos := range t.positions {
		t.store.positions[key] = pos
	}
	t.store.entries = append(t.store.entries, t.entries...)
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// --- Market directory ---

func (s *MemoryStore) MarketExists(_ context.Context, marketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markets[marketID]
	return ok, nil
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return &ConflictError{Entity: "user", ID: u.Email}
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &NotFoundError{Entity: "user", ID: id.String()}
	}
	out := u
	return &out, nil
}

// --- Markets ---

func (s *MemoryStore) CreateMarket(_ context.Context, m *Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return &ConflictError{Entity: "market", ID: m.ID}
	}
	s.markets[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, &NotFoundError{Entity: "market", ID: id}
	}
	out := m
	return &out, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets := make([]Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})
	return markets, nil
}

func (s *MemoryStore) SetMarketOutcome(_ context.Context, id, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return &NotFoundError{Entity: "market", ID: id}
	}
	m.Outcome = &outcome
	s.markets[id] = m
	return nil
}

// --- Read queries ---

func (s *MemoryStore) GetPositions(_ context.Context, userID uuid.UUID) ([]ledger.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var positions []ledger.Position
	for key, pos := range s.positions {
		if key.UserID == userID {
			positions = append(positions, pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].MarketID < positions[j].MarketID
	})
	return positions, nil
}

func (s *MemoryStore) GetEntries(_ context.Context, userID uuid.UUID, limit int) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []ledger.Entry
	for i := len(s.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.entries[i].UserID == userID {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}
