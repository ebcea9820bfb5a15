package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for outbound ledger events
type Type int32

const (
	TypeUnknown Type = iota
	TypeSplitExecuted
	TypeMergeExecuted
	TypeDepositConfirmed
	TypeMarketCreated
	TypeMarketResolved
)

func (t Type) String() string {
	switch t {
	case TypeSplitExecuted:
		return "SplitExecuted"
	case TypeMergeExecuted:
		return "MergeExecuted"
	case TypeDepositConfirmed:
		return "DepositConfirmed"
	case TypeMarketCreated:
		return "MarketCreated"
	case TypeMarketResolved:
		return "MarketResolved"
	default:
		return "Unknown"
	}
}

// Event is the outbound record of a committed ledger operation or
// market lifecycle change. Published to NATS after the transaction has
// committed; the Postgres ledger remains the source of truth.
type Event struct {
	EventID      uuid.UUID `json:"event_id"`
	Type         Type      `json:"-"`
	TypeName     string    `json:"type"`
	UserID       uuid.UUID `json:"user_id,omitempty"`
	MarketID     string    `json:"market_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	BalanceAfter int64     `json:"balance_after,omitempty"`
	YesAfter     int64     `json:"yes_after,omitempty"`
	NoAfter      int64     `json:"no_after,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// New builds an event with its identity and timestamp filled in.
func New(t Type) Event {
	return Event{
		EventID:    uuid.New(),
		Type:       t,
		TypeName:   t.String(),
		OccurredAt: time.Now().UTC(),
	}
}
