package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryType represents the purpose of a ledger entry
type EntryType int32

const (
	EntryTypeUnknown EntryType = iota
	EntryTypeSplit
	EntryTypeMerge
	EntryTypeDeposit
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeSplit:
		return "Split"
	case EntryTypeMerge:
		return "Merge"
	case EntryTypeDeposit:
		return "Deposit"
	default:
		return "Unknown"
	}
}

// Entry is one immutable audit record, appended in the same transaction
// as the balance and position writes it describes. Amount is always the
// positive quantity of collateral that moved.
type Entry struct {
	EntryID      uuid.UUID
	UserID       uuid.UUID
	MarketID     string // empty for deposits
	Type         EntryType
	Amount       int64
	BalanceAfter int64
	YesAfter     int64
	NoAfter      int64
	CreatedAt    time.Time
}

// Validate ensures the entry is well-formed before it reaches the store.
func (e *Entry) Validate() error {
	if e.EntryID == uuid.Nil {
		return fmt.Errorf("entry missing id")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("entry %s has non-positive amount: %d", e.EntryID, e.Amount)
	}
	if e.BalanceAfter < 0 || e.YesAfter < 0 || e.NoAfter < 0 {
		return fmt.Errorf("entry %s records negative state", e.EntryID)
	}
	switch e.Type {
	case EntryTypeSplit, EntryTypeMerge:
		if e.MarketID == "" {
			return fmt.Errorf("entry %s (%s) missing market", e.EntryID, e.Type)
		}
	case EntryTypeDeposit:
	default:
		return fmt.Errorf("entry %s has unknown type %d", e.EntryID, int32(e.Type))
	}
	return nil
}
