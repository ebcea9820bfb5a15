package ledger

import (
	"context"

	fpmath "OutcomeLedger/internal/math"

	"github.com/google/uuid"
)

// Position is a user's YES/NO holding pair for one market. At most one
// position exists per (user, market); both holdings are non-negative at
// every commit boundary. A position with both holdings at zero is kept
// as a zero row, never deleted.
type Position struct {
	UserID     uuid.UUID
	MarketID   string
	YesHolding int64 // Fixed-point, CollateralConfig scale
	NoHolding  int64 // Fixed-point, CollateralConfig scale
}

// Matched returns the matched-pair quantity: the collateral currently
// locked behind this position.
func (p *Position) Matched() int64 {
	return fpmath.Min64(p.YesHolding, p.NoHolding)
}

// IsFlat returns true if the position has no holdings on either side.
func (p *Position) IsFlat() bool {
	return p.YesHolding == 0 && p.NoHolding == 0
}

// PositionManager owns position records. All mutations go through an
// explicit transaction handle so their scope is visible at the call
// site; positions are never touched outside an active transaction.
type PositionManager struct{}

func NewPositionManager() *PositionManager {
	return &PositionManager{}
}

// GetPosition returns the locked position for (userID, marketID), or
// nil when none exists. Callers decide whether absence is an error.
func (pm *PositionManager) GetPosition(ctx context.Context, tx Tx, userID uuid.UUID, marketID string) (*Position, error) {
	return tx.Position(ctx, userID, marketID)
}

// UpsertPosition creates the position if absent or adjusts an existing
// one by (deltaYes, deltaNo). Creation requires both deltas >= 0; any
// resulting holding below zero fails with NegativeHolding and writes
// nothing. Returns the position as written.
func (pm *PositionManager) UpsertPosition(ctx context.Context, tx Tx, userID uuid.UUID, marketID string, deltaYes, deltaNo int64) (*Position, error) {
	const op = "position.upsert"

	pos, err := tx.Position(ctx, userID, marketID)
	if err != nil {
		return nil, err
	}

	if pos == nil {
		if deltaYes < 0 || deltaNo < 0 {
			return nil, errKindf(KindNegativeHolding, op,
				"cannot create position with negative holdings yes=%d no=%d", deltaYes, deltaNo)
		}
		pos = &Position{UserID: userID, MarketID: marketID}
	}

	newYes, err := fpmath.CheckedAdd(pos.YesHolding, deltaYes)
	if err != nil {
		return nil, errKind(KindInvalidAmount, op, err)
	}
	newNo, err := fpmath.CheckedAdd(pos.NoHolding, deltaNo)
	if err != nil {
		return nil, errKind(KindInvalidAmount, op, err)
	}

	if newYes < 0 || newNo < 0 {
		return nil, errKindf(KindNegativeHolding, op,
			"holding would go negative: yes=%d no=%d", newYes, newNo)
	}

	pos.YesHolding = newYes
	pos.NoHolding = newNo

	if err := tx.SetPosition(ctx, pos); err != nil {
		return nil, err
	}

	out := *pos
	return &out, nil
}
