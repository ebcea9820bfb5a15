// Package query serves the read side: balances, positions, and audit
// history, rendered with human-readable decimal amounts.
package query

import (
	"context"
	"fmt"

	fpmath "OutcomeLedger/internal/math"
	"OutcomeLedger/internal/store"

	"github.com/google/uuid"
)

// defaultEntryLimit caps history reads when the caller asks for no limit.
const defaultEntryLimit = 100

// Service answers read queries straight from the store. Reads are
// point-in-time snapshots; they never join the ledger's write
// transactions.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Balance returns the user's free collateral.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResponse, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		UserID:  u.ID.String(),
		Balance: fpmath.FormatAmount(u.Balance),
	}, nil
}

// Positions returns all of the user's positions, zero rows included.
func (s *Service) Positions(ctx context.Context, userID uuid.UUID) ([]PositionResponse, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	positions, err := s.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	out := make([]PositionResponse, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		out = append(out, PositionResponse{
			MarketID:   p.MarketID,
			YesHolding: fpmath.FormatAmount(p.YesHolding),
			NoHolding:  fpmath.FormatAmount(p.NoHolding),
			Locked:     fpmath.FormatAmount(p.Matched()),
		})
	}
	return out, nil
}

// Entries returns the user's audit history, newest first.
func (s *Service) Entries(ctx context.Context, userID uuid.UUID, limit int) ([]EntryResponse, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultEntryLimit
	}

	entries, err := s.store.GetEntries(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out = append(out, EntryResponse{
			EntryID:      e.EntryID.String(),
			MarketID:     e.MarketID,
			Type:         e.Type.String(),
			Amount:       fpmath.FormatAmount(e.Amount),
			BalanceAfter: fpmath.FormatAmount(e.BalanceAfter),
			YesAfter:     fpmath.FormatAmount(e.YesAfter),
			NoAfter:      fpmath.FormatAmount(e.NoAfter),
			CreatedAt:    e.CreatedAt,
		})
	}
	return out, nil
}
