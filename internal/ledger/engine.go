package ledger

import (
	"context"
	"errors"
	"time"

	"OutcomeLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxTxRetries bounds transparent retries after a store conflict. Past
// the bound the conflict surfaces as StoreFailure and the caller decides.
const maxTxRetries = 3

// Engine orchestrates the two ledger conversions. Each operation is a
// single store transaction: validate, re-read under lock, mutate,
// append the audit entry, commit. Either every write in an operation
// becomes visible or none does. The engine holds no state between
// calls; correctness under concurrent invocation comes from the store's
// transaction discipline.
type Engine struct {
	store     Store
	markets   MarketDirectory
	accounts  *AccountManager
	positions *PositionManager
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewEngine(store Store, markets MarketDirectory, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		markets:   markets,
		accounts:  NewAccountManager(),
		positions: NewPositionManager(),
		metrics:   metrics,
		log:       log,
	}
}

// SplitResult is the state snapshot after a successful split.
type SplitResult struct {
	Balance  int64
	Position Position
	Entry    Entry
}

// MergeResult is the state snapshot after a successful merge. Merged is
// the matched quantity burned and credited back as collateral.
type MergeResult struct {
	Balance  int64
	Position Position
	Merged   int64
	Entry    Entry
}

// DepositResult is the state snapshot after a successful deposit.
type DepositResult struct {
	Balance int64
	Entry   Entry
}

// Split converts amount collateral into amount YES + amount NO shares
// on the given market. Preconditions: amount > 0, market exists, user
// exists, balance >= amount. Balance and holdings are re-validated
// inside the transaction, so two concurrent splits against the same
// user cannot both spend the same collateral.
func (e *Engine) Split(ctx context.Context, userID uuid.UUID, marketID string, amount int64) (*SplitResult, error) {
	const op = "split"
	start := time.Now()

	if amount <= 0 {
		return nil, e.reject(op, errKindf(KindInvalidAmount, op, "amount %d", amount))
	}

	ok, err := e.markets.MarketExists(ctx, marketID)
	if err != nil {
		return nil, e.reject(op, errKind(KindStoreFailure, op, err))
	}
	if !ok {
		return nil, e.reject(op, errKindf(KindMarketNotFound, op, "market %s", marketID))
	}

	var res *SplitResult
	err = e.inTx(ctx, op, func(tx Tx) error {
		balance, err := e.accounts.AdjustBalance(ctx, tx, userID, -amount)
		if err != nil {
			return err
		}

		pos, err := e.positions.UpsertPosition(ctx, tx, userID, marketID, amount, amount)
		if err != nil {
			return err
		}

		entry := Entry{
			EntryID:      uuid.New(),
			UserID:       userID,
			MarketID:     marketID,
			Type:         EntryTypeSplit,
			Amount:       amount,
			BalanceAfter: balance,
			YesAfter:     pos.YesHolding,
			NoAfter:      pos.NoHolding,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.AppendEntry(ctx, &entry); err != nil {
			return err
		}

		res = &SplitResult{Balance: balance, Position: *pos, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	e.applied(op, start)
	e.log.Debug().
		Str("op", op).
		Str("user_id", userID.String()).
		Str("market_id", marketID).
		Int64("amount", amount).
		Int64("balance", res.Balance).
		Msg("split applied")

	return res, nil
}

// Merge burns the matched quantity q = min(yes, no) of the user's
// position on the given market and credits q collateral back. The
// unmatched remainder stays on the position: it is exposure only a
// market outcome can resolve. A position with no matched pair fails
// with NothingToMerge.
func (e *Engine) Merge(ctx context.Context, userID uuid.UUID, marketID string) (*MergeResult, error) {
	const op = "merge"
	start := time.Now()

	var res *MergeResult
	err := e.inTx(ctx, op, func(tx Tx) error {
		pos, err := e.positions.GetPosition(ctx, tx, userID, marketID)
		if err != nil {
			return err
		}
		if pos == nil {
			return errKindf(KindPositionNotFound, op, "user %s market %s", userID, marketID)
		}

		q := pos.Matched()
		if q == 0 {
			return errKindf(KindNothingToMerge, op,
				"no matched pair: yes=%d no=%d", pos.YesHolding, pos.NoHolding)
		}

		balance, err := e.accounts.AdjustBalance(ctx, tx, userID, q)
		if err != nil {
			return err
		}

		updated, err := e.positions.UpsertPosition(ctx, tx, userID, marketID, -q, -q)
		if err != nil {
			return err
		}

		entry := Entry{
			EntryID:      uuid.New(),
			UserID:       userID,
			MarketID:     marketID,
			Type:         EntryTypeMerge,
			Amount:       q,
			BalanceAfter: balance,
			YesAfter:     updated.YesHolding,
			NoAfter:      updated.NoHolding,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.AppendEntry(ctx, &entry); err != nil {
			return err
		}

		res = &MergeResult{Balance: balance, Position: *updated, Merged: q, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	e.applied(op, start)
	e.log.Debug().
		Str("op", op).
		Str("user_id", userID.String()).
		Str("market_id", marketID).
		Int64("merged", res.Merged).
		Int64("balance", res.Balance).
		Msg("merge applied")

	return res, nil
}

// Deposit credits collateral onto a user's balance (admin onramp).
func (e *Engine) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*DepositResult, error) {
	const op = "deposit"
	start := time.Now()

	if amount <= 0 {
		return nil, e.reject(op, errKindf(KindInvalidAmount, op, "amount %d", amount))
	}

	var res *DepositResult
	err := e.inTx(ctx, op, func(tx Tx) error {
		balance, err := e.accounts.AdjustBalance(ctx, tx, userID, amount)
		if err != nil {
			return err
		}

		entry := Entry{
			EntryID:      uuid.New(),
			UserID:       userID,
			Type:         EntryTypeDeposit,
			Amount:       amount,
			BalanceAfter: balance,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.AppendEntry(ctx, &entry); err != nil {
			return err
		}

		res = &DepositResult{Balance: balance, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err)
	}

	e.applied(op, start)
	return res, nil
}

// inTx runs fn inside one store transaction: begin, fn, commit, with
// rollback on any failure so no partial writes survive. Conflicts are
// retried up to maxTxRetries with a short backoff; everything that is
// not already a tagged ledger error surfaces as StoreFailure.
func (e *Engine) inTx(ctx context.Context, op string, fn func(Tx) error) error {
	var err error

	for attempt := 0; ; attempt++ {
		err = e.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !IsConflict(err) || attempt >= maxTxRetries {
			break
		}

		if e.metrics != nil {
			e.metrics.TxRetries.WithLabelValues(op).Inc()
		}
		e.log.Warn().Str("op", op).Int("attempt", attempt+1).Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return errKind(KindStoreFailure, op, ctx.Err())
		case <-time.After(time.Millisecond << uint(attempt)):
		}
	}

	var lerr *Error
	if errors.As(err, &lerr) && lerr.Kind != KindUnknown {
		return lerr
	}
	return errKind(KindStoreFailure, op, err)
}

func (e *Engine) runOnce(ctx context.Context, fn func(Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback() // best effort; the error already decides the outcome
		return err
	}

	return tx.Commit()
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, KindOf(err).String()).Inc()
	}
	e.log.Debug().Str("op", op).Str("kind", KindOf(err).String()).Err(err).Msg("operation rejected")
	return err
}
