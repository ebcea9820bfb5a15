package ledger

import (
	"context"

	fpmath "OutcomeLedger/internal/math"

	"github.com/google/uuid"
)

// AccountManager owns user collateral balances. Like PositionManager,
// every read and write happens through an explicit transaction handle.
type AccountManager struct{}

func NewAccountManager() *AccountManager {
	return &AccountManager{}
}

// GetBalance returns the user's locked balance, or UserNotFound.
func (am *AccountManager) GetBalance(ctx context.Context, tx Tx, userID uuid.UUID) (int64, error) {
	const op = "account.balance"

	balance, ok, err := tx.UserBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errKindf(KindUserNotFound, op, "user %s", userID)
	}
	return balance, nil
}

// AdjustBalance applies delta (positive or negative) to the user's
// balance. The balance is re-read under lock inside the caller's
// transaction immediately before the write, so a stale pre-transaction
// read can never be the basis of the mutation. Fails with
// InsufficientBalance if the result would be negative, UserNotFound if
// the user does not exist at mutation time. Returns the new balance.
func (am *AccountManager) AdjustBalance(ctx context.Context, tx Tx, userID uuid.UUID, delta int64) (int64, error) {
	const op = "account.adjust"

	balance, ok, err := tx.UserBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errKindf(KindUserNotFound, op, "user %s", userID)
	}

	newBalance, err := fpmath.CheckedAdd(balance, delta)
	if err != nil {
		return 0, errKind(KindInvalidAmount, op, err)
	}
	if newBalance < 0 {
		return 0, errKindf(KindInsufficientBalance, op,
			"balance %d, delta %d", balance, delta)
	}

	if err := tx.SetUserBalance(ctx, userID, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}
