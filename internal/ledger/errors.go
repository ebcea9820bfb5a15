package ledger

import (
	"errors"
	"fmt"
)

// Kind is the closed set of ledger failure modes. Callers switch on the
// kind, never on message text.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindUserNotFound
	KindMarketNotFound
	KindPositionNotFound
	KindInsufficientBalance
	KindNegativeHolding
	KindNothingToMerge
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAmount:
		return "InvalidAmount"
	case KindUserNotFound:
		return "UserNotFound"
	case KindMarketNotFound:
		return "MarketNotFound"
	case KindPositionNotFound:
		return "PositionNotFound"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindNegativeHolding:
		return "NegativeHolding"
	case KindNothingToMerge:
		return "NothingToMerge"
	case KindStoreFailure:
		return "StoreFailure"
	default:
		return "Unknown"
	}
}

// Error is a ledger failure tagged with its Kind and the operation that
// produced it. Err carries the underlying cause when one exists.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errKind(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func errKindf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from an error chain. Unrecognized errors
// report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrTxConflict marks a retryable transaction conflict (serialization
// failure, deadlock victim). Store implementations wrap conflicts with
// this sentinel; the engine retries a bounded number of times before
// surfacing StoreFailure.
var ErrTxConflict = errors.New("transaction conflict")

// IsConflict reports whether err is a retryable store conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTxConflict)
}
