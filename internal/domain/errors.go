package domain

import "errors"

var (
	// Master data errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrRateNotFound        = errors.New("rate not found")
	ErrMissingGLConfig     = errors.New("gl routing is not configured")
	ErrNotInterestBearing  = errors.New("account is not interest bearing")
	ErrSnapshotNotFound    = errors.New("balance snapshot not found")
	ErrWAEStateNotFound    = errors.New("wae state not found")
	ErrBusinessDateMissing = errors.New("business date is not configured")

	// Posting errors
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidDrCr           = errors.New("debit/credit flag must be D or C")
	ErrUnbalancedTransaction = errors.New("transaction lines do not balance")
	ErrMissingTransactionID  = errors.New("transaction id is required")
	ErrInvalidDealSide       = errors.New("deal side must be BUY or SELL")
	ErrEmptyPosition         = errors.New("cannot settle against an empty wae position")

	// Persistence conflicts
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrLockNotAcquired = errors.New("lock is held by another process")
	ErrCacheMiss       = errors.New("cache miss")
	ErrInvalidEvent    = errors.New("invalid outbox event")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("unknown operator role")

	// EOD errors
	ErrInvalidJobNumber       = errors.New("invalid job number")
	ErrNoEntitySucceeded      = errors.New("no entity was processed successfully")
	ErrBooksUnbalanced        = errors.New("books are not balanced: gl closing balances do not sum to zero")
	ErrPreviousJobsIncomplete = errors.New("previous jobs are not completed for the business date")
	ErrBusinessDateMoved      = errors.New("business date was already advanced")
)
