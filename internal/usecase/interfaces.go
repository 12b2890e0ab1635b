package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

// SnapshotReader reads balance snapshots keyed by (entity, date). Get returns
// domain.ErrSnapshotNotFound when the exact key is missing; LatestBefore
// returns the most recent snapshot strictly before date or the same error.
type SnapshotReader interface {
	Get(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error)
	LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error)
}

// AccountBalanceRepository owns the daily account balance snapshots.
type AccountBalanceRepository interface {
	SnapshotReader
	GetForUpdate(ctx context.Context, tx Transaction, accountNo string, date time.Time) (*domain.BalanceSnapshot, error)
	Upsert(ctx context.Context, tx Transaction, snapshot *domain.BalanceSnapshot) error
	ListEntitiesByDate(ctx context.Context, date time.Time) ([]string, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

// AccrualBalanceRepository owns the daily interest accrual balance snapshots.
type AccrualBalanceRepository interface {
	SnapshotReader
	Upsert(ctx context.Context, tx Transaction, snapshot *domain.BalanceSnapshot) error
}

// GLBalanceRepository owns the daily GL balance snapshots. Create returns
// domain.ErrDuplicateKey when another writer created the same key first.
type GLBalanceRepository interface {
	SnapshotReader
	GetForUpdate(ctx context.Context, tx Transaction, glNum string, date time.Time) (*domain.BalanceSnapshot, error)
	Create(ctx context.Context, tx Transaction, snapshot *domain.BalanceSnapshot) error
	Update(ctx context.Context, tx Transaction, snapshot *domain.BalanceSnapshot) error
	Delete(ctx context.Context, glNum string, date time.Time) error
	SumLatestClosing(ctx context.Context, date time.Time) (decimal.Decimal, error)
}

// TransactionRepository reads and writes ledger transaction lines.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, line *domain.Transaction) error
	ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error)
	ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error)
	ListVerifiedByDate(ctx context.Context, date time.Time) ([]*domain.Transaction, error)
	// ListBackValued returns verified account lines of date whose value date is earlier.
	ListBackValued(ctx context.Context, date time.Time) ([]*domain.Transaction, error)
}

// GLMovementRepository stores both GL movement streams. Create reports false
// when a movement with the same id already exists.
type GLMovementRepository interface {
	Create(ctx context.Context, tx Transaction, movement *domain.GLMovement) (bool, error)
	ListGLNumsByDate(ctx context.Context, stream domain.MovementStream, date time.Time) ([]string, error)
	Totals(ctx context.Context, stream domain.MovementStream, glNum string, date time.Time) (domain.MovementTotals, error)
}

// InterestAccrualRepository stores accrual legs.
type InterestAccrualRepository interface {
	Upsert(ctx context.Context, tx Transaction, accrual *domain.InterestAccrual) error
	ListPendingByDate(ctx context.Context, date time.Time) ([]*domain.InterestAccrual, error)
	MarkPosted(ctx context.Context, tx Transaction, id string) error
	ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error)
	ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.InterestAccrual, error)
}

// ValueDateInterestRepository stores gap-period interest records.
type ValueDateInterestRepository interface {
	Upsert(ctx context.Context, tx Transaction, record *domain.ValueDateInterest) error
	ListByTranDate(ctx context.Context, date time.Time) ([]*domain.ValueDateInterest, error)
}

// AccountMasterRepository reads customer and office account masters joined
// with their product configuration.
type AccountMasterRepository interface {
	GetCustomerAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error)
	GetOfficeAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error)
	ListInterestBearing(ctx context.Context) ([]*domain.AccountInfo, error)
	ListProductGLs(ctx context.Context) ([]string, error)
	ListForeignCurrencyAccounts(ctx context.Context, localCurrency string) ([]*domain.AccountInfo, error)
}

// RateRepository reads the interest rate master and the FX rate master.
// Both return domain.ErrRateNotFound when no entry is effective on date.
type RateRepository interface {
	LatestInterestRate(ctx context.Context, rateCode string, date time.Time) (decimal.Decimal, error)
	MidRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error)
}

// WAERepository stores weighted-average cost per currency pair.
type WAERepository interface {
	GetForUpdate(ctx context.Context, tx Transaction, pair domain.CurrencyPair) (*domain.WAEState, error)
	Save(ctx context.Context, tx Transaction, state *domain.WAEState) error
}

// SettlementRepository stores realized gain/loss audit records.
type SettlementRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.SettlementRecord) error
}

// RevaluationRepository stores mark-to-market records and their legs.
type RevaluationRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.RevaluationRecord) error
	Exists(ctx context.Context, entityID string, date time.Time) (bool, error)
	// LatestBefore returns the most recent record strictly before date, or nil.
	LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.RevaluationRecord, error)
	// ListPostedBefore returns Posted records dated before date with their legs.
	ListPostedBefore(ctx context.Context, date time.Time) ([]*domain.RevaluationRecord, error)
	MarkReversed(ctx context.Context, tx Transaction, id string) error
	// ListGLNumsBookedOn lists the GLs carrying revaluation or reversal legs
	// dated date, whichever run wrote them.
	ListGLNumsBookedOn(ctx context.Context, date time.Time) ([]string, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient database conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations. Get returns domain.ErrCacheMiss for an
// absent or expired key.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
