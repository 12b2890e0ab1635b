package app_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	postgresRepo "github.com/iho/eodledger/internal/adapter/repository/postgres"
	"github.com/iho/eodledger/internal/app"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/config"
	"github.com/iho/eodledger/internal/infrastructure/postgres"
)

var integrationDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

// newIntegrationPool migrates and empties the database named by
// EOD_TEST_DATABASE_URL.
func newIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dbURL := os.Getenv("EOD_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("EOD_TEST_DATABASE_URL not set")
	}

	require.NoError(t, postgres.NewMigrator(dbURL, "../../migrations", zerolog.Nop()).Up())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, dbURL, 10, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE
		outbox_events, eod_job_logs, fx_revaluations, fx_settlements, wae_positions,
		gl_balances, accrual_balances, account_balances, value_date_interest,
		interest_accruals, gl_movements, transactions, business_calendar,
		fx_rates, interest_rates, office_accounts, customer_accounts, products CASCADE`)
	require.NoError(t, err)
	return pool
}

func seedIntegrationData(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	statements := []string{
		`INSERT INTO products (product_code, interest_bearing, rate_code, receivable_expenditure_gl, payable_income_gl)
		 VALUES ('SAV', TRUE, 'SAV', '410101001', '130101001'), ('CASH', FALSE, NULL, NULL, NULL)`,
		`INSERT INTO customer_accounts (account_no, gl_num, currency, product_code) VALUES ('100000001', '110101001', 'BDT', 'SAV')`,
		`INSERT INTO office_accounts (account_no, gl_num, currency, product_code) VALUES ('900000001', '210101001', 'BDT', 'CASH')`,
		`INSERT INTO interest_rates (rate_code, effective_date, rate) VALUES ('SAV', '2025-01-01', 4.5)`,
	}
	for _, stmt := range statements {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, postgresRepo.NewBusinessClock(pool).Initialize(ctx, integrationDate))

	transactions := postgresRepo.NewTransactionRepository(pool)
	amount := decimal.NewFromInt(1000)
	for _, line := range []*domain.Transaction{
		{ID: "T1-1", AccountNo: "900000001", GLNum: "210101001", DrCr: domain.Debit},
		{ID: "T1-2", AccountNo: "100000001", GLNum: "110101001", DrCr: domain.Credit},
	} {
		line.BaseID = "T1"
		line.TranDate = integrationDate
		line.ValueDate = integrationDate
		line.Currency = "BDT"
		line.Status = domain.TransactionStatusVerified
		line.FCYAmount = amount
		line.ExchangeRate = decimal.NewFromInt(1)
		line.LCYAmount = amount
		require.NoError(t, transactions.Create(ctx, nil, line))
	}
}

func TestCycleAgainstPostgres(t *testing.T) {
	pool := newIntegrationPool(t)
	ctx := context.Background()
	seedIntegrationData(t, ctx, pool)

	c := app.NewContainer(app.Deps{
		Config: &config.Config{
			LocalCurrency:      "BDT",
			Workers:            2,
			StrictBalanceCheck: true,
			LockTTL:            time.Minute,
		},
		Pool:   pool,
		Logger: zerolog.Nop(),
	})

	results, err := c.Orchestrator.RunCycle(ctx, "integration")
	require.NoError(t, err)
	require.Len(t, results, domain.LastJob)
	for _, r := range results {
		assert.True(t, r.Success, "job %d: %s", r.JobNumber, r.Message)
	}

	next, err := c.Orchestrator.BusinessDate(ctx)
	require.NoError(t, err)
	assert.True(t, next.Equal(integrationDate.AddDate(0, 0, 1)), "business date %s", next)

	snapshot, err := postgresRepo.NewAccountBalanceRepository(pool).Get(ctx, "100000001", integrationDate)
	require.NoError(t, err)
	assert.True(t, snapshot.Closing.Abs().Equal(decimal.NewFromInt(1000)), "closing %s", snapshot.Closing)

	books, err := c.Ledger.CheckBooks(ctx, integrationDate)
	require.NoError(t, err)
	assert.True(t, books.Balanced, "imbalance %s", books.Imbalance)

	// The new business date starts over at job 1.
	result, err := c.Orchestrator.ExecuteJob(ctx, domain.LastJob, "integration")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBlocked, result.Outcome)

	events, err := c.Outbox.GetUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}
