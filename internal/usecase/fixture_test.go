package usecase_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
	"github.com/iho/eodledger/internal/usecase/mocks"
)

const (
	lcy = "BDT"

	savingsAccount = "100000001"
	termDeposit    = "100000002"
	usdDeposit     = "100000003"
	loanAccount    = "200000001"
	nostroUSD      = "900000001"

	savingsGL      = "110101001"
	termDepositGL  = "110201001"
	usdDepositGL   = "110301001"
	loanGL         = "210201001"
	nostroGL       = "210501001"
	cashGL         = "210101001"
	payableGL      = "130101001"
	expenditureGL  = "410101001"
	receivableGL   = "220101001"
	incomeGL       = "310101001"
	unrealGainGL   = "310900001"
	unrealLossGL   = "410900001"
	realGainGL     = "310900002"
	realLossGL     = "410900002"
	positionGL     = "210900001"
	positionLCYGL  = "210900002"
	depositRate    = "SAV"
	loanRate       = "LOAN"
	termDealPrefix = "1102"
)

var bizDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	master      *mocks.MockAccountMasterRepository
	rates       *mocks.MockRateRepository
	txns        *mocks.MockTransactionRepository
	accBal      *mocks.MockAccountBalanceRepository
	accrualBal  *mocks.MockAccrualBalanceRepository
	glBal       *mocks.MockGLBalanceRepository
	movements   *mocks.MockGLMovementRepository
	accruals    *mocks.MockInterestAccrualRepository
	vdi         *mocks.MockValueDateInterestRepository
	revals      *mocks.MockRevaluationRepository
	wae         *mocks.MockWAERepository
	settlements *mocks.MockSettlementRepository
	txMgr       *mocks.MockTransactionManager
	idGen       *mocks.MockIDGenerator
	jobLog      *mocks.MemoryJobLog
	clock       *mocks.MemoryClock
	outbox      *mocks.MemoryOutbox

	settings usecase.Settings
	uow      *usecase.UnitOfWork
	lookup   *usecase.AccountLookup
	rateRes  *usecase.RateResolver
	resolver *usecase.BalanceResolver

	valueDate      *usecase.ValueDateInterestProcessor
	accountBalance *usecase.AccountBalanceJob
	accrual        *usecase.InterestAccrualJob
	accrualGL      *usecase.AccrualGLMovementJob
	glMovement     *usecase.GLMovementJob
	glBalance      *usecase.GLBalanceJob
	accrualBalance *usecase.AccrualBalanceJob
	revaluation    *usecase.FXRevaluationJob
	reports        *usecase.ReportJob
	orchestrator   *usecase.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		master:      mocks.NewMockAccountMasterRepository(),
		rates:       mocks.NewMockRateRepository(),
		txns:        mocks.NewMockTransactionRepository(),
		accBal:      mocks.NewMockAccountBalanceRepository(),
		accrualBal:  mocks.NewMockAccrualBalanceRepository(),
		glBal:       mocks.NewMockGLBalanceRepository(),
		movements:   mocks.NewMockGLMovementRepository(),
		accruals:    mocks.NewMockInterestAccrualRepository(),
		vdi:         mocks.NewMockValueDateInterestRepository(),
		revals:      mocks.NewMockRevaluationRepository(),
		wae:         mocks.NewMockWAERepository(),
		settlements: mocks.NewMockSettlementRepository(),
		txMgr:       mocks.NewMockTransactionManager(),
		idGen:       mocks.NewMockIDGenerator(),
		jobLog:      mocks.NewMemoryJobLog(),
		clock:       mocks.NewMemoryClock(bizDate),
		outbox:      mocks.NewMemoryOutbox(),
		settings: usecase.Settings{
			LocalCurrency:      lcy,
			DealGLPrefixes:     []string{termDealPrefix},
			UnrealizedGainGL:   unrealGainGL,
			UnrealizedLossGL:   unrealLossGL,
			RealizedGainGL:     realGainGL,
			RealizedLossGL:     realLossGL,
			PositionGL:         positionGL,
			PositionLCYGL:      positionLCYGL,
			Workers:            4,
			StrictBalanceCheck: true,
		},
	}

	f.revals.Movements = f.movements

	logger := zerolog.Nop()
	f.uow = usecase.NewUnitOfWork(f.txMgr, nil)
	f.lookup = usecase.NewAccountLookup(f.master, lcy)
	f.rateRes = usecase.NewRateResolver(f.rates, f.settings)
	f.resolver = usecase.NewBalanceResolver(logger)

	f.valueDate = usecase.NewValueDateInterestProcessor(f.uow, f.txns, f.vdi, f.lookup, f.rateRes, f.settings, logger)
	f.accountBalance = usecase.NewAccountBalanceJob(f.uow, f.txns, f.accBal, f.lookup, f.resolver, f.valueDate, f.settings, nil, logger)
	f.accrual = usecase.NewInterestAccrualJob(f.uow, f.master, f.accBal, f.accruals, f.vdi, f.lookup, f.rateRes, f.resolver, f.settings, nil, logger)
	f.accrualGL = usecase.NewAccrualGLMovementJob(f.uow, f.accruals, f.movements, f.settings, nil, logger)
	f.glMovement = usecase.NewGLMovementJob(f.uow, f.txns, f.movements, f.lookup, f.settings, nil, logger)
	f.glBalance = usecase.NewGLBalanceJob(f.uow, f.master, f.movements, f.glBal, f.resolver, f.settings, nil, logger)
	f.accrualBalance = usecase.NewAccrualBalanceJob(f.uow, f.accruals, f.accrualBal, f.lookup, f.resolver, f.settings, nil, logger)
	f.revaluation = usecase.NewFXRevaluationJob(f.uow, f.master, f.accBal, f.revals, f.movements, f.rateRes, f.resolver, f.glBalance, f.idGen, f.settings, nil, logger)
	f.reports = usecase.NewReportJob(usecase.NewSnapshotReportGenerator(f.accBal), logger)

	f.orchestrator = usecase.NewOrchestrator(
		[]usecase.Job{
			f.accountBalance, f.accrual, f.accrualGL, f.glMovement,
			f.glBalance, f.accrualBalance, f.revaluation, f.reports,
		},
		f.jobLog,
		f.clock,
		f.idGen,
		nil,
		logger,
		usecase.WithLocker(usecase.NewKeyedMutex()),
		usecase.WithOutbox(f.outbox),
	)

	return f
}

// seedAccounts registers a savings deposit, a term deposit, a USD deposit, a
// loan and a USD nostro with their interest products.
func (f *fixture) seedAccounts() {
	f.master.AddCustomer(&domain.AccountInfo{
		AccountNo: savingsAccount,
		GLNum:     savingsGL,
		Currency:  lcy,
		Active:    true,
		Interest: domain.InterestTerms{
			Bearing:                 true,
			RateCode:                depositRate,
			Increment:               dec("0.5"),
			ReceivableExpenditureGL: expenditureGL,
			PayableIncomeGL:         payableGL,
		},
	})
	f.master.AddCustomer(&domain.AccountInfo{
		AccountNo: termDeposit,
		GLNum:     termDepositGL,
		Currency:  lcy,
		Active:    true,
		Interest: domain.InterestTerms{
			Bearing:                 true,
			FixedRate:               dec("7.3"),
			ReceivableExpenditureGL: expenditureGL,
			PayableIncomeGL:         payableGL,
		},
	})
	f.master.AddCustomer(&domain.AccountInfo{
		AccountNo: usdDeposit,
		GLNum:     usdDepositGL,
		Currency:  "USD",
		Active:    true,
	})
	f.master.AddCustomer(&domain.AccountInfo{
		AccountNo: loanAccount,
		GLNum:     loanGL,
		Currency:  lcy,
		Active:    true,
		Interest: domain.InterestTerms{
			Bearing:                 true,
			RateCode:                loanRate,
			ReceivableExpenditureGL: receivableGL,
			PayableIncomeGL:         incomeGL,
		},
	})
	f.master.AddOffice(&domain.AccountInfo{
		AccountNo: nostroUSD,
		GLNum:     nostroGL,
		Currency:  "USD",
		Active:    true,
	})

	f.rates.SetInterestRate(depositRate, bizDate.AddDate(0, -1, 0), dec("4.5"))
	f.rates.SetInterestRate(loanRate, bizDate.AddDate(0, -1, 0), dec("12"))
	f.rates.SetMidRate("USD", bizDate.AddDate(0, 0, -1), dec("110"))
}

// post adds a balanced, verified two-line transaction moving amount from
// debitAccount/debitGL to creditAccount/creditGL.
func (f *fixture) post(baseID string, date time.Time, debitAccount, debitGL, creditAccount, creditGL string, amount decimal.Decimal) {
	f.txns.Add(
		&domain.Transaction{
			ID: baseID + "-1", BaseID: baseID, TranDate: date, ValueDate: date,
			AccountNo: debitAccount, GLNum: debitGL, Currency: lcy, DrCr: domain.Debit,
			Status: domain.TransactionStatusVerified, FCYAmount: amount, ExchangeRate: decimal.NewFromInt(1), LCYAmount: amount,
		},
		&domain.Transaction{
			ID: baseID + "-2", BaseID: baseID, TranDate: date, ValueDate: date,
			AccountNo: creditAccount, GLNum: creditGL, Currency: lcy, DrCr: domain.Credit,
			Status: domain.TransactionStatusVerified, FCYAmount: amount, ExchangeRate: decimal.NewFromInt(1), LCYAmount: amount,
		},
	)
}
