package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

func TestAccountBalanceJob_RollsForward(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()
	ctx := context.Background()

	f.accBal.Seed(&domain.BalanceSnapshot{EntityID: savingsAccount, Date: bizDate.AddDate(0, 0, -1), Currency: lcy, Closing: dec("1000")})

	f.post("T1", bizDate, "", cashGL, savingsAccount, savingsGL, dec("500"))
	f.post("T2", bizDate, savingsAccount, savingsGL, "", cashGL, dec("200"))
	f.txns.Add(&domain.Transaction{
		ID: "T3-1", BaseID: "T3", TranDate: bizDate, ValueDate: bizDate,
		AccountNo: savingsAccount, GLNum: savingsGL, Currency: lcy, DrCr: domain.Credit,
		Status: domain.TransactionStatusEntry, FCYAmount: dec("999"), LCYAmount: dec("999"),
	})

	report, err := f.accountBalance.Run(ctx, bizDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d, want 1", report.Processed)
	}

	snap, err := f.accBal.Get(ctx, savingsAccount, bizDate)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}

	want := map[string]decimal.Decimal{
		"opening": dec("1000"),
		"credit":  dec("500"),
		"debit":   dec("200"),
		"closing": dec("1300"),
	}
	got := map[string]decimal.Decimal{
		"opening": snap.Opening,
		"credit":  snap.CreditSum,
		"debit":   snap.DebitSum,
		"closing": snap.Closing,
	}
	for k, w := range want {
		if !got[k].Equal(w) {
			t.Errorf("%s = %s, want %s", k, got[k], w)
		}
	}
	if !snap.AvailableBalance.Equal(snap.Closing) || !snap.CurrentBalance.Equal(snap.Closing) {
		t.Errorf("current/available should mirror closing: %+v", snap)
	}
}

func TestAccountBalanceJob_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()
	ctx := context.Background()

	f.accBal.Seed(&domain.BalanceSnapshot{EntityID: savingsAccount, Date: bizDate.AddDate(0, 0, -1), Closing: dec("1000")})
	f.post("T1", bizDate, "", cashGL, savingsAccount, savingsGL, dec("500"))

	for i := 0; i < 2; i++ {
		if _, err := f.accountBalance.Run(ctx, bizDate); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	// a late snapshot for the previous day must not change the stored opening
	f.accBal.Seed(&domain.BalanceSnapshot{EntityID: savingsAccount, Date: bizDate.AddDate(0, 0, -1), Closing: dec("5")})
	if _, err := f.accountBalance.Run(ctx, bizDate); err != nil {
		t.Fatalf("third run failed: %v", err)
	}

	snap, _ := f.accBal.Get(ctx, savingsAccount, bizDate)
	if !snap.Opening.Equal(dec("1000")) || !snap.Closing.Equal(dec("1500")) {
		t.Errorf("opening/closing = %s/%s, want 1000/1500", snap.Opening, snap.Closing)
	}
}

func TestAccountBalanceJob_ReadsSnapshotInsideWriteTransaction(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()
	ctx := context.Background()

	f.accBal.Seed(&domain.BalanceSnapshot{EntityID: savingsAccount, Date: bizDate, Currency: lcy, Opening: dec("1000")})
	f.post("T1", bizDate, "", cashGL, savingsAccount, savingsGL, dec("500"))

	var readTx, writeTx usecase.Transaction
	f.accBal.GetForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, accountNo string, date time.Time) (*domain.BalanceSnapshot, error) {
		readTx = tx
		return f.accBal.Get(ctx, accountNo, date)
	}
	var written *domain.BalanceSnapshot
	f.accBal.UpsertFunc = func(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
		writeTx = tx
		written = snapshot
		return nil
	}

	if err := f.accountBalance.UpdateAccount(ctx, savingsAccount, bizDate); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if readTx == nil || readTx != writeTx {
		t.Fatalf("snapshot read in tx %v, written in tx %v", readTx, writeTx)
	}
	if !written.Opening.Equal(dec("1000")) || !written.Closing.Equal(dec("1500")) {
		t.Errorf("opening/closing = %s/%s, want 1000/1500", written.Opening, written.Closing)
	}
}

func TestAccountBalanceJob_SnapshotReadErrorSkipsWrite(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()

	f.accBal.GetForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, accountNo string, date time.Time) (*domain.BalanceSnapshot, error) {
		return nil, errors.New("lock timeout")
	}
	f.accBal.UpsertFunc = func(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
		t.Error("snapshot must not be written after a failed read")
		return nil
	}

	if err := f.accountBalance.UpdateAccount(context.Background(), savingsAccount, bizDate); err == nil {
		t.Fatal("expected error")
	}
}

func TestAccountBalanceJob_ForeignCurrencyUsesFCYAmounts(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()
	ctx := context.Background()

	f.txns.Add(&domain.Transaction{
		ID: "FX1-1", BaseID: "FX1", TranDate: bizDate, ValueDate: bizDate,
		AccountNo: usdDeposit, GLNum: usdDepositGL, Currency: "USD", DrCr: domain.Credit,
		Status: domain.TransactionStatusVerified, FCYAmount: dec("100"), ExchangeRate: dec("110"), LCYAmount: dec("11000"),
	})

	if _, err := f.accountBalance.Run(ctx, bizDate); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap, err := f.accBal.Get(ctx, usdDeposit, bizDate)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snap.Currency != "USD" || !snap.Closing.Equal(dec("100")) {
		t.Errorf("got %s %s, want USD 100", snap.Currency, snap.Closing)
	}
}

func TestAccountBalanceJob_FailsWhenNoAccountSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()

	f.post("T1", bizDate, "", cashGL, savingsAccount, savingsGL, dec("500"))
	f.txns.ListByAccountAndDateFunc = func(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error) {
		return nil, errors.New("read timeout")
	}

	_, err := f.accountBalance.Run(context.Background(), bizDate)
	if !errors.Is(err, domain.ErrNoEntitySucceeded) {
		t.Fatalf("expected ErrNoEntitySucceeded, got %v", err)
	}
}

func TestAccountBalanceJob_PartialFailureSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()

	f.post("T1", bizDate, "", cashGL, savingsAccount, savingsGL, dec("500"))
	f.post("T2", bizDate, loanAccount, loanGL, "", cashGL, dec("300"))

	f.txns.ListByAccountAndDateFunc = func(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error) {
		if accountNo == loanAccount {
			return nil, errors.New("read timeout")
		}
		return []*domain.Transaction{}, nil
	}

	report, err := f.accountBalance.Run(context.Background(), bizDate)
	if err != nil {
		t.Fatalf("partial failure should not fail the job: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("processed/failed = %d/%d, want 1/1", report.Processed, report.Failed)
	}
}

func TestAccountBalanceJob_CalculatesValueDateInterest(t *testing.T) {
	f := newFixture(t)
	f.seedAccounts()
	ctx := context.Background()

	f.post("BV", bizDate, "", cashGL, savingsAccount, savingsGL, dec("36500"))
	for _, l := range f.txns.All() {
		l.ValueDate = bizDate.AddDate(0, 0, -10)
	}

	if _, err := f.accountBalance.Run(ctx, bizDate); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records, _ := f.vdi.ListByTranDate(ctx, bizDate)
	if len(records) != 1 {
		t.Fatalf("value date records = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.ID != "VDI-BV-2" {
		t.Errorf("id = %s, want VDI-BV-2", rec.ID)
	}
	// 36500 x (4.5 + 0.5) x 10 / 36500
	if !rec.Amount.Equal(dec("50")) || rec.GapDays != 10 {
		t.Errorf("amount/gap = %s/%d, want 50/10", rec.Amount, rec.GapDays)
	}
	if rec.OriginalDrCr != domain.Credit {
		t.Errorf("original side = %s, want C", rec.OriginalDrCr)
	}
}
