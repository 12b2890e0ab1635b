package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

func dayKey(t time.Time) string {
	return domain.FormatDay(domain.Day(t))
}

func sameDay(a, b time.Time) bool {
	return domain.Day(a).Equal(domain.Day(b))
}

// snapshotStore is an in-memory store of balance snapshots keyed by (entity, date).
type snapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]*domain.BalanceSnapshot
}

func newSnapshotStore() snapshotStore {
	return snapshotStore{snapshots: make(map[string]map[string]*domain.BalanceSnapshot)}
}

func (s *snapshotStore) put(snapshot *domain.BalanceSnapshot) {
	byDate, ok := s.snapshots[snapshot.EntityID]
	if !ok {
		byDate = make(map[string]*domain.BalanceSnapshot)
		s.snapshots[snapshot.EntityID] = byDate
	}
	cp := *snapshot
	cp.Date = domain.Day(snapshot.Date)
	byDate[dayKey(snapshot.Date)] = &cp
}

func (s *snapshotStore) get(entityID string, date time.Time) (*domain.BalanceSnapshot, bool) {
	snap, ok := s.snapshots[entityID][dayKey(date)]
	if !ok {
		return nil, false
	}
	cp := *snap
	return &cp, true
}

// Seed stores a snapshot directly.
func (s *snapshotStore) Seed(snapshot *domain.BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(snapshot)
}

// Get returns the snapshot of (entityID, date).
func (s *snapshotStore) Get(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.get(entityID, date); ok {
		return snap, nil
	}
	return nil, domain.ErrSnapshotNotFound
}

// LatestBefore returns the most recent snapshot strictly before date.
func (s *snapshotStore) LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.BalanceSnapshot
	for _, snap := range s.snapshots[entityID] {
		if !snap.Date.Before(domain.Day(date)) {
			continue
		}
		if best == nil || snap.Date.After(best.Date) {
			best = snap
		}
	}
	if best == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	cp := *best
	return &cp, nil
}

// All returns every stored snapshot of date ordered by entity.
func (s *snapshotStore) All(date time.Time) []*domain.BalanceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.BalanceSnapshot
	for entity := range s.snapshots {
		if snap, ok := s.get(entity, date); ok {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// MockAccountBalanceRepository is an in-memory AccountBalanceRepository.
type MockAccountBalanceRepository struct {
	snapshotStore

	GetForUpdateFunc func(ctx context.Context, tx usecase.Transaction, accountNo string, date time.Time) (*domain.BalanceSnapshot, error)
	UpsertFunc       func(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error
}

func NewMockAccountBalanceRepository() *MockAccountBalanceRepository {
	return &MockAccountBalanceRepository{snapshotStore: newSnapshotStore()}
}

func (m *MockAccountBalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, accountNo string, date time.Time) (*domain.BalanceSnapshot, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, tx, accountNo, date)
	}
	return m.Get(ctx, accountNo, date)
}

func (m *MockAccountBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(snapshot)
	return nil
}

func (m *MockAccountBalanceRepository) ListEntitiesByDate(ctx context.Context, date time.Time) ([]string, error) {
	var ids []string
	for _, snap := range m.All(date) {
		ids = append(ids, snap.EntityID)
	}
	return ids, nil
}

func (m *MockAccountBalanceRepository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	return len(m.All(date)), nil
}

// MockAccrualBalanceRepository is an in-memory AccrualBalanceRepository.
type MockAccrualBalanceRepository struct {
	snapshotStore
}

func NewMockAccrualBalanceRepository() *MockAccrualBalanceRepository {
	return &MockAccrualBalanceRepository{snapshotStore: newSnapshotStore()}
}

func (m *MockAccrualBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(snapshot)
	return nil
}

// MockGLBalanceRepository is an in-memory GLBalanceRepository.
type MockGLBalanceRepository struct {
	snapshotStore

	Deleted []string

	CreateFunc func(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error
}

func NewMockGLBalanceRepository() *MockGLBalanceRepository {
	return &MockGLBalanceRepository{snapshotStore: newSnapshotStore()}
}

func (m *MockGLBalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, glNum string, date time.Time) (*domain.BalanceSnapshot, error) {
	return m.Get(ctx, glNum, date)
}

func (m *MockGLBalanceRepository) Create(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, tx, snapshot); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(snapshot.EntityID, snapshot.Date); ok {
		return domain.ErrDuplicateKey
	}
	m.put(snapshot)
	return nil
}

func (m *MockGLBalanceRepository) Update(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(snapshot)
	return nil
}

func (m *MockGLBalanceRepository) Delete(ctx context.Context, glNum string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots[glNum], dayKey(date))
	m.Deleted = append(m.Deleted, glNum)
	return nil
}

func (m *MockGLBalanceRepository) SumLatestClosing(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for gl := range m.entities() {
		if snap, err := m.Get(ctx, gl, date); err == nil {
			total = total.Add(snap.Closing)
			continue
		}
		if snap, err := m.LatestBefore(ctx, gl, date); err == nil {
			total = total.Add(snap.Closing)
		}
	}
	return total, nil
}

func (m *MockGLBalanceRepository) entities() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.snapshots))
	for gl := range m.snapshots {
		out[gl] = struct{}{}
	}
	return out
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu    sync.RWMutex
	lines []*domain.Transaction

	ListByAccountAndDateFunc func(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

// Add stores lines directly.
func (m *MockTransactionRepository) Add(lines ...*domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, lines...)
}

// All returns every stored line.
func (m *MockTransactionRepository) All() []*domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Transaction(nil), m.lines...)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, line *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ID == line.ID {
			return domain.ErrDuplicateKey
		}
	}
	m.lines = append(m.lines, line)
	return nil
}

func (m *MockTransactionRepository) ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[string]struct{})
	for _, l := range m.lines {
		if l.AccountNo != "" && sameDay(l.TranDate, date) {
			set[l.AccountNo] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockTransactionRepository) ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error) {
	if m.ListByAccountAndDateFunc != nil {
		return m.ListByAccountAndDateFunc(ctx, accountNo, date)
	}
	return m.filter(func(l *domain.Transaction) bool {
		return l.AccountNo == accountNo && sameDay(l.TranDate, date)
	}), nil
}

func (m *MockTransactionRepository) ListVerifiedByDate(ctx context.Context, date time.Time) ([]*domain.Transaction, error) {
	return m.filter(func(l *domain.Transaction) bool {
		return l.IsVerified() && sameDay(l.TranDate, date)
	}), nil
}

func (m *MockTransactionRepository) ListBackValued(ctx context.Context, date time.Time) ([]*domain.Transaction, error) {
	return m.filter(func(l *domain.Transaction) bool {
		return l.IsVerified() && l.AccountNo != "" && sameDay(l.TranDate, date) && l.IsBackValued()
	}), nil
}

func (m *MockTransactionRepository) filter(keep func(*domain.Transaction) bool) []*domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, l := range m.lines {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// MockGLMovementRepository is an in-memory GLMovementRepository.
type MockGLMovementRepository struct {
	mu        sync.RWMutex
	movements map[string]*domain.GLMovement
}

func NewMockGLMovementRepository() *MockGLMovementRepository {
	return &MockGLMovementRepository{movements: make(map[string]*domain.GLMovement)}
}

func (m *MockGLMovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.GLMovement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movements[movement.ID]; ok {
		return false, nil
	}
	cp := *movement
	m.movements[movement.ID] = &cp
	return true, nil
}

// All returns every stored movement ordered by id.
func (m *MockGLMovementRepository) All() []*domain.GLMovement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.GLMovement, 0, len(m.movements))
	for _, mv := range m.movements {
		out = append(out, mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockGLMovementRepository) ListGLNumsByDate(ctx context.Context, stream domain.MovementStream, date time.Time) ([]string, error) {
	set := make(map[string]struct{})
	for _, mv := range m.All() {
		if mv.Stream == stream && sameDay(mv.TranDate, date) {
			set[mv.GLNum] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for gl := range set {
		out = append(out, gl)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockGLMovementRepository) Totals(ctx context.Context, stream domain.MovementStream, glNum string, date time.Time) (domain.MovementTotals, error) {
	totals := domain.MovementTotals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, mv := range m.All() {
		if mv.Stream != stream || mv.GLNum != glNum || !sameDay(mv.TranDate, date) {
			continue
		}
		if mv.DrCr == domain.Debit {
			totals.Debit = totals.Debit.Add(mv.LCYAmount)
		} else {
			totals.Credit = totals.Credit.Add(mv.LCYAmount)
		}
	}
	return totals, nil
}

// MockInterestAccrualRepository is an in-memory InterestAccrualRepository.
type MockInterestAccrualRepository struct {
	mu       sync.RWMutex
	accruals map[string]*domain.InterestAccrual
}

func NewMockInterestAccrualRepository() *MockInterestAccrualRepository {
	return &MockInterestAccrualRepository{accruals: make(map[string]*domain.InterestAccrual)}
}

func (m *MockInterestAccrualRepository) Upsert(ctx context.Context, tx usecase.Transaction, accrual *domain.InterestAccrual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *accrual
	if existing, ok := m.accruals[accrual.ID]; ok && existing.Status == domain.AccrualStatusPosted {
		cp.Status = domain.AccrualStatusPosted
	}
	m.accruals[accrual.ID] = &cp
	return nil
}

// All returns every stored accrual ordered by id.
func (m *MockInterestAccrualRepository) All() []*domain.InterestAccrual {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.InterestAccrual, 0, len(m.accruals))
	for _, a := range m.accruals {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockInterestAccrualRepository) ListPendingByDate(ctx context.Context, date time.Time) ([]*domain.InterestAccrual, error) {
	var out []*domain.InterestAccrual
	for _, a := range m.All() {
		if a.Status == domain.AccrualStatusPending && sameDay(a.AccrualDate, date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockInterestAccrualRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accruals[id]
	if !ok {
		return fmt.Errorf("accrual %s not found", id)
	}
	a.Status = domain.AccrualStatusPosted
	return nil
}

func (m *MockInterestAccrualRepository) ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error) {
	set := make(map[string]struct{})
	for _, a := range m.All() {
		if sameDay(a.AccrualDate, date) {
			set[a.AccountNo] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockInterestAccrualRepository) ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.InterestAccrual, error) {
	var out []*domain.InterestAccrual
	for _, a := range m.All() {
		if a.AccountNo == accountNo && sameDay(a.AccrualDate, date) {
			out = append(out, a)
		}
	}
	return out, nil
}

// MockValueDateInterestRepository is an in-memory ValueDateInterestRepository.
type MockValueDateInterestRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ValueDateInterest
}

func NewMockValueDateInterestRepository() *MockValueDateInterestRepository {
	return &MockValueDateInterestRepository{records: make(map[string]*domain.ValueDateInterest)}
}

func (m *MockValueDateInterestRepository) Upsert(ctx context.Context, tx usecase.Transaction, record *domain.ValueDateInterest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

func (m *MockValueDateInterestRepository) ListByTranDate(ctx context.Context, date time.Time) ([]*domain.ValueDateInterest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ValueDateInterest
	for _, r := range m.records {
		if sameDay(r.TranDate, date) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockAccountMasterRepository is an in-memory AccountMasterRepository.
type MockAccountMasterRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.AccountInfo
	offices   map[string]*domain.AccountInfo

	ProductGLs []string
}

func NewMockAccountMasterRepository() *MockAccountMasterRepository {
	return &MockAccountMasterRepository{
		customers: make(map[string]*domain.AccountInfo),
		offices:   make(map[string]*domain.AccountInfo),
	}
}

// AddCustomer registers a customer account.
func (m *MockAccountMasterRepository) AddCustomer(info *domain.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.Kind = domain.AccountKindCustomer
	m.customers[info.AccountNo] = info
}

// AddOffice registers an office account.
func (m *MockAccountMasterRepository) AddOffice(info *domain.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.Kind = domain.AccountKindOffice
	m.offices[info.AccountNo] = info
}

func (m *MockAccountMasterRepository) GetCustomerAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.customers[accountNo]; ok {
		return info, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountMasterRepository) GetOfficeAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.offices[accountNo]; ok {
		return info, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountMasterRepository) ListInterestBearing(ctx context.Context) ([]*domain.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AccountInfo
	for _, info := range m.customers {
		if info.Interest.Bearing && info.Active {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNo < out[j].AccountNo })
	return out, nil
}

func (m *MockAccountMasterRepository) ListProductGLs(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.ProductGLs...), nil
}

func (m *MockAccountMasterRepository) ListForeignCurrencyAccounts(ctx context.Context, localCurrency string) ([]*domain.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AccountInfo
	for _, set := range []map[string]*domain.AccountInfo{m.customers, m.offices} {
		for _, info := range set {
			if info.IsForeignCurrency(localCurrency) && info.Active {
				out = append(out, info)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNo < out[j].AccountNo })
	return out, nil
}

type datedRate struct {
	date time.Time
	rate decimal.Decimal
}

// MockRateRepository is an in-memory RateRepository.
type MockRateRepository struct {
	mu       sync.RWMutex
	interest map[string][]datedRate
	mid      map[string][]datedRate
}

func NewMockRateRepository() *MockRateRepository {
	return &MockRateRepository{
		interest: make(map[string][]datedRate),
		mid:      make(map[string][]datedRate),
	}
}

// SetInterestRate records a rate effective from date.
func (m *MockRateRepository) SetInterestRate(code string, date time.Time, rate decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interest[code] = append(m.interest[code], datedRate{date: domain.Day(date), rate: rate})
}

// SetMidRate records a mid rate effective from date.
func (m *MockRateRepository) SetMidRate(currency string, date time.Time, rate decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mid[currency] = append(m.mid[currency], datedRate{date: domain.Day(date), rate: rate})
}

func latestRate(rates []datedRate, date time.Time) (decimal.Decimal, error) {
	var best *datedRate
	for i := range rates {
		r := &rates[i]
		if r.date.After(domain.Day(date)) {
			continue
		}
		if best == nil || !r.date.Before(best.date) {
			best = r
		}
	}
	if best == nil {
		return decimal.Zero, domain.ErrRateNotFound
	}
	return best.rate, nil
}

func (m *MockRateRepository) LatestInterestRate(ctx context.Context, rateCode string, date time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latestRate(m.interest[rateCode], date)
}

func (m *MockRateRepository) MidRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latestRate(m.mid[currency], date)
}

// MockWAERepository is an in-memory WAERepository.
type MockWAERepository struct {
	mu     sync.RWMutex
	states map[string]*domain.WAEState
}

func NewMockWAERepository() *MockWAERepository {
	return &MockWAERepository{states: make(map[string]*domain.WAEState)}
}

func (m *MockWAERepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, pair domain.CurrencyPair) (*domain.WAEState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[pair.String()]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrWAEStateNotFound
}

func (m *MockWAERepository) Save(ctx context.Context, tx usecase.Transaction, state *domain.WAEState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.Pair.String()] = &cp
	return nil
}

// MockSettlementRepository is an in-memory SettlementRepository.
type MockSettlementRepository struct {
	mu      sync.RWMutex
	Records []*domain.SettlementRecord
}

func NewMockSettlementRepository() *MockSettlementRepository {
	return &MockSettlementRepository{}
}

func (m *MockSettlementRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	return nil
}

// MockRevaluationRepository is an in-memory RevaluationRepository. Set
// Movements to the store the legs are written to.
type MockRevaluationRepository struct {
	mu        sync.RWMutex
	records   map[string]*domain.RevaluationRecord
	Movements *MockGLMovementRepository
}

func NewMockRevaluationRepository() *MockRevaluationRepository {
	return &MockRevaluationRepository{records: make(map[string]*domain.RevaluationRecord)}
}

func (m *MockRevaluationRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.RevaluationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

// All returns every record ordered by date and entity.
func (m *MockRevaluationRepository) All() []*domain.RevaluationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.RevaluationRecord, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RevalDate.Equal(out[j].RevalDate) {
			return out[i].RevalDate.Before(out[j].RevalDate)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

func (m *MockRevaluationRepository) Exists(ctx context.Context, entityID string, date time.Time) (bool, error) {
	for _, r := range m.All() {
		if r.EntityID == entityID && sameDay(r.RevalDate, date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRevaluationRepository) LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.RevaluationRecord, error) {
	var best *domain.RevaluationRecord
	for _, r := range m.All() {
		if r.EntityID == entityID && r.RevalDate.Before(domain.Day(date)) {
			best = r
		}
	}
	return best, nil
}

func (m *MockRevaluationRepository) ListPostedBefore(ctx context.Context, date time.Time) ([]*domain.RevaluationRecord, error) {
	var out []*domain.RevaluationRecord
	for _, r := range m.All() {
		if r.Status == domain.RevaluationPosted && r.RevalDate.Before(domain.Day(date)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRevaluationRepository) ListGLNumsBookedOn(ctx context.Context, date time.Time) ([]string, error) {
	if m.Movements == nil {
		return nil, nil
	}
	m.mu.RLock()
	ids := make(map[string]struct{}, len(m.records))
	for id := range m.records {
		ids[id] = struct{}{}
	}
	m.mu.RUnlock()

	set := make(map[string]struct{})
	for _, mv := range m.Movements.All() {
		if _, ok := ids[mv.Reference]; ok && sameDay(mv.TranDate, date) {
			set[mv.GLNum] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for gl := range set {
		out = append(out, gl)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockRevaluationRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("revaluation %s not found", id)
	}
	r.Status = domain.RevaluationReversed
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	mu      sync.Mutex
	Commits int

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{
		CommitFunc: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.Commits++
			return nil
		},
	}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%04d", m.counter)
}

// MemoryJobLog is an in-memory JobLogRepository.
type MemoryJobLog struct {
	mu   sync.RWMutex
	logs []*domain.JobExecutionLog
}

func NewMemoryJobLog() *MemoryJobLog {
	return &MemoryJobLog{}
}

func (m *MemoryJobLog) Create(ctx context.Context, log *domain.JobExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *MemoryJobLog) Update(ctx context.Context, log *domain.JobExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.logs {
		if l.ID == log.ID {
			cp := *log
			m.logs[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("job log %s not found", log.ID)
}

func (m *MemoryJobLog) Latest(ctx context.Context, jobNumber int) (*domain.JobExecutionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].JobNumber == jobNumber {
			cp := *m.logs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// All returns every attempt in insertion order.
func (m *MemoryJobLog) All() []*domain.JobExecutionLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.JobExecutionLog(nil), m.logs...)
}

// MemoryClock is an in-memory BusinessClock.
type MemoryClock struct {
	mu    sync.Mutex
	today time.Time
}

func NewMemoryClock(today time.Time) *MemoryClock {
	return &MemoryClock{today: domain.Day(today)}
}

func (c *MemoryClock) Today(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today, nil
}

func (c *MemoryClock) Advance(ctx context.Context, from time.Time) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.today.Equal(domain.Day(from)) {
		return time.Time{}, fmt.Errorf("%w: expected %s", domain.ErrBusinessDateMoved, domain.FormatDay(from))
	}
	c.today = c.today.AddDate(0, 0, 1)
	return c.today, nil
}

// MemoryOutbox is an in-memory OutboxRepository.
type MemoryOutbox struct {
	mu     sync.RWMutex
	Events []*domain.OutboxEvent
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (m *MemoryOutbox) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MemoryOutbox) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryOutbox) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Published = true
			t := publishedAt
			e.PublishedAt = &t
		}
	}
	return nil
}

// EventTypes returns the type of every event in order.
func (m *MemoryOutbox) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.EventType)
	}
	return out
}
