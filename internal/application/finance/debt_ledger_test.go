package finance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cas-inventory/backend/internal/domain/finance"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryStore is a minimal CollectionStore for ledger tests
type memoryStore struct {
	mu      sync.Mutex
	data    map[shared.Collection][]json.RawMessage
	batches []shared.Batch
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[shared.Collection][]json.RawMessage)}
}

func (s *memoryStore) Load(_ context.Context, c shared.Collection) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage{}, s.data[c]...), nil
}

func (s *memoryStore) Save(ctx context.Context, c shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{c: records})
}

func (s *memoryStore) SaveBatch(_ context.Context, batch shared.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, records := range batch {
		s.data[c] = records
	}
	s.batches = append(s.batches, batch)
	return nil
}

// mockStore is a testify mock of CollectionStore
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, c shared.Collection) ([]json.RawMessage, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, c shared.Collection, records []json.RawMessage) error {
	args := m.Called(ctx, c, records)
	return args.Error(0)
}

func (m *mockStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

var ledgerNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return ledgerNow }

func newTestLedger(t *testing.T, store shared.CollectionStore) *DebtLedger {
	t.Helper()
	ledger, err := NewDebtLedger(context.Background(), store, WithClock(fixedClock))
	require.NoError(t, err)
	return ledger
}

func amaInput() AddDebtorInput {
	return AddDebtorInput{
		Name:      "Ama",
		Contact:   "0241234567",
		Category:  "Women",
		Item:      "Dress",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("50.00"),
	}
}

// ==================== AddDebtor Tests ====================

func TestDebtLedger_AddDebtor(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	assert.Equal(t, "100.00", debtor.TotalOwed.StringFixed(2))
	assert.True(t, debtor.AmountPaid.IsZero())
	assert.Len(t, ledger.ListActive(ctx, ""), 1)

	persisted, err := shared.LoadRecords[finance.Debtor](ctx, store, shared.CollectionDebtors)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, debtor.ID, persisted[0].ID)
}

func TestDebtLedger_AddDebtor_ValidationDoesNotPersist(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	input := amaInput()
	input.Quantity = 0

	_, err := ledger.AddDebtor(context.Background(), input)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, store.batches)
	assert.Empty(t, ledger.ListActive(context.Background(), ""))
}

// ==================== RecordPayment Tests ====================

func TestDebtLedger_RecordPayment_Scenario(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	result, err := ledger.RecordPayment(ctx, debtor.ID, decimal.RequireFromString("40.00"), finance.PaymentKindPartial)
	require.NoError(t, err)
	assert.Equal(t, "60.00", result.NewBalance.StringFixed(2))
	assert.False(t, result.Archived)
	assert.Nil(t, result.PaidAt)

	_, err = ledger.RecordPayment(ctx, debtor.ID, decimal.RequireFromString("150.00"), finance.PaymentKindPartial)
	assert.ErrorIs(t, err, shared.ErrOverpayment)
	current, err := ledger.Get(ctx, debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", current.AmountPaid.StringFixed(2))

	result, err = ledger.RecordPayment(ctx, debtor.ID, decimal.RequireFromString("60.00"), finance.PaymentKindFull)
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.NewBalance.StringFixed(2))
	assert.True(t, result.Archived)
	require.NotNil(t, result.PaidAt)

	assert.Empty(t, ledger.ListActive(ctx, ""))
	paid := ledger.ListPaid(ctx, "")
	require.Len(t, paid, 1)
	assert.Equal(t, debtor.ID, paid[0].ID)
	assert.Equal(t, ledgerNow, paid[0].PaidAt)
	assert.Len(t, paid[0].PaymentHistory, 2)
}

func TestDebtLedger_RecordPayment_ArchivalIsOneBatch(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	_, err = ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(100), finance.PaymentKindFull)
	require.NoError(t, err)

	last := store.batches[len(store.batches)-1]
	assert.Contains(t, last, shared.CollectionDebtors)
	assert.Contains(t, last, shared.CollectionPaidDebtors)

	active, err := shared.LoadRecords[finance.Debtor](ctx, store, shared.CollectionDebtors)
	require.NoError(t, err)
	archived, err := shared.LoadRecords[finance.PaidDebtor](ctx, store, shared.CollectionPaidDebtors)
	require.NoError(t, err)
	assert.Empty(t, active)
	require.Len(t, archived, 1)
	assert.False(t, archived[0].PaidAt.IsZero())
}

func TestDebtLedger_RecordPayment_PartialClearingBalanceArchives(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()
	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	result, err := ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(100), finance.PaymentKindPartial)
	require.NoError(t, err)
	assert.True(t, result.Archived)
	assert.Empty(t, ledger.ListActive(ctx, ""))
}

func TestDebtLedger_RecordPayment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		id      func(existing uuid.UUID) uuid.UUID
		amount  string
		kind    finance.PaymentKind
		wantErr error
	}{
		{"unknown debtor", func(uuid.UUID) uuid.UUID { return uuid.New() }, "10", finance.PaymentKindPartial, shared.ErrNotFound},
		{"not found checked before amount", func(uuid.UUID) uuid.UUID { return uuid.New() }, "0", finance.PaymentKindPartial, shared.ErrNotFound},
		{"zero amount", func(id uuid.UUID) uuid.UUID { return id }, "0", finance.PaymentKindPartial, shared.ErrValidation},
		{"overpayment", func(id uuid.UUID) uuid.UUID { return id }, "100.01", finance.PaymentKindPartial, shared.ErrOverpayment},
		{"full below balance", func(id uuid.UUID) uuid.UUID { return id }, "99.99", finance.PaymentKindFull, shared.ErrInconsistentKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			ledger := newTestLedger(t, store)
			ctx := context.Background()
			debtor, err := ledger.AddDebtor(ctx, amaInput())
			require.NoError(t, err)
			savesBefore := len(store.batches)

			result, err := ledger.RecordPayment(ctx, tt.id(debtor.ID), decimal.RequireFromString(tt.amount), tt.kind)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, savesBefore, len(store.batches))

			after, err := ledger.Get(ctx, debtor.ID)
			require.NoError(t, err)
			assert.True(t, after.AmountPaid.IsZero())
			assert.Empty(t, after.PaymentHistory)
		})
	}
}

func TestDebtLedger_RecordPayment_PersistenceFailureLeavesStateUnchanged(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, mock.Anything).Return([]json.RawMessage{}, nil)
	store.On("SaveBatch", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("SaveBatch", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	ledger := newTestLedger(t, store)
	ctx := context.Background()
	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	_, err = ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(100), finance.PaymentKindFull)
	assert.ErrorIs(t, err, shared.ErrPersistence)

	active := ledger.ListActive(ctx, "")
	require.Len(t, active, 1)
	assert.True(t, active[0].AmountPaid.IsZero())
	assert.Empty(t, ledger.ListPaid(ctx, ""))
	store.AssertExpectations(t)
}

func TestDebtLedger_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()
	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := decimal.Zero
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(3), finance.PaymentKindPartial); err == nil {
				mu.Lock()
				accepted = accepted.Add(decimal.NewFromInt(3))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "99", accepted.String())
	current, err := ledger.Get(ctx, debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, "99", current.AmountPaid.String())
	assert.Equal(t, "1.00", ledger.TotalOutstanding(ctx).StringFixed(2))
}

// ==================== Read accessor Tests ====================

func TestDebtLedger_ListActive_FilterAndOrder(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	names := []string{"Kofi", "Ama", "Akosua"}
	for _, name := range names {
		input := amaInput()
		input.Name = name
		_, err := ledger.AddDebtor(ctx, input)
		require.NoError(t, err)
	}

	all := ledger.ListActive(ctx, "")
	require.Len(t, all, 3)
	for i, name := range names {
		assert.Equal(t, name, all[i].Name)
	}

	filtered := ledger.ListActive(ctx, "A")
	require.Len(t, filtered, 2)
	assert.Equal(t, "Ama", filtered[0].Name)
	assert.Equal(t, "Akosua", filtered[1].Name)

	assert.Len(t, ledger.ListActive(ctx, "0241"), 3)
	assert.Empty(t, ledger.ListActive(ctx, "shoes"))
}

func TestDebtLedger_ReadsAreIdempotentAndIsolated(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()
	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)
	_, err = ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(25), finance.PaymentKindPartial)
	require.NoError(t, err)

	first := ledger.ListActive(ctx, "")
	second := ledger.ListActive(ctx, "")
	assert.Equal(t, first, second)
	assert.True(t, ledger.TotalOutstanding(ctx).Equal(ledger.TotalOutstanding(ctx)))

	first[0].Name = "Changed"
	first[0].PaymentHistory[0].Amount = decimal.NewFromInt(99)
	third := ledger.ListActive(ctx, "")
	assert.Equal(t, "Ama", third[0].Name)
	assert.Equal(t, "25", third[0].PaymentHistory[0].Amount.String())
}

func TestDebtLedger_TotalOutstanding(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	first, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)
	second := amaInput()
	second.Quantity = 1
	second.UnitPrice = decimal.RequireFromString("19.99")
	_, err = ledger.AddDebtor(ctx, second)
	require.NoError(t, err)

	_, err = ledger.RecordPayment(ctx, first.ID, decimal.RequireFromString("40"), finance.PaymentKindPartial)
	require.NoError(t, err)

	assert.Equal(t, "79.99", ledger.TotalOutstanding(ctx).StringFixed(2))
	assert.Equal(t, 2, ledger.ActiveCount(ctx))
}

func TestDebtLedger_LoadsExistingState(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first := newTestLedger(t, store)
	debtor, err := first.AddDebtor(ctx, amaInput())
	require.NoError(t, err)
	_, err = first.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(30), finance.PaymentKindPartial)
	require.NoError(t, err)

	reloaded := newTestLedger(t, store)
	active := reloaded.ListActive(ctx, "")
	require.Len(t, active, 1)
	assert.Equal(t, "70.00", active[0].Balance().StringFixed(2))
	assert.Len(t, active[0].PaymentHistory, 1)
}

func TestDebtLedger_NotifiesListeners(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()
	calls := 0
	ledger.OnChange(func(context.Context) { calls++ })

	debtor, err := ledger.AddDebtor(ctx, amaInput())
	require.NoError(t, err)
	_, err = ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(500), finance.PaymentKindPartial)
	require.Error(t, err)

	assert.Equal(t, 1, calls, "rejected operations do not notify")
}

// ==================== Store lock Tests ====================

// sharedLock is an in-process shared.Locker standing in for the Redis lock
type sharedLock struct {
	slot chan struct{}
}

func newSharedLock() *sharedLock {
	return &sharedLock{slot: make(chan struct{}, 1)}
}

func (l *sharedLock) Acquire(ctx context.Context, _ string) (func(), error) {
	select {
	case l.slot <- struct{}{}:
		return func() { <-l.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newSharedLedger(t *testing.T, store shared.CollectionStore, lock shared.Locker) *DebtLedger {
	t.Helper()
	ledger, err := NewDebtLedger(context.Background(), store, WithClock(fixedClock), WithStoreLock(lock, time.Second))
	require.NoError(t, err)
	return ledger
}

func TestDebtLedger_StoreLockKeepsInstancesInStep(t *testing.T) {
	store := newMemoryStore()
	lock := newSharedLock()
	ctx := context.Background()
	a := newSharedLedger(t, store, lock)
	b := newSharedLedger(t, store, lock)

	debtor, err := a.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	_, err = b.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(30), finance.PaymentKindPartial)
	require.NoError(t, err, "b sees the debtor a added")
	_, err = a.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(20), finance.PaymentKindPartial)
	require.NoError(t, err)

	reloaded := newTestLedger(t, store)
	current, err := reloaded.Get(ctx, debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", current.AmountPaid.StringFixed(2), "neither payment is lost")
	assert.Len(t, current.PaymentHistory, 2)
	assert.Equal(t, "50.00", b.TotalOutstanding(ctx).StringFixed(2))
}

func TestDebtLedger_StoreLockPreventsOverpaymentAcrossInstances(t *testing.T) {
	store := newMemoryStore()
	lock := newSharedLock()
	ctx := context.Background()
	a := newSharedLedger(t, store, lock)
	b := newSharedLedger(t, store, lock)
	debtor, err := a.AddDebtor(ctx, amaInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := decimal.Zero
	for i := range 40 {
		ledger := a
		if i%2 == 1 {
			ledger = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.RecordPayment(ctx, debtor.ID, decimal.NewFromInt(3), finance.PaymentKindPartial); err == nil {
				mu.Lock()
				accepted = accepted.Add(decimal.NewFromInt(3))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "99", accepted.String())
	current, err := newTestLedger(t, store).Get(ctx, debtor.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.00", current.AmountPaid.StringFixed(2))
}

func TestDebtLedger_StoreLockTimeout(t *testing.T) {
	store := newMemoryStore()
	lock := newSharedLock()
	ctx := context.Background()
	ledger, err := NewDebtLedger(ctx, store, WithStoreLock(lock, 10*time.Millisecond))
	require.NoError(t, err)

	release, err := lock.Acquire(ctx, storeLockKey)
	require.NoError(t, err)
	defer release()

	_, err = ledger.AddDebtor(ctx, amaInput())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, store.batches)
}
