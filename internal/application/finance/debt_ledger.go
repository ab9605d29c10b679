package finance

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/domain/finance"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DebtLedger owns the active debtors and the paid archive.
// All operations are serialized by one mutex. State changes are persisted before they
// become visible; a failed write leaves the in-memory state as it was.
type DebtLedger struct {
	mu        sync.Mutex
	store     shared.CollectionStore
	logger    *zap.Logger
	clock     shared.Clock
	listeners []shared.ChangeListener
	storeLock shared.Locker
	lockWait  time.Duration

	active []finance.Debtor
	paid   []finance.PaidDebtor
}

// DebtLedgerOption is a functional option for configuring DebtLedger
type DebtLedgerOption func(*DebtLedger)

// WithLogger sets the ledger logger
func WithLogger(logger *zap.Logger) DebtLedgerOption {
	return func(l *DebtLedger) {
		l.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(clock shared.Clock) DebtLedgerOption {
	return func(l *DebtLedger) {
		l.clock = clock
	}
}

// WithStoreLock lets several instances share one store. Mutations hold locker's
// lock for the ledger and reload both collections before changing them, and reads
// reload so they see other instances' writes. wait bounds how long a mutation
// waits for the lock.
func WithStoreLock(locker shared.Locker, wait time.Duration) DebtLedgerOption {
	return func(l *DebtLedger) {
		l.storeLock = locker
		if wait > 0 {
			l.lockWait = wait
		}
	}
}

const storeLockKey = "ledger:debts"

// NewDebtLedger creates a DebtLedger and loads its collections from the store
func NewDebtLedger(ctx context.Context, store shared.CollectionStore, opts ...DebtLedgerOption) (*DebtLedger, error) {
	l := &DebtLedger{
		store:    store,
		logger:   zap.NewNop(),
		clock:    shared.SystemClock,
		lockWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("debt_ledger")

	if err := l.reload(ctx); err != nil {
		return nil, err
	}

	l.logger.Info("Debt ledger loaded",
		zap.Int("active", len(l.active)),
		zap.Int("paid", len(l.paid)),
		zap.Bool("shared", l.storeLock != nil),
	)
	return l, nil
}

// OnChange registers a listener called after every persisted mutation
func (l *DebtLedger) OnChange(listener shared.ChangeListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// AddDebtorInput contains input for admitting a debtor
type AddDebtorInput = finance.NewDebtorInput

// AddDebtor validates and appends a new debtor to the active collection
func (l *DebtLedger) AddDebtor(ctx context.Context, input AddDebtorInput) (*finance.Debtor, error) {
	debtor, err := l.addDebtor(ctx, input)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return debtor, nil
}

func (l *DebtLedger) addDebtor(ctx context.Context, input AddDebtorInput) (*finance.Debtor, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	debtor, err := finance.NewDebtor(input, l.clock())
	if err != nil {
		return nil, err
	}

	next := append(slices.Clone(l.active), *debtor)
	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionDebtors, next); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.active = next

	l.logger.Info("Debtor added",
		zap.String("debtor_id", debtor.ID.String()),
		zap.String("total_owed", debtor.TotalOwed.StringFixed(2)),
	)
	result := debtor.Clone()
	return &result, nil
}

// PaymentResult is the outcome of RecordPayment
type PaymentResult struct {
	NewBalance decimal.Decimal
	Archived   bool
	Payment    finance.Payment
	// Debtor is the debtor after the payment; when Archived it is the archived copy.
	Debtor finance.Debtor
	PaidAt *time.Time
}

// RecordPayment applies a payment to an active debtor. A payment that leaves nothing
// owed moves the debtor to the paid archive; both collections are written in one batch.
func (l *DebtLedger) RecordPayment(ctx context.Context, debtorID uuid.UUID, amount decimal.Decimal, kind finance.PaymentKind) (*PaymentResult, error) {
	result, err := l.recordPayment(ctx, debtorID, amount, kind)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return result, nil
}

func (l *DebtLedger) recordPayment(ctx context.Context, debtorID uuid.UUID, amount decimal.Decimal, kind finance.PaymentKind) (*PaymentResult, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	idx := l.indexOf(debtorID)
	if idx < 0 {
		return nil, shared.NewNotFoundError("Debtor", debtorID.String())
	}

	now := l.clock()
	debtor := l.active[idx].Clone()
	payment, err := debtor.ApplyPayment(amount, kind, now)
	if err != nil {
		return nil, err
	}

	archive := debtor.IsPaid() || kind == finance.PaymentKindFull
	nextActive := slices.Clone(l.active)
	nextPaid := l.paid
	batch := shared.Batch{}

	if archive {
		nextActive = slices.Delete(nextActive, idx, idx+1)
		nextPaid = append(slices.Clone(l.paid), debtor.Archive(now))
		if err := shared.PutRecords(batch, shared.CollectionPaidDebtors, nextPaid); err != nil {
			return nil, shared.NewPersistenceError(err)
		}
	} else {
		nextActive[idx] = debtor
	}
	if err := shared.PutRecords(batch, shared.CollectionDebtors, nextActive); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.active = nextActive
	l.paid = nextPaid

	result := &PaymentResult{
		NewBalance: debtor.Balance(),
		Archived:   archive,
		Payment:    *payment,
		Debtor:     debtor.Clone(),
	}
	if archive {
		result.NewBalance = decimal.Zero
		result.PaidAt = &now
	}

	l.logger.Info("Payment recorded",
		zap.String("debtor_id", debtorID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("kind", kind.String()),
		zap.String("balance", result.NewBalance.StringFixed(2)),
		zap.Bool("archived", archive),
	)
	return result, nil
}

// ListActive returns active debtors in insertion order, optionally filtered by a
// case-insensitive substring of name, contact or item.
func (l *DebtLedger) ListActive(ctx context.Context, filter string) []finance.Debtor {
	l.view(ctx)
	defer l.mu.Unlock()

	result := make([]finance.Debtor, 0, len(l.active))
	for i := range l.active {
		if l.active[i].Matches(filter) {
			result = append(result, l.active[i].Clone())
		}
	}
	return result
}

// ListPaid returns the paid archive in archival order, with the same filter as ListActive
func (l *DebtLedger) ListPaid(ctx context.Context, filter string) []finance.PaidDebtor {
	l.view(ctx)
	defer l.mu.Unlock()

	result := make([]finance.PaidDebtor, 0, len(l.paid))
	for i := range l.paid {
		if l.paid[i].Matches(filter) {
			result = append(result, l.paid[i].Clone())
		}
	}
	return result
}

// Get returns an active debtor by id
func (l *DebtLedger) Get(ctx context.Context, debtorID uuid.UUID) (*finance.Debtor, error) {
	l.view(ctx)
	defer l.mu.Unlock()

	idx := l.indexOf(debtorID)
	if idx < 0 {
		return nil, shared.NewNotFoundError("Debtor", debtorID.String())
	}
	debtor := l.active[idx].Clone()
	return &debtor, nil
}

// TotalOutstanding sums the balances of all active debtors
func (l *DebtLedger) TotalOutstanding(ctx context.Context) decimal.Decimal {
	l.view(ctx)
	defer l.mu.Unlock()

	total := valueobject.Zero(valueobject.GHS)
	for i := range l.active {
		total = total.MustAdd(valueobject.NewMoneyGHS(l.active[i].Balance()))
	}
	return total.Amount()
}

// ActiveCount returns the number of active debtors
func (l *DebtLedger) ActiveCount(ctx context.Context) int {
	l.view(ctx)
	defer l.mu.Unlock()
	return len(l.active)
}

func (l *DebtLedger) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(l.active, func(d finance.Debtor) bool {
		return d.ID == id
	})
}

// acquire locks the ledger for a mutation. With a store lock it also takes the
// shared lock and reloads, so the mutation starts from the latest stored state.
func (l *DebtLedger) acquire(ctx context.Context) (func(), error) {
	if l.storeLock == nil {
		l.mu.Lock()
		return l.mu.Unlock, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	release, err := l.storeLock.Acquire(lockCtx, storeLockKey)
	cancel()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	if err := l.reload(ctx); err != nil {
		l.mu.Unlock()
		release()
		return nil, shared.NewPersistenceError(err)
	}
	return func() {
		l.mu.Unlock()
		release()
	}, nil
}

// view locks the ledger for a read; the caller unlocks mu
func (l *DebtLedger) view(ctx context.Context) {
	l.mu.Lock()
	if l.storeLock == nil {
		return
	}
	if err := l.reload(ctx); err != nil {
		l.logger.Warn("Reload failed, serving the last loaded debtors", zap.Error(err))
	}
}

func (l *DebtLedger) reload(ctx context.Context) error {
	active, err := shared.LoadRecords[finance.Debtor](ctx, l.store, shared.CollectionDebtors)
	if err != nil {
		return err
	}
	paid, err := shared.LoadRecords[finance.PaidDebtor](ctx, l.store, shared.CollectionPaidDebtors)
	if err != nil {
		return err
	}
	l.active, l.paid = active, paid
	return nil
}

func (l *DebtLedger) persist(ctx context.Context, batch shared.Batch) error {
	if err := l.store.SaveBatch(ctx, batch); err != nil {
		l.logger.Error("Failed to persist debt ledger", zap.Error(err))
		return shared.NewPersistenceError(err)
	}
	return nil
}

func (l *DebtLedger) notify(ctx context.Context) {
	l.mu.Lock()
	listeners := slices.Clone(l.listeners)
	l.mu.Unlock()

	for _, listener := range listeners {
		listener(ctx)
	}
}
