package finance

import (
	"slices"
	"strings"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes instalments from settling payments
type PaymentKind string

const (
	PaymentKindPartial PaymentKind = "Partial" // Leaves a balance (or exactly clears it)
	PaymentKindFull    PaymentKind = "Full"    // Must clear the balance
)

// IsValid checks if the kind is a valid PaymentKind
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindPartial || k == PaymentKindFull
}

// String returns the string representation of PaymentKind
func (k PaymentKind) String() string {
	return string(k)
}

// ParsePaymentKind parses a kind label case-insensitively
func ParsePaymentKind(s string) (PaymentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "partial":
		return PaymentKindPartial, nil
	case "full":
		return PaymentKindFull, nil
	}
	return "", shared.NewValidationError("Payment kind must be Partial or Full, got %q", s)
}

// DebtorStatus is derived from the amounts, never stored
type DebtorStatus string

const (
	DebtorStatusOutstanding DebtorStatus = "Outstanding"
	DebtorStatusPaid        DebtorStatus = "Paid"
)

// String returns the string representation of DebtorStatus
func (s DebtorStatus) String() string {
	return string(s)
}

// Payment is one settlement event against a debtor
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       PaymentKind     `json:"kind"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Debtor is a customer who took goods on credit.
// TotalOwed is fixed at creation; AmountPaid only grows and never exceeds TotalOwed.
type Debtor struct {
	shared.BaseEntity
	Name           string               `json:"name"`
	Contact        string               `json:"contact"`
	Category       valueobject.Category `json:"category"`
	Item           string               `json:"item"`
	Quantity       int                  `json:"quantity"`
	UnitPrice      decimal.Decimal      `json:"unitPrice"`
	TotalOwed      decimal.Decimal      `json:"totalOwed"`
	AmountPaid     decimal.Decimal      `json:"amountPaid"`
	PaymentHistory []Payment            `json:"paymentHistory"`
}

// NewDebtorInput carries the fields a debtor is admitted with
type NewDebtorInput struct {
	Name      string
	Contact   string
	Category  string
	Item      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewDebtor validates the input and creates a debtor with nothing paid
func NewDebtor(input NewDebtorInput, now time.Time) (*Debtor, error) {
	name := strings.TrimSpace(input.Name)
	contact := strings.TrimSpace(input.Contact)
	item := strings.TrimSpace(input.Item)

	if name == "" {
		return nil, shared.NewValidationError("Debtor name cannot be empty")
	}
	if contact == "" {
		return nil, shared.NewValidationError("Debtor contact cannot be empty")
	}
	if item == "" {
		return nil, shared.NewValidationError("Item description cannot be empty")
	}
	category, err := valueobject.ParseCategory(input.Category)
	if err != nil {
		return nil, shared.NewValidationError("Invalid category: %v", err)
	}
	if input.Quantity <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	if err := valueobject.ValidateAmount(input.UnitPrice); err != nil {
		return nil, shared.NewValidationError("Invalid unit price: %v", err)
	}

	unitPrice := input.UnitPrice.Round(valueobject.MoneyScale)
	return &Debtor{
		BaseEntity:     shared.NewBaseEntity(now),
		Name:           name,
		Contact:        contact,
		Category:       category,
		Item:           item,
		Quantity:       input.Quantity,
		UnitPrice:      unitPrice,
		TotalOwed:      valueobject.NewMoneyGHS(unitPrice).MultiplyByInt(int64(input.Quantity)).Amount(),
		AmountPaid:     decimal.Zero,
		PaymentHistory: []Payment{},
	}, nil
}

// Balance returns TotalOwed - AmountPaid
func (d *Debtor) Balance() decimal.Decimal {
	return d.TotalOwed.Sub(d.AmountPaid)
}

// Status derives the debtor status from the amounts
func (d *Debtor) Status() DebtorStatus {
	if d.AmountPaid.GreaterThanOrEqual(d.TotalOwed) {
		return DebtorStatusPaid
	}
	return DebtorStatusOutstanding
}

// IsPaid returns true when nothing is owed
func (d *Debtor) IsPaid() bool {
	return d.Status() == DebtorStatusPaid
}

// ApplyPayment records a payment against the debtor.
// Validation runs in a fixed order and nothing is mutated unless every check passes:
// amount must be positive, kind known, amount not above the balance, and a Full
// payment must equal the balance.
func (d *Debtor) ApplyPayment(amount decimal.Decimal, kind PaymentKind, at time.Time) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("Payment amount must be positive")
	}
	if !valueobject.HasCentPrecision(amount) {
		return nil, shared.NewValidationError("Payment amount must have at most two decimal places")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("Payment kind must be Partial or Full, got %q", kind)
	}

	balance := d.Balance()
	if amount.GreaterThan(balance) {
		return nil, shared.NewOverpaymentError(amount, balance)
	}
	if kind == PaymentKindFull && amount.LessThan(balance) {
		return nil, shared.NewInconsistentKindError(amount, balance)
	}

	payment := Payment{
		ID:         uuid.New(),
		Amount:     amount,
		Kind:       kind,
		OccurredAt: at,
	}
	d.PaymentHistory = append(d.PaymentHistory, payment)
	d.AmountPaid = d.AmountPaid.Add(amount)
	d.Touch(at)

	return &payment, nil
}

// Matches reports whether the filter is a case-insensitive substring of the name, contact or item.
// An empty filter matches everything.
func (d *Debtor) Matches(filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), filter) ||
		strings.Contains(strings.ToLower(d.Contact), filter) ||
		strings.Contains(strings.ToLower(d.Item), filter)
}

// Clone returns a deep copy, so callers cannot reach into ledger state
func (d Debtor) Clone() Debtor {
	d.PaymentHistory = slices.Clone(d.PaymentHistory)
	if d.PaymentHistory == nil {
		d.PaymentHistory = []Payment{}
	}
	return d
}

// Archive stamps a settled debtor for the paid archive
func (d Debtor) Archive(at time.Time) PaidDebtor {
	return PaidDebtor{
		Debtor: d.Clone(),
		PaidAt: at,
	}
}

// PaidDebtor is a settled debtor moved out of the active set
type PaidDebtor struct {
	Debtor
	PaidAt time.Time `json:"paidAt"`
}

// Clone returns a deep copy
func (p PaidDebtor) Clone() PaidDebtor {
	p.Debtor = p.Debtor.Clone()
	return p
}
