package finance

import (
	"testing"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

func validDebtorInput() NewDebtorInput {
	return NewDebtorInput{
		Name:      "Ama",
		Contact:   "0241234567",
		Category:  "Women",
		Item:      "Dress",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("50.00"),
	}
}

func newTestDebtor(t *testing.T) *Debtor {
	t.Helper()
	d, err := NewDebtor(validDebtorInput(), testNow)
	require.NoError(t, err)
	return d
}

// ==================== NewDebtor Tests ====================

func TestNewDebtor(t *testing.T) {
	d := newTestDebtor(t)

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Ama", d.Name)
	assert.Equal(t, valueobject.CategoryWomen, d.Category)
	assert.Equal(t, 2, d.Quantity)
	assert.Equal(t, "100.00", d.TotalOwed.StringFixed(2))
	assert.True(t, d.AmountPaid.IsZero())
	assert.Empty(t, d.PaymentHistory)
	assert.Equal(t, testNow, d.CreatedAt)
	assert.Equal(t, DebtorStatusOutstanding, d.Status())
}

func TestNewDebtor_TrimsFields(t *testing.T) {
	input := validDebtorInput()
	input.Name = "  Ama  "
	input.Item = " Dress "

	d, err := NewDebtor(input, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Ama", d.Name)
	assert.Equal(t, "Dress", d.Item)
}

func TestNewDebtor_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewDebtorInput)
	}{
		{"empty name", func(in *NewDebtorInput) { in.Name = "" }},
		{"blank contact", func(in *NewDebtorInput) { in.Contact = "   " }},
		{"empty item", func(in *NewDebtorInput) { in.Item = "" }},
		{"unknown category", func(in *NewDebtorInput) { in.Category = "Shoes" }},
		{"zero quantity", func(in *NewDebtorInput) { in.Quantity = 0 }},
		{"negative quantity", func(in *NewDebtorInput) { in.Quantity = -3 }},
		{"negative unit price", func(in *NewDebtorInput) { in.UnitPrice = decimal.NewFromInt(-1) }},
		{"sub-cent unit price", func(in *NewDebtorInput) { in.UnitPrice = decimal.RequireFromString("1.005") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validDebtorInput()
			tt.mutate(&input)

			d, err := NewDebtor(input, testNow)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestNewDebtor_ZeroUnitPriceIsPaidImmediately(t *testing.T) {
	input := validDebtorInput()
	input.UnitPrice = decimal.Zero

	d, err := NewDebtor(input, testNow)
	require.NoError(t, err)
	assert.True(t, d.TotalOwed.IsZero())
	assert.True(t, d.IsPaid())
}

// ==================== ApplyPayment Tests ====================

func TestDebtor_ApplyPayment_Partial(t *testing.T) {
	d := newTestDebtor(t)
	at := testNow.Add(time.Hour)

	payment, err := d.ApplyPayment(decimal.RequireFromString("40.00"), PaymentKindPartial, at)
	require.NoError(t, err)

	assert.Equal(t, PaymentKindPartial, payment.Kind)
	assert.Equal(t, at, payment.OccurredAt)
	assert.Equal(t, "40.00", d.AmountPaid.StringFixed(2))
	assert.Equal(t, "60.00", d.Balance().StringFixed(2))
	assert.Len(t, d.PaymentHistory, 1)
	assert.Equal(t, DebtorStatusOutstanding, d.Status())
	assert.Equal(t, at, d.UpdatedAt)
}

func TestDebtor_ApplyPayment_FullClearsBalance(t *testing.T) {
	d := newTestDebtor(t)
	_, err := d.ApplyPayment(decimal.RequireFromString("40.00"), PaymentKindPartial, testNow)
	require.NoError(t, err)

	_, err = d.ApplyPayment(decimal.RequireFromString("60.00"), PaymentKindFull, testNow)
	require.NoError(t, err)

	assert.True(t, d.Balance().IsZero())
	assert.True(t, d.IsPaid())
	assert.Len(t, d.PaymentHistory, 2)
}

func TestDebtor_ApplyPayment_PartialThatClearsBalance(t *testing.T) {
	d := newTestDebtor(t)

	_, err := d.ApplyPayment(decimal.NewFromInt(100), PaymentKindPartial, testNow)
	require.NoError(t, err)
	assert.True(t, d.IsPaid())
}

func TestDebtor_ApplyPayment_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		kind    PaymentKind
		wantErr error
	}{
		{"zero amount", "0", PaymentKindPartial, shared.ErrValidation},
		{"negative amount", "-5", PaymentKindPartial, shared.ErrValidation},
		{"sub-cent amount", "10.001", PaymentKindPartial, shared.ErrValidation},
		{"unknown kind", "10", PaymentKind("Deposit"), shared.ErrValidation},
		{"overpayment", "150", PaymentKindPartial, shared.ErrOverpayment},
		{"overpayment with full kind", "100.01", PaymentKindFull, shared.ErrOverpayment},
		{"full below balance", "40", PaymentKindFull, shared.ErrInconsistentKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDebtor(t)
			before := d.Clone()

			payment, err := d.ApplyPayment(decimal.RequireFromString(tt.amount), tt.kind, testNow)
			assert.Nil(t, payment)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, d.Clone(), "rejected payment must not mutate the debtor")
		})
	}
}

func TestDebtor_ApplyPayment_OverpaymentCarriesBalance(t *testing.T) {
	d := newTestDebtor(t)
	_, err := d.ApplyPayment(decimal.NewFromInt(40), PaymentKindPartial, testNow)
	require.NoError(t, err)

	_, err = d.ApplyPayment(decimal.NewFromInt(150), PaymentKindPartial, testNow)
	domainErr, ok := shared.AsDomainError(err)
	require.True(t, ok)
	require.NotNil(t, domainErr.Balance)
	assert.Equal(t, "60.00", domainErr.Balance.StringFixed(2))
}

func TestDebtor_AmountPaidNeverExceedsTotal(t *testing.T) {
	d := newTestDebtor(t)
	amounts := []string{"10", "25.50", "80", "30", "14.50", "20", "0.01"}

	previous := d.AmountPaid
	for _, a := range amounts {
		_, _ = d.ApplyPayment(decimal.RequireFromString(a), PaymentKindPartial, testNow)
		assert.True(t, d.AmountPaid.GreaterThanOrEqual(previous))
		assert.True(t, d.AmountPaid.LessThanOrEqual(d.TotalOwed))
		previous = d.AmountPaid
	}
	assert.True(t, d.IsPaid())
}

// ==================== Matches / Clone / Archive Tests ====================

func TestDebtor_Matches(t *testing.T) {
	d := newTestDebtor(t)

	assert.True(t, d.Matches(""))
	assert.True(t, d.Matches("ama"))
	assert.True(t, d.Matches("0241"))
	assert.True(t, d.Matches("DRESS"))
	assert.False(t, d.Matches("kofi"))
}

func TestDebtor_CloneIsIndependent(t *testing.T) {
	d := newTestDebtor(t)
	_, err := d.ApplyPayment(decimal.NewFromInt(10), PaymentKindPartial, testNow)
	require.NoError(t, err)

	clone := d.Clone()
	clone.PaymentHistory[0].Amount = decimal.NewFromInt(99)

	assert.Equal(t, "10", d.PaymentHistory[0].Amount.String())
}

func TestDebtor_Archive(t *testing.T) {
	d := newTestDebtor(t)
	paidAt := testNow.Add(2 * time.Hour)

	paid := d.Archive(paidAt)
	assert.Equal(t, d.ID, paid.ID)
	assert.Equal(t, paidAt, paid.PaidAt)
}

func TestParsePaymentKind(t *testing.T) {
	kind, err := ParsePaymentKind("full")
	require.NoError(t, err)
	assert.Equal(t, PaymentKindFull, kind)

	kind, err = ParsePaymentKind(" Partial ")
	require.NoError(t, err)
	assert.Equal(t, PaymentKindPartial, kind)

	_, err = ParsePaymentKind("half")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
