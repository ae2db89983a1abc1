package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overdueBill books 1000 on a fresh card and sweeps past the March due date
func overdueBill(t *testing.T, f *fixture) *models.CreditCardBill {
	t.Helper()

	card := f.createCard(t, 5000)
	f.buy(t, card.ID, "1000")

	f.now = time.Date(2024, time.March, 21, 9, 0, 0, 0, time.UTC)
	_, err := f.svc.Bills.RefreshStatuses(f.ctx, f.now)
	require.NoError(t, err)

	bill := f.billFor(t, card.ID, time.March, 2024)
	require.Equal(t, models.BillStatusOverdue, bill.Status)
	return bill
}

func TestWaiveFees(t *testing.T) {
	f := newFixture(t)
	bill := overdueBill(t, f)

	result, err := f.svc.Fees.WaiveFees(f.ctx, bill.ID, "first late payment")
	require.NoError(t, err)
	assertMoney(t, "20.00", result.WaivedLateFee)
	assertMoney(t, "100.00", result.WaivedInterest)
	assertMoney(t, "1000.00", result.Bill.TotalAmount)
	assert.Equal(t, models.BillStatusOverdue, result.Bill.Status)
	assert.Contains(t, result.Bill.Notes, "first late payment")

	// a waiver is final
	sweep, err := f.svc.Bills.RefreshStatuses(f.ctx, time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, sweep.Fees)

	stored := f.bill(t, bill.ID)
	assertMoney(t, "1000.00", stored.TotalAmount)
	assert.False(t, stored.HasLateCharges())
	assert.True(t, stored.FeesAssessed())
}

func TestWaiveFeesWithoutCharges(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.buy(t, card.ID, "100")
	bill := f.billFor(t, card.ID, time.March, 2024)

	result, err := f.svc.Fees.WaiveFees(f.ctx, bill.ID, "")
	require.NoError(t, err)
	assert.True(t, result.WaivedLateFee.IsZero())
	assert.True(t, result.WaivedInterest.IsZero())
	assertMoney(t, "100.00", result.Bill.TotalAmount)
}

func TestWaiveFeesUnknownBill(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Fees.WaiveFees(f.ctx, uuid.New(), "")
	assert.True(t, models.IsNotFound(err))
}

func TestPayingOverdueBillSettlesIt(t *testing.T) {
	f := newFixture(t)
	bill := overdueBill(t, f)

	_, err := f.svc.Payments.CreatePayment(f.ctx, paymentOf(bill.ID, "1000"))
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusOverdue, f.bill(t, bill.ID).Status)

	f.now = time.Date(2024, time.March, 22, 10, 0, 0, 0, time.UTC)
	result := f.pay(t, bill.ID, "120")
	assert.Equal(t, models.BillStatusPaid, result.Bill.Status)
	assertMoney(t, "0.00", result.Bill.RemainingAmount)
	require.NotNil(t, result.Bill.PaymentDate)
	assert.True(t, f.now.Equal(*result.Bill.PaymentDate))
}
