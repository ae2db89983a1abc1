package models_test

import (
	"testing"
	"time"

	"github.com/livefire2015/ez-cards/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardSummary(t *testing.T) {
	active := validCard()
	active.TotalLimit = decimal.NewFromInt(1000)
	active.UsedLimit = decimal.NewFromInt(400)
	active.AvailableLimit = decimal.NewFromInt(600)

	frozen := validCard()
	frozen.IsActive = false
	frozen.TotalLimit = decimal.NewFromInt(500)
	frozen.UsedLimit = decimal.Zero
	frozen.AvailableLimit = decimal.NewFromInt(500)

	bill := func(status models.BillStatus, remaining int64, due time.Time) *models.CreditCardBill {
		b := marchBill()
		b.Status = status
		b.RemainingAmount = decimal.NewFromInt(remaining)
		b.DueDate = due
		return b
	}

	summary := models.NewCardSummary()
	summary.AddCard(&active)
	summary.AddCard(&frozen)
	summary.AddBill(bill(models.BillStatusOverdue, 120, date(2024, time.February, 20)))
	summary.AddBill(bill(models.BillStatusClosed, 300, date(2024, time.March, 20)))
	summary.AddBill(bill(models.BillStatusOpen, 80, date(2024, time.April, 20)))
	summary.AddBill(bill(models.BillStatusPaid, 0, date(2024, time.January, 20)))
	summary.AddBill(bill(models.BillStatusOpen, 0, date(2024, time.January, 5)))

	assert.Equal(t, 2, summary.CardCount)
	assert.Equal(t, 1, summary.ActiveCardCount)
	assert.Equal(t, "1500.00", summary.TotalLimit.StringFixed(2))
	assert.Equal(t, "400.00", summary.TotalUsedLimit.StringFixed(2))
	assert.Equal(t, "1100.00", summary.TotalAvailableLimit.StringFixed(2))
	assert.Equal(t, "500.00", summary.TotalOutstanding.StringFixed(2))
	assert.Equal(t, "120.00", summary.OverdueAmount.StringFixed(2))
	assert.Equal(t, 1, summary.OverdueBillCount)

	require.NotNil(t, summary.NextDueDate)
	assert.Equal(t, date(2024, time.February, 20), *summary.NextDueDate)
}

func TestCardSummaryEmpty(t *testing.T) {
	summary := models.NewCardSummary()

	assert.Zero(t, summary.CardCount)
	assert.True(t, summary.TotalOutstanding.IsZero())
	assert.Nil(t, summary.NextDueDate)
}
