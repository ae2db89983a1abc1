package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPurchase(amount string, installments int, split bool) *models.CreditCardPurchase {
	p := &models.CreditCardPurchase{
		ID:            uuid.New(),
		CardID:        uuid.New(),
		Description:   "Notebook",
		PurchaseDate:  date(2024, time.March, 5),
		Amount:        decimal.RequireFromString(amount),
		Installments:  installments,
		IsInstallment: split,
	}
	p.Normalize()
	return p
}

func TestPurchaseValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*models.CreditCardPurchase)
		wantErr error
	}{
		{"valid", func(*models.CreditCardPurchase) {}, nil},
		{"blank description", func(p *models.CreditCardPurchase) { p.Description = "  " }, models.ErrDescriptionRequired},
		{"zero amount", func(p *models.CreditCardPurchase) { p.Amount = decimal.Zero }, models.ErrInvalidAmount},
		{"negative amount", func(p *models.CreditCardPurchase) { p.Amount = decimal.NewFromInt(-5) }, models.ErrInvalidAmount},
		{"zero installments", func(p *models.CreditCardPurchase) { p.Installments = 0 }, models.ErrInvalidInstallments},
		{"too many installments", func(p *models.CreditCardPurchase) { p.Installments = 61 }, models.ErrInvalidInstallments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPurchase("100", 1, false)
			tt.modify(p)

			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var verr *models.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestPurchaseNormalize(t *testing.T) {
	single := newPurchase("10.005", 1, true)
	assert.False(t, single.IsInstallment)
	assert.Equal(t, 1, single.Installments)
	assert.True(t, single.InstallmentAmount.Equal(single.Amount))

	notSplit := newPurchase("90", 5, false)
	assert.Equal(t, 1, notSplit.Installments)
	assert.False(t, notSplit.IsSplit())

	split := newPurchase("90", 3, true)
	assert.True(t, split.IsSplit())
	assert.True(t, decimal.NewFromInt(30).Equal(split.InstallmentAmount))
}

func TestCalculateInstallmentAmount(t *testing.T) {
	assert.Equal(t, "33.33", models.CalculateInstallmentAmount(decimal.NewFromInt(100), 3, true).StringFixed(2))
	assert.Equal(t, "142.86", models.CalculateInstallmentAmount(decimal.NewFromInt(1000), 7, true).StringFixed(2))
	assert.Equal(t, "100.00", models.CalculateInstallmentAmount(decimal.NewFromInt(100), 3, false).StringFixed(2))
}

func TestBuildInstallmentSchedule(t *testing.T) {
	resolver := models.NewBillCycleResolver(10, 20, time.UTC)
	now := date(2024, time.March, 5)

	tests := []struct {
		name        string
		amount      string
		n           int
		wantRegular string
		wantLast    string
	}{
		{"last installment absorbs the remainder", "100", 3, "33.33", "33.34"},
		{"last installment smaller than the rest", "1000", 7, "142.86", "142.84"},
		{"even split", "300", 3, "100.00", "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPurchase(tt.amount, tt.n, true)

			installments, cycles := models.BuildInstallmentSchedule(p, resolver, now)
			require.Len(t, installments, tt.n)
			require.Len(t, cycles, tt.n)

			sum := decimal.Zero
			for i, inst := range installments {
				assert.Equal(t, i+1, inst.InstallmentNumber)
				assert.Equal(t, p.ID, inst.PurchaseID)
				assert.Equal(t, cycles[i].DueDate, inst.DueDate)
				if i < tt.n-1 {
					assert.Equal(t, tt.wantRegular, inst.Amount.StringFixed(2))
				}
				sum = sum.Add(inst.Amount)
			}
			assert.Equal(t, tt.wantLast, installments[tt.n-1].Amount.StringFixed(2))
			assert.True(t, p.Amount.Equal(sum), "schedule sums to %s", sum)

			assert.Equal(t, 3, cycles[0].ReferenceMonth)
			assert.Equal(t, 4, cycles[1].ReferenceMonth)
		})
	}
}

func TestBuildInstallmentScheduleStartsAtPurchaseCycle(t *testing.T) {
	resolver := models.NewBillCycleResolver(10, 20, time.UTC)
	p := newPurchase("200", 2, true)
	p.PurchaseDate = date(2024, time.December, 12)

	_, cycles := models.BuildInstallmentSchedule(p, resolver, p.PurchaseDate)
	require.Len(t, cycles, 2)
	assert.Equal(t, [2]int{1, 2025}, [2]int{cycles[0].ReferenceMonth, cycles[0].ReferenceYear})
	assert.Equal(t, [2]int{2, 2025}, [2]int{cycles[1].ReferenceMonth, cycles[1].ReferenceYear})
}

func TestBuildInstallmentScheduleSingleCharge(t *testing.T) {
	resolver := models.NewBillCycleResolver(10, 20, time.UTC)
	installments, cycles := models.BuildInstallmentSchedule(newPurchase("50", 1, false), resolver, time.Now())

	assert.Nil(t, installments)
	assert.Nil(t, cycles)
}
