package services_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePurchaseRejectsOverLimit(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	first := f.buy(t, card.ID, "300")
	assertMoney(t, "300.00", first.Limit.UsedLimit)
	assertMoney(t, "700.00", first.Limit.AvailableLimit)

	_, err := f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "TV",
		Amount:      dec("800"),
	})
	var limitErr *models.InsufficientLimitError
	require.True(t, errors.As(err, &limitErr), "got %v", err)
	assertMoney(t, "800.00", limitErr.Requested)
	assertMoney(t, "700.00", limitErr.Available)

	stored := f.card(t, card.ID)
	assertMoney(t, "300.00", stored.UsedLimit)
	assertMoney(t, "700.00", stored.AvailableLimit)

	purchases, err := f.svc.Purchases.ListPurchases(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	bill := f.billFor(t, card.ID, time.March, 2024)
	assertMoney(t, "300.00", bill.TotalAmount)
}

func TestCreatePurchaseSplitsInstallments(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 5000)

	result := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Description:   "Phone",
		Amount:        dec("1200"),
		Installments:  12,
		IsInstallment: true,
	})

	assertMoney(t, "100.00", result.Purchase.InstallmentAmount)
	require.Len(t, result.Installments, 12)
	assert.Len(t, result.Bills, 12)
	assertMoney(t, "1200.00", result.Limit.UsedLimit)

	bills, err := f.svc.Bills.ListBills(f.ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, bills, 12)
	for _, bill := range bills {
		assertMoney(t, "100.00", bill.TotalAmount, "bill %02d/%d", bill.ReferenceMonth, bill.ReferenceYear)
	}
	assert.Equal(t, [2]int{3, 2024}, [2]int{bills[0].ReferenceMonth, bills[0].ReferenceYear})
	assert.Equal(t, [2]int{2, 2025}, [2]int{bills[11].ReferenceMonth, bills[11].ReferenceYear})

	require.NotNil(t, result.Purchase.BillID)
	assert.Equal(t, bills[0].ID, *result.Purchase.BillID)
	assertLimitInvariant(t, f, card.ID)
}

func TestCreatePurchaseUnevenInstallments(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 5000)

	result := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("100"),
		Installments:  3,
		IsInstallment: true,
	})

	require.Len(t, result.Installments, 3)
	assertMoney(t, "33.33", result.Installments[0].Amount)
	assertMoney(t, "33.33", result.Installments[1].Amount)
	assertMoney(t, "33.34", result.Installments[2].Amount)

	assertMoney(t, "33.34", f.billFor(t, card.ID, time.May, 2024).TotalAmount)
}

func TestCreatePurchaseBooksByPurchaseDate(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	result := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:       card.ID,
		Amount:       dec("50"),
		PurchaseDate: time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC),
	})

	april := f.billFor(t, card.ID, time.April, 2024)
	require.NotNil(t, result.Purchase.BillID)
	assert.Equal(t, april.ID, *result.Purchase.BillID)
	assertMoney(t, "50.00", april.TotalAmount)
	assert.Equal(t, models.BillStatusOpen, april.Status)
}

func TestCreatePurchaseUnbilled(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	result := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:   card.ID,
		Amount:   dec("120"),
		Unbilled: true,
	})

	assert.Nil(t, result.Purchase.BillID)
	assert.Empty(t, result.Bills)
	assertMoney(t, "120.00", result.Limit.UsedLimit)

	bills, err := f.svc.Bills.ListBills(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestCreatePurchaseValidation(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	tests := []struct {
		name    string
		req     services.CreatePurchaseRequest
		wantErr error
	}{
		{"zero amount", services.CreatePurchaseRequest{CardID: card.ID, Description: "x", Amount: decimal.Zero}, models.ErrInvalidAmount},
		{"missing description", services.CreatePurchaseRequest{CardID: card.ID, Amount: dec("10")}, models.ErrDescriptionRequired},
		{"too many installments", services.CreatePurchaseRequest{CardID: card.ID, Description: "x", Amount: dec("10"), Installments: 61, IsInstallment: true}, models.ErrInvalidInstallments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Purchases.CreatePurchase(f.ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assertMoney(t, "0.00", f.card(t, card.ID).UsedLimit)
}

func TestCreatePurchaseInactiveCard(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	_, err := f.svc.Cards.FreezeCard(f.ctx, card.ID)
	require.NoError(t, err)

	_, err = f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Coffee",
		Amount:      dec("5"),
	})
	assert.ErrorIs(t, err, models.ErrCardInactive)
}

func TestCreatePurchaseUnknownCard(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
		CardID:      uuid.New(),
		Description: "Coffee",
		Amount:      dec("5"),
	})
	assert.True(t, models.IsNotFound(err))
}

func TestUpdatePurchaseChecksOnlyIncrease(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	first := f.buy(t, card.ID, "600")
	f.buy(t, card.ID, "300")

	tooMuch := dec("750")
	_, err := f.svc.Purchases.UpdatePurchase(f.ctx, first.Purchase.ID, services.UpdatePurchaseRequest{Amount: &tooMuch})
	var limitErr *models.InsufficientLimitError
	require.True(t, errors.As(err, &limitErr), "got %v", err)
	assertMoney(t, "150.00", limitErr.Requested)
	assertMoney(t, "100.00", limitErr.Available)

	fits := dec("700")
	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, first.Purchase.ID, services.UpdatePurchaseRequest{Amount: &fits})
	require.NoError(t, err)
	assertMoney(t, "1000.00", result.Limit.UsedLimit)
	assertMoney(t, "0.00", result.Limit.AvailableLimit)

	// decreases are never checked, even with nothing available
	lower := dec("100")
	result, err = f.svc.Purchases.UpdatePurchase(f.ctx, first.Purchase.ID, services.UpdatePurchaseRequest{Amount: &lower})
	require.NoError(t, err)
	assertMoney(t, "400.00", result.Limit.UsedLimit)

	assertMoney(t, "400.00", f.billFor(t, card.ID, time.March, 2024).TotalAmount)
	assertLimitInvariant(t, f, card.ID)
}

func TestUpdatePurchaseDescriptionKeepsSchedule(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	created := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("90"),
		Installments:  3,
		IsInstallment: true,
	})

	desc := "Headphones"
	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, created.Purchase.ID, services.UpdatePurchaseRequest{Description: &desc})
	require.NoError(t, err)

	assert.Equal(t, "Headphones", result.Purchase.Description)
	require.Len(t, result.Installments, 3)
	for i := range result.Installments {
		assert.Equal(t, created.Installments[i].ID, result.Installments[i].ID)
	}
}

func TestUpdatePurchaseRebuildsInstallments(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	created := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("300"),
		Installments:  3,
		IsInstallment: true,
	})

	two := 2
	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, created.Purchase.ID, services.UpdatePurchaseRequest{Installments: &two})
	require.NoError(t, err)
	require.Len(t, result.Installments, 2)

	assertMoney(t, "150.00", f.billFor(t, card.ID, time.March, 2024).TotalAmount)
	assertMoney(t, "150.00", f.billFor(t, card.ID, time.April, 2024).TotalAmount)
	assertMoney(t, "0.00", f.billFor(t, card.ID, time.May, 2024).TotalAmount)

	details, err := f.svc.Purchases.GetPurchase(f.ctx, created.Purchase.ID)
	require.NoError(t, err)
	assert.Len(t, details.Installments, 2)

	single := false
	result, err = f.svc.Purchases.UpdatePurchase(f.ctx, created.Purchase.ID, services.UpdatePurchaseRequest{IsInstallment: &single})
	require.NoError(t, err)
	assert.Empty(t, result.Installments)
	assert.Equal(t, 1, result.Purchase.Installments)
	assertMoney(t, "300.00", f.billFor(t, card.ID, time.March, 2024).TotalAmount)
	assertMoney(t, "0.00", f.billFor(t, card.ID, time.April, 2024).TotalAmount)
}

func TestUpdatePurchaseAfterFirstBillDeleted(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	created := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("300"),
		Installments:  3,
		IsInstallment: true,
	})

	_, err := f.svc.Bills.DeleteBill(f.ctx, f.billFor(t, card.ID, time.March, 2024).ID)
	require.NoError(t, err)

	amount := dec("330")
	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, created.Purchase.ID, services.UpdatePurchaseRequest{Amount: &amount})
	require.NoError(t, err)

	require.Len(t, result.Installments, 3)
	for _, inst := range result.Installments {
		assert.NotNil(t, inst.BillID, "installment %d", inst.InstallmentNumber)
	}
	require.NotNil(t, result.Purchase.BillID)

	assertMoney(t, "110.00", f.billFor(t, card.ID, time.March, 2024).TotalAmount)
	assertMoney(t, "110.00", f.billFor(t, card.ID, time.April, 2024).TotalAmount)
	assertMoney(t, "110.00", f.billFor(t, card.ID, time.May, 2024).TotalAmount)
	assertLimitInvariant(t, f, card.ID)
}

func TestUpdateUnbilledPurchaseStaysUnbilled(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	created := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("300"),
		Installments:  3,
		IsInstallment: true,
		Unbilled:      true,
	})

	amount := dec("330")
	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, created.Purchase.ID, services.UpdatePurchaseRequest{Amount: &amount})
	require.NoError(t, err)

	assert.Nil(t, result.Purchase.BillID)
	for _, inst := range result.Installments {
		assert.Nil(t, inst.BillID)
	}
	assertMoney(t, "330.00", result.Limit.UsedLimit)

	bills, err := f.svc.Bills.ListBills(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestUpdatePurchaseMovesCard(t *testing.T) {
	f := newFixture(t)
	from := f.createCard(t, 1000)
	to := f.createCardWith(t, services.CreateCardRequest{Name: "Itau", TotalLimit: decimal.NewFromInt(500), ClosingDay: 25, DueDay: 5})

	small := f.buy(t, from.ID, "400")
	big := f.buy(t, from.ID, "600")

	_, err := f.svc.Purchases.UpdatePurchase(f.ctx, big.Purchase.ID, services.UpdatePurchaseRequest{CardID: &to.ID})
	var limitErr *models.InsufficientLimitError
	require.True(t, errors.As(err, &limitErr), "got %v", err)
	assertMoney(t, "600.00", limitErr.Requested)
	assertMoney(t, "500.00", limitErr.Available)

	result, err := f.svc.Purchases.UpdatePurchase(f.ctx, small.Purchase.ID, services.UpdatePurchaseRequest{CardID: &to.ID})
	require.NoError(t, err)
	assert.Equal(t, to.ID, result.Purchase.CardID)
	assertMoney(t, "400.00", result.Limit.UsedLimit)

	assertMoney(t, "600.00", f.card(t, from.ID).UsedLimit)
	assertMoney(t, "600.00", f.billFor(t, from.ID, time.March, 2024).TotalAmount)
	assertMoney(t, "400.00", f.billFor(t, to.ID, time.March, 2024).TotalAmount)

	assertLimitInvariant(t, f, from.ID)
	assertLimitInvariant(t, f, to.ID)
}

func TestDeletePurchase(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	keep := f.buy(t, card.ID, "200")
	drop := f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("300"),
		Installments:  3,
		IsInstallment: true,
	})

	result, err := f.svc.Purchases.DeletePurchase(f.ctx, drop.Purchase.ID)
	require.NoError(t, err)
	assertMoney(t, "200.00", result.Limit.UsedLimit)
	assert.Len(t, result.Bills, 3)

	_, err = f.svc.Purchases.GetPurchase(f.ctx, drop.Purchase.ID)
	assert.True(t, models.IsNotFound(err))

	installments, err := f.store.Installments().ListByPurchase(f.ctx, drop.Purchase.ID)
	require.NoError(t, err)
	assert.Empty(t, installments)

	assertMoney(t, "200.00", f.billFor(t, card.ID, time.March, 2024).TotalAmount)
	assertMoney(t, "0.00", f.billFor(t, card.ID, time.April, 2024).TotalAmount)

	_, err = f.svc.Purchases.GetPurchase(f.ctx, keep.Purchase.ID)
	assert.NoError(t, err)
	assertLimitInvariant(t, f, card.ID)
}

func TestPurchaseEvents(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.events.Reset()

	f.buy(t, card.ID, "10")

	assert.Equal(t, []events.Type{
		events.BillCreated,
		events.PurchaseCreated,
		events.LimitRecalculated,
	}, f.events.Types())

	f.events.Reset()
	f.buy(t, card.ID, "10")
	assert.Equal(t, []events.Type{events.PurchaseCreated, events.LimitRecalculated}, f.events.Types())
}

func TestPurchaseSurvivesPublisherFailure(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.events.FailWith(errors.New("broker unavailable"))

	result := f.buy(t, card.ID, "10")
	assertMoney(t, "10.00", result.Limit.UsedLimit)
}

func TestConcurrentPurchasesNeverExceedLimit(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
				CardID:      card.ID,
				Description: "Parallel",
				Amount:      dec("150"),
			})

			mu.Lock()
			defer mu.Unlock()
			var limitErr *models.InsufficientLimitError
			switch {
			case err == nil:
				accepted++
			case errors.As(err, &limitErr):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, accepted)
	assert.Equal(t, 4, rejected)
	assertMoney(t, "900.00", f.card(t, card.ID).UsedLimit)
	assertLimitInvariant(t, f, card.ID)

	bills, err := f.svc.Bills.ListBills(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}
