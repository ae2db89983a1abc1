package services_test

import (
	"errors"
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

func TestCreateCard(t *testing.T) {
	f := newFixture(t)

	card := f.createCardWith(t, services.CreateCardRequest{
		Name:           "  Itaú Platinum ",
		Brand:          models.CardBrandVisa,
		LastFourDigits: "4242",
		TotalLimit:     dec("2500.555"),
	})

	assert.Equal(t, "Itaú Platinum", card.Name)
	assert.Equal(t, f.userID, card.UserID)
	assert.True(t, card.IsActive)
	assertMoney(t, "2500.56", card.TotalLimit)
	assertMoney(t, "0.00", card.UsedLimit)
	assertMoney(t, "2500.56", card.AvailableLimit)

	stored := f.card(t, card.ID)
	assert.Equal(t, card.Name, stored.Name)
	assert.Equal(t, []events.Type{events.CardCreated}, f.events.Types())
}

func TestCreateCardValidation(t *testing.T) {
	f := newFixture(t)

	valid := func() services.CreateCardRequest {
		return services.CreateCardRequest{
			UserID:     f.userID,
			Name:       "Nubank",
			TotalLimit: decimal.NewFromInt(1000),
			ClosingDay: 10,
			DueDay:     20,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *services.CreateCardRequest)
		wantErr error
	}{
		{"blank name", func(r *services.CreateCardRequest) { r.Name = "   " }, models.ErrNameRequired},
		{"negative limit", func(r *services.CreateCardRequest) { r.TotalLimit = dec("-1") }, models.ErrInvalidTotalLimit},
		{"closing day zero", func(r *services.CreateCardRequest) { r.ClosingDay = 0 }, models.ErrInvalidClosingDay},
		{"due day too large", func(r *services.CreateCardRequest) { r.DueDay = 32 }, models.ErrInvalidDueDay},
		{"unknown brand", func(r *services.CreateCardRequest) { r.Brand = "rupay" }, models.ErrInvalidBrand},
		{"interest over 100", func(r *services.CreateCardRequest) { r.InterestRate = dec("100.5") }, models.ErrInvalidInterestRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			_, err := f.svc.Cards.CreateCard(f.ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	cards, err := f.svc.Cards.ListCards(f.ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestUpdateCardTotalLimit(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.buy(t, card.ID, "400")
	f.events.Reset()

	limit := dec("1500")
	updated, err := f.svc.Cards.UpdateCard(f.ctx, card.ID, services.UpdateCardRequest{TotalLimit: &limit})
	require.NoError(t, err)
	assertMoney(t, "1500.00", updated.TotalLimit)
	assertMoney(t, "400.00", updated.UsedLimit)
	assertMoney(t, "1100.00", updated.AvailableLimit)
	assert.Equal(t, []events.Type{events.CardUpdated, events.LimitRecalculated}, f.events.Types())
	assertLimitInvariant(t, f, card.ID)
}

func TestUpdateCardBelowUsedLimit(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.buy(t, card.ID, "600")

	limit := dec("500")
	updated, err := f.svc.Cards.UpdateCard(f.ctx, card.ID, services.UpdateCardRequest{TotalLimit: &limit})
	require.NoError(t, err)
	assertMoney(t, "600.00", updated.UsedLimit)
	assertMoney(t, "0.00", updated.AvailableLimit)
	assertLimitInvariant(t, f, card.ID)

	_, err = f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Coffee",
		Amount:      dec("0.01"),
	})
	var insufficient *models.InsufficientLimitError
	assert.True(t, errors.As(err, &insufficient))
}

func TestUpdateCardWithoutLimitChange(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.events.Reset()

	name := "Black"
	closing := 3
	updated, err := f.svc.Cards.UpdateCard(f.ctx, card.ID, services.UpdateCardRequest{Name: &name, ClosingDay: &closing})
	require.NoError(t, err)
	assert.Equal(t, "Black", updated.Name)
	assert.Equal(t, 3, updated.ClosingDay)
	assert.Equal(t, []events.Type{events.CardUpdated}, f.events.Types())
}

func TestUpdateCardInvalid(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	due := 0
	_, err := f.svc.Cards.UpdateCard(f.ctx, card.ID, services.UpdateCardRequest{DueDay: &due})
	assert.ErrorIs(t, err, models.ErrInvalidDueDay)
	assert.Equal(t, 20, f.card(t, card.ID).DueDay)

	_, err = f.svc.Cards.UpdateCard(f.ctx, uuid.New(), services.UpdateCardRequest{})
	assert.True(t, models.IsNotFound(err))
}

func TestFreezeCard(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)

	frozen, err := f.svc.Cards.FreezeCard(f.ctx, card.ID)
	require.NoError(t, err)
	assert.False(t, frozen.IsActive)

	_, err = f.svc.Purchases.CreatePurchase(f.ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Coffee",
		Amount:      dec("5"),
	})
	assert.ErrorIs(t, err, models.ErrCardInactive)

	unfrozen, err := f.svc.Cards.UnfreezeCard(f.ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, unfrozen.IsActive)
	f.buy(t, card.ID, "5")
}

func TestDeleteCardCascades(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.buyWith(t, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Amount:        dec("300"),
		Installments:  3,
		IsInstallment: true,
	})

	require.NoError(t, f.svc.Cards.DeleteCard(f.ctx, card.ID))

	_, err := f.svc.Cards.GetCard(f.ctx, card.ID)
	assert.True(t, models.IsNotFound(err))

	bills, err := f.store.Bills().ListByCard(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, bills)

	purchases, err := f.store.Purchases().ListByCard(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, purchases)

	assert.Contains(t, f.events.Types(), events.CardDeleted)
}

func TestDeleteCardWithPayments(t *testing.T) {
	f := newFixture(t)
	card := f.createCard(t, 1000)
	f.buy(t, card.ID, "100")
	bill := f.billFor(t, card.ID, time.March, 2024)
	f.pay(t, bill.ID, "40")

	err := f.svc.Cards.DeleteCard(f.ctx, card.ID)
	var hasPayments *models.HasPaymentsError
	require.True(t, errors.As(err, &hasPayments), "got %v", err)
	assert.Equal(t, bill.ID, hasPayments.BillID)

	f.card(t, card.ID)
}

func TestListCardsPerUser(t *testing.T) {
	f := newFixture(t)
	mine := f.createCard(t, 1000)
	f.createCardWith(t, services.CreateCardRequest{UserID: uuid.New(), TotalLimit: dec("300")})

	cards, err := f.svc.Cards.ListCards(f.ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, mine.ID, cards[0].ID)
}

func TestGetCardSummary(t *testing.T) {
	f := newFixture(t)

	first := f.createCard(t, 1000)
	second := f.createCardWith(t, services.CreateCardRequest{
		Name:       "Inter",
		TotalLimit: dec("2000"),
		ClosingDay: 25,
		DueDay:     5,
	})
	f.buy(t, first.ID, "300")
	f.buy(t, second.ID, "200")

	summary, err := f.svc.Cards.GetCardSummary(f.ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CardCount)
	assert.Equal(t, 2, summary.ActiveCardCount)
	assertMoney(t, "3000.00", summary.TotalLimit)
	assertMoney(t, "500.00", summary.TotalUsedLimit)
	assertMoney(t, "2500.00", summary.TotalAvailableLimit)
	assertMoney(t, "500.00", summary.TotalOutstanding)
	assert.Zero(t, summary.OverdueBillCount)
	require.NotNil(t, summary.NextDueDate)
	assert.Equal(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), *summary.NextDueDate)

	// statuses are resolved when summarizing, without waiting for a sweep
	f.now = time.Date(2024, time.March, 21, 0, 0, 0, 0, time.UTC)
	summary, err = f.svc.Cards.GetCardSummary(f.ctx, f.userID)
	require.NoError(t, err)
	assertMoney(t, "300.00", summary.OverdueAmount)
	assert.Equal(t, 1, summary.OverdueBillCount)
}

func TestGetCardSummaryWithoutCards(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.Cards.GetCardSummary(f.ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, summary.CardCount)
	assert.Nil(t, summary.NextDueDate)
}
