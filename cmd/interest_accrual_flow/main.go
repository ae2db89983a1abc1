package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/livefire2015/ez-cards/src/store/memory"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()

	// The simulated clock moves through the cycle between steps
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	svc := services.New(memory.New(), services.Options{
		Logger: logging.Discard(),
		Clock:  func() time.Time { return now },
	})

	card, err := svc.Cards.CreateCard(ctx, services.CreateCardRequest{
		UserID:       uuid.New(),
		Name:         "Interest Demo Card",
		Brand:        models.CardBrandVisa,
		TotalLimit:   decimal.NewFromInt(5000),
		ClosingDay:   10,
		DueDay:       20,
		InterestRate: decimal.NewFromInt(12), // 12% a month on overdue balances
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("=== EZ Cards - Interest Accrual Flow Example ===")
	fmt.Println()

	// --- Cycle 1: Paid In Full ---
	fmt.Println("--- Cycle 1: Paid In Full ---")

	if _, err := svc.Purchases.CreatePurchase(ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Groceries",
		Amount:      decimal.NewFromInt(800),
	}); err != nil {
		log.Fatal(err)
	}

	march, err := svc.Bills.GetCurrentOrCreateBill(ctx, card.ID)
	if err != nil {
		log.Fatal(err)
	}
	printBill("Opened", march)

	now = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)
	sweep(ctx, svc, now)
	march = reload(ctx, svc, march.ID)
	printBill("After closing", march)

	now = time.Date(2024, time.March, 18, 9, 0, 0, 0, time.UTC)
	pay(ctx, svc, march.ID, march.RemainingAmount)
	march = reload(ctx, svc, march.ID)
	printBill("Paid before due date", march)
	fmt.Println("  No interest: the bill was settled on time.")
	fmt.Println()

	// --- Cycle 2: Partial payment, then overdue ---
	fmt.Println("--- Cycle 2: Overdue ---")

	now = time.Date(2024, time.April, 2, 12, 0, 0, 0, time.UTC)
	if _, err := svc.Purchases.CreatePurchase(ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Flight tickets",
		Amount:      decimal.NewFromInt(2000),
	}); err != nil {
		log.Fatal(err)
	}

	april, err := svc.Bills.GetCurrentOrCreateBill(ctx, card.ID)
	if err != nil {
		log.Fatal(err)
	}
	printBill("Opened", april)

	now = time.Date(2024, time.April, 15, 12, 0, 0, 0, time.UTC)
	sweep(ctx, svc, now)
	pay(ctx, svc, april.ID, april.MinimumPayment)
	april = reload(ctx, svc, april.ID)
	printBill("Minimum paid", april)

	now = time.Date(2024, time.April, 21, 9, 0, 0, 0, time.UTC)
	result := sweep(ctx, svc, now)
	for _, fee := range result.Fees {
		fmt.Printf("  Charges on $%s: late fee $%s, interest $%s (%d day(s) overdue)\n",
			fee.BaseAmount.StringFixed(2), fee.LateFee.StringFixed(2),
			fee.Interest.StringFixed(2), fee.DaysOverdue)
	}
	april = reload(ctx, svc, april.ID)
	printBill("Overdue", april)

	now = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	result = sweep(ctx, svc, now)
	fmt.Printf("  Sweep on %s assessed %d new charge(s); charges apply once per bill\n",
		now.Format("2006-01-02"), len(result.Fees))

	pay(ctx, svc, april.ID, april.RemainingAmount)
	april = reload(ctx, svc, april.ID)
	printBill("Settled", april)
	fmt.Println()

	// --- Summary ---
	summary, err := svc.Cards.GetCardSummary(ctx, card.UserID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("--- Summary ---")
	fmt.Printf("  Used limit:        $%s\n", summary.TotalUsedLimit.StringFixed(2))
	fmt.Printf("  Available limit:   $%s\n", summary.TotalAvailableLimit.StringFixed(2))
	fmt.Printf("  Outstanding bills: $%s\n", summary.TotalOutstanding.StringFixed(2))
	fmt.Println()

	fmt.Println("=== Example Complete ===")
}

func sweep(ctx context.Context, svc *services.Services, at time.Time) *services.SweepResult {
	result, err := svc.Bills.RefreshStatuses(ctx, at)
	if err != nil {
		log.Fatal(fmt.Errorf("sweep at %s: %w", at.Format("2006-01-02"), err))
	}
	return result
}

func pay(ctx context.Context, svc *services.Services, billID uuid.UUID, amount decimal.Decimal) {
	_, err := svc.Payments.CreatePayment(ctx, services.CreatePaymentRequest{
		BillID:        billID,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodBankTransfer,
	})
	if err != nil {
		log.Fatal(fmt.Errorf("pay bill: %w", err))
	}
}

func reload(ctx context.Context, svc *services.Services, billID uuid.UUID) *models.CreditCardBill {
	bill, err := svc.Bills.GetBill(ctx, billID)
	if err != nil {
		log.Fatal(err)
	}
	return bill
}

func printBill(label string, bill *models.CreditCardBill) {
	fmt.Printf("  %-22s %02d/%d  status %-7s total $%-9s paid $%-9s remaining $%s\n",
		label+":", bill.ReferenceMonth, bill.ReferenceYear, bill.Status,
		bill.TotalAmount.StringFixed(2), bill.PaidAmount.StringFixed(2),
		bill.RemainingAmount.StringFixed(2))
}
