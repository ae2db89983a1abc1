package main

import (
	"context"
	"errors"
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

// This example walks one card through its whole life on the in-memory store:
// 1. Create a card
// 2. Reject a purchase above the available limit
// 3. Split a purchase into 12 installments
// 4. Pay the current bill
// 5. Try to delete a bill that has payments
// 6. Reconcile the card

func main() {
	ctx := context.Background()

	// A fixed clock keeps the printed dates stable
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	svc := services.New(memory.New(), services.Options{
		Logger: logging.Discard(),
		Clock:  func() time.Time { return now },
	})

	fmt.Println("=== EZ Cards - Complete Flow Example ===")
	fmt.Println()

	// Step 1: Create a card
	fmt.Println("Step 1: Creating Card")
	fmt.Println("---------------------")

	card, err := svc.Cards.CreateCard(ctx, services.CreateCardRequest{
		UserID:       uuid.New(),
		Name:         "Everyday Card",
		Brand:        models.CardBrandMastercard,
		TotalLimit:   decimal.NewFromInt(5000),
		ClosingDay:   10,
		DueDay:       20,
		InterestRate: decimal.NewFromInt(10),
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ %s: limit $%s, closes on day %d, due on day %d\n\n",
		card.Name, card.TotalLimit.StringFixed(2), card.ClosingDay, card.DueDay)

	// Step 2: Over-limit purchase
	fmt.Println("Step 2: Purchase Above Limit")
	fmt.Println("----------------------------")

	_, err = svc.Purchases.CreatePurchase(ctx, services.CreatePurchaseRequest{
		CardID:      card.ID,
		Description: "Motorbike",
		Amount:      decimal.NewFromInt(6000),
	})
	var insufficient *models.InsufficientLimitError
	if !errors.As(err, &insufficient) {
		log.Fatalf("expected an insufficient limit error, got %v", err)
	}
	fmt.Printf("  ✗ Rejected: requested $%s, available $%s\n\n",
		insufficient.Requested.StringFixed(2), insufficient.Available.StringFixed(2))

	// Step 3: Installment purchase
	fmt.Println("Step 3: Purchase in 12 Installments")
	fmt.Println("-----------------------------------")

	purchase, err := svc.Purchases.CreatePurchase(ctx, services.CreatePurchaseRequest{
		CardID:        card.ID,
		Description:   "Television",
		Merchant:      "Electronics Store",
		Amount:        decimal.NewFromInt(1200),
		Installments:  12,
		IsInstallment: true,
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, inst := range purchase.Installments {
		fmt.Printf("  • %2d/%d  $%s  due %s\n",
			inst.InstallmentNumber, len(purchase.Installments),
			inst.Amount.StringFixed(2), inst.DueDate.Format("2006-01-02"))
	}
	fmt.Printf("\n  Limit after purchase: used $%s, available $%s\n\n",
		purchase.Limit.UsedLimit.StringFixed(2), purchase.Limit.AvailableLimit.StringFixed(2))

	// Step 4: Pay the current bill
	fmt.Println("Step 4: Paying the Current Bill")
	fmt.Println("-------------------------------")

	bill, err := svc.Bills.GetCurrentOrCreateBill(ctx, card.ID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  Bill %02d/%d: total $%s, minimum $%s, status %s\n",
		bill.ReferenceMonth, bill.ReferenceYear,
		bill.TotalAmount.StringFixed(2), bill.MinimumPayment.StringFixed(2), bill.Status)

	paid, err := svc.Payments.CreatePayment(ctx, services.CreatePaymentRequest{
		BillID:        bill.ID,
		Amount:        bill.RemainingAmount,
		PaymentMethod: models.PaymentMethodPix,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ Paid $%s → status %s (limit unchanged: available $%s)\n\n",
		paid.Payment.Amount.StringFixed(2), paid.Bill.Status, purchase.Limit.AvailableLimit.StringFixed(2))

	// Step 5: Delete a bill with payments
	fmt.Println("Step 5: Deleting a Paid Bill")
	fmt.Println("----------------------------")

	_, err = svc.Bills.DeleteBill(ctx, bill.ID)
	var hasPayments *models.HasPaymentsError
	if !errors.As(err, &hasPayments) {
		log.Fatalf("expected a has-payments error, got %v", err)
	}
	fmt.Printf("  ✗ Refused: %d payment(s) recorded\n\n", hasPayments.PaymentCount)

	// Step 6: Reconciliation
	fmt.Println("Step 6: Reconciliation Report")
	fmt.Println("=============================")

	report, err := svc.Reconcile.GenerateReconciliationReport(ctx, card.ID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nCard: %s\n", card.ID)
	fmt.Printf("Report Generated: %s\n\n", report.ReportGeneratedAt.Format(time.RFC1123))
	fmt.Printf("  Stored used limit:   $%s\n", report.StoredLimit.UsedLimit.StringFixed(2))
	fmt.Printf("  Expected used limit: $%s\n", report.ExpectedLimit.UsedLimit.StringFixed(2))
	fmt.Printf("  Drifted bills:       %d\n", len(report.BillDrift))
	fmt.Printf("  In sync:             %t\n\n", report.InSync())

	fmt.Println("=== Example Complete ===")
}
