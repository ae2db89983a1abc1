package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardBrand represents the card network
type CardBrand string

const (
	CardBrandVisa       CardBrand = "visa"
	CardBrandMastercard CardBrand = "mastercard"
	CardBrandElo        CardBrand = "elo"
	CardBrandAmex       CardBrand = "amex"
	CardBrandHipercard  CardBrand = "hipercard"
	CardBrandDiners     CardBrand = "diners"
	CardBrandDiscover   CardBrand = "discover"
	CardBrandOther      CardBrand = "other"
)

// IsValid reports whether b is a known brand
func (b CardBrand) IsValid() bool {
	switch b {
	case CardBrandVisa, CardBrandMastercard, CardBrandElo, CardBrandAmex,
		CardBrandHipercard, CardBrandDiners, CardBrandDiscover, CardBrandOther:
		return true
	}
	return false
}

// CreditCard represents a user's credit card with its limit snapshot.
// UsedLimit and AvailableLimit are derived columns owned by the limit
// recalculator; nothing else writes them.
type CreditCard struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// Card identification
	Name           string    `json:"name" db:"name"`
	Brand          CardBrand `json:"brand" db:"brand"`
	LastFourDigits string    `json:"last_four_digits,omitempty" db:"last_four_digits"`
	Color          string    `json:"color,omitempty" db:"color"`

	// Limits
	TotalLimit     decimal.Decimal `json:"total_limit" db:"total_limit"`
	UsedLimit      decimal.Decimal `json:"used_limit" db:"used_limit"`
	AvailableLimit decimal.Decimal `json:"available_limit" db:"available_limit"`

	// Billing configuration
	ClosingDay   int             `json:"closing_day" db:"closing_day"`     // Day of month (1-31), clamped in short months
	DueDay       int             `json:"due_day" db:"due_day"`             // Day of month (1-31), clamped in short months
	InterestRate decimal.Decimal `json:"interest_rate" db:"interest_rate"` // Monthly percentage
	AnnualFee    decimal.Decimal `json:"annual_fee" db:"annual_fee"`

	IsActive bool `json:"is_active" db:"is_active"`

	// Audit fields
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate validates the credit card configuration
func (c *CreditCard) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return NewValidationError("name", ErrNameRequired)
	}
	if len([]rune(name)) > 100 {
		return NewValidationError("name", ErrNameTooLong)
	}

	if !c.Brand.IsValid() {
		return NewValidationError("brand", ErrInvalidBrand)
	}

	if len(c.LastFourDigits) > 4 {
		return NewValidationError("last_four_digits", ErrInvalidLastFour)
	}
	for _, r := range c.LastFourDigits {
		if !unicode.IsDigit(r) {
			return NewValidationError("last_four_digits", ErrInvalidLastFour)
		}
	}

	if c.TotalLimit.IsNegative() {
		return NewValidationError("total_limit", ErrInvalidTotalLimit)
	}

	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return NewValidationError("closing_day", ErrInvalidClosingDay)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return NewValidationError("due_day", ErrInvalidDueDay)
	}

	hundred := decimal.NewFromInt(100)
	if c.InterestRate.IsNegative() || c.InterestRate.GreaterThan(hundred) {
		return NewValidationError("interest_rate", ErrInvalidInterestRate)
	}

	if c.AnnualFee.IsNegative() {
		return NewValidationError("annual_fee", ErrInvalidAnnualFee)
	}

	return nil
}

// CanTransact checks if the card can take new purchases
func (c *CreditCard) CanTransact() error {
	if !c.IsActive {
		return NewValidationError("card", ErrCardInactive)
	}
	return nil
}

// HasAvailableLimit checks whether amount fits in the current available limit
func (c *CreditCard) HasAvailableLimit(amount decimal.Decimal) error {
	if amount.GreaterThan(c.AvailableLimit) {
		return &InsufficientLimitError{
			CardID:    c.ID,
			Requested: amount,
			Available: c.AvailableLimit,
		}
	}
	return nil
}

// ApplyLimit stores a recalculated snapshot on the card
func (c *CreditCard) ApplyLimit(snapshot LimitSnapshot) {
	c.UsedLimit = snapshot.UsedLimit
	c.AvailableLimit = snapshot.AvailableLimit
}

// Resolver returns the bill cycle resolver for this card's cycle days
func (c *CreditCard) Resolver(loc *time.Location) BillCycleResolver {
	return NewBillCycleResolver(c.ClosingDay, c.DueDay, loc)
}

// LimitSnapshot is the derived limit state of a card
type LimitSnapshot struct {
	CardID         uuid.UUID       `json:"card_id"`
	TotalLimit     decimal.Decimal `json:"total_limit"`
	UsedLimit      decimal.Decimal `json:"used_limit"`
	AvailableLimit decimal.Decimal `json:"available_limit"`
}

// ComputeLimitSnapshot derives used/available limit from the summed amount
// of the card's live purchases. Available limit is floored at zero.
func ComputeLimitSnapshot(cardID uuid.UUID, totalLimit, purchasesTotal decimal.Decimal) LimitSnapshot {
	used := RoundMoney(purchasesTotal)

	available := totalLimit.Sub(used)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return LimitSnapshot{
		CardID:         cardID,
		TotalLimit:     totalLimit,
		UsedLimit:      used,
		AvailableLimit: RoundMoney(available),
	}
}

// RoundMoney rounds a monetary amount to currency precision
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CreditCardDefaults provides sensible default values for a new credit card
func CreditCardDefaults() CreditCard {
	return CreditCard{
		Brand:          CardBrandOther,
		TotalLimit:     decimal.Zero,
		UsedLimit:      decimal.Zero,
		AvailableLimit: decimal.Zero,
		ClosingDay:     1,
		DueDay:         10,
		InterestRate:   decimal.Zero,
		AnnualFee:      decimal.Zero,
		IsActive:       true,
	}
}

// BillingPolicy holds the amounts used to derive minimum payments and
// late charges on bills
type BillingPolicy struct {
	MinimumPaymentPercent decimal.Decimal `json:"minimum_payment_percent"`
	MinimumPaymentAmount  decimal.Decimal `json:"minimum_payment_amount"`
	LateFeePercent        decimal.Decimal `json:"late_fee_percent"`
}

// DefaultBillingPolicy returns the standard policy
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		MinimumPaymentPercent: decimal.NewFromInt(15),
		MinimumPaymentAmount:  decimal.NewFromInt(50),
		LateFeePercent:        decimal.NewFromInt(2),
	}
}

// CalculateMinimumPayment calculates the minimum payment due
// Returns the greater of: percentage of balance OR fixed minimum amount,
// never more than the balance itself
func (p BillingPolicy) CalculateMinimumPayment(balance decimal.Decimal) decimal.Decimal {
	if balance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	percentMin := RoundMoney(balance.Mul(p.MinimumPaymentPercent).Div(decimal.NewFromInt(100)))

	if percentMin.LessThan(p.MinimumPaymentAmount) {
		if balance.LessThan(p.MinimumPaymentAmount) {
			return balance
		}
		return p.MinimumPaymentAmount
	}

	return percentMin
}

// CalculateLateFee calculates the late fee charged on an overdue balance
func (p BillingPolicy) CalculateLateFee(remaining decimal.Decimal) decimal.Decimal {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return RoundMoney(remaining.Mul(p.LateFeePercent).Div(decimal.NewFromInt(100)))
}

// CalculateInterest calculates one month of interest on an overdue balance
// at the card's monthly rate
func (c *CreditCard) CalculateInterest(remaining decimal.Decimal) decimal.Decimal {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return RoundMoney(remaining.Mul(c.InterestRate).Div(decimal.NewFromInt(100)))
}
