package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
)

// Options configures the services; zero values fall back to defaults
type Options struct {
	Policy    models.BillingPolicy
	Location  *time.Location
	Publisher events.Publisher
	Logger    *slog.Logger
	Clock     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Policy == (models.BillingPolicy{}) {
		o.Policy = models.DefaultBillingPolicy()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Services bundles every service wired against one store
type Services struct {
	Cards     *CardService
	Bills     *BillingService
	Purchases *PurchaseService
	Payments  *PaymentService
	Limits    *LimitService
	Fees      *FeeService
	Reconcile *ReconciliationService
}

// New wires all services against st
func New(st store.Store, opts Options) *Services {
	opts = opts.withDefaults()

	limits := NewLimitService(st, opts)
	fees := NewFeeService(st, opts)
	bills := NewBillingService(st, limits, fees, opts)
	fees.bills = bills

	return &Services{
		Cards:     NewCardService(st, limits, opts),
		Bills:     bills,
		Purchases: NewPurchaseService(st, bills, limits, opts),
		Payments:  NewPaymentService(st, bills, opts),
		Limits:    limits,
		Fees:      fees,
		Reconcile: NewReconciliationService(st, bills, limits, opts),
	}
}

// base holds the dependencies shared by every service
type base struct {
	store     store.Store
	policy    models.BillingPolicy
	loc       *time.Location
	publisher events.Publisher
	logger    *slog.Logger
	clock     func() time.Time
}

func newBase(st store.Store, opts Options, component string) base {
	opts = opts.withDefaults()
	return base{
		store:     st,
		policy:    opts.Policy,
		loc:       opts.Location,
		publisher: opts.Publisher,
		logger:    logging.Component(opts.Logger, component),
		clock:     opts.Clock,
	}
}

func (b *base) now() time.Time {
	return b.clock().In(b.loc)
}

// publish delivers events after commit; failures are logged, never returned
func (b *base) publish(ctx context.Context, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := b.publisher.Publish(ctx, evs...); err != nil {
		b.logger.WarnContext(ctx, "failed to publish events",
			logging.FieldError, err,
			"count", len(evs))
	}
}
