// Package memory is an in-process implementation of store.Store.
//
// Transactions take the store's write lock for their whole duration and
// work on a cloned state that replaces the live one on commit, so a failed
// transaction leaves no trace. Records are copied in and out; callers never
// share memory with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/shopspring/decimal"
)

type state struct {
	cards        map[uuid.UUID]models.CreditCard
	bills        map[uuid.UUID]models.CreditCardBill
	purchases    map[uuid.UUID]models.CreditCardPurchase
	installments map[uuid.UUID]models.CreditCardInstallment
	payments     map[uuid.UUID]models.CreditCardPayment
}

func newState() *state {
	return &state{
		cards:        make(map[uuid.UUID]models.CreditCard),
		bills:        make(map[uuid.UUID]models.CreditCardBill),
		purchases:    make(map[uuid.UUID]models.CreditCardPurchase),
		installments: make(map[uuid.UUID]models.CreditCardInstallment),
		payments:     make(map[uuid.UUID]models.CreditCardPayment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.bills {
		c.bills[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// Store is an in-memory store.Store
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn against a private copy of the state and publishes it only
// when fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(view{tx: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

// Close is a no-op
func (s *Store) Close() error { return nil }

func (s *Store) Cards() store.CardRepository               { return cardRepo{view{store: s}} }
func (s *Store) Bills() store.BillRepository               { return billRepo{view{store: s}} }
func (s *Store) Purchases() store.PurchaseRepository       { return purchaseRepo{view{store: s}} }
func (s *Store) Installments() store.InstallmentRepository { return installmentRepo{view{store: s}} }
func (s *Store) Payments() store.PaymentRepository         { return paymentRepo{view{store: s}} }

// view is either bound to a transaction's working state or to the live
// state behind the store's lock
type view struct {
	store *Store
	tx    *state
}

func (v view) Cards() store.CardRepository               { return cardRepo{v} }
func (v view) Bills() store.BillRepository               { return billRepo{v} }
func (v view) Purchases() store.PurchaseRepository       { return purchaseRepo{v} }
func (v view) Installments() store.InstallmentRepository { return installmentRepo{v} }
func (v view) Payments() store.PaymentRepository         { return paymentRepo{v} }

func (v view) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.st)
}

func (v view) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sameID(a *uuid.UUID, b uuid.UUID) bool {
	return a != nil && *a == b
}

// cards

type cardRepo struct{ v view }

func (r cardRepo) Create(ctx context.Context, card *models.CreditCard) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.cards[card.ID]; ok {
			return fmt.Errorf("%w: credit card %s", store.ErrDuplicate, card.ID)
		}
		st.cards[card.ID] = *card
		return nil
	})
}

func (r cardRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCard, error) {
	var out *models.CreditCard
	err := r.v.read(ctx, func(st *state) error {
		card, ok := st.cards[id]
		if !ok {
			return models.NewNotFoundError(models.EntityCard, id)
		}
		out = &card
		return nil
	})
	return out, err
}

func (r cardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CreditCard, error) {
	var out []*models.CreditCard
	err := r.v.read(ctx, func(st *state) error {
		for _, card := range st.cards {
			if card.UserID == userID {
				c := card
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r cardRepo) Update(ctx context.Context, card *models.CreditCard) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.cards[card.ID]; !ok {
			return models.NewNotFoundError(models.EntityCard, card.ID)
		}
		st.cards[card.ID] = *card
		return nil
	})
}

func (r cardRepo) UpdateLimit(ctx context.Context, snapshot models.LimitSnapshot, updatedAt time.Time) error {
	return r.v.write(ctx, func(st *state) error {
		card, ok := st.cards[snapshot.CardID]
		if !ok {
			return models.NewNotFoundError(models.EntityCard, snapshot.CardID)
		}
		card.UsedLimit = snapshot.UsedLimit
		card.AvailableLimit = snapshot.AvailableLimit
		card.UpdatedAt = updatedAt
		st.cards[card.ID] = card
		return nil
	})
}

func (r cardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.cards[id]; !ok {
			return models.NewNotFoundError(models.EntityCard, id)
		}

		bills := make(map[uuid.UUID]bool)
		for billID, bill := range st.bills {
			if bill.CardID == id {
				bills[billID] = true
			}
		}
		for _, payment := range st.payments {
			if bills[payment.BillID] {
				return fmt.Errorf("%w: bill %s has payments", store.ErrReferenced, payment.BillID)
			}
		}

		for purchaseID, purchase := range st.purchases {
			if purchase.CardID != id {
				continue
			}
			for instID, inst := range st.installments {
				if inst.PurchaseID == purchaseID {
					delete(st.installments, instID)
				}
			}
			delete(st.purchases, purchaseID)
		}
		for billID := range bills {
			delete(st.bills, billID)
		}
		delete(st.cards, id)
		return nil
	})
}

// bills

type billRepo struct{ v view }

func copyBill(b models.CreditCardBill) *models.CreditCardBill {
	b.PaymentDate = copyTime(b.PaymentDate)
	b.FeesAssessedAt = copyTime(b.FeesAssessedAt)
	return &b
}

func (r billRepo) Create(ctx context.Context, bill *models.CreditCardBill) error {
	return r.v.write(ctx, func(st *state) error {
		for _, existing := range st.bills {
			if existing.CardID == bill.CardID &&
				existing.ReferenceMonth == bill.ReferenceMonth &&
				existing.ReferenceYear == bill.ReferenceYear {
				return fmt.Errorf("%w: bill %02d/%d for card %s",
					store.ErrDuplicate, bill.ReferenceMonth, bill.ReferenceYear, bill.CardID)
			}
		}
		if _, ok := st.cards[bill.CardID]; !ok {
			return models.NewNotFoundError(models.EntityCard, bill.CardID)
		}
		st.bills[bill.ID] = *copyBill(*bill)
		return nil
	})
}

func (r billRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardBill, error) {
	var out *models.CreditCardBill
	err := r.v.read(ctx, func(st *state) error {
		bill, ok := st.bills[id]
		if !ok {
			return models.NewNotFoundError(models.EntityBill, id)
		}
		out = copyBill(bill)
		return nil
	})
	return out, err
}

func (r billRepo) GetByReference(ctx context.Context, cardID uuid.UUID, month, year int) (*models.CreditCardBill, error) {
	var out *models.CreditCardBill
	err := r.v.read(ctx, func(st *state) error {
		for _, bill := range st.bills {
			if bill.CardID == cardID && bill.ReferenceMonth == month && bill.ReferenceYear == year {
				out = copyBill(bill)
				return nil
			}
		}
		return models.NewNotFoundError(models.EntityBill, uuid.Nil)
	})
	return out, err
}

func (r billRepo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardBill, error) {
	return r.list(ctx, func(b models.CreditCardBill) bool { return b.CardID == cardID })
}

func (r billRepo) ListUnsettled(ctx context.Context) ([]*models.CreditCardBill, error) {
	return r.list(ctx, func(b models.CreditCardBill) bool { return b.Status != models.BillStatusPaid })
}

func (r billRepo) list(ctx context.Context, keep func(models.CreditCardBill) bool) ([]*models.CreditCardBill, error) {
	var out []*models.CreditCardBill
	err := r.v.read(ctx, func(st *state) error {
		for _, bill := range st.bills {
			if keep(bill) {
				out = append(out, copyBill(bill))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReferenceYear != out[j].ReferenceYear {
			return out[i].ReferenceYear < out[j].ReferenceYear
		}
		if out[i].ReferenceMonth != out[j].ReferenceMonth {
			return out[i].ReferenceMonth < out[j].ReferenceMonth
		}
		return out[i].CardID.String() < out[j].CardID.String()
	})
	return out, err
}

func (r billRepo) Update(ctx context.Context, bill *models.CreditCardBill) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.bills[bill.ID]; !ok {
			return models.NewNotFoundError(models.EntityBill, bill.ID)
		}
		st.bills[bill.ID] = *copyBill(*bill)
		return nil
	})
}

func (r billRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.bills[id]; !ok {
			return models.NewNotFoundError(models.EntityBill, id)
		}
		for _, payment := range st.payments {
			if payment.BillID == id {
				return fmt.Errorf("%w: bill %s has payments", store.ErrReferenced, id)
			}
		}
		// Referencing purchases and installments behave like ON DELETE SET NULL
		for pid, purchase := range st.purchases {
			if sameID(purchase.BillID, id) {
				purchase.BillID = nil
				st.purchases[pid] = purchase
			}
		}
		for iid, inst := range st.installments {
			if sameID(inst.BillID, id) {
				inst.BillID = nil
				st.installments[iid] = inst
			}
		}
		delete(st.bills, id)
		return nil
	})
}

func (r billRepo) Totals(ctx context.Context, id uuid.UUID) (models.BillTotals, error) {
	totals := models.BillTotals{Charges: decimal.Zero, Payments: decimal.Zero}
	err := r.v.read(ctx, func(st *state) error {
		if _, ok := st.bills[id]; !ok {
			return models.NewNotFoundError(models.EntityBill, id)
		}
		for _, purchase := range st.purchases {
			if sameID(purchase.BillID, id) && !purchase.IsSplit() {
				totals.Charges = totals.Charges.Add(purchase.Amount)
			}
		}
		for _, inst := range st.installments {
			if sameID(inst.BillID, id) {
				totals.Charges = totals.Charges.Add(inst.Amount)
			}
		}
		for _, payment := range st.payments {
			if payment.BillID == id {
				totals.Payments = totals.Payments.Add(payment.Amount)
			}
		}
		return nil
	})
	return totals, err
}

// purchases

type purchaseRepo struct{ v view }

func copyPurchase(p models.CreditCardPurchase) *models.CreditCardPurchase {
	p.BillID = copyID(p.BillID)
	p.CategoryID = copyID(p.CategoryID)
	return &p
}

func (r purchaseRepo) Create(ctx context.Context, purchase *models.CreditCardPurchase) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.purchases[purchase.ID]; ok {
			return fmt.Errorf("%w: purchase %s", store.ErrDuplicate, purchase.ID)
		}
		if _, ok := st.cards[purchase.CardID]; !ok {
			return models.NewNotFoundError(models.EntityCard, purchase.CardID)
		}
		st.purchases[purchase.ID] = *copyPurchase(*purchase)
		return nil
	})
}

func (r purchaseRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPurchase, error) {
	var out *models.CreditCardPurchase
	err := r.v.read(ctx, func(st *state) error {
		purchase, ok := st.purchases[id]
		if !ok {
			return models.NewNotFoundError(models.EntityPurchase, id)
		}
		out = copyPurchase(purchase)
		return nil
	})
	return out, err
}

func (r purchaseRepo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardPurchase, error) {
	return r.list(ctx, func(p models.CreditCardPurchase) bool { return p.CardID == cardID })
}

func (r purchaseRepo) ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPurchase, error) {
	return r.list(ctx, func(p models.CreditCardPurchase) bool { return sameID(p.BillID, billID) })
}

func (r purchaseRepo) list(ctx context.Context, keep func(models.CreditCardPurchase) bool) ([]*models.CreditCardPurchase, error) {
	var out []*models.CreditCardPurchase
	err := r.v.read(ctx, func(st *state) error {
		for _, purchase := range st.purchases {
			if keep(purchase) {
				out = append(out, copyPurchase(purchase))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.Before(out[j].PurchaseDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r purchaseRepo) Update(ctx context.Context, purchase *models.CreditCardPurchase) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.purchases[purchase.ID]; !ok {
			return models.NewNotFoundError(models.EntityPurchase, purchase.ID)
		}
		if _, ok := st.cards[purchase.CardID]; !ok {
			return models.NewNotFoundError(models.EntityCard, purchase.CardID)
		}
		st.purchases[purchase.ID] = *copyPurchase(*purchase)
		return nil
	})
}

func (r purchaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.purchases[id]; !ok {
			return models.NewNotFoundError(models.EntityPurchase, id)
		}
		for iid, inst := range st.installments {
			if inst.PurchaseID == id {
				delete(st.installments, iid)
			}
		}
		delete(st.purchases, id)
		return nil
	})
}

func (r purchaseRepo) SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.v.read(ctx, func(st *state) error {
		for _, purchase := range st.purchases {
			if purchase.CardID == cardID {
				sum = sum.Add(purchase.Amount)
			}
		}
		return nil
	})
	return sum, err
}

func (r purchaseRepo) UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.write(ctx, func(st *state) error {
		for id, purchase := range st.purchases {
			if sameID(purchase.BillID, billID) {
				purchase.BillID = nil
				st.purchases[id] = purchase
				n++
			}
		}
		return nil
	})
	return n, err
}

// installments

type installmentRepo struct{ v view }

func copyInstallment(i models.CreditCardInstallment) *models.CreditCardInstallment {
	i.BillID = copyID(i.BillID)
	return &i
}

func (r installmentRepo) CreateBatch(ctx context.Context, installments []*models.CreditCardInstallment) error {
	return r.v.write(ctx, func(st *state) error {
		for _, inst := range installments {
			if _, ok := st.purchases[inst.PurchaseID]; !ok {
				return models.NewNotFoundError(models.EntityPurchase, inst.PurchaseID)
			}
			for _, existing := range st.installments {
				if existing.PurchaseID == inst.PurchaseID && existing.InstallmentNumber == inst.InstallmentNumber {
					return fmt.Errorf("%w: installment %d of purchase %s",
						store.ErrDuplicate, inst.InstallmentNumber, inst.PurchaseID)
				}
			}
			st.installments[inst.ID] = *copyInstallment(*inst)
		}
		return nil
	})
}

func (r installmentRepo) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]*models.CreditCardInstallment, error) {
	var out []*models.CreditCardInstallment
	err := r.v.read(ctx, func(st *state) error {
		for _, inst := range st.installments {
			if inst.PurchaseID == purchaseID {
				out = append(out, copyInstallment(inst))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, err
}

func (r installmentRepo) DeleteByPurchase(ctx context.Context, purchaseID uuid.UUID) error {
	return r.v.write(ctx, func(st *state) error {
		for id, inst := range st.installments {
			if inst.PurchaseID == purchaseID {
				delete(st.installments, id)
			}
		}
		return nil
	})
}

func (r installmentRepo) UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.write(ctx, func(st *state) error {
		for id, inst := range st.installments {
			if sameID(inst.BillID, billID) {
				inst.BillID = nil
				st.installments[id] = inst
				n++
			}
		}
		return nil
	})
	return n, err
}

// payments

type paymentRepo struct{ v view }

func copyPayment(p models.CreditCardPayment) *models.CreditCardPayment {
	p.TransactionID = copyID(p.TransactionID)
	return &p
}

func (r paymentRepo) Create(ctx context.Context, payment *models.CreditCardPayment) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.payments[payment.ID]; ok {
			return fmt.Errorf("%w: payment %s", store.ErrDuplicate, payment.ID)
		}
		if _, ok := st.bills[payment.BillID]; !ok {
			return models.NewNotFoundError(models.EntityBill, payment.BillID)
		}
		st.payments[payment.ID] = *copyPayment(*payment)
		return nil
	})
}

func (r paymentRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPayment, error) {
	var out *models.CreditCardPayment
	err := r.v.read(ctx, func(st *state) error {
		payment, ok := st.payments[id]
		if !ok {
			return models.NewNotFoundError(models.EntityPayment, id)
		}
		out = copyPayment(payment)
		return nil
	})
	return out, err
}

func (r paymentRepo) ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPayment, error) {
	var out []*models.CreditCardPayment
	err := r.v.read(ctx, func(st *state) error {
		for _, payment := range st.payments {
			if payment.BillID == billID {
				out = append(out, copyPayment(payment))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r paymentRepo) CountByBill(ctx context.Context, billID uuid.UUID) (int, error) {
	var n int
	err := r.v.read(ctx, func(st *state) error {
		for _, payment := range st.payments {
			if payment.BillID == billID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r paymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.write(ctx, func(st *state) error {
		if _, ok := st.payments[id]; !ok {
			return models.NewNotFoundError(models.EntityPayment, id)
		}
		delete(st.payments, id)
		return nil
	})
}
