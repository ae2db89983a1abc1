package models

import (
	"time"
)

// BillCycle is the date window of one monthly bill
type BillCycle struct {
	ReferenceMonth int       `json:"reference_month"`
	ReferenceYear  int       `json:"reference_year"`
	OpeningDate    time.Time `json:"opening_date"`
	ClosingDate    time.Time `json:"closing_date"`
	DueDate        time.Time `json:"due_date"`
}

// Contains reports whether t falls inside [OpeningDate, ClosingDate] by calendar day
func (c BillCycle) Contains(t time.Time) bool {
	d := DateOnly(t.In(c.OpeningDate.Location()))
	return !d.Before(c.OpeningDate) && !d.After(c.ClosingDate)
}

// BillCycleResolver maps a card's closing/due days and a reference date to
// concrete bill cycles. It has no state besides its configuration, so the
// same input always yields the same cycle.
//
// Days past the end of a short month clamp to its last day: closing day 31
// closes on Feb 28 (or 29). The due date falls in the closing month when
// the due day is after the closing day, otherwise in the following month.
// Which bill is current is still decided by the due day of the calendar
// month itself, see CurrentCycle.
type BillCycleResolver struct {
	closingDay int
	dueDay     int
	loc        *time.Location
}

// NewBillCycleResolver creates a resolver; a nil location means UTC
func NewBillCycleResolver(closingDay, dueDay int, loc *time.Location) BillCycleResolver {
	if loc == nil {
		loc = time.UTC
	}
	return BillCycleResolver{closingDay: closingDay, dueDay: dueDay, loc: loc}
}

// CycleFor returns the cycle of the bill referenced by month/year
func (r BillCycleResolver) CycleFor(month time.Month, year int) BillCycle {
	closing := r.date(year, month, r.closingDay)
	opening := r.date(year, month-1, r.closingDay).AddDate(0, 0, 1)

	var due time.Time
	if r.dueDay > r.closingDay {
		due = r.date(year, month, r.dueDay)
	} else {
		due = r.date(year, month+1, r.dueDay)
	}

	return BillCycle{
		ReferenceMonth: int(closing.Month()),
		ReferenceYear:  closing.Year(),
		OpeningDate:    opening,
		ClosingDate:    closing,
		DueDate:        due,
	}
}

// CycleContaining returns the cycle whose opening-closing window contains t.
// Purchases are booked to this cycle.
func (r BillCycleResolver) CycleContaining(t time.Time) BillCycle {
	d := DateOnly(t.In(r.loc))
	year, month := d.Year(), d.Month()

	if d.Day() <= ClampDay(year, month, r.closingDay) {
		return r.CycleFor(month, year)
	}
	return r.CycleFor(month+1, year)
}

// CurrentCycle returns the cycle considered current at now: the bill of
// now's month, or the next one once the due day of now's month has passed.
// With a due day on or before the closing day that happens before the
// month's bill is actually due.
func (r BillCycleResolver) CurrentCycle(now time.Time) BillCycle {
	today := DateOnly(now.In(r.loc))

	cycle := r.CycleFor(today.Month(), today.Year())
	if today.After(r.date(today.Year(), today.Month(), r.dueDay)) {
		return r.Shift(cycle, 1)
	}
	return cycle
}

// Shift returns the cycle n months after (or before, when negative) c
func (r BillCycleResolver) Shift(c BillCycle, n int) BillCycle {
	return r.CycleFor(time.Month(c.ReferenceMonth+n), c.ReferenceYear)
}

// date builds a calendar date, normalizing month overflow first and then
// clamping day to the month's length
func (r BillCycleResolver) date(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, r.loc)
	y, m := first.Year(), first.Month()
	return time.Date(y, m, ClampDay(y, m, day), 0, 0, 0, 0, r.loc)
}

// ClampDay clamps day to the last valid day of the given month
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	last := DaysInMonth(year, month)
	if day > last {
		return last
	}
	return day
}

// DaysInMonth returns the number of days of the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates t to midnight in its own location
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
