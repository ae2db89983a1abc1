package models_test

import (
	"testing"
	"time"

	"github.com/livefire2015/ez-cards/src/models"
	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestBillCycleResolverCycleFor(t *testing.T) {
	tests := []struct {
		name        string
		closingDay  int
		dueDay      int
		month       time.Month
		year        int
		wantOpening time.Time
		wantClosing time.Time
		wantDue     time.Time
		wantRef     [2]int
	}{
		{
			name:        "due after closing falls in the same month",
			closingDay:  10,
			dueDay:      20,
			month:       time.March,
			year:        2024,
			wantOpening: date(2024, time.February, 11),
			wantClosing: date(2024, time.March, 10),
			wantDue:     date(2024, time.March, 20),
			wantRef:     [2]int{3, 2024},
		},
		{
			name:        "due before closing falls in the next month",
			closingDay:  25,
			dueDay:      5,
			month:       time.March,
			year:        2024,
			wantOpening: date(2024, time.February, 26),
			wantClosing: date(2024, time.March, 25),
			wantDue:     date(2024, time.April, 5),
			wantRef:     [2]int{3, 2024},
		},
		{
			name:        "closing day 31 clamps to Feb 29 in a leap year",
			closingDay:  31,
			dueDay:      10,
			month:       time.February,
			year:        2024,
			wantOpening: date(2024, time.February, 1),
			wantClosing: date(2024, time.February, 29),
			wantDue:     date(2024, time.March, 10),
			wantRef:     [2]int{2, 2024},
		},
		{
			name:        "closing day 31 clamps to Feb 28",
			closingDay:  31,
			dueDay:      10,
			month:       time.February,
			year:        2023,
			wantOpening: date(2023, time.February, 1),
			wantClosing: date(2023, time.February, 28),
			wantDue:     date(2023, time.March, 10),
			wantRef:     [2]int{2, 2023},
		},
		{
			name:        "opening follows a clamped February closing",
			closingDay:  30,
			dueDay:      8,
			month:       time.March,
			year:        2023,
			wantOpening: date(2023, time.March, 1),
			wantClosing: date(2023, time.March, 30),
			wantDue:     date(2023, time.April, 8),
			wantRef:     [2]int{3, 2023},
		},
		{
			name:        "January opens in the previous year",
			closingDay:  31,
			dueDay:      10,
			month:       time.January,
			year:        2024,
			wantOpening: date(2024, time.January, 1),
			wantClosing: date(2024, time.January, 31),
			wantDue:     date(2024, time.February, 10),
			wantRef:     [2]int{1, 2024},
		},
		{
			name:        "December bill is due in January",
			closingDay:  10,
			dueDay:      5,
			month:       time.December,
			year:        2024,
			wantOpening: date(2024, time.November, 11),
			wantClosing: date(2024, time.December, 10),
			wantDue:     date(2025, time.January, 5),
			wantRef:     [2]int{12, 2024},
		},
		{
			name:        "due day equal to closing day falls in the next month",
			closingDay:  15,
			dueDay:      15,
			month:       time.June,
			year:        2024,
			wantOpening: date(2024, time.May, 16),
			wantClosing: date(2024, time.June, 15),
			wantDue:     date(2024, time.July, 15),
			wantRef:     [2]int{6, 2024},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := models.NewBillCycleResolver(tt.closingDay, tt.dueDay, time.UTC)
			cycle := r.CycleFor(tt.month, tt.year)

			assert.Equal(t, tt.wantOpening, cycle.OpeningDate)
			assert.Equal(t, tt.wantClosing, cycle.ClosingDate)
			assert.Equal(t, tt.wantDue, cycle.DueDate)
			assert.Equal(t, tt.wantRef, [2]int{cycle.ReferenceMonth, cycle.ReferenceYear})
		})
	}
}

func TestBillCycleResolverCycleContaining(t *testing.T) {
	tests := []struct {
		name       string
		closingDay int
		at         time.Time
		wantMonth  int
		wantYear   int
	}{
		{"before closing", 10, date(2024, time.March, 5), 3, 2024},
		{"on closing day", 10, time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC), 3, 2024},
		{"day after closing", 10, date(2024, time.March, 11), 4, 2024},
		{"after December closing rolls the year", 10, date(2024, time.December, 15), 1, 2025},
		{"leap day with clamped closing", 31, date(2024, time.February, 29), 2, 2024},
		{"first of March after clamped closing", 31, date(2024, time.March, 1), 3, 2024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := models.NewBillCycleResolver(tt.closingDay, 20, time.UTC)
			cycle := r.CycleContaining(tt.at)

			assert.Equal(t, tt.wantMonth, cycle.ReferenceMonth)
			assert.Equal(t, tt.wantYear, cycle.ReferenceYear)
			assert.True(t, cycle.Contains(tt.at))
		})
	}
}

func TestBillCycleResolverCurrentCycle(t *testing.T) {
	r := models.NewBillCycleResolver(10, 20, time.UTC)

	tests := []struct {
		name      string
		now       time.Time
		wantMonth int
	}{
		{"before closing", date(2024, time.March, 5), 3},
		{"between closing and due", date(2024, time.March, 15), 3},
		{"on due date", time.Date(2024, time.March, 20, 18, 0, 0, 0, time.UTC), 3},
		{"after due date rolls forward", date(2024, time.March, 21), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMonth, r.CurrentCycle(tt.now).ReferenceMonth)
		})
	}
}

func TestBillCycleResolverCurrentCycleDueBeforeClosing(t *testing.T) {
	r := models.NewBillCycleResolver(25, 5, time.UTC)

	tests := []struct {
		name      string
		now       time.Time
		wantMonth int
		wantYear  int
		wantDue   time.Time
	}{
		{"before the month's due day", date(2024, time.October, 3), 10, 2024, date(2024, time.November, 5)},
		{"on the month's due day", date(2024, time.October, 5), 10, 2024, date(2024, time.November, 5)},
		{"after the month's due day rolls forward", date(2024, time.October, 10), 11, 2024, date(2024, time.December, 5)},
		{"after closing", date(2024, time.October, 28), 11, 2024, date(2024, time.December, 5)},
		{"December rolls the year", date(2024, time.December, 6), 1, 2025, date(2025, time.February, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := r.CurrentCycle(tt.now)
			assert.Equal(t, [2]int{tt.wantMonth, tt.wantYear}, [2]int{cycle.ReferenceMonth, cycle.ReferenceYear})
			assert.Equal(t, tt.wantDue, cycle.DueDate)
		})
	}
}

func TestBillCycleResolverIsDeterministic(t *testing.T) {
	r := models.NewBillCycleResolver(31, 7, time.UTC)
	now := date(2024, time.February, 12)

	assert.Equal(t, r.CurrentCycle(now), r.CurrentCycle(now))
	assert.Equal(t, r.CycleFor(time.February, 2024), r.CycleFor(time.February, 2024))
}

func TestBillCycleResolverShift(t *testing.T) {
	r := models.NewBillCycleResolver(10, 20, time.UTC)
	march := r.CycleFor(time.March, 2024)

	next := r.Shift(march, 11)
	assert.Equal(t, 2, next.ReferenceMonth)
	assert.Equal(t, 2025, next.ReferenceYear)

	prev := r.Shift(march, -3)
	assert.Equal(t, 12, prev.ReferenceMonth)
	assert.Equal(t, 2023, prev.ReferenceYear)
}

func TestBillCycleResolverLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	r := models.NewBillCycleResolver(10, 20, loc)

	// 01:00 UTC on Mar 11 is still Mar 10 in BRT
	cycle := r.CycleContaining(time.Date(2024, time.March, 11, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, cycle.ReferenceMonth)
	assert.Equal(t, loc, cycle.ClosingDate.Location())
}

func TestBillCycleContains(t *testing.T) {
	cycle := models.NewBillCycleResolver(10, 20, time.UTC).CycleFor(time.March, 2024)

	assert.True(t, cycle.Contains(date(2024, time.February, 11)))
	assert.True(t, cycle.Contains(time.Date(2024, time.March, 10, 23, 0, 0, 0, time.UTC)))
	assert.False(t, cycle.Contains(date(2024, time.February, 10)))
	assert.False(t, cycle.Contains(date(2024, time.March, 11)))
}

func TestClampDay(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
		want  int
	}{
		{2023, time.February, 31, 28},
		{2024, time.February, 30, 29},
		{2024, time.April, 31, 30},
		{2024, time.January, 31, 31},
		{2024, time.January, 0, 1},
		{2024, time.June, 15, 15},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.ClampDay(tt.year, tt.month, tt.day), "%d-%02d day %d", tt.year, tt.month, tt.day)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, models.DaysInMonth(2024, time.February))
	assert.Equal(t, 28, models.DaysInMonth(2100, time.February))
	assert.Equal(t, 31, models.DaysInMonth(2024, time.December))
}
