package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// FYMode selects the financial-year convention.
type FYMode string

const (
	// FYApril is the April-March financial year.
	FYApril FYMode = "FY_APR"
	// FYCalendar is the January-December year.
	FYCalendar FYMode = "CAL"
)

// Month is a calendar month, the scoring period for every metric.
type Month struct {
	Year int
	Mon  time.Month
}

// ParseMonth parses a "YYYY-MM" period string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, eris.Wrapf(err, "model: parse month %q", s)
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// IsZero reports whether m is the zero month.
func (m Month) IsZero() bool { return m.Year == 0 && m.Mon == 0 }

// MarshalText renders "YYYY-MM"; months serialize as period strings in every
// stored document.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "YYYY-MM".
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Index returns a monotonically increasing month index (year*12 + month-1),
// used for month arithmetic such as the inactivity window.
func (m Month) Index() int { return m.Year*12 + int(m.Mon) - 1 }

// Add returns the month n months after m (n may be negative).
func (m Month) Add(n int) Month {
	idx := m.Index() + n
	y, mo := idx/12, idx%12
	if mo < 0 {
		mo += 12
		y--
	}
	return Month{Year: y, Mon: time.Month(mo + 1)}
}

// Next returns the following month.
func (m Month) Next() Month { return m.Add(1) }

// Prev returns the preceding month.
func (m Month) Prev() Month { return m.Add(-1) }

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool { return m.Index() < other.Index() }

// After reports whether m is strictly later than other.
func (m Month) After(other Month) bool { return m.Index() > other.Index() }

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the first day of the following month, so the
// month window is [Start, End).
func (m Month) End() time.Time { return m.Next().Start() }

// Contains reports whether t falls inside the month window.
func (m Month) Contains(t time.Time) bool {
	return !t.Before(m.Start()) && t.Before(m.End())
}

// FYStart returns the first month of the financial year containing m.
func (m Month) FYStart(mode FYMode) Month {
	if mode == FYCalendar {
		return Month{Year: m.Year, Mon: time.January}
	}
	if m.Mon >= time.April {
		return Month{Year: m.Year, Mon: time.April}
	}
	return Month{Year: m.Year - 1, Mon: time.April}
}

// QuarterStart returns the first month of the fiscal quarter containing m.
func (m Month) QuarterStart(mode FYMode) Month {
	fy := m.FYStart(mode)
	offset := m.Index() - fy.Index()
	return fy.Add((offset / 3) * 3)
}

// IsQuarterEnd reports whether m is the last month of a fiscal quarter.
// Quarterly bonuses are credited only in these months.
func (m Month) IsQuarterEnd(mode FYMode) bool {
	fy := m.FYStart(mode)
	return (m.Index()-fy.Index())%3 == 2
}

// IsFYEnd reports whether m is the last month of the financial year.
func (m Month) IsFYEnd(mode FYMode) bool {
	fy := m.FYStart(mode)
	return m.Index()-fy.Index() == 11
}

// MonthsBetween returns the inclusive ascending range [from, to].
// Returns nil if from is after to.
func MonthsBetween(from, to Month) []Month {
	if from.After(to) {
		return nil
	}
	out := make([]Month, 0, to.Index()-from.Index()+1)
	for m := from; !m.After(to); m = m.Next() {
		out = append(out, m)
	}
	return out
}
