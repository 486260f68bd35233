package model

import "time"

// MonthStart truncates t to the first day of its month in UTC. Reports and
// metrics are keyed by this normalized period value.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PrevMonth returns the first day of the month before period.
func PrevMonth(period time.Time) time.Time {
	return MonthStart(period.AddDate(0, -1, 0))
}

// PeriodLabel formats a period as YYYY-MM for documents and delivery copy.
func PeriodLabel(period time.Time) string {
	return period.Format("2006-01")
}

// MonthRange returns the first and last day of the period's month as
// YYYY-MM-DD strings, the date window external fetchers query.
func MonthRange(period time.Time) (start, end string) {
	s := MonthStart(period)
	e := s.AddDate(0, 1, -1)
	return s.Format("2006-01-02"), e.Format("2006-01-02")
}
