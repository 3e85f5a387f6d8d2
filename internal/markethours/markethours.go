// Package markethours models the exchange trading session so the scanner can
// skip passes while the market is closed. The session is configurable
// (zone, open/close, holidays) rather than hard-coded to one venue.
package markethours

import (
	"fmt"
	"time"
)

// Session describes one exchange's trading calendar.
type Session struct {
	Zone        *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int

	// holidays holds "2006-01-02" date keys in the session zone.
	holidays map[string]bool
}

// NewSession creates a session calendar. A nil zone defaults to UTC.
func NewSession(zone *time.Location, openHour, openMinute, closeHour, closeMinute int) *Session {
	if zone == nil {
		zone = time.UTC
	}
	return &Session{
		Zone:        zone,
		OpenHour:    openHour,
		OpenMinute:  openMinute,
		CloseHour:   closeHour,
		CloseMinute: closeMinute,
		holidays:    make(map[string]bool),
	}
}

// USEquities returns the NYSE/Nasdaq regular session (9:30–16:00 America/New_York).
// Falls back to a fixed UTC-5 zone if the tz database is unavailable.
func USEquities() *Session {
	zone, err := time.LoadLocation("America/New_York")
	if err != nil {
		zone = time.FixedZone("EST", -5*3600)
	}
	return NewSession(zone, 9, 30, 16, 0)
}

// AddHoliday marks a date (in the session zone) as closed.
func (s *Session) AddHoliday(year int, month time.Month, day int) {
	s.holidays[time.Date(year, month, day, 0, 0, 0, 0, s.Zone).Format("2006-01-02")] = true
}

// IsHoliday returns true if t falls on a configured holiday.
func (s *Session) IsHoliday(t time.Time) bool {
	return s.holidays[t.In(s.Zone).Format("2006-01-02")]
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	local := t.In(s.Zone)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.IsHoliday(local)
}

// IsOpen returns true if t falls within the trading session.
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	local := t.In(s.Zone)
	hm := local.Hour()*60 + local.Minute()
	return hm >= s.OpenHour*60+s.OpenMinute && hm < s.CloseHour*60+s.CloseMinute
}

// NextOpen returns the next session open. If t is before today's open on a
// trading day, returns today's open.
func (s *Session) NextOpen(t time.Time) time.Time {
	local := t.In(s.Zone)

	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Zone)
	if local.Before(todayOpen) && s.IsTradingDay(local) {
		return todayOpen
	}

	d := local.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if s.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Zone)
		}
		d = d.AddDate(0, 0, 1)
	}
	// Fallback: next day
	return todayOpen.AddDate(0, 0, 1)
}

// TodayClose returns the session close on t's calendar day.
func (s *Session) TodayClose(t time.Time) time.Time {
	local := t.In(s.Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), s.CloseHour, s.CloseMinute, 0, 0, s.Zone)
}

// StatusString returns a human-readable session status.
func (s *Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		d := s.TodayClose(t).Sub(t.In(s.Zone))
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(d))
	}
	next := s.NextOpen(t)
	local := next.In(s.Zone)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
