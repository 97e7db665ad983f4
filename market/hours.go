package market

import (
	"fmt"
	"time"
)

// Sessions describes the weekly FX trading week in UTC. The market closes at
// CloseDay/CloseHour and reopens at OpenDay/OpenHour. Holidays are full-day
// closures keyed by "2006-01-02".
type Sessions struct {
	CloseDay  time.Weekday `json:"close_day" yaml:"close_day"`
	CloseHour int          `json:"close_hour" yaml:"close_hour"`
	OpenDay   time.Weekday `json:"open_day" yaml:"open_day"`
	OpenHour  int          `json:"open_hour" yaml:"open_hour"`
	Holidays  []string     `json:"holidays,omitempty" yaml:"holidays,omitempty"`
}

// DefaultSessions is the usual retail FX week: Sunday 22:00 to Friday 22:00 UTC.
func DefaultSessions() Sessions {
	return Sessions{
		CloseDay:  time.Friday,
		CloseHour: 22,
		OpenDay:   time.Sunday,
		OpenHour:  22,
	}
}

// weekMinute maps t onto minutes since Sunday 00:00 UTC.
func weekMinute(day time.Weekday, hour, minute int) int {
	return int(day)*24*60 + hour*60 + minute
}

// IsOpen reports whether t falls inside the trading week.
func (s Sessions) IsOpen(t time.Time) bool {
	u := t.UTC()
	if s.isHoliday(u) {
		return false
	}

	now := weekMinute(u.Weekday(), u.Hour(), u.Minute())
	closeAt := weekMinute(s.CloseDay, s.CloseHour, 0)
	openAt := weekMinute(s.OpenDay, s.OpenHour, 0)

	if closeAt == openAt {
		return true
	}
	if openAt > closeAt {
		// closed window sits inside a single Sunday-based week
		return now < closeAt || now >= openAt
	}
	return now >= openAt && now < closeAt
}

func (s Sessions) isHoliday(t time.Time) bool {
	day := t.Format("2006-01-02")
	for _, h := range s.Holidays {
		if h == day {
			return true
		}
	}
	return false
}

// NextOpen returns the first minute at or after t when the market is open.
func (s Sessions) NextOpen(t time.Time) time.Time {
	u := t.UTC().Truncate(time.Minute)
	if s.IsOpen(u) {
		return u
	}
	// at most a weekend plus a couple of holidays away
	for i := 0; i < 14*24; i++ {
		u = u.Truncate(time.Hour).Add(time.Hour)
		if s.IsOpen(u) {
			return u
		}
	}
	return u
}

func (s Sessions) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return "Market Open"
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("Market Closed, opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
