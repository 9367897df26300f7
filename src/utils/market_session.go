package utils

import (
	"log"
	"time"

	"github.com/scmhub/calendar"

	"market-stream/src/models"
)

// MarketSession answers "is this instrument class trading right now" using
// scmhub/calendar. Crypto is always open; stocks and ETFs follow the exchange
// calendar (all supported equities trade on NYSE in this universe).
type MarketSession struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

func NewMarketSession() *MarketSession {
	// scmhub/calendar.GetCalendar returns a calendar by MIC (ISO 10383)
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC 'xnys'. Using simple fallback (Mon-Fri 09:30-16:00 NY time).")
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC // Worst case
		}
		return &MarketSession{Fallback: true, Timezone: nyLoc}
	}

	return &MarketSession{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market for the given instrument class is open at t.
func (ms *MarketSession) IsOpen(class string, t time.Time) bool {
	if class == models.ClassCrypto {
		return true
	}
	return ms.isEquityOpen(t)
}

// -----------------------------------------------------------------------------

func (ms *MarketSession) isEquityOpen(t time.Time) bool {
	// Normalize to timezone if available
	if ms.Timezone != nil {
		t = t.In(ms.Timezone)
	}

	if ms.Fallback {
		weekday := t.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 9:30 - 16:00 NY Time
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return ms.Calendar.IsOpen(t)
}
