package simulator

import (
	"encoding/json"
	"fmt"
	"time"

	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// Market alerts: every alert interval there is a configured chance that one
// random symbol gets a notice, delivered to that symbol's subscribers only.
// -----------------------------------------------------------------------------

type alertTemplate struct {
	severity string
	title    string
	message  string
}

var alertTemplates = []alertTemplate{
	{models.SeverityLow, "Elevated volume", "Trading volume on %s is above its rolling average"},
	{models.SeverityLow, "Spread widening", "Bid/ask spread on %s widened beyond its usual band"},
	{models.SeverityMedium, "Price swing", "%s moved more than expected over the last interval"},
	{models.SeverityMedium, "Momentum shift", "Short-term momentum on %s reversed direction"},
	{models.SeverityHigh, "Volatility spike", "Realized volatility on %s spiked sharply"},
	{models.SeverityCritical, "Circuit breaker watch", "%s is approaching a trading halt threshold"},
}

// -----------------------------------------------------------------------------

// maybeAlert rolls the configured probability and, on success, emits one
// alert for a random instrument.
func (g *PriceGenerator) maybeAlert(now time.Time) {
	g.mu.Lock()
	if g.rng.Float64() >= g.Config.Simulator.AlertProbability || len(g.Config.Instruments) == 0 {
		g.mu.Unlock()
		return
	}

	inst := g.Config.Instruments[g.rng.Intn(len(g.Config.Instruments))]
	tmpl := alertTemplates[g.rng.Intn(len(alertTemplates))]
	g.mu.Unlock()

	alert := models.MMarketAlert{
		Symbol:    inst.Symbol,
		Severity:  tmpl.severity,
		Title:     tmpl.title,
		Message:   fmt.Sprintf(tmpl.message, inst.Symbol),
		Timestamp: now.UnixMilli(),
	}

	g.broadcastAlert(alert)
}

// -----------------------------------------------------------------------------

func (g *PriceGenerator) broadcastAlert(alert models.MMarketAlert) {
	subscribers := g.Reg.SessionsFor(alert.Symbol)
	if len(subscribers) == 0 {
		return
	}

	payload, err := json.Marshal(models.MMarketAlertMessage{
		Type:         models.MsgMarketAlert,
		MMarketAlert: alert,
	})
	if err != nil {
		g.Logger.Error("Failed to marshal alert for %s: %v", alert.Symbol, err)
		return
	}

	g.Logger.Info("Market alert [%s] %s: %s", alert.Severity, alert.Symbol, alert.Title)

	for _, sub := range subscribers {
		if !sub.Deliver(payload) {
			g.Reg.RemoveSession(sub.ID())
			sub.Drop()
		}
	}
}
