package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"market-stream/src/interfaces"
	"market-stream/src/logger"
	"market-stream/src/models"
	"market-stream/src/registry"
	"market-stream/src/utils"
)

// -----------------------------------------------------------------------------
// Walk policy per instrument class. Crypto moves the most per tick, ETFs the
// least; prices are clamped to a band around the configured base price so a
// long-running feed cannot drift to zero or to absurd values.
// -----------------------------------------------------------------------------

const (
	volatilityCrypto = 0.02
	volatilityStock  = 0.01
	volatilityETF    = 0.004

	spreadCrypto = 0.002
	spreadStock  = 0.001
	spreadETF    = 0.0005

	floorRatio   = 0.2
	ceilingRatio = 5.0

	volumeMin        = 10000.0
	volumeSeedMin    = 100000.0
	volumeSeedMax    = 5000000.0
	volumeDeltaMin   = -50000.0
	volumeDeltaMax   = 100000.0
	closedMarketDamp = 0.1
)

// -----------------------------------------------------------------------------

type symbolState struct {
	inst   models.MInstrument
	price  float64
	volume float64
}

// -----------------------------------------------------------------------------
// PriceGenerator produces synthetic ticks for the configured instrument
// universe on a fixed interval and fans them out through the registry.
// It is the only cross-session reader; a session whose send buffer is full
// gets dropped from the registry instead of ever blocking the feed.
// -----------------------------------------------------------------------------

type PriceGenerator struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Reg     *registry.Registry
	History *utils.HistoryCache
	DB      interfaces.IDatabase
	Market  *utils.MarketSession

	mu     sync.Mutex
	rng    *rand.Rand
	states map[string]*symbolState
}

// -----------------------------------------------------------------------------

func NewPriceGenerator(cfg *models.MConfig, log *logger.Logger, reg *registry.Registry,
	history *utils.HistoryCache, db interfaces.IDatabase, market *utils.MarketSession) *PriceGenerator {

	g := &PriceGenerator{
		Config:  cfg,
		Logger:  log,
		Reg:     reg,
		History: history,
		DB:      db,
		Market:  market,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		states:  make(map[string]*symbolState, len(cfg.Instruments)),
	}

	for _, inst := range cfg.Instruments {
		g.states[inst.Symbol] = &symbolState{
			inst:   inst,
			price:  inst.BasePrice,
			volume: volumeSeedMin + rand.Float64()*(volumeSeedMax-volumeSeedMin),
		}
	}

	return g
}

// -----------------------------------------------------------------------------

// Run drives the tick and alert loops until the context is cancelled.
func (g *PriceGenerator) Run(ctx context.Context) {
	tickInterval := time.Duration(g.Config.Simulator.UpdateIntervalSeconds) * time.Second
	alertInterval := time.Duration(g.Config.Simulator.AlertIntervalSeconds) * time.Second

	tickTimer := time.NewTicker(tickInterval)
	alertTimer := time.NewTicker(alertInterval)
	defer tickTimer.Stop()
	defer alertTimer.Stop()

	g.Logger.Info("Price generator started (%d instruments, interval %s)", len(g.states), tickInterval)

	for {
		select {
		case <-tickTimer.C:
			g.step(time.Now())

		case <-alertTimer.C:
			g.maybeAlert(time.Now())

		case <-ctx.Done():
			g.Logger.Info("Price generator stopped")
			return
		}
	}
}

// -----------------------------------------------------------------------------

// step generates one tick per symbol and delivers each to that symbol's
// subscribers. Generation is independent per symbol; a symbol with zero
// subscribers still ticks (history and storage keep moving).
func (g *PriceGenerator) step(now time.Time) {
	ticks := make([]models.MPriceTick, 0, len(g.states))

	g.mu.Lock()
	for _, state := range g.states {
		ticks = append(ticks, g.nextTick(state, now))
	}
	g.mu.Unlock()

	for _, tick := range ticks {
		g.History.Append(tick)
		g.broadcast(tick)
	}

	if g.DB != nil {
		if err := g.DB.SaveTicksBulk(ticks); err != nil {
			g.Logger.Error("Failed to persist ticks: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

// nextTick advances one symbol: bounded random walk around the previous price.
// Caller holds g.mu.
func (g *PriceGenerator) nextTick(state *symbolState, now time.Time) models.MPriceTick {
	k := classVolatility(state.inst.Class)
	spread := classSpread(state.inst.Class)

	prev := state.price
	next := prev * (1 + (g.rng.Float64()*2-1)*k)

	// Clamp to the band around the base price
	floor := state.inst.BasePrice * floorRatio
	ceiling := state.inst.BasePrice * ceilingRatio
	if next < floor {
		next = floor
	}
	if next > ceiling {
		next = ceiling
	}
	state.price = next

	// Volume drifts too; a closed equity market trades a trickle
	delta := volumeDeltaMin + g.rng.Float64()*(volumeDeltaMax-volumeDeltaMin)
	if g.Market != nil && !g.Market.IsOpen(state.inst.Class, now) {
		delta *= closedMarketDamp
	}
	state.volume += delta
	if state.volume < volumeMin {
		state.volume = volumeMin
	}

	change := next - prev
	changePercent := 0.0
	if prev != 0 {
		changePercent = change / prev * 100
	}

	return models.MPriceTick{
		Symbol:        state.inst.Symbol,
		Price:         next,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        state.volume,
		Bid:           next * (1 - spread/2),
		Ask:           next * (1 + spread/2),
		Timestamp:     now.UnixMilli(),
	}
}

// -----------------------------------------------------------------------------

// broadcast serializes the tick once and delivers it to every subscriber of
// the symbol. A backpressured subscriber is removed from the registry and
// dropped; the feed never waits on a slow socket.
func (g *PriceGenerator) broadcast(tick models.MPriceTick) {
	subscribers := g.Reg.SessionsFor(tick.Symbol)
	if len(subscribers) == 0 {
		return
	}

	payload, err := json.Marshal(models.MPriceUpdateMessage{
		Type:       models.MsgPriceUpdate,
		MPriceTick: tick,
	})
	if err != nil {
		g.Logger.Error("Failed to marshal tick for %s: %v", tick.Symbol, err)
		return
	}

	for _, sub := range subscribers {
		if !sub.Deliver(payload) {
			g.Logger.Warning("Dropping backpressured session %s (send buffer full)", sub.ID())
			g.Reg.RemoveSession(sub.ID())
			sub.Drop()
		}
	}
}

// -----------------------------------------------------------------------------

// CurrentPrice returns the latest simulated price for the symbol.
func (g *PriceGenerator) CurrentPrice(symbol string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[symbol]
	if !ok {
		return 0, false
	}
	return state.price, true
}

// -----------------------------------------------------------------------------

func classVolatility(class string) float64 {
	switch class {
	case models.ClassCrypto:
		return volatilityCrypto
	case models.ClassETF:
		return volatilityETF
	default:
		return volatilityStock
	}
}

// -----------------------------------------------------------------------------

func classSpread(class string) float64 {
	switch class {
	case models.ClassCrypto:
		return spreadCrypto
	case models.ClassETF:
		return spreadETF
	default:
		return spreadStock
	}
}
