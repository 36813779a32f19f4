package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
	"github.com/Chrissou78/omniswap-sub002/internal/metrics"
)

// QuoteEngine runs the two asynchronous phases of a cycle
type QuoteEngine interface {
	Resolve(ctx context.Context, sel entities.Selection) (entities.QuoteCycleInput, error)
	Compute(ctx context.Context, in entities.QuoteCycleInput) entities.QuoteResult
}

// OrchestratorConfig tunes the debounce window applied to amount edits
type OrchestratorConfig struct {
	Debounce time.Duration
}

// DefaultOrchestratorConfig returns a 300ms debounce
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{Debounce: 300 * time.Millisecond}
}

type editKind int

const (
	editAmount editKind = iota
	editTokenIn
	editTokenOut
	editSwapSides
	editRoute
)

type edit struct {
	kind   editKind
	amount decimal.Decimal
	token  entities.Token
	route  entities.RouteType
}

// cycleEvent reports a timer or a finished phase back to the loop. gen is
// the generation the work was started for.
type cycleEvent struct {
	gen    uint64
	fire   bool
	sel    entities.Selection
	input  *entities.QuoteCycleInput
	result *entities.QuoteResult
	err    error
}

// Orchestrator drives quote cycles for one swap session. Edits and phase
// completions are serialized through a single loop which owns the debounce
// timer and the generation counter; results of superseded cycles are dropped.
type Orchestrator struct {
	quotes QuoteEngine
	cfg    OrchestratorConfig
	logger *zap.Logger
	now    func() time.Time

	edits   chan edit
	events  chan cycleEvent
	updates chan entities.QuoteSnapshot
	done    chan struct{}

	mu    sync.RWMutex
	state entities.QuoteState

	// owned by Run
	live       entities.Selection
	gen        uint64
	timer      *time.Timer
	preferred  entities.RouteType
	last       *entities.QuoteResult
	cycleStart time.Time
}

func NewOrchestrator(quotes QuoteEngine, cfg OrchestratorConfig, log *zap.Logger) *Orchestrator {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return &Orchestrator{
		quotes:  quotes,
		cfg:     cfg,
		logger:  logger.OrNop(log).Named("orchestrator"),
		now:     time.Now,
		edits:   make(chan edit, 32),
		events:  make(chan cycleEvent, 8),
		updates: make(chan entities.QuoteSnapshot, 1),
		done:    make(chan struct{}),
		state:   entities.StateIdle,
	}
}

// Updates delivers published snapshots. Only the latest unread snapshot is
// kept; a slow consumer skips intermediate ones.
func (o *Orchestrator) Updates() <-chan entities.QuoteSnapshot {
	return o.updates
}

// State returns the current state of the machine
func (o *Orchestrator) State() entities.QuoteState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) SetAmount(amount decimal.Decimal) {
	o.send(edit{kind: editAmount, amount: amount})
}

func (o *Orchestrator) SetTokenIn(token entities.Token) {
	o.send(edit{kind: editTokenIn, token: token})
}

func (o *Orchestrator) SetTokenOut(token entities.Token) {
	o.send(edit{kind: editTokenOut, token: token})
}

func (o *Orchestrator) SwapSides() {
	o.send(edit{kind: editSwapSides})
}

// SelectRoute records the user's route choice. It survives recomputation
// for the same pair unless the pair becomes restricted to Direct.
func (o *Orchestrator) SelectRoute(t entities.RouteType) {
	o.send(edit{kind: editRoute, route: t})
}

// Run processes edits until ctx is done. It must be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)
	defer o.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-o.edits:
			o.apply(ctx, e)
		case ev := <-o.events:
			o.handle(ctx, ev)
		}
	}
}

func (o *Orchestrator) send(e edit) {
	select {
	case o.edits <- e:
	case <-o.done:
	}
}

func (o *Orchestrator) post(ev cycleEvent) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) apply(ctx context.Context, e edit) {
	if e.kind == editRoute {
		o.selectRoute(e.route)
		return
	}

	prev := o.live
	switch e.kind {
	case editAmount:
		o.live.AmountIn = e.amount
	case editTokenIn:
		o.live.TokenIn = e.token
	case editTokenOut:
		o.live.TokenOut = e.token
	case editSwapSides:
		o.live.TokenIn, o.live.TokenOut = o.live.TokenOut, o.live.TokenIn
	}
	if o.live.Equal(prev) && o.State() != entities.StateIdle {
		return
	}
	if !o.live.SamePair(prev) {
		o.preferred = ""
	}

	o.supersede()
	o.gen++
	o.stopTimer()
	o.last = nil

	if !o.live.Complete() {
		o.setState(entities.StateIdle)
		o.publish(o.clearedSnapshot())
		return
	}

	// amounts are typed continuously; token and chain picks are discrete
	if e.kind == editAmount && o.cfg.Debounce > 0 {
		o.setState(entities.StateDebouncing)
		gen := o.gen
		o.timer = time.AfterFunc(o.cfg.Debounce, func() {
			o.post(cycleEvent{gen: gen, fire: true})
		})
		return
	}
	o.startCycle(ctx)
}

func (o *Orchestrator) handle(ctx context.Context, ev cycleEvent) {
	if ev.gen != o.gen {
		o.discard(ev)
		return
	}

	switch {
	case ev.fire:
		o.timer = nil
		o.startCycle(ctx)

	case ev.result != nil:
		if !ev.sel.Equal(o.live) {
			o.discard(ev)
			return
		}
		o.publishResult(*ev.result)

	case ev.err != nil:
		if ctx.Err() == nil {
			o.logger.Warn("quote cycle failed", zap.Uint64("generation", ev.gen), zap.Error(ev.err))
		}
		metrics.QuoteCycles.WithLabelValues("failed").Inc()
		o.setState(entities.StateIdle)
		o.publish(o.clearedSnapshot())

	case ev.input != nil:
		if !ev.input.Selection.Equal(o.live) {
			o.discard(ev)
			return
		}
		o.setState(entities.StateComputing)
		in, gen := *ev.input, ev.gen
		go func() {
			res := o.quotes.Compute(ctx, in)
			o.post(cycleEvent{gen: gen, sel: in.Selection, result: &res})
		}()
	}
}

func (o *Orchestrator) startCycle(ctx context.Context) {
	gen, sel := o.gen, o.live
	o.cycleStart = o.now()
	o.setState(entities.StateResolving)

	go func() {
		in, err := o.quotes.Resolve(ctx, sel)
		if err != nil {
			o.post(cycleEvent{gen: gen, sel: sel, err: err})
			return
		}
		o.post(cycleEvent{gen: gen, sel: sel, input: &in})
	}()
}

func (o *Orchestrator) publishResult(res entities.QuoteResult) {
	if res.Restricted {
		o.preferred = entities.RouteDirect
	}
	o.last = &res

	o.setState(entities.StatePublished)
	o.publish(BuildSnapshot(o.gen, res, o.preferred, o.now()))

	metrics.QuoteCycles.WithLabelValues("published").Inc()
	metrics.QuoteDuration.Observe(o.now().Sub(o.cycleStart).Seconds())
}

func (o *Orchestrator) selectRoute(t entities.RouteType) {
	if !t.Valid() {
		return
	}
	if o.last != nil && o.last.Restricted && t != entities.RouteDirect {
		return
	}
	o.preferred = t
	if o.last != nil && o.State() == entities.StatePublished {
		o.publish(BuildSnapshot(o.gen, *o.last, o.preferred, o.now()))
	}
}

// supersede marks an in-flight cycle as abandoned
func (o *Orchestrator) supersede() {
	switch o.State() {
	case entities.StateResolving, entities.StateComputing:
		o.logger.Debug("quote cycle superseded", zap.Uint64("generation", o.gen))
		metrics.QuoteCycles.WithLabelValues("superseded").Inc()
		o.setState(entities.StateSuperseded)
	}
}

func (o *Orchestrator) discard(ev cycleEvent) {
	if ev.fire {
		return
	}
	o.logger.Debug("stale quote result discarded",
		zap.Uint64("generation", ev.gen),
		zap.Uint64("current", o.gen))
	metrics.QuoteCycles.WithLabelValues("discarded").Inc()
}

func (o *Orchestrator) clearedSnapshot() entities.QuoteSnapshot {
	snap := entities.QuoteSnapshot{
		Generation:  o.gen,
		State:       entities.StateIdle,
		ChainIn:     o.live.ChainIn(),
		ChainOut:    o.live.ChainOut(),
		AmountIn:    o.live.AmountIn,
		Routes:      entities.RouteSet{},
		Restricted:  o.live.Restricted(),
		PublishedAt: o.now(),
	}
	if o.live.TokenIn != nil {
		snap.TokenIn = o.live.TokenIn.Info().Address
	}
	if o.live.TokenOut != nil {
		snap.TokenOut = o.live.TokenOut.Info().Address
	}
	return snap
}

// publish replaces any unread snapshot. Only the loop sends, so the send
// after draining never blocks.
func (o *Orchestrator) publish(snap entities.QuoteSnapshot) {
	select {
	case <-o.updates:
	default:
	}
	o.updates <- snap
}

func (o *Orchestrator) stopTimer() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) setState(s entities.QuoteState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
