package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/events"
	"github.com/kborowski/pivot/internal/inputs"
	"github.com/kborowski/pivot/internal/memory"
	"github.com/kborowski/pivot/internal/mode"
	"github.com/kborowski/pivot/internal/storage"
)

// CycleRunner receives one callback per tick for the active mode. The context
// is cancelled when the mode is deactivated; implementations doing slow work
// must also check the generation via Controller.RecordInteraction before
// applying results.
type CycleRunner interface {
	RunCycle(ctx context.Context, mc ModeContext)
}

// Options configures a Controller. Registry, Config, and Bus are required;
// Memory defaults to NopStore, History and Runner are optional.
type Options struct {
	Registry *mode.Registry
	Config   *config.Config
	Bus      *events.Bus
	Memory   memory.Store
	History  *storage.History
	Runner   CycleRunner
}

type manualRequest struct {
	target string
	reply  chan error
}

// Controller owns the runtime mode state. All mutation happens on its loop
// goroutine; readers see the state through an atomic snapshot, so queries
// never block a transition and never observe a half-applied switch.
type Controller struct {
	reg       *mode.Registry
	evaluator *mode.Evaluator
	cooldowns *mode.CooldownTracker
	mem       memory.Store
	bus       *events.Bus
	hist      *storage.History
	runner    CycleRunner

	allowManual   bool
	memoryEnabled bool
	governance    string

	state  atomic.Pointer[State]
	tokens chan inputs.Token
	manual chan manualRequest

	// Interaction buffer for the active mode, checkpointed on exit.
	interMu      sync.Mutex
	interactions []memory.Interaction
	restored     *memory.Record

	sched    *TickScheduler
	sources  []inputs.Source
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

const tokenMailboxSize = 512

// NewController wires the evaluation pipeline together. It does not start
// ticking; call Start.
func NewController(opts Options) *Controller {
	mem := opts.Memory
	if mem == nil || !opts.Config.ModeMemoryEnabled {
		mem = memory.NopStore{}
	}
	return &Controller{
		reg:           opts.Registry,
		evaluator:     mode.NewEvaluator(opts.Registry, mode.NewMatcher(opts.Config.TriggerMatching)),
		cooldowns:     mode.NewCooldownTracker(),
		mem:           mem,
		bus:           opts.Bus,
		hist:          opts.History,
		runner:        opts.Runner,
		allowManual:   opts.Config.AllowManualSwitch,
		memoryEnabled: opts.Config.ModeMemoryEnabled,
		governance:    opts.Config.SystemGovernance,
		tokens:        make(chan inputs.Token, tokenMailboxSize),
		manual:        make(chan manualRequest),
		sched:         NewTickScheduler(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start enters the default mode and begins the tick loop. It returns once the
// engine is running; Stop (or cancelling ctx) shuts it down.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("controller already started")
	}

	def := c.reg.Default()
	now := time.Now()
	restored, err := c.mem.Load(def.Name)
	if err != nil {
		slog.Warn("mode memory restore failed", "mode", def.Name, "error", err)
	}
	act := c.sched.Activate(ctx, def.Interval())
	c.swapState(&State{Mode: def.Name, EnteredAt: now, Generation: act.Gen}, restored)
	c.startModeSources(act, def)

	c.bus.Publish(events.NewEvent(events.EventEngineStarted, events.SourceEngine, map[string]any{
		"default_mode": def.Name,
	}))
	c.publishChange(events.ModeChangedPayload{From: "", To: def.Name, RuleIndex: -1, At: now})
	slog.Info("engine started", "mode", def.Name, "hertz", def.Hertz)

	go c.loop(ctx, act)
	return nil
}

// Stop shuts the loop down and waits for it to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

// State returns the current runtime snapshot.
func (c *Controller) State() State {
	if st := c.state.Load(); st != nil {
		return *st
	}
	return State{}
}

// ModeContext returns the active mode's full context: identity, prompt base,
// entry time, and any memory restored on entry.
func (c *Controller) ModeContext() ModeContext {
	// State and restored record are read under the same lock that swaps
	// them, so a snapshot never pairs one mode with another's memory.
	c.interMu.Lock()
	var st State
	if p := c.state.Load(); p != nil {
		st = *p
	}
	restored := c.restored
	c.interMu.Unlock()

	m, err := c.reg.Get(st.Mode)
	if err != nil {
		return ModeContext{Mode: st.Mode, EnteredAt: st.EnteredAt, Generation: st.Generation}
	}
	return ModeContext{
		Mode:        m.Name,
		DisplayName: m.DisplayName,
		PromptBase:  m.SystemPromptBase,
		Governance:  c.governance,
		Hertz:       m.Hertz,
		EnteredAt:   st.EnteredAt,
		Generation:  st.Generation,
		Restored:    restored,
	}
}

// ManualAllowed reports whether the manual switch gate is open.
func (c *Controller) ManualAllowed() bool { return c.allowManual }

// MemoryEnabled reports whether per-mode memory is checkpointed.
func (c *Controller) MemoryEnabled() bool { return c.memoryEnabled }

// SubmitToken queues a token for the next evaluation pass. The mailbox never
// blocks the caller: when full, the oldest queued token is dropped.
func (c *Controller) SubmitToken(t inputs.Token) {
	if t.ReceivedAt.IsZero() {
		t.ReceivedAt = time.Now()
	}
	if !t.Valid() {
		return
	}
	for {
		select {
		case c.tokens <- t:
			c.bus.Publish(events.NewInputToken(events.TokenPayload{
				Text: t.Text, Source: t.Source, ReceivedAt: t.ReceivedAt,
			}))
			return
		default:
			select {
			case <-c.tokens:
				slog.Warn("token mailbox full, dropping oldest")
			default:
			}
		}
	}
}

// RequestManualSwitch asks the loop to switch modes outside rule evaluation.
// It fails with ErrManualSwitchDisabled when the gate is closed and with
// ErrUnknownMode for an unregistered target; rules and cooldowns are not
// consulted.
func (c *Controller) RequestManualSwitch(target string) error {
	if !c.started.Load() {
		return fmt.Errorf("engine not started")
	}
	if !c.allowManual {
		c.bus.Publish(events.NewEvent(events.EventManualRejected, events.SourceEngine, map[string]any{
			"target": target, "reason": "manual switching disabled",
		}))
		return mode.ErrManualSwitchDisabled
	}
	if !c.reg.Has(target) {
		c.bus.Publish(events.NewEvent(events.EventManualRejected, events.SourceEngine, map[string]any{
			"target": target, "reason": "unknown mode",
		}))
		return fmt.Errorf("manual switch to %q: %w", target, mode.ErrUnknownMode)
	}

	req := manualRequest{target: target, reply: make(chan error, 1)}
	select {
	case c.manual <- req:
		return <-req.reply
	case <-c.stop:
		return fmt.Errorf("engine stopped")
	case <-c.done:
		return fmt.Errorf("engine stopped")
	}
}

// RecordInteraction appends an exchange to the active mode's memory buffer.
// gen must be the generation the work started under; a stale generation means
// the mode changed while the work was in flight, and the result is discarded.
func (c *Controller) RecordInteraction(gen uint64, role, content string) bool {
	st := c.state.Load()
	if st == nil || st.Generation != gen {
		return false
	}
	m, err := c.reg.Get(st.Mode)
	if err != nil || !m.SaveInteractions {
		return false
	}
	c.interMu.Lock()
	defer c.interMu.Unlock()
	// Re-check under the lock: applyTransition swaps state before resetting
	// the buffer, and both happen on the loop goroutine.
	if cur := c.state.Load(); cur == nil || cur.Generation != gen {
		return false
	}
	c.interactions = append(c.interactions, memory.NewInteraction(role, content))
	return true
}

func (c *Controller) loop(ctx context.Context, act Activation) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-c.stop:
			c.shutdown()
			return
		case req := <-c.manual:
			st := c.state.Load()
			act = c.applyTransition(ctx, st, applied{
				to: req.target, ruleIndex: -1, trigger: "", manual: true,
			}, time.Now())
			req.reply <- nil
		case now := <-act.C:
			act = c.tick(ctx, now, act)
		}
	}
}

func (c *Controller) shutdown() {
	c.sched.Stop()
	c.stopModeSources()
	c.bus.Publish(events.NewEvent(events.EventEngineStopped, events.SourceEngine, nil))
	slog.Info("engine stopped")
}

// applied carries one decided transition into applyTransition.
type applied struct {
	to        string
	ruleIndex int
	trigger   string
	manual    bool
	rule      *mode.Rule
}

// tick is one evaluation pass: drain the mailbox into a single ordered batch,
// evaluate, arbitrate against the cooldown snapshot, and either apply the
// winner or dispatch the current mode's cycle.
func (c *Controller) tick(ctx context.Context, now time.Time, act Activation) Activation {
	batch := c.drain()
	st := c.state.Load()

	c.bus.Publish(events.NewTick(events.TickPayload{Mode: st.Mode, BatchSize: len(batch)}))

	candidates := c.evaluator.Evaluate(st.Mode, batch, now, st.EnteredAt)
	winner := mode.Arbitrate(candidates, c.cooldowns.Snapshot(now))

	if winner == nil {
		c.reportBlocked(candidates, now)
		c.dispatchCycle(act)
		return act
	}

	next := c.applyTransition(ctx, st, applied{
		to:        winner.Rule.ToMode,
		ruleIndex: winner.Rule.Index,
		trigger:   winner.Trigger,
		rule:      winner.Rule,
	}, now)
	c.dispatchCycle(next)
	return next
}

// reportBlocked publishes an informational event when the tick's best
// candidate lost only to its own cooldown. Not an error: the rule simply
// waits out its window.
func (c *Controller) reportBlocked(candidates []mode.Candidate, now time.Time) {
	if len(candidates) == 0 {
		return
	}
	best := mode.Arbitrate(candidates, func(*mode.Rule) bool { return true })
	if best == nil || c.cooldowns.Eligible(best.Rule, now) {
		return
	}
	c.bus.Publish(events.NewBlocked(events.BlockedPayload{
		RuleIndex: best.Rule.Index,
		From:      best.Rule.FromMode,
		To:        best.Rule.ToMode,
		Reason:    "cooldown",
	}))
}

// applyTransition performs the switch as one atomic step from any reader's
// point of view: checkpoint the outgoing mode, restore the incoming one, swap
// the state pointer, record the firing, re-arm the scheduler, then announce.
func (c *Controller) applyTransition(ctx context.Context, old *State, a applied, now time.Time) Activation {
	target, err := c.reg.Get(a.to)
	if err != nil {
		// Registry validation makes this unreachable for rule transitions;
		// manual targets are checked before they reach the loop.
		slog.Error("transition to unregistered mode dropped", "to", a.to)
		return c.sched.Activate(ctx, time.Second)
	}

	c.checkpoint(old)
	c.stopModeSources()

	restored, err := c.mem.Load(target.Name)
	if err != nil {
		slog.Warn("mode memory restore failed", "mode", target.Name, "error", err)
		restored = nil
	}

	act := c.sched.Activate(ctx, target.Interval())
	c.swapState(&State{Mode: target.Name, EnteredAt: now, Generation: act.Gen}, restored)
	if a.rule != nil {
		c.cooldowns.RecordFired(a.rule, now)
	}
	c.startModeSources(act, target)

	c.publishChange(events.ModeChangedPayload{
		From:      old.Mode,
		To:        target.Name,
		RuleIndex: a.ruleIndex,
		Trigger:   a.trigger,
		Manual:    a.manual,
		At:        now,
	})
	slog.Info("mode changed",
		"from", old.Mode,
		"to", target.Name,
		"rule", a.ruleIndex,
		"trigger", a.trigger,
		"manual", a.manual,
	)
	return act
}

// checkpoint saves the outgoing mode's memory record. Each exit overwrites
// the previous record and bumps the exit count.
func (c *Controller) checkpoint(old *State) {
	if !c.memoryEnabled || old == nil {
		return
	}
	m, err := c.reg.Get(old.Mode)
	if err != nil {
		return
	}

	c.interMu.Lock()
	buffered := c.interactions
	prior := c.restored
	c.interactions = nil
	c.interMu.Unlock()

	rec := &memory.Record{
		Mode:    old.Mode,
		Context: m.SystemPromptBase,
		SavedAt: time.Now(),
	}
	if prior != nil && prior.Mode == old.Mode {
		rec.ExitCount = prior.ExitCount
		if m.SaveInteractions {
			rec.Interactions = append(rec.Interactions, prior.Interactions...)
		}
	}
	rec.ExitCount++
	if m.SaveInteractions {
		rec.Interactions = append(rec.Interactions, buffered...)
	}
	if err := c.mem.Save(rec); err != nil {
		slog.Warn("mode memory checkpoint failed", "mode", old.Mode, "error", err)
	}
}

// swapState replaces the runtime snapshot and the restored record as one
// step. RecordInteraction's under-lock generation re-check and ModeContext's
// paired read both rely on this being the only place the pair changes.
func (c *Controller) swapState(st *State, restored *memory.Record) {
	c.interMu.Lock()
	c.state.Store(st)
	c.restored = restored
	c.interactions = nil
	c.interMu.Unlock()
}

func (c *Controller) publishChange(p events.ModeChangedPayload) {
	c.bus.Publish(events.NewModeChanged(p))
	if c.hist == nil {
		return
	}
	err := c.hist.Record(storage.Transition{
		At:        p.At,
		FromMode:  p.From,
		ToMode:    p.To,
		RuleIndex: p.RuleIndex,
		Trigger:   p.Trigger,
		Manual:    p.Manual,
	})
	if err != nil {
		slog.Warn("transition history write failed", "error", err)
	}
}

// drain empties the mailbox into one batch ordered by receipt time. Tokens
// arriving after the drain wait for the next tick.
func (c *Controller) drain() []inputs.Token {
	var batch []inputs.Token
	for {
		select {
		case t := <-c.tokens:
			batch = append(batch, t)
		default:
			sort.SliceStable(batch, func(i, j int) bool {
				return batch[i].ReceivedAt.Before(batch[j].ReceivedAt)
			})
			return batch
		}
	}
}

func (c *Controller) dispatchCycle(act Activation) {
	if c.runner == nil {
		return
	}
	mc := c.ModeContext()
	go c.runner.RunCycle(act.Ctx, mc)
}

// startModeSources builds and starts the incoming mode's input sources,
// forwarding their tokens into the mailbox until the activation ends.
func (c *Controller) startModeSources(act Activation, m mode.Mode) {
	for _, ref := range m.AgentInputs {
		src, err := inputs.New(ref)
		if err != nil {
			slog.Warn("input source skipped", "mode", m.Name, "type", ref.Type, "error", err)
			continue
		}
		if err := src.Start(act.Ctx); err != nil {
			slog.Warn("input source failed to start", "mode", m.Name, "source", src.Name(), "error", err)
			continue
		}
		c.sources = append(c.sources, src)
		go func(src inputs.Source) {
			for {
				select {
				case t, ok := <-src.Events():
					if !ok {
						return
					}
					c.SubmitToken(t)
				case <-act.Ctx.Done():
					return
				}
			}
		}(src)
	}
}

func (c *Controller) stopModeSources() {
	for _, src := range c.sources {
		if err := src.Close(); err != nil {
			slog.Warn("input source close failed", "source", src.Name(), "error", err)
		}
	}
	c.sources = nil
}
