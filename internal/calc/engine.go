package calc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"estimator/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	DefaultDebounce    = 800 * time.Millisecond
	DefaultMinInterval = 500 * time.Millisecond
)

type State int32

const (
	StateIdle State = iota
	StateScheduled
	StateComputing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateComputing:
		return "computing"
	}
	return "unknown"
}

type Config struct {
	// Debounce coalesces bursts of item changes into one recomputation
	Debounce time.Duration
	// MinInterval is the minimum spacing between two full recomputations
	MinInterval time.Duration
}

func DefaultConfig() Config {
	return Config{Debounce: DefaultDebounce, MinInterval: DefaultMinInterval}
}

// Snapshot is what the engine publishes after every change. On error the
// last good figures are kept and HasError is set.
type Snapshot struct {
	Summary
	Lines        []LineFigures `json:"lines"`
	Computed     bool          `json:"computed"`
	HasError     bool          `json:"hasError"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Version      uint64        `json:"version"`
	ComputedAt   time.Time     `json:"computedAt"`
}

type computeFunc func(items []types.DraftLineItem, contingencyPercentage float64) (Snapshot, error)

type computeResult struct {
	snapshot    Snapshot
	fingerprint string
	err         error
}

// Engine recomputes estimate figures as a draft is edited. Item changes
// are debounced and rate limited; contingency changes apply immediately.
// All scheduling happens on the goroutine running Run.
type Engine struct {
	cfg    Config
	logger *logrus.Logger

	compute computeFunc

	items       *mailbox[[]types.DraftLineItem]
	contingency *mailbox[float64]
	results     chan computeResult

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []func(Snapshot)

	state        atomic.Int32
	computations atomic.Int64
}

func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}

	return &Engine{
		cfg:         cfg,
		logger:      logger,
		compute:     computeSnapshot,
		items:       newMailbox[[]types.DraftLineItem](),
		contingency: newMailbox[float64](),
		results:     make(chan computeResult, 1),
	}
}

// OnChange registers fn to receive every published snapshot. Listeners run
// on the engine goroutine and may call SetItems or SetContingency.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// SetItems records the latest item list. It never blocks.
func (e *Engine) SetItems(items []types.DraftLineItem) {
	cp := make([]types.DraftLineItem, len(items))
	copy(cp, items)
	e.items.put(cp)
}

// SetContingency records the latest contingency percentage. It never blocks.
func (e *Engine) SetContingency(pct float64) {
	e.contingency.put(pct)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Computations is the number of full recomputations started so far
func (e *Engine) Computations() int64 {
	return e.computations.Load()
}

// Run drives the engine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	var (
		timerC      <-chan time.Time
		pending     []types.DraftLineItem
		hasPending  bool
		deferred    bool
		computing   bool
		contingency float64
		lastRun     time.Time
		lastPrint   string
		lastOK      bool
		lastItems   []types.DraftLineItem
	)

	schedule := func(d time.Duration) {
		stopTimer(timer)
		timer.Reset(d)
		timerC = timer.C
		e.setState(StateScheduled)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-e.items.wake:
			items, ok := e.items.take()
			if !ok {
				continue
			}
			pending, hasPending = items, true
			if computing {
				deferred = true
				continue
			}
			schedule(e.cfg.Debounce)

		case <-e.contingency.wake:
			pct, ok := e.contingency.take()
			if !ok {
				continue
			}
			// The raw value is kept so that recomputations validate it and
			// an invalid percentage can never reach the published totals.
			contingency = pct
			e.applyContingency(pct)

			// A computation rejected for its contingency is retried once the
			// percentage is valid again.
			if finite(pct) && pct >= 0 && !lastOK && lastItems != nil && !hasPending {
				pending, hasPending = lastItems, true
				if computing {
					deferred = true
					continue
				}
				schedule(0)
			}

		case <-timerC:
			timerC = nil
			if !hasPending {
				e.setState(StateIdle)
				continue
			}

			if !lastRun.IsZero() {
				if wait := e.cfg.MinInterval - time.Since(lastRun); wait > 0 {
					schedule(wait)
					continue
				}
			}

			fp := fingerprint(pending)
			if lastOK && fp == lastPrint {
				hasPending = false
				e.setState(StateIdle)
				continue
			}

			items := pending
			lastItems = items
			pending, hasPending = nil, false
			computing = true
			lastRun = time.Now()
			e.setState(StateComputing)
			e.computations.Add(1)
			go e.runCompute(items, contingency, fp)

		case res := <-e.results:
			lastPrint = res.fingerprint
			lastOK = res.err == nil
			e.publish(res, contingency)

			// Listeners may have written items back while we were still
			// computing. Anything that arrived counts as deferred.
			if items, ok := e.items.take(); ok {
				pending, hasPending = items, true
				deferred = true
			}

			computing = false
			if deferred && hasPending {
				deferred = false
				schedule(0)
				continue
			}
			deferred = false
			e.setState(StateIdle)
		}
	}
}

func (e *Engine) runCompute(items []types.DraftLineItem, contingency float64, fp string) {
	res := computeResult{fingerprint: fp}
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("calculation panicked: %v", r)
		}
		e.results <- res
	}()

	res.snapshot, res.err = e.compute(items, contingency)
}

func (e *Engine) publish(res computeResult, contingency float64) {
	e.mu.Lock()
	if res.err != nil {
		e.snapshot.HasError = true
		e.snapshot.ErrorMessage = res.err.Error()
		e.logger.WithError(res.err).Warn("estimate recalculation failed, keeping last good totals")
	} else {
		snap := res.snapshot
		snap.Summary = ApplyContingency(snap.Summary, contingency)
		snap.Computed = true
		snap.ComputedAt = time.Now()
		snap.Version = e.snapshot.Version
		e.snapshot = snap
	}
	e.snapshot.Version++
	snap := e.snapshot
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (e *Engine) applyContingency(pct float64) {
	e.mu.Lock()
	if !finite(pct) || pct < 0 {
		e.snapshot.HasError = true
		e.snapshot.ErrorMessage = fmt.Sprintf("contingency percentage %v must be a non-negative number", pct)
	} else {
		e.snapshot.Summary = ApplyContingency(e.snapshot.Summary, pct)
		e.snapshot.HasError = false
		e.snapshot.ErrorMessage = ""
	}
	e.snapshot.Version++
	snap := e.snapshot
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

func computeSnapshot(items []types.DraftLineItem, contingency float64) (Snapshot, error) {
	if err := Validate(items, contingency); err != nil {
		return Snapshot{}, err
	}

	lines := make([]LineFigures, len(items))
	for i, item := range items {
		lines[i] = ForItem(item)
	}

	return Snapshot{
		Summary: Summarize(items, contingency),
		Lines:   lines,
	}, nil
}

// fingerprint identifies the inputs of a recomputation. Derived fields and
// descriptions do not affect totals and are left out.
func fingerprint(items []types.DraftLineItem) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(items)))
	for _, item := range items {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(item.Cost, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(item.MarkupPercentage, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(item.Quantity, 'g', -1, 64))
	}
	return b.String()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// mailbox holds the latest value of a stream. Puts overwrite, and a single
// buffered wake signal tells the run loop to look.
type mailbox[T any] struct {
	mu   sync.Mutex
	v    T
	set  bool
	wake chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{wake: make(chan struct{}, 1)}
}

func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.v, m.set = v, true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.v, m.set
	var zero T
	m.v, m.set = zero, false
	return v, ok
}
