// Package monitor samples host metrics on a timer, evaluates them against
// configured thresholds and delivers the resulting conditions two ways: to
// registered listeners, always, and to a lossy byte stream when stream mode
// is on.
//
// A Monitor is either stopped or running. Start arms the timer and may be
// called again while running to change settings; only the first Start after
// a stop raises the start condition. Stop disarms the timer and raises stop
// once. Conditions are delivered one at a time, in the order raised.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/endorses/osmon/internal/pkg/constants"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// ErrClosed is returned by Start on a closed monitor.
var ErrClosed = errors.New("monitor closed")

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithClock replaces the time source used for throttling.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithDefaults replaces DefaultConfig as the starting configuration.
func WithDefaults(cfg Config) Option {
	return func(m *Monitor) {
		m.defaults = &cfg
	}
}

// WithStreamWriter delivers stream records to w instead of the built-in
// ByteStream. The consumer signals readiness through RequestMore.
func WithStreamWriter(w StreamWriter) Option {
	return func(m *Monitor) {
		m.writer = w
	}
}

// WithStreamCapacity sets the high water mark of the built-in ByteStream.
func WithStreamCapacity(bytes int) Option {
	return func(m *Monitor) {
		m.streamCapacity = bytes
	}
}

// WithErrorHandler receives tick failures. Defaults to logging them.
func WithErrorHandler(fn func(error)) Option {
	return func(m *Monitor) {
		m.onError = fn
	}
}

// Monitor polls a metrics Source and raises conditions.
type Monitor struct {
	id  string
	src sysmetrics.Source
	log *slog.Logger
	now func() time.Time

	onError        func(error)
	defaults       *Config
	writer         StreamWriter
	streamCapacity int

	config    *configStore
	listeners *listeners
	stream    *streamChannel
	bytes     *ByteStream

	mu         sync.Mutex
	idle       *sync.Cond // signalled when sampling or dispatching ends
	running    bool
	closed     bool
	generation uint64
	cancel     context.CancelFunc

	// Events are delivered by one goroutine at a time, the claim holder,
	// in the order they were raised.
	dispatching  bool
	pending      []Event
	sampling     int
	streamClosed bool
}

// New creates a stopped Monitor reading from src.
func New(src sysmetrics.Source, opts ...Option) *Monitor {
	m := &Monitor{
		id:             uuid.NewString(),
		src:            src,
		now:            time.Now,
		streamCapacity: constants.StreamHighWaterMark,
		listeners:      newListeners(),
	}
	m.idle = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}

	if m.log == nil {
		m.log = logger.With("component", "monitor")
	}
	m.log = m.log.With("monitor_id", m.id)

	if m.onError == nil {
		m.onError = func(err error) {
			m.log.Error("Monitor tick failed", "error", err)
		}
	}

	if m.defaults != nil {
		m.config = newConfigStore(*m.defaults)
	} else {
		m.config = newConfigStore(DefaultConfig())
	}

	if m.writer == nil {
		m.bytes = NewByteStream(m.streamCapacity)
		m.bytes.setDemandHandler(m.RequestMore)
		m.writer = m.bytes
	}
	m.stream = newStreamChannel(m.writer, m.log)

	return m
}

// ID returns the instance identifier used in log lines.
func (m *Monitor) ID() string {
	return m.id
}

// Start applies opts and (re)arms the poll timer at the configured delay.
// The start condition is raised only if the monitor was stopped, and always
// before the first sample. Invalid options leave the monitor as it was.
func (m *Monitor) Start(opts Options) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	cfg, deliver, err := m.applyLocked(opts)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	m.disarmLocked()
	m.armLocked(cfg.Delay)
	wasRunning := m.running
	m.running = true
	if !wasRunning {
		deliver = m.emitLocked(Event{Type: CondStart}) || deliver
	}
	m.mu.Unlock()

	if !wasRunning {
		m.log.Info("Monitor started", "delay", cfg.Delay)
	} else {
		m.log.Debug("Monitor rearmed", "delay", cfg.Delay)
	}
	if deliver {
		m.drain(true)
	}
	return nil
}

// Stop disarms the timer. Once Stop returns no sample is read and no
// handler call for a sample begins. The stop condition is raised only if
// the monitor was running. Called from a handler, stop is delivered after
// that handler returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	deliver, stopped := m.stopLocked()
	m.mu.Unlock()

	if stopped {
		m.log.Info("Monitor stopped")
	}
	if deliver {
		m.drain(true)
	}
}

// Close stops the monitor and closes the built-in byte stream once the stop
// record has been offered to it. A closed monitor cannot be started again.
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.closed = true
	deliver, stopped := m.stopLocked()
	deliver = m.claimLocked() || deliver
	m.mu.Unlock()

	if stopped {
		m.log.Info("Monitor stopped")
	}
	if deliver {
		return m.drain(true)
	}
	return nil
}

// IsRunning reports whether the monitor is running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Config merges opts into the current configuration and raises the config
// condition with a copy of opts. A nil opts is a no-op. Returns the full
// configuration in effect afterwards.
func (m *Monitor) Config(opts Options) (Config, error) {
	if opts == nil {
		return m.config.get(), nil
	}

	m.mu.Lock()
	cfg, deliver, err := m.applyLocked(opts)
	m.mu.Unlock()
	if err != nil {
		return cfg, err
	}

	if deliver {
		m.drain(true)
	}
	return cfg, nil
}

// On registers handler for cond. Handlers run in registration order and
// never concurrently with each other. A condition raised while another is
// being delivered is queued behind it and delivered by the goroutine
// already delivering.
func (m *Monitor) On(cond Condition, handler Handler) Registration {
	return m.listeners.add(cond, handler)
}

// Off removes a registration. It reports whether the handler was registered.
func (m *Monitor) Off(r Registration) bool {
	return m.listeners.remove(r)
}

// ListenerCount returns the number of handlers registered for cond.
func (m *Monitor) ListenerCount(cond Condition) int {
	return m.listeners.count(cond)
}

// Stream returns the built-in byte stream, or nil when WithStreamWriter
// supplied another consumer.
func (m *Monitor) Stream() *ByteStream {
	return m.bytes
}

// RequestMore tells the monitor the stream consumer has capacity again.
// Records dropped in the meantime are not replayed.
func (m *Monitor) RequestMore() {
	m.stream.requestMore()
}

// StreamStats reports stream delivery counters.
func (m *Monitor) StreamStats() StreamStats {
	return m.stream.stats()
}

// applyLocked merges opts and queues the config condition. A nil opts
// changes nothing. Must hold m.mu.
func (m *Monitor) applyLocked(opts Options) (Config, bool, error) {
	if opts == nil {
		return m.config.get(), false, nil
	}

	cfg, unused, err := m.config.apply(opts)
	if err != nil {
		return cfg, false, err
	}
	if len(unused) > 0 {
		m.log.Debug("Ignoring unknown monitor options", "options", unused)
	}
	return cfg, m.emitLocked(Event{Type: CondConfig, Options: opts.Clone()}), nil
}

// stopLocked disarms the timer, waits out a sample read in flight and
// queues the stop condition if the monitor was running. Must hold m.mu.
func (m *Monitor) stopLocked() (deliver, stopped bool) {
	m.disarmLocked()
	for m.sampling > 0 {
		m.idle.Wait()
	}

	stopped = m.running
	m.running = false
	if stopped {
		deliver = m.emitLocked(Event{Type: CondStop})
	}
	return deliver, stopped
}

// claimLocked takes the right to deliver events. Must hold m.mu.
func (m *Monitor) claimLocked() bool {
	if m.dispatching {
		return false
	}
	m.dispatching = true
	return true
}

// emitLocked queues ev. It reports whether the caller now holds the
// delivery claim and must drain; otherwise the current holder delivers ev.
// Must hold m.mu.
func (m *Monitor) emitLocked(ev Event) bool {
	m.pending = append(m.pending, ev)
	return m.claimLocked()
}

// drain delivers queued events in order. With release it gives up the
// delivery claim once the queue is empty, closing the byte stream if the
// monitor was closed meanwhile.
func (m *Monitor) drain(release bool) error {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			var closeStream bool
			if release {
				m.dispatching = false
				m.idle.Broadcast()
				closeStream = m.closed && m.bytes != nil && !m.streamClosed
				m.streamClosed = m.streamClosed || closeStream
			}
			m.mu.Unlock()

			if closeStream {
				return m.bytes.Close()
			}
			return nil
		}
		ev := m.pending[0]
		m.pending[0] = Event{}
		m.pending = m.pending[1:]
		m.mu.Unlock()

		m.dispatch(ev, nil)
	}
}

// dispatch delivers ev to listeners and then, in stream mode, to the stream.
// Stream backpressure never affects listener delivery. A non-nil live is
// checked before every handler and before the stream; delivery stops once
// it reports false.
func (m *Monitor) dispatch(ev Event, live func() bool) {
	if !m.listeners.deliver(ev, live) {
		return
	}

	cfg := m.config.get()
	if cfg.Stream && (live == nil || live()) {
		m.stream.deliver(ev, cfg.StreamFormat)
	}
}

// disarmLocked invalidates the current timer. Must hold m.mu.
func (m *Monitor) disarmLocked() {
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	// Wake ticks waiting for the claim so they see the new generation
	m.idle.Broadcast()
}

// armLocked starts a timer goroutine for the current generation. Must hold m.mu.
func (m *Monitor) armLocked(delay time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx, m.generation, delay)
}

func (m *Monitor) loop(ctx context.Context, gen uint64, delay time.Duration) {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.tick(ctx, gen) {
				return
			}
		}
	}
}

// current reports whether gen is still the armed timer.
func (m *Monitor) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(gen)
}

func (m *Monitor) currentLocked(gen uint64) bool {
	return m.generation == gen && m.cancel != nil
}

// tick samples once and dispatches the raised conditions. It returns false
// once the timer for gen has been disarmed.
func (m *Monitor) tick(ctx context.Context, gen uint64) bool {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return false
	}
	m.sampling++
	m.mu.Unlock()

	snap, err := sysmetrics.Read(ctx, m.src)

	m.mu.Lock()
	m.sampling--
	m.idle.Broadcast()
	m.mu.Unlock()

	if err != nil {
		// No fallback sample: thresholds cannot be judged on missing data
		m.onError(fmt.Errorf("sample metrics: %w", err))
		return true
	}

	sample := NewSample(snap)
	conds := Evaluate(sample, m.config.get())
	m.log.Debug("Monitor tick", "conditions", len(conds), "loadavg1", sample.LoadAvg[0], "freemem", sample.FreeMem)
	if len(conds) == 0 {
		return true
	}

	m.mu.Lock()
	for m.dispatching && m.currentLocked(gen) {
		m.idle.Wait()
	}
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return false
	}
	m.dispatching = true
	m.mu.Unlock()

	live := func() bool { return m.current(gen) }
	for _, cond := range conds {
		if !live() {
			break
		}
		m.dispatch(Event{Type: cond, Sample: &sample}, live)
		// Conditions raised by handlers go out before the next sample condition
		m.drain(false)
	}
	m.drain(true)
	return m.current(gen)
}
