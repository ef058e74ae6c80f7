package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// fakeSource serves a fixed snapshot, or err when set.
type fakeSource struct {
	mu    sync.Mutex
	snap  sysmetrics.Snapshot
	err   error
	reads int
}

func (f *fakeSource) set(snap sysmetrics.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeSource) LoadAverages(context.Context) ([3]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return [3]float64{}, f.err
	}
	return f.snap.LoadAvg, nil
}

func (f *fakeSource) Uptime(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Uptime, f.err
}

func (f *fakeSource) FreeMemory(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.FreeMem, f.err
}

func (f *fakeSource) TotalMemory(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.TotalMem, f.err
}

// quietSnapshot raises nothing but monitor under testDefaults.
var quietSnapshot = sysmetrics.Snapshot{
	LoadAvg:  [3]float64{0.5, 0.5, 0.5},
	Uptime:   100,
	FreeMem:  800,
	TotalMem: 1000,
}

func testDefaults() Config {
	return Config{
		Delay:        time.Hour,
		Critical1:    4,
		Critical5:    4,
		Critical15:   4,
		StreamFormat: FormatJSON,
	}
}

func newTestMonitor(t *testing.T, src sysmetrics.Source, opts ...Option) *Monitor {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDefaults(testDefaults()),
	}
	m := New(src, append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// recorder collects events from every condition it is attached to.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(m *Monitor, conds ...Condition) *recorder {
	r := &recorder{}
	if len(conds) == 0 {
		conds = Conditions
	}
	for _, c := range conds {
		m.On(c, r.handle)
	}
	return r
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []Condition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Condition, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) count(cond Condition) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == cond {
			n++
		}
	}
	return n
}

// armedGeneration returns the generation of the currently armed timer.
func armedGeneration(m *Monitor) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeWriter accepts records while accept is true.
type fakeWriter struct {
	mu      sync.Mutex
	accept  bool
	offered int
	records [][]byte
}

func (w *fakeWriter) TryEmit(record []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offered++
	if !w.accept {
		return false
	}
	w.records = append(w.records, record)
	return true
}

func (w *fakeWriter) setAccept(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accept = v
}

func (w *fakeWriter) offeredCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offered
}

func (w *fakeWriter) recordCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
