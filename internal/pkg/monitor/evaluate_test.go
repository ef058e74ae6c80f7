package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_FixedOrder(t *testing.T) {
	cfg := Config{Critical1: 1, Critical5: 1, Critical15: 1, FreeMem: 0.5, Uptime: 10}
	s := Sample{LoadAvg: [3]float64{2, 2, 2}, Uptime: 11, FreeMem: 100, TotalMem: 1000}

	got := Evaluate(s, cfg)
	assert.Equal(t, []Condition{
		CondMonitor, CondLoadAvg1, CondLoadAvg5, CondLoadAvg15, CondFreeMem, CondUptime,
	}, got)
}

func TestEvaluate_Deterministic(t *testing.T) {
	cfg := Config{Critical1: 1, Critical5: 3, Critical15: 1, FreeMem: 0.2}
	s := Sample{LoadAvg: [3]float64{2, 2, 2}, FreeMem: 100, TotalMem: 1000}

	first := Evaluate(s, cfg)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(s, cfg))
	}
	assert.Equal(t, []Condition{CondMonitor, CondLoadAvg1, CondLoadAvg15, CondFreeMem}, first)
}

func TestEvaluate_Silent(t *testing.T) {
	cfg := Config{Silent: true, Critical1: 4, Critical5: 4, Critical15: 4}

	assert.Empty(t, Evaluate(Sample{TotalMem: 1000, FreeMem: 1000}, cfg))

	s := Sample{LoadAvg: [3]float64{5, 0, 0}, TotalMem: 1000, FreeMem: 1000}
	assert.Equal(t, []Condition{CondLoadAvg1}, Evaluate(s, cfg))
}

func TestEvaluate_LoadAverageOneMinute(t *testing.T) {
	// Four CPUs, critical1 at the core count
	cfg := Config{Critical1: 4, Critical5: 4, Critical15: 4}
	s := Sample{LoadAvg: [3]float64{5, 0, 0}, TotalMem: 1000, FreeMem: 1000}

	got := Evaluate(s, cfg)
	assert.Equal(t, []Condition{CondMonitor, CondLoadAvg1}, got)
	assert.NotContains(t, got, CondLoadAvg5)
	assert.NotContains(t, got, CondLoadAvg15)
}

func TestEvaluate_LoadAverageStrictlyAbove(t *testing.T) {
	cfg := Config{Critical1: 4, Critical5: 4, Critical15: 4, Silent: true}
	s := Sample{LoadAvg: [3]float64{4, 4, 4}, TotalMem: 1000, FreeMem: 1000}

	assert.Empty(t, Evaluate(s, cfg))
}

func TestEvaluate_FreeMemFraction(t *testing.T) {
	cfg := Config{Silent: true, Critical1: 100, Critical5: 100, Critical15: 100, FreeMem: 0.1}

	assert.Equal(t, []Condition{CondFreeMem}, Evaluate(Sample{FreeMem: 50, TotalMem: 1000}, cfg))
	assert.Empty(t, Evaluate(Sample{FreeMem: 150, TotalMem: 1000}, cfg))
	assert.Empty(t, Evaluate(Sample{FreeMem: 100, TotalMem: 1000}, cfg), "equal to threshold does not fire")
}

func TestEvaluate_FreeMemTracksTotalMemory(t *testing.T) {
	cfg := Config{Silent: true, Critical1: 100, Critical5: 100, Critical15: 100, FreeMem: 0.1}

	// Same free memory, total shrinks (e.g. container limit lowered)
	assert.Equal(t, []Condition{CondFreeMem}, Evaluate(Sample{FreeMem: 150, TotalMem: 2000}, cfg))
	assert.Empty(t, Evaluate(Sample{FreeMem: 150, TotalMem: 1000}, cfg))
}

func TestEvaluate_FreeMemBoundary(t *testing.T) {
	base := Config{Silent: true, Critical1: 100, Critical5: 100, Critical15: 100}

	t.Run("just below one is a fraction", func(t *testing.T) {
		cfg := base
		cfg.FreeMem = 0.999
		assert.Equal(t, []Condition{CondFreeMem}, Evaluate(Sample{FreeMem: 500, TotalMem: 1000}, cfg))
	})

	t.Run("one is an absolute byte count", func(t *testing.T) {
		cfg := base
		cfg.FreeMem = 1
		assert.Empty(t, Evaluate(Sample{FreeMem: 500, TotalMem: 1000}, cfg))
		assert.Empty(t, Evaluate(Sample{FreeMem: 1, TotalMem: 1000}, cfg))
		assert.Equal(t, []Condition{CondFreeMem}, Evaluate(Sample{FreeMem: 0, TotalMem: 1000}, cfg))
	})

	t.Run("absolute bytes", func(t *testing.T) {
		cfg := base
		cfg.FreeMem = 600
		assert.Equal(t, []Condition{CondFreeMem}, Evaluate(Sample{FreeMem: 500, TotalMem: 1000}, cfg))
		assert.Empty(t, Evaluate(Sample{FreeMem: 700, TotalMem: 1000}, cfg))
	})

	t.Run("zero never fires", func(t *testing.T) {
		cfg := base
		assert.Empty(t, Evaluate(Sample{FreeMem: 0, TotalMem: 1000}, cfg))
	})
}

func TestFreeMemThreshold(t *testing.T) {
	assert.InDelta(t, 100.0, FreeMemThreshold(0.1, 1000), 1e-9)
	assert.Equal(t, 1.0, FreeMemThreshold(1, 1000))
	assert.Equal(t, 4096.0, FreeMemThreshold(4096, 1000))
	assert.Equal(t, 0.0, FreeMemThreshold(0, 1000))
}

func TestEvaluate_Uptime(t *testing.T) {
	base := Config{Silent: true, Critical1: 100, Critical5: 100, Critical15: 100}

	t.Run("disabled", func(t *testing.T) {
		for _, up := range []float64{0, 1, 1e9} {
			assert.Empty(t, Evaluate(Sample{Uptime: up, FreeMem: 1, TotalMem: 1}, base))
		}
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := base
		cfg.Uptime = 3600
		assert.Empty(t, Evaluate(Sample{Uptime: 3600, FreeMem: 1, TotalMem: 1}, cfg))
		assert.Equal(t, []Condition{CondUptime}, Evaluate(Sample{Uptime: 3601, FreeMem: 1, TotalMem: 1}, cfg))
	})
}
