// Package sysmetrics reads host-level OS metrics: load averages, uptime and
// free/total memory. The monitor treats a Source as an injected capability,
// HostSource is the production implementation backed by gopsutil.
package sysmetrics

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/multierr"
)

// Source exposes the raw OS counters a sample is built from.
type Source interface {
	// LoadAverages returns the 1, 5 and 15 minute load averages.
	LoadAverages(ctx context.Context) ([3]float64, error)

	// Uptime returns the host uptime in seconds.
	Uptime(ctx context.Context) (float64, error)

	// FreeMemory returns the memory available to new workloads in bytes.
	FreeMemory(ctx context.Context) (uint64, error)

	// TotalMemory returns the total usable memory in bytes.
	TotalMemory(ctx context.Context) (uint64, error)
}

// Snapshot is one reading of every Source primitive.
type Snapshot struct {
	LoadAvg  [3]float64
	Uptime   float64
	FreeMem  uint64
	TotalMem uint64
}

// SnapshotSource is a Source that can read every primitive in one pass, so
// free and total memory come from the same reading.
type SnapshotSource interface {
	Source
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Read pulls every primitive from src. A failure of any primitive fails the
// whole read; all failures are reported together.
func Read(ctx context.Context, src Source) (Snapshot, error) {
	if ss, ok := src.(SnapshotSource); ok {
		return ss.Snapshot(ctx)
	}

	var (
		s    Snapshot
		err  error
		errs error
	)

	if s.LoadAvg, err = src.LoadAverages(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("load averages: %w", err))
	}
	if s.Uptime, err = src.Uptime(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("uptime: %w", err))
	}
	if s.FreeMem, err = src.FreeMemory(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("free memory: %w", err))
	}
	if s.TotalMem, err = src.TotalMemory(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("total memory: %w", err))
	}

	if errs != nil {
		return Snapshot{}, errs
	}
	return s, nil
}

// cgroupMemory is the memory limit and usage of the current cgroup. A zero
// Limit means no limit; a zero Usage means usage could not be read.
type cgroupMemory struct {
	Limit uint64
	Usage uint64
}

// HostOption configures a HostSource.
type HostOption func(*HostSource)

// WithCgroupLimit makes memory readings relative to the cgroup when its
// limit is lower than the physical memory of the host: total is the limit
// and free is the headroom left under it. Linux only.
func WithCgroupLimit() HostOption {
	return func(h *HostSource) {
		h.cgroup = readCgroupMemory
	}
}

// HostSource reads metrics of the local host through gopsutil.
type HostSource struct {
	// Replaceable for tests
	load       func(context.Context) (*load.AvgStat, error)
	uptime     func(context.Context) (uint64, error)
	virtualMem func(context.Context) (*mem.VirtualMemoryStat, error)
	cgroup     func() cgroupMemory
}

// NewHostSource creates a Source reading the local host.
func NewHostSource(opts ...HostOption) *HostSource {
	h := &HostSource{
		load:       load.AvgWithContext,
		uptime:     host.UptimeWithContext,
		virtualMem: mem.VirtualMemoryWithContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LoadAverages returns the 1, 5 and 15 minute load averages.
func (h *HostSource) LoadAverages(ctx context.Context) ([3]float64, error) {
	avg, err := h.load(ctx)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}

// Uptime returns the host uptime in seconds.
func (h *HostSource) Uptime(ctx context.Context) (float64, error) {
	up, err := h.uptime(ctx)
	if err != nil {
		return 0, err
	}
	return float64(up), nil
}

// FreeMemory returns available memory in bytes. Available includes
// reclaimable page cache, which is what "free" means to a workload.
func (h *HostSource) FreeMemory(ctx context.Context) (uint64, error) {
	free, _, err := h.memory(ctx)
	return free, err
}

// TotalMemory returns total memory in bytes, capped by the cgroup limit when
// WithCgroupLimit is set.
func (h *HostSource) TotalMemory(ctx context.Context) (uint64, error) {
	_, total, err := h.memory(ctx)
	return total, err
}

// Snapshot reads every primitive, taking free and total memory from a
// single reading.
func (h *HostSource) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		s    Snapshot
		err  error
		errs error
	)

	if s.LoadAvg, err = h.LoadAverages(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("load averages: %w", err))
	}
	if s.Uptime, err = h.Uptime(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("uptime: %w", err))
	}
	if s.FreeMem, s.TotalMem, err = h.memory(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("memory: %w", err))
	}

	if errs != nil {
		return Snapshot{}, errs
	}
	return s, nil
}

// memory returns free and total bytes from one virtual memory reading. Under
// a cgroup limit below physical memory, total is the limit and free is the
// smaller of host available memory and the headroom under the limit.
func (h *HostSource) memory(ctx context.Context) (free, total uint64, err error) {
	vm, err := h.virtualMem(ctx)
	if err != nil {
		return 0, 0, err
	}
	free, total = vm.Available, vm.Total
	if h.cgroup == nil {
		return free, total, nil
	}

	cg := h.cgroup()
	if cg.Limit == 0 || cg.Limit >= total {
		return free, total, nil
	}
	total = cg.Limit
	if cg.Usage > 0 {
		var headroom uint64
		if cg.Usage < cg.Limit {
			headroom = cg.Limit - cg.Usage
		}
		free = min(free, headroom)
	}
	return min(free, total), total, nil
}

// LogicalCPUs returns the number of logical CPUs, used as the default
// critical load average.
func LogicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
