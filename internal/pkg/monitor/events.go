package monitor

import (
	"maps"

	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// Condition names an event raised by the monitor.
type Condition string

// Sample conditions, in the order a tick raises them.
const (
	CondMonitor   Condition = "monitor"
	CondLoadAvg1  Condition = "loadavg1"
	CondLoadAvg5  Condition = "loadavg5"
	CondLoadAvg15 Condition = "loadavg15"
	CondFreeMem   Condition = "freemem"
	CondUptime    Condition = "uptime"
)

// Lifecycle conditions.
const (
	CondStart  Condition = "start"
	CondStop   Condition = "stop"
	CondConfig Condition = "config"
)

// Conditions lists every condition the monitor can raise.
var Conditions = []Condition{
	CondMonitor, CondLoadAvg1, CondLoadAvg5, CondLoadAvg15, CondFreeMem, CondUptime,
	CondStart, CondStop, CondConfig,
}

// Valid reports whether c is a condition the monitor raises.
func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}

// Sample is an immutable snapshot taken on one tick.
type Sample struct {
	LoadAvg  [3]float64 `json:"loadavg" yaml:"loadavg,flow"`
	Uptime   float64    `json:"uptime" yaml:"uptime"`
	FreeMem  uint64     `json:"freemem" yaml:"freemem"`
	TotalMem uint64     `json:"totalmem" yaml:"totalmem"`
}

// NewSample converts a metrics snapshot.
func NewSample(s sysmetrics.Snapshot) Sample {
	return Sample{
		LoadAvg:  s.LoadAvg,
		Uptime:   s.Uptime,
		FreeMem:  s.FreeMem,
		TotalMem: s.TotalMem,
	}
}

// Options maps option names to values, as accepted by Start and Config.
type Options map[string]any

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// Event is the payload handed to listeners and written to the stream.
// Sample conditions carry the sample fields, config events carry the
// options that were just applied. Handlers must not modify it.
type Event struct {
	Type Condition `json:"type"`
	*Sample
	Options Options `json:"options,omitempty"`
}

// MarshalYAML flattens the sample fields next to the type.
func (e Event) MarshalYAML() (any, error) {
	if e.Sample != nil {
		return struct {
			Type   Condition `yaml:"type"`
			Sample `yaml:",inline"`
		}{e.Type, *e.Sample}, nil
	}
	return struct {
		Type    Condition `yaml:"type"`
		Options Options   `yaml:"options,omitempty"`
	}{e.Type, e.Options}, nil
}
