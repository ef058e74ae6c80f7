package monitor

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/endorses/osmon/internal/pkg/constants"
	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// Stream record formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrInvalidOption is returned when options fail to decode or validate.
var ErrInvalidOption = errors.New("invalid monitor option")

// Config holds the thresholds and modes the monitor evaluates against.
type Config struct {
	// Delay is the poll interval. Options take it in milliseconds or as a
	// duration string.
	Delay time.Duration `mapstructure:"delay"`

	// Load average thresholds for the 1, 5 and 15 minute averages.
	Critical1  float64 `mapstructure:"critical1"`
	Critical5  float64 `mapstructure:"critical5"`
	Critical15 float64 `mapstructure:"critical15"`

	// FreeMem below 1 is a fraction of total memory, otherwise bytes.
	FreeMem float64 `mapstructure:"freemem"`

	// Uptime threshold in seconds, 0 disables the uptime condition.
	Uptime float64 `mapstructure:"uptime"`

	// Silent suppresses the per-tick monitor condition.
	Silent bool `mapstructure:"silent"`

	// Stream enables writing records to the byte stream.
	Stream bool `mapstructure:"stream"`

	// Throttle is the default window for throttled listeners.
	Throttle time.Duration `mapstructure:"throttle"`

	// StreamFormat selects the record encoding, json or yaml.
	StreamFormat string `mapstructure:"stream_format"`
}

// DefaultConfig returns the defaults: a 3s delay and every load average
// threshold set to the number of logical CPUs.
func DefaultConfig() Config {
	critical := float64(sysmetrics.LogicalCPUs())
	return Config{
		Delay:        constants.DefaultDelay,
		Critical1:    critical,
		Critical5:    critical,
		Critical15:   critical,
		Throttle:     constants.DefaultThrottle,
		StreamFormat: FormatJSON,
	}
}

// Validate checks that every numeric option is non-negative.
func (c Config) Validate() error {
	var problems []error
	if c.Delay <= 0 {
		problems = append(problems, fmt.Errorf("delay must be positive, got %v", c.Delay))
	}
	for _, opt := range []struct {
		name  string
		value float64
	}{
		{"critical1", c.Critical1},
		{"critical5", c.Critical5},
		{"critical15", c.Critical15},
		{"freemem", c.FreeMem},
		{"uptime", c.Uptime},
	} {
		if opt.value < 0 {
			problems = append(problems, fmt.Errorf("%s must be non-negative, got %v", opt.name, opt.value))
		}
	}
	if c.Throttle < 0 {
		problems = append(problems, fmt.Errorf("throttle must be non-negative, got %v", c.Throttle))
	}
	if c.StreamFormat != FormatJSON && c.StreamFormat != FormatYAML {
		problems = append(problems, fmt.Errorf("stream_format must be %q or %q, got %q", FormatJSON, FormatYAML, c.StreamFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOption, errors.Join(problems...))
	}
	return nil
}

// configStore guards the current Config. Ticks read a copy, apply swaps in
// a fully merged copy so readers never see a half-applied update.
type configStore struct {
	mu  sync.RWMutex
	cfg Config
}

func newConfigStore(cfg Config) *configStore {
	return &configStore{cfg: cfg}
}

func (s *configStore) get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// apply merges opts over the current config. Keys it does not recognise are
// returned in unused. On error the current config is left untouched.
func (s *configStore) apply(opts Options) (cfg Config, unused []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.cfg
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return s.cfg, nil, err
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return s.cfg, nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if err := merged.Validate(); err != nil {
		return s.cfg, nil, err
	}

	s.cfg = merged
	return merged, md.Unused, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook decodes plain numbers, and strings holding one, into
// durations counted in milliseconds. Other strings fall through to the
// standard duration parser.
func millisecondsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Millisecond, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Millisecond)), nil
	case reflect.String:
		if ms, err := strconv.ParseFloat(reflect.ValueOf(data).String(), 64); err == nil {
			return time.Duration(ms * float64(time.Millisecond)), nil
		}
	}
	return data, nil
}
