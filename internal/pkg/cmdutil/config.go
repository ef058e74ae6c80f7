// Package cmdutil provides shared utilities for CLI command implementations.
package cmdutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/endorses/osmon/internal/pkg/monitor"
)

// MonitorPrefix is the config section holding monitor options.
const MonitorPrefix = "monitor"

// MonitorKeys lists the option names read from the monitor section.
var MonitorKeys = []string{
	"delay",
	"critical1",
	"critical5",
	"critical15",
	"freemem",
	"uptime",
	"silent",
	"stream",
	"throttle",
	"stream_format",
}

// MonitorOptions collects the monitor options set in v, from a config file,
// the environment or a changed flag. Unset keys are left out so the
// monitor's own values stay in effect.
func MonitorOptions(v *viper.Viper) (monitor.Options, error) {
	opts := monitor.Options{}
	for _, key := range MonitorKeys {
		full := MonitorPrefix + "." + key
		if !v.IsSet(full) {
			continue
		}
		val := v.Get(full)
		if key == "freemem" {
			if s, ok := val.(string); ok {
				f, err := ParseFreeMem(s)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", full, err)
				}
				val = f
			}
		}
		opts[key] = val
	}
	return opts, nil
}

// GetStringSliceConfig returns the config value for key, or flagValue if the key is not set.
// Flag values take precedence over config file values.
func GetStringSliceConfig(key string, flagValue []string) []string {
	if len(flagValue) > 0 {
		return flagValue
	}
	// Check actual config value instead of viper.IsSet() which returns true
	// for bound flags even when config file doesn't define them
	if configValue := viper.GetStringSlice(key); len(configValue) > 0 {
		return configValue
	}
	return flagValue
}

// GetBoolConfig returns the config value for key, or flagValue if the key is not set.
func GetBoolConfig(key string, flagValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return flagValue
}

// ParseFreeMem parses a freemem threshold. Plain numbers are taken as is
// (below 1 a fraction of total memory, otherwise bytes), percentages become
// fractions and size strings such as "512M" become bytes.
func ParseFreeMem(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid percentage: %w", err)
		}
		if pct < 0 || pct >= 100 {
			return 0, fmt.Errorf("percentage must be in [0, 100), got %v", pct)
		}
		return pct / 100, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	n, err := ParseSizeString(s)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// ParseSizeString parses a size string (e.g., "100M", "1G", "500K") and returns bytes.
// Supported suffixes: K/k (KiB), M/m (MiB), G/g (GiB), T/t (TiB).
func ParseSizeString(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	lastChar := s[len(s)-1]
	var multiplier int64 = 1

	switch lastChar {
	case 'K', 'k':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	case 'T', 't':
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("size must be non-negative, got %d", value)
	}

	return value * multiplier, nil
}
