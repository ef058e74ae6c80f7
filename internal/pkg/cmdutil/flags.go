package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// monitorFlags maps flag names to keys under MonitorPrefix.
var monitorFlags = map[string]string{
	"delay":         "delay",
	"critical1":     "critical1",
	"critical5":     "critical5",
	"critical15":    "critical15",
	"freemem":       "freemem",
	"uptime":        "uptime",
	"silent":        "silent",
	"stream":        "stream",
	"throttle":      "throttle",
	"stream-format": "stream_format",
}

// AddMonitorFlags defines the monitor option flags on cmd. Defaults are
// left empty so an unchanged flag never overrides the config file.
func AddMonitorFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("delay", "", "poll interval, milliseconds or a duration such as 5s (default 3000)")
	fs.Float64("critical1", 0, "1 minute load average threshold (default: logical CPU count)")
	fs.Float64("critical5", 0, "5 minute load average threshold (default: logical CPU count)")
	fs.Float64("critical15", 0, "15 minute load average threshold (default: logical CPU count)")
	fs.String("freemem", "", "free memory threshold: fraction below 1, bytes, percentage (10%) or size (512M)")
	fs.Float64("uptime", 0, "raise uptime once the host has been up longer than this many seconds")
	fs.Bool("silent", false, "suppress the per-tick monitor event")
	fs.Bool("stream", false, "write events to the byte stream instead of per-event output")
	fs.String("throttle", "", "default throttle window for throttled output (milliseconds or duration)")
	fs.String("stream-format", "", "stream record format: json or yaml (default json)")
}

// BindMonitorFlags binds the monitor flags of fs into the global viper
// instance. Call it from the running command so the bound flag set is the
// one that was parsed.
func BindMonitorFlags(fs *pflag.FlagSet) error {
	for name, key := range monitorFlags {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(MonitorPrefix+"."+key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
