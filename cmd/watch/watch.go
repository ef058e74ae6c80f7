// Package watch implements "osmon watch": a long-running monitor printing
// events to stdout until interrupted.
package watch

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/osmon/internal/pkg/cmdutil"
	"github.com/endorses/osmon/internal/pkg/constants"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/monitor"
	"github.com/endorses/osmon/internal/pkg/output"
	"github.com/endorses/osmon/internal/pkg/signals"
	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// WatchCmd runs the monitor in the foreground.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor the host and print events",
	Long: `Start the monitor and print every raised event as JSON, one per line
when piped. With --stream the monitor's byte stream is copied to stdout
instead; records the terminal cannot keep up with are dropped.

Examples:
  osmon watch
  osmon watch -e loadavg1,freemem --freemem 10%
  osmon watch --silent --throttled --throttle 30s
  osmon watch --stream --stream-format yaml
  osmon watch --reload --config ./osmon.yaml`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	events    []string
	throttled bool
	cgroup    bool
	reload    bool
	pretty    bool
)

// newSource is replaced in tests.
var newSource = func(cgroup bool) sysmetrics.Source {
	if cgroup {
		return sysmetrics.NewHostSource(sysmetrics.WithCgroupLimit())
	}
	return sysmetrics.NewHostSource()
}

func init() {
	cmdutil.AddMonitorFlags(WatchCmd)

	WatchCmd.Flags().StringSliceVarP(&events, "events", "e", nil, "events to print (default: all)")
	WatchCmd.Flags().BoolVar(&throttled, "throttled", false, "rate limit each event to one per throttle window")
	WatchCmd.Flags().BoolVar(&cgroup, "cgroup", false, "cap total memory at the cgroup memory limit")
	WatchCmd.Flags().BoolVar(&reload, "reload", false, "re-read thresholds on config file change or SIGHUP")
	WatchCmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON even when stdout is not a terminal")

	_ = viper.BindPFlag("watch.events", WatchCmd.Flags().Lookup("events"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := cmdutil.BindMonitorFlags(cmd.Flags()); err != nil {
		return err
	}

	conds, err := ParseEvents(cmdutil.GetStringSliceConfig("watch.events", events))
	if err != nil {
		return err
	}
	opts, err := cmdutil.MonitorOptions(viper.GetViper())
	if err != nil {
		return err
	}

	m := monitor.New(newSource(cmdutil.GetBoolConfig("watch.cgroup", cgroup)))
	defer func() { _ = m.Close() }()

	cfg, err := m.Config(opts)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	cleanup := signals.SetupHandler(ctx, cancel)
	defer cleanup()

	out := cmd.OutOrStdout()
	var copied chan error
	if cfg.Stream {
		if len(events) > 0 {
			logger.Warn("Event filter ignored in stream mode", "events", events)
		}
		copied = make(chan error, 1)
		go func() {
			_, err := io.Copy(out, m.Stream())
			copied <- err
		}()
	} else {
		p := newPrinter(out, pretty || output.IsTTY())
		register(m, conds, cmdutil.GetBoolConfig("watch.throttled", throttled), p.print)
	}

	if err := m.Start(nil); err != nil {
		return err
	}

	if cmdutil.GetBoolConfig("watch.reload", reload) {
		go watchReloads(ctx, m, viper.GetViper())
	}

	<-ctx.Done()

	if err := m.Close(); err != nil {
		logger.Warn("Failed to close monitor", "error", err)
	}
	if copied != nil {
		select {
		case err := <-copied:
			if err != nil {
				logger.Warn("Stream copy ended with error", "error", err)
			}
		case <-time.After(constants.GracefulShutdownTimeout):
			logger.Warn("Stream copy did not finish before shutdown timeout")
		}
	}
	return nil
}

// register attaches fn to every condition in conds.
func register(m *monitor.Monitor, conds []monitor.Condition, throttled bool, fn monitor.Handler) []monitor.Registration {
	regs := make([]monitor.Registration, 0, len(conds))
	for _, c := range conds {
		if throttled {
			regs = append(regs, m.Throttle(c, fn, 0))
		} else {
			regs = append(regs, m.On(c, fn))
		}
	}
	return regs
}
