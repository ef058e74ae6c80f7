package watch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/endorses/osmon/internal/pkg/cmdutil"
	"github.com/endorses/osmon/internal/pkg/constants"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/monitor"
	"github.com/endorses/osmon/internal/pkg/signals"
)

// watchReloads re-applies the monitor section of v whenever the config file
// changes on disk or the process receives SIGHUP, until ctx is done.
func watchReloads(ctx context.Context, m *monitor.Monitor, v *viper.Viper) {
	sighup, stop := signals.NotifyReload(ctx)
	defer stop()

	changed := make(chan struct{}, constants.ReloadChannelBuffer)
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Debug("Config file changed", "file", e.Name, "op", e.Op.String())
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		v.WatchConfig()
		logger.InfoContext(ctx, "Watching config file for changes", "file", v.ConfigFileUsed())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			if v.ConfigFileUsed() != "" {
				if err := v.ReadInConfig(); err != nil {
					logger.ErrorContext(ctx, "Failed to re-read config", "file", v.ConfigFileUsed(), "error", err)
					continue
				}
			}
			if err := reloadMonitor(m, v); err != nil {
				logger.ErrorContext(ctx, "Reload rejected", "error", err)
			}
		case <-changed:
			if err := reloadMonitor(m, v); err != nil {
				logger.ErrorContext(ctx, "Reload rejected", "error", err)
			}
		}
	}
}

// reloadMonitor restarts m with the monitor options currently in v. The
// output mode is chosen at startup, so a stream option is not re-applied.
func reloadMonitor(m *monitor.Monitor, v *viper.Viper) error {
	opts, err := cmdutil.MonitorOptions(v)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if s, ok := opts["stream"]; ok {
		delete(opts, "stream")
		logger.Debug("Stream mode is fixed at startup", "requested", s)
	}

	if err := m.Start(opts); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	cfg, _ := m.Config(nil)
	logger.Info("Monitor options reloaded",
		"delay", cfg.Delay,
		"critical1", cfg.Critical1,
		"freemem", cfg.FreeMem,
		"uptime", cfg.Uptime)
	return nil
}
