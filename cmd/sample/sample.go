// Package sample implements the one-shot "osmon sample" command.
package sample

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/endorses/osmon/internal/pkg/cmdutil"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/monitor"
	"github.com/endorses/osmon/internal/pkg/output"
	"github.com/endorses/osmon/internal/pkg/sysmetrics"
)

// SampleCmd reads the host metrics once and reports the conditions they
// raise under the configured thresholds.
var SampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Read host metrics once and evaluate thresholds",
	Long: `Read load averages, uptime and memory once, evaluate them against the
configured thresholds and print the result.

Examples:
  osmon sample
  osmon sample --critical1 2 --freemem 10%
  osmon sample -o yaml`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

var (
	outputFormat string
	cgroup       bool
	pretty       bool
)

// newSource is replaced in tests.
var newSource = func(cgroup bool) sysmetrics.Source {
	if cgroup {
		return sysmetrics.NewHostSource(sysmetrics.WithCgroupLimit())
	}
	return sysmetrics.NewHostSource()
}

func init() {
	cmdutil.AddMonitorFlags(SampleCmd)
	SampleCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	SampleCmd.Flags().BoolVar(&cgroup, "cgroup", false, "cap total memory at the cgroup memory limit")
	SampleCmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON even when stdout is not a terminal")
}

// Thresholds are the effective limits a sample was judged against.
type Thresholds struct {
	Critical1  float64 `json:"critical1" yaml:"critical1"`
	Critical5  float64 `json:"critical5" yaml:"critical5"`
	Critical15 float64 `json:"critical15" yaml:"critical15"`
	// FreeMem is resolved to bytes against the sample's total memory.
	FreeMem float64 `json:"freemem" yaml:"freemem"`
	Uptime  float64 `json:"uptime" yaml:"uptime"`
}

// Report is the output of one sample run.
type Report struct {
	Sample     monitor.Sample      `json:"sample" yaml:"sample"`
	Thresholds Thresholds          `json:"thresholds" yaml:"thresholds"`
	Conditions []monitor.Condition `json:"conditions" yaml:"conditions"`
}

// NewReport evaluates s under cfg.
func NewReport(s monitor.Sample, cfg monitor.Config) Report {
	return Report{
		Sample: s,
		Thresholds: Thresholds{
			Critical1:  cfg.Critical1,
			Critical5:  cfg.Critical5,
			Critical15: cfg.Critical15,
			FreeMem:    monitor.FreeMemThreshold(cfg.FreeMem, s.TotalMem),
			Uptime:     cfg.Uptime,
		},
		Conditions: monitor.Evaluate(s, cfg),
	}
}

func runSample(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "yaml" {
		return fmt.Errorf("unknown output format %q (want json or yaml)", outputFormat)
	}
	if err := cmdutil.BindMonitorFlags(cmd.Flags()); err != nil {
		return err
	}

	opts, err := cmdutil.MonitorOptions(viper.GetViper())
	if err != nil {
		return err
	}

	src := newSource(cmdutil.GetBoolConfig("sample.cgroup", cgroup))
	m := monitor.New(src, monitor.WithLogger(logger.With("component", "sample")))
	defer func() { _ = m.Close() }()

	cfg, err := m.Config(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := sysmetrics.Read(ctx, src)
	if err != nil {
		return fmt.Errorf("sample metrics: %w", err)
	}

	report := NewReport(monitor.NewSample(snap), cfg)
	logger.Debug("Sampled host metrics", "conditions", len(report.Conditions))
	return writeReport(cmd.OutOrStdout(), report)
}

func writeReport(w io.Writer, r Report) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	return output.WriteJSON(w, r, pretty || output.IsTTY())
}
