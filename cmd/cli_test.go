package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorses/osmon/internal/pkg/cmdutil"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd, versionCmd)
		viper.Reset()
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags clears parsed values so the shared commands can run again.
func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		contains []string
	}{
		{
			name:     "No arguments shows help",
			args:     []string{},
			contains: []string{"host resource monitor", "watch", "sample"},
		},
		{
			name:     "Help flag",
			args:     []string{"--help"},
			contains: []string{"threshold crossings"},
		},
		{
			name:     "Version flag",
			args:     []string{"--version"},
			contains: []string{version.GetVersion(), "commit:"},
		},
		{
			name:     "Version command",
			args:     []string{"version"},
			contains: []string{"osmon " + version.GetVersion()},
		},
		{
			name:    "Unknown command",
			args:    []string{"sniff"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, output, want, "Output should contain expected text")
			}
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	output, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, version.GitCommit, info.GitCommit)
}

func TestInitConfig(t *testing.T) {
	prevLogger := logger.Get()
	origCfgFile := cfgFile
	t.Cleanup(func() {
		logger.SetDefault(prevLogger)
		cfgFile = origCfgFile
		viper.Reset()
	})

	configFile := filepath.Join(t.TempDir(), "osmon.yaml")
	content := `monitor:
  critical1: 2.5
  freemem: 10%
  delay: 1500
log:
  level: debug
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	t.Setenv("OSMON_MONITOR_DELAY", "5s")

	viper.Reset()
	cfgFile = configFile
	initConfig()

	assert.Equal(t, configFile, viper.ConfigFileUsed())
	assert.Equal(t, "debug", viper.GetString("log.level"))
	assert.True(t, logger.Get().Enabled(context.Background(), slog.LevelDebug), "debug logging enabled from the config file")

	opts, err := cmdutil.MonitorOptions(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 2.5, opts["critical1"])
	assert.InDelta(t, 0.1, opts["freemem"], 1e-9)
	assert.Equal(t, "5s", opts["delay"], "environment overrides the config file")
	assert.NotContains(t, opts, "uptime")
}

func TestInitConfig_MissingFile(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() {
		cfgFile = origCfgFile
		viper.Reset()
	})

	viper.Reset()
	cfgFile = "/path/that/does/not/exist/config.yaml"
	assert.NotPanics(t, initConfig)
	assert.False(t, viper.IsSet("monitor.delay"))
}

func TestInitConfig_DefaultLocations(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"XDG config directory", filepath.Join(".config", "osmon", "config.yaml")},
		{"Dotfile in home", ".osmon.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origCfgFile, origNotice := cfgFile, configNotice
			t.Cleanup(func() {
				cfgFile, configNotice = origCfgFile, origNotice
				viper.Reset()
			})

			home := t.TempDir()
			t.Setenv("HOME", home)
			file := filepath.Join(home, tt.path)
			require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
			require.NoError(t, os.WriteFile(file, []byte("monitor:\n  uptime: 90\n"), 0644))

			var notice bytes.Buffer
			configNotice = &notice
			viper.Reset()
			cfgFile = ""
			initConfig()

			assert.Equal(t, file, viper.ConfigFileUsed())
			assert.Equal(t, 90, viper.GetInt("monitor.uptime"))
			assert.Equal(t, 1, strings.Count(notice.String(), "Using config file:"),
				"the config file is read and announced once")
		})
	}
}

func TestCommandStructure(t *testing.T) {
	assert.NotNil(t, rootCmd, "Root command should be initialized")
	assert.Equal(t, "osmon", rootCmd.Use)

	want := map[string]bool{"watch": false, "sample": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "Should have %s subcommand", name)
	}
}

func TestFlagConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		flagName string
		flagType string
	}{
		{"Config flag", rootCmd, "config", "string"},
		{"Log level flag", rootCmd, "log-level", "string"},
		{"Watch delay flag", findCommand(t, "watch"), "delay", "string"},
		{"Watch critical1 flag", findCommand(t, "watch"), "critical1", "float64"},
		{"Watch stream flag", findCommand(t, "watch"), "stream", "bool"},
		{"Watch events flag", findCommand(t, "watch"), "events", "stringSlice"},
		{"Sample output flag", findCommand(t, "sample"), "output", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := tt.cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				flag = tt.cmd.PersistentFlags().Lookup(tt.flagName)
			}
			require.NotNil(t, flag, "Flag should exist")
			assert.Equal(t, tt.flagType, flag.Value.Type())
		})
	}
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	c, _, err := rootCmd.Find([]string{name})
	require.NoError(t, err)
	return c
}
