package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/osmon/cmd/sample"
	"github.com/endorses/osmon/cmd/watch"
	"github.com/endorses/osmon/internal/pkg/logger"
	"github.com/endorses/osmon/internal/pkg/version"
)

var cfgFile string

// configNotice receives the "Using config file" line.
var configNotice io.Writer = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "osmon",
	Short: "osmon watches host load, memory and uptime",
	Long: fmt.Sprintf(`osmon %s - host resource monitor

Samples load averages, free memory and uptime on an interval and reports
threshold crossings as events on stdout.`, version.GetVersion()),
	Version:       version.GetFullVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalattes() {
	rootCmd.AddCommand(watch.WatchCmd)
	rootCmd.AddCommand(sample.SampleCmd)
	rootCmd.AddCommand(versionCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	logger.Initialize()

	addSubCommandPalattes()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/osmon/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or text (overrides LOG_FORMAT)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	// OSMON_MONITOR_DELAY, OSMON_LOG_LEVEL, ...
	viper.SetEnvPrefix("osmon")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	var err error
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		err = viper.ReadInConfig()
	} else {
		home, herr := os.UserHomeDir()
		cobra.CheckErr(herr)

		// ~/.config/osmon/config.yaml first, then ~/.osmon.yaml
		viper.AddConfigPath(home + "/.config/osmon")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		if err = viper.ReadInConfig(); err != nil {
			viper.SetConfigName(".osmon")
			err = viper.ReadInConfig()
		}
	}
	if err == nil {
		fmt.Fprintln(configNotice, "Using config file:", viper.ConfigFileUsed())
	}

	configureLogging()
}

// configureLogging replaces the env-configured logger when the config file
// or flags name a level or format.
func configureLogging() {
	if !viper.IsSet("log.level") && !viper.IsSet("log.format") {
		return
	}
	level := viper.GetString("log.level")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	format := viper.GetString("log.format")
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	logger.SetDefault(logger.New(os.Stderr, logger.ParseLevel(level), format))
}
