package main

import (
	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type GlobalOptions struct {
	LogLevel  string
	LogFormat string
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", "", "Override the log level (debug, info, warn, error).")
	fs.StringVar(&o.LogFormat, "log-format", "", "Override the log format (console, json).")
}

// apply lets flags win over the environment.
func (o *GlobalOptions) apply(cfg *config.Config) {
	if o.LogLevel != "" {
		cfg.Service.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Service.LogFormat = o.LogFormat
	}
}

var globalOpts = &GlobalOptions{}

var rootCmd = &cobra.Command{
	Use:   "paperlane-api",
	Short: "Document processing and account lifecycle service",
}

func init() {
	globalOpts.Bind(rootCmd.PersistentFlags())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}

// setupLogging replaces the global zap logger. The returned func restores the previous one.
func setupLogging(cfg *config.Config) func() {
	globalOpts.apply(cfg)

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl, cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
		undo()
	}
}
