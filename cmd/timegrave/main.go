package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/render"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	logger *zap.Logger
	cfg    *model.AppConfig

	// env is built once per invocation. Tests install their own.
	env *app
)

var rootCmd = &cobra.Command{
	Use:   "timegrave",
	Short: "Seal messages for your future self",
	Long: `timegrave talks to the TimeGrave backend: bury time capsules that open on a
chosen day, read them once they unlock, and follow notifications.

Without api.base_url in the config, a local mock backend stored next to the
config file is used instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if env != nil {
			return nil
		}

		var err error
		cfg, err = model.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		logger, err = buildLogger(cfg.Log.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		env, err = buildApp(cfg, cfgPath, logger)
		return err
	},
}

// shutdown releases what PersistentPreRunE built, whether or not the
// command succeeded.
func shutdown() {
	if env != nil {
		if err := env.Close(); err != nil && logger != nil {
			logger.Warn("closing", zap.Error(err))
		}
		env = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// buildLogger returns a production logger at level, or a development logger
// at debug level when verbose is set.
func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return config.Build()
	}

	config := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	config.Level = lvl
	return config.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", model.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(signUpCmd)
	rootCmd.AddCommand(signInCmd)
	rootCmd.AddCommand(signOutCmd)
	rootCmd.AddCommand(deleteAccountCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(gravesCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	shutdown()

	if err != nil {
		fmt.Fprintln(os.Stderr, render.Error(err))
		os.Exit(1)
	}
}
