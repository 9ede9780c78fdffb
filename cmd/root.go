package cmd

import (
	"context"
	"fmt"
	"os"

	"melodify/config"
	"melodify/logger"
	"melodify/server"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "melodify",
	Short: "Melodify is a music streaming service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// runServer 启动服务，同时监听 .env 中的日志级别变化
func runServer(ctx context.Context) error {
	defer logger.Sync()

	if err := config.WatchEnvFile(ctx, cfg.EnvFile, applyLogLevel); err != nil {
		logger.Warn("Env file hot reload disabled", logger.String("file", cfg.EnvFile), logger.ErrorField(err))
	}

	logger.Info("Starting melodify server...", logger.String("port", cfg.Port))
	return server.Start(cfg)
}

func applyLogLevel(values map[string]string) {
	level, ok := values["LOG_LEVEL"]
	if !ok || level == logger.CurrentLevel() {
		return
	}
	if err := logger.SetLevel(level); err != nil {
		logger.Warn("Ignoring invalid LOG_LEVEL", logger.String("level", level), logger.ErrorField(err))
		return
	}
	logger.Info("Log level changed", logger.String("level", logger.CurrentLevel()))
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
