package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgnsrekt/fa_fetcher/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg         *config.Config
	logLevelArg string
)

var rootCmd = &cobra.Command{
	Use:           "fafetch",
	Short:         "fafetch - download and recolor icons through a browser session",
	Long:          "fafetch signs in to the icon site in a Chromium session, downloads SVGs one by one, optionally recolors them and stores them under predictable names.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevelArg != "" {
			loaded.LogLevel = logLevelArg
		}
		cfg = loaded
		return setupLogger(cfg.LogLevel, cfg.LogFile)
	},
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVar(&logLevelArg, "log-level", "", "override FETCHER_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(fetchCmd, serveCmd, colorizeCmd, doctorCmd)
}

// setupLogger writes text logs to stderr and a rotated file. stdout is kept
// free for command output.
func setupLogger(level, filename string) error {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if filename != "" {
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return err
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		})
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
