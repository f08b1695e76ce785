package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/api"
	"github.com/dgnsrekt/fa_fetcher/internal/browser"
	"github.com/dgnsrekt/fa_fetcher/internal/controller"
	"github.com/dgnsrekt/fa_fetcher/internal/events"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"github.com/dgnsrekt/fa_fetcher/internal/journal"
	"github.com/dgnsrekt/fa_fetcher/internal/netutil"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API",
	Long:  "Serve the HTTP control API: submit fetch runs, list and read stored icons, recolor markup and stream run events.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("serve config loaded",
			"bind_addr", cfg.BindAddr,
			"port_candidates", cfg.PortCandidates,
			"port_auto_fallback", cfg.PortAutoFallback,
			"output_dir", cfg.OutputDir,
			"downloads_dir", cfg.DownloadsDir,
			"journal_dir", cfg.JournalDir,
		)

		ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
		if err != nil {
			return err
		}

		broker := events.NewBroker()
		observers := []fetcher.Observer{broker}
		if cfg.JournalDir != "" {
			j := journal.New(cfg.JournalDir)
			defer func() {
				if err := j.Close(); err != nil {
					slog.Warn("journal close failed", "error", err)
				}
			}()
			observers = append(observers, j)
		}

		f := fetcher.New(cfg.FetcherConfig(), browser.Opener(cfg.BrowserConfig()), observers...)
		svc := controller.NewService(f, cfg.Credentials(),
			fetcher.Options{OutputDir: cfg.OutputDir, ReturnSVGs: cfg.ReturnSVGs},
			func(_ context.Context, run fetcher.Run) { sendSummary(run) })

		// Event streams and in-flight runs end when shutdown starts.
		baseCtx, cancelBase := context.WithCancel(context.Background())
		defer cancelBase()
		srv := &http.Server{
			Handler:     api.NewServer(svc, broker),
			BaseContext: func(net.Listener) context.Context { return baseCtx },
		}
		srv.RegisterOnShutdown(cancelBase)
		errCh := make(chan error, 1)
		go func() {
			addr := ln.Addr().String()
			slog.Info("control API listening", "addr", addr, "docs", "http://"+addr+"/docs")
			errCh <- srv.Serve(ln)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("control API shutdown failed", "error", err)
		}
		return nil
	},
}
