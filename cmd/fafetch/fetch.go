package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/browser"
	"github.com/dgnsrekt/fa_fetcher/internal/config"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"github.com/dgnsrekt/fa_fetcher/internal/journal"
	"github.com/dgnsrekt/fa_fetcher/internal/notify"
	"github.com/spf13/cobra"
)

var (
	fetchManifest   string
	fetchIcons      []string
	fetchOutputDir  string
	fetchReturnSVGs bool
	fetchJSON       bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [flags] [name:style:version[:color]...]",
	Short: "Fetch a batch of icons",
	Long: "Fetch icons given as name:style:version[:color] arguments, --icon flags or a YAML manifest.\n" +
		"Icons that fail are logged and skipped; the rest of the batch continues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		icons, opts, err := fetchRequest(cmd, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var observers []fetcher.Observer
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
		run, runErr := f.Run(ctx, cfg.Credentials(), icons, opts)
		if runErr == nil {
			sendSummary(run)
		}

		if fetchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(run); err != nil {
				return err
			}
		} else if run.ID != "" {
			fmt.Fprintln(os.Stdout, renderRun(run))
		}
		return runErr
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchManifest, "manifest", "m", "", "YAML manifest of icons (and optional output_dir/return_svgs)")
	fetchCmd.Flags().StringArrayVarP(&fetchIcons, "icon", "i", nil, "icon as name:style:version[:color] (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchOutputDir, "output", "o", "", "output directory (default FETCHER_OUTPUT_DIR)")
	fetchCmd.Flags().BoolVar(&fetchReturnSVGs, "return-svgs", false, "include SVG markup in the result")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the run result as JSON")
}

// fetchRequest merges manifest, flag and positional icons. Flags override
// manifest options, which override the environment.
func fetchRequest(cmd *cobra.Command, args []string) ([]fetcher.IconRequest, fetcher.Options, error) {
	opts := fetcher.Options{OutputDir: cfg.OutputDir, ReturnSVGs: cfg.ReturnSVGs}
	var icons []fetcher.IconRequest

	if fetchManifest != "" {
		m, err := config.LoadManifest(fetchManifest)
		if err != nil {
			return nil, opts, err
		}
		icons = append(icons, m.Icons...)
		if m.OutputDir != "" {
			opts.OutputDir = m.OutputDir
		}
		if m.ReturnSVGs {
			opts.ReturnSVGs = true
		}
	}
	for _, arg := range append(append([]string{}, fetchIcons...), args...) {
		icon, err := fetcher.ParseIconArg(arg)
		if err != nil {
			return nil, opts, err
		}
		icons = append(icons, icon)
	}
	if cmd.Flags().Changed("output") {
		opts.OutputDir = fetchOutputDir
	}
	if cmd.Flags().Changed("return-svgs") {
		opts.ReturnSVGs = fetchReturnSVGs
	}
	if len(icons) == 0 {
		return nil, opts, fmt.Errorf("no icons given: pass name:style:version arguments, --icon or --manifest")
	}
	if opts.OutputDir == "" && !opts.ReturnSVGs {
		slog.Warn("no output dir and return-svgs off; fetched icons stay in the downloads dir", "downloads_dir", cfg.DownloadsDir)
	}
	return icons, opts, nil
}

func sendSummary(run fetcher.Run) {
	if cfg.NTFYEndpoint == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notify.SendRunSummary(ctx, http.DefaultClient, cfg.NTFYEndpoint, run); err != nil {
		slog.Warn("run summary notification failed", "endpoint", cfg.NTFYEndpoint, "error", err)
	}
}
