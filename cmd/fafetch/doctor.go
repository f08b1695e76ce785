package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgnsrekt/fa_fetcher/internal/browser"
	"github.com/dgnsrekt/fa_fetcher/internal/cdpprobe"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check browser, directories and credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var problems int
		check := func(label string, err error, ok string) summaryRow {
			if err != nil {
				problems++
				return summaryRow{Label: label, Value: warnStyle.Render("FAIL " + err.Error())}
			}
			return summaryRow{Label: label, Value: okStyle.Render(ok)}
		}

		rows := []summaryRow{
			{Label: "Base URL", Value: cfg.BaseURL},
			{Label: "Download detection", Value: cfg.DownloadDetect},
		}
		var credErr error
		if cfg.Email == "" || cfg.Password == "" {
			credErr = fmt.Errorf("FETCHER_EMAIL/FETCHER_PASSWORD not set")
		}
		rows = append(rows, check("Credentials", credErr, "set"))
		rows = append(rows, check("Downloads dir", writable(cfg.DownloadsDir), cfg.DownloadsDir))
		if cfg.OutputDir != "" {
			rows = append(rows, check("Output dir", writable(cfg.OutputDir), cfg.OutputDir))
		}

		if cfg.CDPURL != "" {
			info, err := cdpprobe.Probe(cmd.Context(), nil, cfg.CDPURL)
			rows = append(rows, check("Remote browser", err, fmt.Sprintf("%s (protocol %s, %d pages)", info.Product, info.ProtocolVersion, info.Pages)))
		} else {
			path := cfg.ExecPath
			var err error
			if path == "" {
				path, err = browser.DetectBrowser()
			} else {
				_, err = os.Stat(path)
			}
			rows = append(rows, check("Browser binary", err, path))
		}

		fmt.Fprintln(os.Stdout, renderRows(rows))
		if problems > 0 {
			return fmt.Errorf("%d check(s) failed", problems)
		}
		return nil
	},
}

// writable creates dir if needed and probes it with a temp file.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".fafetch-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
