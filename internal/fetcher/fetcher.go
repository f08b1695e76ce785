// Package fetcher drives a browser session through the icon site's login and
// per-icon download pages, collecting the resulting SVGs.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/download"
	"github.com/dgnsrekt/fa_fetcher/internal/iconstore"
	"github.com/dgnsrekt/fa_fetcher/internal/svgcolor"
	"github.com/google/uuid"
)

// Selectors on the icon site.
const (
	SelectorSignIn         = `a[aria-label="Sign In"]`
	SelectorEmail          = `input[name="email_address"]`
	SelectorPassword       = `input[name="password"]`
	SelectorSubmit         = `button[type="submit"]`
	SelectorDownloadButton = `button.icon-action-download-svg`
)

const (
	DetectEvents = "events"
	DetectPoll   = "poll"
)

// Config holds timing and location settings for a Fetcher.
type Config struct {
	BaseURL         string
	DownloadsDir    string
	SelectorTimeout time.Duration
	LoginTimeout    time.Duration
	NavTimeout      time.Duration
	KeyDelay        time.Duration
	PollInterval    time.Duration
	PollAttempts    int
	Detect          string
}

// DefaultConfig returns the settings the icon site is known to work with.
func DefaultConfig(downloadsDir string) Config {
	return Config{
		BaseURL:         "https://fontawesome.com",
		DownloadsDir:    downloadsDir,
		SelectorTimeout: 5 * time.Second,
		LoginTimeout:    10 * time.Second,
		NavTimeout:      30 * time.Second,
		KeyDelay:        50 * time.Millisecond,
		PollInterval:    download.DefaultInterval,
		PollAttempts:    download.DefaultAttempts,
		Detect:          DetectEvents,
	}
}

// Fetcher runs icon batches. A Fetcher runs one batch at a time per call;
// callers serialize concurrent use.
type Fetcher struct {
	cfg       Config
	opener    Opener
	observers []Observer
}

func New(cfg Config, opener Opener, observers ...Observer) *Fetcher {
	return &Fetcher{cfg: cfg, opener: opener, observers: observers}
}

// Config returns the fetcher's settings.
func (f *Fetcher) Config() Config { return f.cfg }

// IconURL builds the page URL for an icon.
func (f *Fetcher) IconURL(icon IconRequest) string {
	return fmt.Sprintf("%s/v%s/icons/%s?f=classic&s=%s",
		strings.TrimRight(f.cfg.BaseURL, "/"),
		url.PathEscape(string(icon.Version)),
		url.PathEscape(icon.Name),
		url.QueryEscape(icon.Style),
	)
}

// Run fetches icons in order using one browser session.
//
// Session setup failures abort the run and are returned. Per-icon failures
// are logged, recorded in Run.Failures and skipped. The session is closed
// after the loop and a close failure is returned. Run.Results is only
// populated when opts.ReturnSVGs is set.
func (f *Fetcher) Run(ctx context.Context, creds Credentials, icons []IconRequest, opts Options) (Run, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	run := Run{
		ID:        opts.RunID,
		StartedAt: time.Now().UTC(),
		Requested: len(icons),
		Failures:  []ItemFailure{},
	}
	for i, icon := range icons {
		if err := icon.Validate(); err != nil {
			return run, fmt.Errorf("icon %d: %w", i, err)
		}
	}
	if len(icons) == 0 {
		run.FinishedAt = time.Now().UTC()
		return run, nil
	}

	var store *iconstore.Store
	if opts.OutputDir != "" {
		var err error
		if store, err = iconstore.NewStore(opts.OutputDir); err != nil {
			return run, newError(CodeFilesystem, "prepare output dir", err)
		}
	}
	if err := os.MkdirAll(f.cfg.DownloadsDir, 0o755); err != nil {
		return run, newError(CodeFilesystem, "prepare downloads dir", err)
	}

	slog.Info("fetch run start",
		"run_id", run.ID,
		"icons", len(icons),
		"output_dir", opts.OutputDir,
		"downloads_dir", f.cfg.DownloadsDir,
		"detect", f.cfg.Detect,
	)
	f.emit(Event{Type: EventRunStarted, RunID: run.ID, Total: len(icons)})

	sess, err := f.opener.Open(ctx, f.cfg.DownloadsDir)
	if err != nil {
		return run, newError(CodeSession, "open browser session", err)
	}
	if err := f.login(ctx, sess, creds, icons[0]); err != nil {
		if closeErr := sess.Close(); closeErr != nil {
			slog.Debug("browser close after login failure failed", "error", closeErr)
		}
		return run, newError(CodeSession, "sign in", err)
	}

	var results []IconResult
	var loopErr error
	for i, icon := range icons {
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}
		res, err := f.fetchOne(ctx, sess, store, icon)
		if err != nil {
			slog.Error("icon fetch failed",
				"name", icon.Name,
				"style", icon.Style,
				"version", icon.Version,
				"error", err.Error(),
			)
			failure := ItemFailure{Name: icon.Name, Style: icon.Style, Version: icon.Version, Code: errorCode(err), Error: err.Error()}
			run.Failures = append(run.Failures, failure)
			f.emit(Event{Type: EventItemFailed, RunID: run.ID, Index: i + 1, Total: len(icons),
				Name: icon.Name, Style: icon.Style, Version: icon.Version, Code: failure.Code, Error: failure.Error})
			continue
		}
		run.Succeeded++
		results = append(results, res)
		slog.Info("icon fetched", "name", icon.Name, "style", icon.Style, "version", icon.Version, "path", res.Path)
		f.emit(Event{Type: EventItemSucceeded, RunID: run.ID, Index: i + 1, Total: len(icons),
			Name: icon.Name, Style: icon.Style, Version: icon.Version, Path: res.Path})
	}

	closeErr := sess.Close()
	run.FinishedAt = time.Now().UTC()
	if opts.ReturnSVGs {
		run.Results = results
		if run.Results == nil {
			run.Results = []IconResult{}
		}
	}
	f.emit(Event{Type: EventRunFinished, RunID: run.ID, Total: len(icons), Succeeded: run.Succeeded, Failed: len(run.Failures)})
	slog.Info("fetch run done", "run_id", run.ID, "succeeded", run.Succeeded, "failed", len(run.Failures))

	if loopErr != nil {
		return run, loopErr
	}
	if closeErr != nil {
		return run, newError(CodeSession, "close browser", closeErr)
	}
	return run, nil
}

// login signs in when the first icon page shows a sign-in control, then
// returns to that page since the login flow may redirect elsewhere.
func (f *Fetcher) login(ctx context.Context, sess Session, creds Credentials, first IconRequest) error {
	firstURL := f.IconURL(first)
	if err := sess.Navigate(ctx, firstURL); err != nil {
		return fmt.Errorf("open first icon page: %w", err)
	}

	signIn, err := sess.Exists(ctx, SelectorSignIn)
	if err != nil {
		return fmt.Errorf("probe sign-in control: %w", err)
	}
	if !signIn {
		slog.Debug("already signed in")
		return nil
	}

	slog.Info("signing in")
	if err := sess.Click(ctx, SelectorSignIn); err != nil {
		return fmt.Errorf("click sign-in: %w", err)
	}
	if err := sess.WaitVisible(ctx, SelectorEmail, f.cfg.LoginTimeout); err != nil {
		return fmt.Errorf("wait for login form: %w", err)
	}
	if err := sess.Type(ctx, SelectorEmail, creds.Email, f.cfg.KeyDelay); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	if err := sess.Type(ctx, SelectorPassword, creds.Password, f.cfg.KeyDelay); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := sess.ClickAndWaitLoad(ctx, SelectorSubmit, f.cfg.NavTimeout); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}
	if err := sess.Navigate(ctx, firstURL); err != nil {
		return fmt.Errorf("return to first icon page: %w", err)
	}
	slog.Info("signed in")
	return nil
}

// fetchOne downloads a single icon. A failure after the file was moved into
// the output dir leaves the moved file behind.
func (f *Fetcher) fetchOne(ctx context.Context, sess Session, store *iconstore.Store, icon IconRequest) (IconResult, error) {
	if err := sess.Navigate(ctx, f.IconURL(icon)); err != nil {
		return IconResult{}, newError(CodeBrowser, "open icon page", err)
	}
	if err := sess.WaitVisible(ctx, SelectorDownloadButton, f.cfg.SelectorTimeout); err != nil {
		return IconResult{}, newError(CodeSelectorTimeout, "wait for download button", err)
	}

	before, err := download.Snapshot(f.cfg.DownloadsDir)
	if err != nil {
		return IconResult{}, newError(CodeFilesystem, "list downloads", err)
	}
	notifier := f.notifier(sess)
	if notifier != nil {
		notifier.DiscardDownloads()
	}

	if err := sess.Click(ctx, SelectorDownloadButton); err != nil {
		return IconResult{}, newError(CodeBrowser, "click download button", err)
	}

	fileName, err := f.waitDownload(ctx, notifier, before)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			return IconResult{}, newError(CodeDownloadNotFound, "wait for download", err)
		}
		return IconResult{}, newError(CodeFilesystem, "wait for download", err)
	}

	src := filepath.Join(f.cfg.DownloadsDir, fileName)
	raw, err := os.ReadFile(src)
	if err != nil {
		return IconResult{}, newError(CodeFilesystem, "read download", err)
	}
	svg := string(raw)
	if icon.Color != "" {
		svg = svgcolor.Apply(svg, icon.Color)
	}

	res := IconResult{Name: icon.Name, Style: icon.Style, Version: icon.Version, SVG: svg}
	if store != nil {
		dest, err := store.Place(src, icon.FileName(), []byte(svg))
		if err != nil {
			return IconResult{}, newError(CodeFilesystem, "store icon", err)
		}
		res.Path = dest
	}
	return res, nil
}

func (f *Fetcher) notifier(sess Session) DownloadNotifier {
	if f.cfg.Detect != DetectEvents {
		return nil
	}
	n, ok := sess.(DownloadNotifier)
	if !ok {
		return nil
	}
	return n
}

func (f *Fetcher) poller() *download.Poller {
	p := download.NewPoller(f.cfg.DownloadsDir)
	if f.cfg.PollInterval > 0 {
		p.Interval = f.cfg.PollInterval
	}
	if f.cfg.PollAttempts > 0 {
		p.Attempts = f.cfg.PollAttempts
	}
	return p
}

// waitDownload uses the session's completion signal when available and
// polls the downloads directory otherwise. Both share one budget. A
// completion notice is confirmed against the directory, since the browser
// renames a download that collides with an existing file.
func (f *Fetcher) waitDownload(ctx context.Context, notifier DownloadNotifier, before download.Listing) (string, error) {
	p := f.poller()
	if notifier == nil {
		return p.Wait(ctx, before)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.Budget())
	defer cancel()
	for {
		name, err := notifier.AwaitDownload(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				if found := f.newDownloads(before, p.Ext); len(found) > 0 {
					return found[0], nil
				}
				return "", download.ErrNotFound
			}
			return "", err
		}
		found := f.newDownloads(before, p.Ext)
		if len(found) == 0 {
			slog.Debug("ignoring download notice with no new file", "file", name)
			continue
		}
		if slices.Contains(found, name) {
			return name, nil
		}
		slog.Debug("download saved under a different name", "notified", name, "file", found[0])
		return found[0], nil
	}
}

func (f *Fetcher) newDownloads(before download.Listing, ext string) []string {
	after, err := download.Snapshot(f.cfg.DownloadsDir)
	if err != nil {
		slog.Debug("downloads snapshot failed", "error", err)
		return nil
	}
	return before.NewFiles(after, ext)
}

func (f *Fetcher) emit(ev Event) {
	ev.Timestamp = time.Now().UTC()
	for _, o := range f.observers {
		o.Observe(ev)
	}
}

func errorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeBrowser
}
