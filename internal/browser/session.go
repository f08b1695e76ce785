// Package browser opens chromedp-controlled Chromium sessions for the fetcher.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

const downloadQueueSize = 16

// Config holds browser launch configuration.
type Config struct {
	// CDPURL attaches to an already running browser instead of launching one.
	CDPURL     string
	ExecPath   string
	ProfileDir string
	Headless   bool
	WindowSize string
	NavTimeout time.Duration
}

// Session is one browser tab with downloads routed to a local directory.
type Session struct {
	cfg         Config
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.Mutex
	pending map[string]string // download GUID → suggested file name
	done    chan string
}

// DetectBrowser finds an available Chrome/Chromium binary.
func DetectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %s)", strings.Join(candidates, ", "))
}

// parseWindowSize parses "W,H".
func parseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q: want W,H", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad width", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad height", s)
	}
	return width, height, nil
}

func execOptions(cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	width, height, err := parseWindowSize(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(width, height),
		chromedp.Flag("disable-breakpad", true),
	)

	execPath := cfg.ExecPath
	if execPath == "" {
		if detected, err := DetectBrowser(); err == nil {
			execPath = detected
		} else {
			slog.Debug("browser detection failed, using chromedp default", "error", err)
		}
	}
	if execPath != "" {
		slog.Info("detected browser", "path", execPath)
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	return opts, nil
}

// Open launches (or attaches to) a browser, opens a tab and directs its
// downloads to downloadsDir with completion events enabled.
func Open(ctx context.Context, cfg Config, downloadsDir string) (*Session, error) {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1200,800"
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	absDir, err := filepath.Abs(downloadsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve downloads dir: %w", err)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.CDPURL != "" {
		slog.Info("attaching to browser", "cdp_url", cfg.CDPURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.CDPURL)
	} else {
		opts, err := execOptions(cfg)
		if err != nil {
			return nil, err
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s := &Session{
		cfg:         cfg,
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      tabCancel,
		pending:     make(map[string]string),
		done:        make(chan string, downloadQueueSize),
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	// The first Run allocates the browser; a deadline on it would kill the
	// browser once it expires.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	setup := cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(absDir).
		WithEventsEnabled(true)
	if err := s.run(ctx, cfg.NavTimeout, setup); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("set download behavior: %w", err)
	}
	slog.Info("browser session ready", "downloads_dir", absDir, "headless", cfg.Headless, "window_size", cfg.WindowSize)
	return s, nil
}

// handleEvent runs on chromedp's event loop and must never block.
func (s *Session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		s.mu.Lock()
		s.pending[e.GUID] = e.SuggestedFilename
		s.mu.Unlock()
		slog.Debug("download started", "guid", e.GUID, "file", e.SuggestedFilename)
	case *cdpbrowser.EventDownloadProgress:
		if e.State != cdpbrowser.DownloadProgressStateCompleted && e.State != cdpbrowser.DownloadProgressStateCanceled {
			return
		}
		s.mu.Lock()
		name, ok := s.pending[e.GUID]
		delete(s.pending, e.GUID)
		s.mu.Unlock()
		if !ok || e.State == cdpbrowser.DownloadProgressStateCanceled {
			slog.Debug("download not completed", "guid", e.GUID, "state", string(e.State))
			return
		}
		select {
		case s.done <- name:
		default:
			slog.Warn("download notification dropped, queue full", "file", name)
		}
	}
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	slog.Debug("navigate", "url", url)
	return s.run(ctx, s.cfg.NavTimeout, chromedp.Navigate(url))
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.cfg.NavTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) Type(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	actions := []chromedp.Action{chromedp.Focus(selector, chromedp.ByQuery)}
	for _, r := range text {
		actions = append(actions, chromedp.SendKeys(selector, string(r), chromedp.ByQuery))
		if keyDelay > 0 {
			actions = append(actions, chromedp.Sleep(keyDelay))
		}
	}
	budget := s.cfg.NavTimeout + time.Duration(len(text))*keyDelay
	return s.run(ctx, budget, actions...)
}

func (s *Session) ClickAndWaitLoad(ctx context.Context, selector string, timeout time.Duration) error {
	loaded := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := s.Click(ctx, selector); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-loaded:
		return nil
	case <-timer.C:
		return fmt.Errorf("page load after clicking %s: %w", selector, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscardDownloads drops completion notices queued before a new trigger.
func (s *Session) DiscardDownloads() {
	for {
		select {
		case name := <-s.done:
			slog.Debug("discarding stale download notice", "file", name)
		default:
			return
		}
	}
}

// AwaitDownload blocks until the browser reports a completed download.
func (s *Session) AwaitDownload(ctx context.Context) (string, error) {
	select {
	case name := <-s.done:
		return name, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ctx.Done():
		return "", fmt.Errorf("browser session closed: %w", s.ctx.Err())
	}
}

// Close closes the tab (and the browser when this session launched it).
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	slog.Info("browser session closed")
	return nil
}

// Opener adapts Open to the fetcher's session factory.
func Opener(cfg Config) fetcher.Opener {
	return fetcher.OpenerFunc(func(ctx context.Context, downloadsDir string) (fetcher.Session, error) {
		s, err := Open(ctx, cfg, downloadsDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

var (
	_ fetcher.Session          = (*Session)(nil)
	_ fetcher.DownloadNotifier = (*Session)(nil)
)
