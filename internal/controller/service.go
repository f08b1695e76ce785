package controller

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"github.com/dgnsrekt/fa_fetcher/internal/iconstore"
	"github.com/dgnsrekt/fa_fetcher/internal/svgcolor"
	"github.com/google/uuid"
)

// Runner executes one fetch batch.
type Runner interface {
	Run(ctx context.Context, creds fetcher.Credentials, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error)
}

// Status reports what the service is doing. RunID is set while a run is
// active and matches the run_id of its events.
type Status struct {
	Busy      bool         `json:"busy"`
	RunID     string       `json:"run_id,omitempty"`
	LastRun   *fetcher.Run `json:"last_run,omitempty"`
	OutputDir string       `json:"output_dir,omitempty"`
}

// Service serializes fetch runs and serves the icons they produce.
type Service struct {
	runner   Runner
	creds    fetcher.Credentials
	defaults fetcher.Options
	onDone   func(context.Context, fetcher.Run)

	runMu sync.Mutex

	mu      sync.Mutex
	busy    bool
	runID   string
	lastRun *fetcher.Run
}

// NewService builds a service. defaults.OutputDir also backs the icon
// listing endpoints and bounds any per-run output dir. onDone, when non-nil,
// is called after every run.
func NewService(runner Runner, creds fetcher.Credentials, defaults fetcher.Options, onDone func(context.Context, fetcher.Run)) *Service {
	return &Service{runner: runner, creds: creds, defaults: defaults, onDone: onDone}
}

func validationError(msg string) error {
	return &fetcher.CodedError{Code: fetcher.CodeValidation, Message: msg}
}

// Run fetches icons. A second call while one is active fails with BUSY.
// Empty option fields fall back to the service defaults. A relative
// opts.OutputDir is taken relative to the default output dir, and any dir
// outside it is rejected.
func (s *Service) Run(ctx context.Context, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error) {
	if len(icons) == 0 {
		return fetcher.Run{}, validationError("at least one icon is required")
	}
	dir, err := s.outputDir(opts.OutputDir)
	if err != nil {
		return fetcher.Run{}, err
	}
	opts.OutputDir = dir
	if !s.runMu.TryLock() {
		return fetcher.Run{}, &fetcher.CodedError{Code: fetcher.CodeBusy, Message: "a fetch run is already in progress"}
	}
	defer s.runMu.Unlock()

	if opts.OutputDir == "" && !opts.ReturnSVGs {
		opts.ReturnSVGs = s.defaults.ReturnSVGs
	}
	opts.RunID = uuid.NewString()

	s.setRunning(opts.RunID)
	defer s.setRunning("")

	start := time.Now()
	run, err := s.runner.Run(ctx, s.creds, icons, opts)
	slog.Info("control run finished", "run_id", run.ID, "succeeded", run.Succeeded,
		"failed", len(run.Failures), "duration", time.Since(start).Round(time.Millisecond))
	if err == nil || run.ID != "" {
		s.mu.Lock()
		s.lastRun = &run
		s.mu.Unlock()
	}
	if err == nil && s.onDone != nil {
		s.onDone(ctx, run)
	}
	return run, err
}

func (s *Service) setRunning(runID string) {
	s.mu.Lock()
	s.busy = runID != ""
	s.runID = runID
	s.mu.Unlock()
}

func (s *Service) outputDir(dir string) (string, error) {
	base := s.defaults.OutputDir
	if strings.TrimSpace(dir) == "" {
		return base, nil
	}
	if base == "" {
		return "", validationError("output_dir requires a configured output directory")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", &fetcher.CodedError{Code: fetcher.CodeFilesystem, Message: "resolve output dir", Cause: err}
	}
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return "", &fetcher.CodedError{Code: fetcher.CodeFilesystem, Message: "resolve output dir", Cause: err}
	}
	rel, err := filepath.Rel(baseAbs, dirAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", validationError("output_dir must be inside " + base)
	}
	return dirAbs, nil
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Busy: s.busy, RunID: s.runID, OutputDir: s.defaults.OutputDir}
	if s.lastRun != nil {
		last := *s.lastRun
		last.Results = nil
		st.LastRun = &last
	}
	return st
}

func (s *Service) store() (*iconstore.Store, error) {
	if s.defaults.OutputDir == "" {
		return nil, &fetcher.CodedError{Code: fetcher.CodeNotFound, Message: "no output directory configured"}
	}
	st, err := iconstore.NewStore(s.defaults.OutputDir)
	if err != nil {
		return nil, &fetcher.CodedError{Code: fetcher.CodeFilesystem, Message: "open output dir", Cause: err}
	}
	return st, nil
}

// ListIcons lists SVGs in the default output directory, newest first.
func (s *Service) ListIcons(_ context.Context) ([]iconstore.IconFile, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	files, err := st.List()
	if err != nil {
		return nil, &fetcher.CodedError{Code: fetcher.CodeFilesystem, Message: "list icons", Cause: err}
	}
	return files, nil
}

// ReadIcon returns the content of one stored SVG.
func (s *Service) ReadIcon(_ context.Context, fileName string) ([]byte, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, validationError("file is required")
	}
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	data, err := st.Read(fileName)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, iconstore.ErrNotFound):
		return nil, &fetcher.CodedError{Code: fetcher.CodeNotFound, Message: "icon not found: " + fileName}
	case errors.Is(err, iconstore.ErrInvalidName):
		return nil, &fetcher.CodedError{Code: fetcher.CodeValidation, Message: err.Error()}
	default:
		return nil, &fetcher.CodedError{Code: fetcher.CodeFilesystem, Message: "read icon", Cause: err}
	}
}

// Colorize applies the fill rewriter to svg.
func (s *Service) Colorize(_ context.Context, svg, color string) (string, error) {
	if strings.TrimSpace(svg) == "" {
		return "", validationError("svg is required")
	}
	if strings.TrimSpace(color) == "" {
		return "", validationError("color is required")
	}
	return svgcolor.Apply(svg, color), nil
}
