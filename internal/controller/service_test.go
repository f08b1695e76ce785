package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

type runnerFunc func(ctx context.Context, creds fetcher.Credentials, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error)

func (f runnerFunc) Run(ctx context.Context, creds fetcher.Credentials, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error) {
	return f(ctx, creds, icons, opts)
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var coded *fetcher.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("error %v (%T) is not a *fetcher.CodedError", err, err)
	}
	return coded.Code
}

var oneIcon = []fetcher.IconRequest{{Name: "house", Style: "solid", Version: "6"}}

func TestRunAppliesDefaultsAndCallsOnDone(t *testing.T) {
	var gotOpts fetcher.Options
	var gotCreds fetcher.Credentials
	runner := runnerFunc(func(_ context.Context, creds fetcher.Credentials, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error) {
		gotOpts, gotCreds = opts, creds
		return fetcher.Run{ID: "r1", Requested: len(icons), Succeeded: len(icons)}, nil
	})
	var done []string
	svc := NewService(runner, fetcher.Credentials{Email: "a@b.c"}, fetcher.Options{OutputDir: "/icons"},
		func(_ context.Context, run fetcher.Run) { done = append(done, run.ID) })

	run, err := svc.Run(context.Background(), oneIcon, fetcher.Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.ID != "r1" || gotOpts.OutputDir != "/icons" || gotCreds.Email != "a@b.c" {
		t.Fatalf("run=%+v opts=%+v creds=%+v", run, gotOpts, gotCreds)
	}
	if len(done) != 1 || done[0] != "r1" {
		t.Fatalf("onDone calls = %v", done)
	}
	st := svc.Status()
	if st.Busy || st.LastRun == nil || st.LastRun.ID != "r1" {
		t.Fatalf("Status() = %+v", st)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := runnerFunc(func(context.Context, fetcher.Credentials, []fetcher.IconRequest, fetcher.Options) (fetcher.Run, error) {
		close(started)
		<-release
		return fetcher.Run{ID: "first"}, nil
	})
	svc := NewService(runner, fetcher.Credentials{}, fetcher.Options{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.Run(context.Background(), oneIcon, fetcher.Options{}); err != nil {
			t.Errorf("first Run() error = %v", err)
		}
	}()
	<-started

	if !svc.Status().Busy {
		t.Fatal("Status().Busy = false during run")
	}
	_, err := svc.Run(context.Background(), oneIcon, fetcher.Options{})
	if got := codeOf(t, err); got != fetcher.CodeBusy {
		t.Fatalf("second Run() code = %q, want BUSY", got)
	}
	close(release)
	wg.Wait()
}

func TestStatusReportsActiveRunID(t *testing.T) {
	var svc *Service
	var during Status
	var gotID string
	runner := runnerFunc(func(_ context.Context, _ fetcher.Credentials, _ []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error) {
		during, gotID = svc.Status(), opts.RunID
		return fetcher.Run{ID: opts.RunID}, nil
	})
	svc = NewService(runner, fetcher.Credentials{}, fetcher.Options{}, nil)

	run, err := svc.Run(context.Background(), oneIcon, fetcher.Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotID == "" || during.RunID != gotID || !during.Busy {
		t.Fatalf("status during run = %+v, runner got id %q", during, gotID)
	}
	if run.ID != gotID {
		t.Fatalf("run.ID = %q, want %q", run.ID, gotID)
	}
	if after := svc.Status(); after.Busy || after.RunID != "" {
		t.Fatalf("status after run = %+v", after)
	}
}

func TestRunKeepsOutputDirInsideDefault(t *testing.T) {
	base := t.TempDir()
	var gotDir string
	runner := runnerFunc(func(_ context.Context, _ fetcher.Credentials, _ []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error) {
		gotDir = opts.OutputDir
		return fetcher.Run{ID: opts.RunID}, nil
	})
	svc := NewService(runner, fetcher.Credentials{}, fetcher.Options{OutputDir: base}, nil)

	for _, dir := range []string{"brand", filepath.Join(base, "brand")} {
		gotDir = ""
		if _, err := svc.Run(context.Background(), oneIcon, fetcher.Options{OutputDir: dir}); err != nil {
			t.Fatalf("Run(%q) error = %v", dir, err)
		}
		if want := filepath.Join(base, "brand"); gotDir != want {
			t.Fatalf("Run(%q) output dir = %q, want %q", dir, gotDir, want)
		}
	}

	for _, dir := range []string{"../escape", t.TempDir(), "/etc"} {
		gotDir = ""
		_, err := svc.Run(context.Background(), oneIcon, fetcher.Options{OutputDir: dir})
		if got := codeOf(t, err); got != fetcher.CodeValidation {
			t.Fatalf("Run(%q) code = %q, want VALIDATION", dir, got)
		}
		if gotDir != "" {
			t.Fatalf("Run(%q) reached the runner", dir)
		}
	}

	noDefault := NewService(runner, fetcher.Credentials{}, fetcher.Options{}, nil)
	if _, err := noDefault.Run(context.Background(), oneIcon, fetcher.Options{OutputDir: "icons"}); codeOf(t, err) != fetcher.CodeValidation {
		t.Fatalf("Run() without default error = %v, want VALIDATION", err)
	}
}

func TestRunRequiresIcons(t *testing.T) {
	svc := NewService(nil, fetcher.Credentials{}, fetcher.Options{}, nil)
	_, err := svc.Run(context.Background(), nil, fetcher.Options{})
	if got := codeOf(t, err); got != fetcher.CodeValidation {
		t.Fatalf("code = %q, want VALIDATION", got)
	}
}

func TestRunSkipsOnDoneOnError(t *testing.T) {
	runner := runnerFunc(func(context.Context, fetcher.Credentials, []fetcher.IconRequest, fetcher.Options) (fetcher.Run, error) {
		return fetcher.Run{ID: "r2"}, &fetcher.CodedError{Code: fetcher.CodeSession, Message: "sign in"}
	})
	called := false
	svc := NewService(runner, fetcher.Credentials{}, fetcher.Options{}, func(context.Context, fetcher.Run) { called = true })
	if _, err := svc.Run(context.Background(), oneIcon, fetcher.Options{}); codeOf(t, err) != fetcher.CodeSession {
		t.Fatalf("Run() error = %v", err)
	}
	if called {
		t.Fatal("onDone called after failed run")
	}
}

func TestIconsListAndRead(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "house-solid-v6.svg"), []byte("<svg/>"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
	svc := NewService(nil, fetcher.Credentials{}, fetcher.Options{OutputDir: dir}, nil)

	files, err := svc.ListIcons(context.Background())
	if err != nil {
		t.Fatalf("ListIcons() error = %v", err)
	}
	if len(files) != 1 || files[0].FileName != "house-solid-v6.svg" {
		t.Fatalf("ListIcons() = %+v", files)
	}

	data, err := svc.ReadIcon(context.Background(), "house-solid-v6.svg")
	if err != nil || string(data) != "<svg/>" {
		t.Fatalf("ReadIcon() = %q, %v", data, err)
	}

	tests := []struct {
		file string
		code string
	}{
		{file: "missing-solid-v6.svg", code: fetcher.CodeNotFound},
		{file: "../etc/passwd", code: fetcher.CodeValidation},
		{file: " ", code: fetcher.CodeValidation},
	}
	for _, tt := range tests {
		_, err := svc.ReadIcon(context.Background(), tt.file)
		if got := codeOf(t, err); got != tt.code {
			t.Fatalf("ReadIcon(%q) code = %q, want %q", tt.file, got, tt.code)
		}
	}
}

func TestIconsWithoutOutputDir(t *testing.T) {
	svc := NewService(nil, fetcher.Credentials{}, fetcher.Options{}, nil)
	_, err := svc.ListIcons(context.Background())
	if got := codeOf(t, err); got != fetcher.CodeNotFound {
		t.Fatalf("ListIcons() code = %q, want NOT_FOUND", got)
	}
}

func TestColorize(t *testing.T) {
	svc := NewService(nil, fetcher.Credentials{}, fetcher.Options{}, nil)
	out, err := svc.Colorize(context.Background(), `<svg><path d="M0 0"/></svg>`, "#123456")
	if err != nil {
		t.Fatalf("Colorize() error = %v", err)
	}
	if !strings.Contains(out, `fill="#123456"`) {
		t.Fatalf("Colorize() = %q", out)
	}
	if _, err := svc.Colorize(context.Background(), "", "#fff"); codeOf(t, err) != fetcher.CodeValidation {
		t.Fatalf("Colorize(empty) error = %v", err)
	}
}
