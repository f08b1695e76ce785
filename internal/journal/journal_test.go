package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

func readLines(t *testing.T, path string) []fetcher.Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open(%s) failed: %v", path, err)
	}
	defer f.Close()

	var out []fetcher.Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev fetcher.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q is not JSON: %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	return out
}

func TestWriterAppendsEventsUnderDateDir(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.now = func() time.Time { return time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC) }

	w.Observe(fetcher.Event{Type: fetcher.EventRunStarted, RunID: "r1", Total: 2})
	w.Observe(fetcher.Event{Type: fetcher.EventItemFailed, RunID: "r1", Name: "bravo", Code: fetcher.CodeDownloadNotFound})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events := readLines(t, filepath.Join(dir, "2026-03-04", "runs.jsonl"))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != fetcher.EventRunStarted || events[1].Name != "bravo" {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Code != fetcher.CodeDownloadNotFound {
		t.Fatalf("Code = %q", events[1].Code)
	}
}

func TestWriterRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	day := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	w.writeEvent(fetcher.Event{Type: fetcher.EventRunStarted, RunID: "r1"})
	day = day.Add(24 * time.Hour)
	w.writeEvent(fetcher.Event{Type: fetcher.EventRunFinished, RunID: "r1"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, date := range []string{"2026-03-04", "2026-03-05"} {
		if got := readLines(t, filepath.Join(dir, date, "runs.jsonl")); len(got) != 1 {
			t.Fatalf("%s has %d events, want 1", date, len(got))
		}
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	w := New(t.TempDir())
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Write(fetcher.Event{Type: fetcher.EventRunStarted}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() error = %v, want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestWritesAcceptedDuringCloseAreKept(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }

	var accepted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 200; i++ {
				err := w.Write(fetcher.Event{Type: fetcher.EventItemSucceeded, RunID: "r1", Index: i})
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrClosed):
					return
				case !errors.Is(err, ErrBufferFull):
					t.Errorf("Write() error = %v", err)
					return
				}
			}
		}()
	}
	close(start)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()

	var written int
	if accepted.Load() > 0 {
		written = len(readLines(t, filepath.Join(dir, "2026-03-04", "runs.jsonl")))
	}
	if int64(written) != accepted.Load() {
		t.Fatalf("wrote %d events, accepted %d", written, accepted.Load())
	}
}
