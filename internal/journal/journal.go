// Package journal appends fetch lifecycle events to date-organized JSONL files.
package journal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultBufferSize = 256
	defaultMaxSizeMB  = 25
	fileName          = "runs.jsonl"
	closeDrainTimeout = 5 * time.Second
)

var (
	ErrClosed     = errors.New("journal is closed")
	ErrBufferFull = errors.New("journal buffer full")
)

// Writer queues events and writes them from a single goroutine to
// <dir>/<YYYY-MM-DD>/runs.jsonl, rotating by size through lumberjack.
type Writer struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	writeCh chan fetcher.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	// closeMu orders sends against Close so nothing is queued after drain.
	closeMu sync.RWMutex
	closed  bool

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// New starts a journal writer rooted at baseDir.
func New(baseDir string) *Writer {
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: defaultMaxSizeMB,
		now:       time.Now,
		writeCh:   make(chan fetcher.Event, defaultBufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Observe implements fetcher.Observer. It never blocks the fetch loop.
func (w *Writer) Observe(ev fetcher.Event) {
	if err := w.Write(ev); err != nil {
		slog.Warn("journal dropped event", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}

// Write queues one event. A nil error means the event will be written
// unless Close hits its drain timeout.
func (w *Writer) Write(ev fetcher.Event) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.writeCh <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops the writer after draining queued events.
func (w *Writer) Close() error {
	w.once.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		close(w.done)
		w.closeMu.Unlock()
	})
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case ev := <-w.writeCh:
			w.writeEvent(ev)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	deadline := time.After(closeDrainTimeout)
	for {
		select {
		case ev := <-w.writeCh:
			w.writeEvent(ev)
		case <-deadline:
			slog.Warn("journal close timeout, some events may be lost", "pending", len(w.writeCh))
			return
		default:
			return
		}
	}
}

func (w *Writer) writeEvent(ev fetcher.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal journal event", "error", err, "type", ev.Type)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if date != w.currentDate || w.logger == nil {
		if err := w.rotateForDate(date); err != nil {
			slog.Error("failed to open journal file", "error", err, "date", date)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write journal event", "error", err, "type", ev.Type)
	}
}

func (w *Writer) rotateForDate(date string) error {
	if w.logger != nil {
		w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, fileName)
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("opened journal file", "file", filename)
	return nil
}
