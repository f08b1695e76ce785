// Package download detects files the browser saves into a downloads directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no new file shows up within the wait budget.
var ErrNotFound = errors.New("SVG file not found in downloads")

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultAttempts = 20
)

// Listing is a point-in-time set of file names in a directory.
type Listing map[string]struct{}

// Snapshot lists the regular entries of dir.
func Snapshot(dir string) (Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("download: read dir %s: %w", dir, err)
	}
	out := make(Listing, len(entries))
	for _, e := range entries {
		out[e.Name()] = struct{}{}
	}
	return out, nil
}

// Has reports whether name was present when the listing was taken.
func (l Listing) Has(name string) bool {
	_, ok := l[name]
	return ok
}

// NewFiles returns names in after that are absent from l and end in ext,
// sorted so the choice among several candidates is stable.
func (l Listing) NewFiles(after Listing, ext string) []string {
	var out []string
	for name := range after {
		if l.Has(name) || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Poller waits for a new file by diffing directory listings.
//
// Anything else writing into Dir during the wait can be picked up instead
// of the expected download.
type Poller struct {
	Dir      string
	Ext      string
	Interval time.Duration
	Attempts int
}

// NewPoller returns a Poller for .svg files with the default budget.
func NewPoller(dir string) *Poller {
	return &Poller{Dir: dir, Ext: ".svg", Interval: DefaultInterval, Attempts: DefaultAttempts}
}

// Budget is the longest Wait will block.
func (p *Poller) Budget() time.Duration {
	return p.Interval * time.Duration(p.Attempts)
}

// Wait sleeps one interval before each listing and returns the first file
// that is new relative to before.
func (p *Poller) Wait(ctx context.Context, before Listing) (string, error) {
	for i := 0; i < p.Attempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.Interval):
		}

		after, err := Snapshot(p.Dir)
		if err != nil {
			return "", err
		}
		if fresh := before.NewFiles(after, p.Ext); len(fresh) > 0 {
			slog.Debug("download detected by polling", "file", fresh[0], "attempt", i+1)
			return fresh[0], nil
		}
	}
	return "", ErrNotFound
}
