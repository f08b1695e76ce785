package fetcher

import (
	"context"
	"time"
)

// Session is the browser page the fetcher drives.
type Session interface {
	// Navigate loads url and returns once the page has finished loading.
	Navigate(ctx context.Context, url string) error
	// Exists reports whether selector matches right now, without waiting.
	Exists(ctx context.Context, selector string) (bool, error)
	// WaitVisible blocks until selector is visible or timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// Type sends text one character at a time, pausing keyDelay between keys.
	Type(ctx context.Context, selector, text string, keyDelay time.Duration) error
	// ClickAndWaitLoad clicks selector and waits for the resulting page load.
	ClickAndWaitLoad(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// DownloadNotifier is implemented by sessions that can report completed
// downloads directly instead of relying on directory polling.
type DownloadNotifier interface {
	// DiscardDownloads drops notifications that arrived before the caller
	// armed a new wait.
	DiscardDownloads()
	// AwaitDownload returns the file name of the next completed download.
	AwaitDownload(ctx context.Context) (string, error)
}

// Opener starts a browser session whose downloads land in downloadsDir.
type Opener interface {
	Open(ctx context.Context, downloadsDir string) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, downloadsDir string) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, downloadsDir string) (Session, error) {
	return f(ctx, downloadsDir)
}
