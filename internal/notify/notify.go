// Package notify posts run summaries to an ntfy topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

// SendRunSummary posts a short summary of run to endpoint. Runs with
// failures are sent with raised priority and list the failed icons.
func SendRunSummary(ctx context.Context, client *http.Client, endpoint string, run fetcher.Run) error {
	var b strings.Builder
	b.WriteString(run.Summary())
	for _, f := range run.Failures {
		fmt.Fprintf(&b, "\n- %s (%s v%s): %s", f.Name, f.Style, f.Version, f.Code)
	}

	headers := map[string]string{"Title": "Icon fetch finished"}
	if len(run.Failures) > 0 {
		headers["Priority"] = "high"
		headers["Tags"] = "warning"
	} else {
		headers["Tags"] = "white_check_mark"
	}
	return Send(ctx, client, endpoint, b.String(), headers)
}

// Send posts message to endpoint as text/plain with optional ntfy headers.
func Send(ctx context.Context, client *http.Client, endpoint, message string, headers map[string]string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("ntfy endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
