package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func TestSendRunSummaryListsFailures(t *testing.T) {
	var got *http.Request
	var body string
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			got = r
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			body = string(raw)
			return okResponse(), nil
		}),
	}

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := fetcher.Run{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Requested:  3,
		Succeeded:  2,
		Failures: []fetcher.ItemFailure{
			{Name: "bravo", Style: "solid", Version: "6", Code: fetcher.CodeDownloadNotFound},
		},
	}
	if err := SendRunSummary(context.Background(), client, "http://example.com/fafetch", run); err != nil {
		t.Fatalf("SendRunSummary() error = %v", err)
	}

	if got.Method != http.MethodPost || got.URL.Path != "/fafetch" {
		t.Fatalf("request = %s %s", got.Method, got.URL.Path)
	}
	if got.Header.Get("Priority") != "high" {
		t.Fatalf("Priority = %q, want high", got.Header.Get("Priority"))
	}
	if !strings.HasPrefix(body, "fetched 2/3 icons (1 failed) in 1.5s") {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, "- bravo (solid v6): DOWNLOAD_NOT_FOUND") {
		t.Fatalf("body missing failure line: %q", body)
	}
}

func TestSendRunSummaryCleanRun(t *testing.T) {
	var tags string
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			tags = r.Header.Get("Tags")
			if r.Header.Get("Priority") != "" {
				t.Fatalf("Priority set on clean run")
			}
			return okResponse(), nil
		}),
	}
	if err := SendRunSummary(context.Background(), client, "http://example.com/t", fetcher.Run{Requested: 1, Succeeded: 1}); err != nil {
		t.Fatalf("SendRunSummary() error = %v", err)
	}
	if tags != "white_check_mark" {
		t.Fatalf("Tags = %q", tags)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/t", "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("Send() error = %v, want ntfy notification failed", err)
	}
}

func TestSendRejectsMissingEndpoint(t *testing.T) {
	if err := Send(context.Background(), http.DefaultClient, " ", "hello", nil); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
