// Package cdpprobe checks that a Chrome DevTools endpoint is reachable
// without starting a chromedp session on it.
package cdpprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const defaultTimeout = 5 * time.Second

// Info describes a reachable browser.
type Info struct {
	Product         string `json:"product"`
	ProtocolVersion string `json:"protocol_version"`
	UserAgent       string `json:"user_agent"`
	WebSocketURL    string `json:"websocket_url"`
	Pages           int    `json:"pages"`
}

// Probe resolves the browser WebSocket URL (from /json/version when given an
// http base), dials it and issues Browser.getVersion and Target.getTargets.
func Probe(ctx context.Context, client *http.Client, endpoint string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	wsURL := strings.TrimSpace(endpoint)
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		var err error
		wsURL, err = browserWSURL(ctx, client, wsURL)
		if err != nil {
			return Info{}, fmt.Errorf("cdpprobe: browser ws url: %w", err)
		}
	}

	slog.Debug("cdpprobe connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return Info{}, fmt.Errorf("cdpprobe: dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var version struct {
		Product         string `json:"product"`
		ProtocolVersion string `json:"protocolVersion"`
		UserAgent       string `json:"userAgent"`
	}
	if err := call(conn, 1, "Browser.getVersion", &version); err != nil {
		return Info{}, err
	}
	var targets struct {
		TargetInfos []*target.Info `json:"targetInfos"`
	}
	if err := call(conn, 2, "Target.getTargets", &targets); err != nil {
		return Info{}, err
	}

	info := Info{
		Product:         version.Product,
		ProtocolVersion: version.ProtocolVersion,
		UserAgent:       version.UserAgent,
		WebSocketURL:    wsURL,
	}
	for _, t := range targets.TargetInfos {
		if t != nil && t.Type == "page" {
			info.Pages++
		}
	}
	return info, nil
}

// call sends one parameterless command and waits for its response,
// skipping any events delivered in between.
func call(conn net.Conn, id int64, method string, out any) error {
	req, err := json.Marshal(struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}{ID: id, Method: method})
	if err != nil {
		return err
	}
	if err := wsutil.WriteClientText(conn, req); err != nil {
		return fmt.Errorf("cdpprobe: %s: write: %w", method, err)
	}
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			return fmt.Errorf("cdpprobe: %s: read: %w", method, err)
		}
		var msg struct {
			ID     int64           `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("cdpprobe: %s: %s (code %d)", method, msg.Error.Message, msg.Error.Code)
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("cdpprobe: %s: decode: %w", method, err)
		}
		return nil
	}
}

func browserWSURL(ctx context.Context, client *http.Client, base string) (string, error) {
	c := client
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("/json/version: HTTP %d", resp.StatusCode)
	}

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}
