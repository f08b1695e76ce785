package cdpprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// fakeBrowser serves /json/version and a DevTools socket that answers the
// two probe commands, preceded by an unrelated event.
func fakeBrowser(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/abc"
		_ = json.NewEncoder(w).Encode(map[string]string{"webSocketDebuggerUrl": wsURL})
	})
	mux.HandleFunc("/devtools/browser/abc", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var req struct {
				ID     int64  `json:"id"`
				Method string `json:"method"`
			}
			_ = json.Unmarshal(data, &req)
			_ = wsutil.WriteServerText(conn, []byte(`{"method":"Target.targetCreated","params":{}}`))
			var result string
			switch req.Method {
			case "Browser.getVersion":
				result = `{"product":"HeadlessChrome/140.0","protocolVersion":"1.3","userAgent":"UA"}`
			case "Target.getTargets":
				result = `{"targetInfos":[{"targetId":"a","type":"page","title":"","url":"about:blank","attached":true,"canAccessOpener":false},{"targetId":"b","type":"service_worker","title":"","url":"","attached":false,"canAccessOpener":false}]}`
			default:
				result = `{}`
			}
			_ = wsutil.WriteServerText(conn, []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, req.ID, result)))
		}
	})
	srv = httptest.NewServer(mux)
	return srv
}

func TestProbeHTTPEndpoint(t *testing.T) {
	srv := fakeBrowser(t)
	defer srv.Close()

	info, err := Probe(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.Product != "HeadlessChrome/140.0" || info.ProtocolVersion != "1.3" {
		t.Fatalf("info = %+v", info)
	}
	if info.Pages != 1 {
		t.Fatalf("Pages = %d, want 1", info.Pages)
	}
	if !strings.HasSuffix(info.WebSocketURL, "/devtools/browser/abc") {
		t.Fatalf("WebSocketURL = %q", info.WebSocketURL)
	}
}

func TestProbeVersionEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Probe(context.Background(), srv.Client(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("Probe() error = %v, want HTTP 404", err)
	}
}
