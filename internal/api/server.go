package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/fa_fetcher/internal/controller"
	"github.com/dgnsrekt/fa_fetcher/internal/events"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"github.com/dgnsrekt/fa_fetcher/internal/iconstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	Status() controller.Status
	Run(ctx context.Context, icons []fetcher.IconRequest, opts fetcher.Options) (fetcher.Run, error)
	ListIcons(ctx context.Context) ([]iconstore.IconFile, error)
	ReadIcon(ctx context.Context, fileName string) ([]byte, error)
	Colorize(ctx context.Context, svg, color string) (string, error)
}

// NewServer builds the control API. broker may be nil, in which case the
// event stream is not mounted.
func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Icon Fetcher API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if broker != nil {
		router.Get("/api/v1/events", events.SSEHandler(broker))
	}

	registerHealthHandlers(api, svc)
	registerRunHandlers(api, svc)
	registerIconHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *fetcher.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case fetcher.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case fetcher.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case fetcher.CodeBusy:
			return huma.Error409Conflict(coded.Message)
		case fetcher.CodeSelectorTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case fetcher.CodeSession, fetcher.CodeBrowser:
			return huma.Error502BadGateway(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
