package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status    string       `json:"status" example:"ok"`
			Busy      bool         `json:"busy" doc:"True while a fetch run is active"`
			OutputDir string       `json:"output_dir,omitempty"`
			LastRun   *fetcher.Run `json:"last_run,omitempty" doc:"Summary of the most recent run, without SVG bodies"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Service health and last run", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			st := svc.Status()
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Busy = st.Busy
			out.Body.OutputDir = st.OutputDir
			out.Body.LastRun = st.LastRun
			return out, nil
		})
}
