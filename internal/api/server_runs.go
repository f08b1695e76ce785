package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

func registerRunHandlers(api huma.API, svc Service) {
	type runInput struct {
		Body struct {
			Icons      []fetcher.IconRequest `json:"icons" minItems:"1" doc:"Icons to fetch, processed in order"`
			OutputDir  string                `json:"output_dir,omitempty" doc:"Directory for fetched SVGs, relative to or inside the server's output dir. Defaults to the server's output dir."`
			ReturnSVGs bool                  `json:"return_svgs,omitempty" doc:"Include SVG markup in the response"`
		}
	}
	type runOutput struct {
		Body fetcher.Run
	}
	huma.Register(api, huma.Operation{
		OperationID: "create-run",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs",
		Summary:     "Fetch a batch of icons",
		Description: "Opens a browser session, signs in if needed and downloads each icon. Per-icon failures are reported in `failures`. Returns 409 while another run is active.",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *runInput) (*runOutput, error) {
		opts := fetcher.Options{OutputDir: input.Body.OutputDir, ReturnSVGs: input.Body.ReturnSVGs}
		run, err := svc.Run(ctx, input.Body.Icons, opts)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &runOutput{}
		out.Body = run
		return out, nil
	})
}
