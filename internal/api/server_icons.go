package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/fa_fetcher/internal/iconstore"
)

func registerIconHandlers(api huma.API, svc Service) {
	type listOutput struct {
		Body struct {
			Icons []iconstore.IconFile `json:"icons"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-icons", Method: http.MethodGet, Path: "/api/v1/icons", Summary: "List stored icons (newest first)", Tags: []string{"Icons"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			files, err := svc.ListIcons(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listOutput{}
			out.Body.Icons = files
			return out, nil
		})

	type fileInput struct {
		File string `path:"file" doc:"Stored file name, e.g. arrow-right-solid-v6.svg"`
	}
	type svgOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-icon",
		Method:      http.MethodGet,
		Path:        "/api/v1/icons/{file}",
		Summary:     "Get stored icon markup",
		Tags:        []string{"Icons"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "SVG markup",
				Content: map[string]*huma.MediaType{
					"image/svg+xml": {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *fileInput) (*svgOutput, error) {
		data, err := svc.ReadIcon(ctx, input.File)
		if err != nil {
			return nil, mapErr(err)
		}
		return &svgOutput{ContentType: "image/svg+xml", Body: data}, nil
	})

	type colorizeInput struct {
		Body struct {
			SVG   string `json:"svg" minLength:"1" doc:"SVG markup to recolor"`
			Color string `json:"color" minLength:"1" example:"#ff0000" doc:"Fill value written into the markup"`
		}
	}
	type colorizeOutput struct {
		Body struct {
			SVG string `json:"svg"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "colorize", Method: http.MethodPost, Path: "/api/v1/colorize", Summary: "Recolor SVG markup", Description: "Replaces hex and currentColor fills and adds a fill to every path without one.", Tags: []string{"Icons"}},
		func(ctx context.Context, input *colorizeInput) (*colorizeOutput, error) {
			svg, err := svc.Colorize(ctx, input.Body.SVG, input.Body.Color)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &colorizeOutput{}
			out.Body.SVG = svg
			return out, nil
		})
}
