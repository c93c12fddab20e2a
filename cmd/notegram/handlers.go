package main

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/plan"
	"github.com/xaenox/notegram/internal/publisher"
	"github.com/xaenox/notegram/pkg/config"
)

type toolHandlers struct {
	publisher       *publisher.Publisher
	publishDefaults config.PublishConfig
}

func (h *toolHandlers) options(silent, captionAbove *bool) models.PublishOptions {
	opts := models.PublishOptions{Silent: h.publishDefaults.Silent, CaptionAbove: h.publishDefaults.CaptionAbove}
	if silent != nil {
		opts.Silent = *silent
	}
	if captionAbove != nil {
		opts.CaptionAbove = *captionAbove
	}
	return opts
}

func (h *toolHandlers) handleDestinations(ctx context.Context, req *mcp.CallToolRequest, input DestinationsInput) (*mcp.CallToolResult, DestinationsOutput, error) {
	presets, err := h.publisher.Destinations(ctx)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, DestinationsOutput{}, err
	}

	out := DestinationsOutput{Destinations: make([]Destination, 0, len(presets))}
	for _, p := range presets {
		out.Destinations = append(out.Destinations, Destination{ID: p.ID, Name: p.Name, IsDefault: p.IsDefault})
	}
	return nil, out, nil
}

func (h *toolHandlers) handlePreview(ctx context.Context, req *mcp.CallToolRequest, input PreviewInput) (*mcp.CallToolResult, PreviewOutput, error) {
	draft, err := h.publisher.Preview(ctx, strings.TrimSpace(input.Path), h.options(input.Silent, input.CaptionAbove))
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, PreviewOutput{}, err
	}

	return nil, PreviewOutput{
		Text:      draft.Text,
		Photos:    paths(draft.Attachments.Photos),
		Documents: paths(draft.Attachments.Documents),
		Plan:      plan.Describe(draft.Operations),
	}, nil
}

func (h *toolHandlers) handlePublish(ctx context.Context, req *mcp.CallToolRequest, input PublishInput) (*mcp.CallToolResult, PublishOutput, error) {
	path := strings.TrimSpace(input.Path)
	sel, err := selection(input.Presets, input.All)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, PublishOutput{Path: path}, err
	}

	report, err := h.publisher.Publish(ctx, path, sel, h.options(input.Silent, input.CaptionAbove))
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, PublishOutput{Path: path}, err
	}

	out := PublishOutput{Path: report.Note, Results: make([]PublishResult, 0, len(report.Results))}
	for _, res := range report.Results {
		r := PublishResult{Destination: res.Preset.Label(), Planned: res.Planned, Sent: res.Sent}
		if res.Err != nil {
			r.Error = res.Err.Error()
		}
		out.Results = append(out.Results, r)
	}

	if report.Failed() > 0 {
		return &mcp.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func paths(files []models.ResolvedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
