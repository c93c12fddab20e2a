package main

import "github.com/modelcontextprotocol/go-sdk/mcp"

type (
	// DestinationsInput lists saved destinations.
	DestinationsInput struct{}

	// Destination is a preset without its credentials.
	Destination struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		IsDefault bool   `json:"isDefault,omitempty"`
	}

	// DestinationsOutput contains the saved destinations in order.
	DestinationsOutput struct {
		Destinations []Destination `json:"destinations"`
	}

	// PreviewInput contains parameters for previewing a note.
	PreviewInput struct {
		Path         string `json:"path" jsonschema:"Path to the note relative to vault root"`
		Silent       *bool  `json:"silent,omitempty" jsonschema:"Send without notification (default from config)"`
		CaptionAbove *bool  `json:"captionAbove,omitempty" jsonschema:"Show the caption above media (default from config)"`
	}

	// PreviewOutput contains the converted note and its message plan.
	PreviewOutput struct {
		Text      string   `json:"text"`
		Photos    []string `json:"photos,omitempty"`
		Documents []string `json:"documents,omitempty"`
		Plan      string   `json:"plan"`
	}

	// PublishInput contains parameters for publishing a note.
	PublishInput struct {
		Path         string   `json:"path" jsonschema:"Path to the note relative to vault root"`
		Presets      []string `json:"presets,omitempty" jsonschema:"Destination ids in sending order (default: the default destination)"`
		All          bool     `json:"all,omitempty" jsonschema:"Publish to every saved destination"`
		Silent       *bool    `json:"silent,omitempty" jsonschema:"Send without notification (default from config)"`
		CaptionAbove *bool    `json:"captionAbove,omitempty" jsonschema:"Show the caption above media (default from config)"`
	}

	// PublishResult is the outcome for one destination.
	PublishResult struct {
		Destination string `json:"destination"`
		Planned     int    `json:"planned"`
		Sent        int    `json:"sent"`
		Error       string `json:"error,omitempty"`
	}

	// PublishOutput contains the per-destination results in order.
	PublishOutput struct {
		Path    string          `json:"path"`
		Results []PublishResult `json:"results"`
	}
)

func registerTools(server *mcp.Server, h *toolHandlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "destinations",
		Description: "List the saved Telegram destinations. Credentials are never returned.",
	}, h.handleDestinations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview",
		Description: "Convert a note to Telegram MarkdownV2 and describe the messages a publish would send, without sending anything.",
	}, h.handlePreview)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "publish",
		Description: "Publish a note to the default destination, to the listed destination ids in order, or to all destinations. A failure on one destination does not stop the others.",
	}, h.handlePublish)
}
