// Package plan decides how a converted note and its attachments are packed
// into Bot API calls.
package plan

import (
	"fmt"
	"strings"

	"github.com/xaenox/notegram/internal/classifier"
	"github.com/xaenox/notegram/internal/models"
)

// MaxGroupSize is the largest media group the Bot API accepts.
const MaxGroupSize = 10

// MediaKind selects the media endpoint for an operation.
type MediaKind string

const (
	Photo    MediaKind = "photo"
	Document MediaKind = "document"
)

// Delivery flags resolved for a single operation.
type Delivery struct {
	Silent       bool `json:"silent"`
	CaptionAbove bool `json:"caption_above"`
}

// Operation is one outbound API call: a TextMessage, a SingleMedia or a
// MediaGroup.
type Operation interface {
	Flags() Delivery
	Files() []models.ResolvedFile
	operation()
}

// TextMessage sends the converted text on its own.
type TextMessage struct {
	Delivery
	Text string `json:"text"`
}

// SingleMedia sends one file with an optional caption.
type SingleMedia struct {
	Delivery
	Kind    MediaKind           `json:"kind"`
	File    models.ResolvedFile `json:"file"`
	Caption string              `json:"caption"`
}

// MediaGroup sends up to MaxGroupSize files as one post. The caption is
// attached to the first file only.
type MediaGroup struct {
	Delivery
	Kind    MediaKind             `json:"kind"`
	Members []models.ResolvedFile `json:"files"`
	Caption string                `json:"caption"`
}

func (d Delivery) Flags() Delivery { return d }

func (TextMessage) Files() []models.ResolvedFile   { return nil }
func (m SingleMedia) Files() []models.ResolvedFile { return []models.ResolvedFile{m.File} }
func (m MediaGroup) Files() []models.ResolvedFile  { return m.Members }

func (TextMessage) operation() {}
func (SingleMedia) operation() {}
func (MediaGroup) operation()  {}

// Build turns converted text and classified attachments into an ordered list
// of operations. Photos take precedence over documents, and the text rides
// along as the caption of the first media unit; without attachments the text
// is sent alone. Empty text and no attachments give an empty plan.
func Build(text string, attachments classifier.Classified, opts models.PublishOptions) []Operation {
	switch {
	case len(attachments.Photos) > 0:
		return batch(Photo, attachments.Photos, text, opts)
	case len(attachments.Documents) > 0:
		return batch(Document, attachments.Documents, text, opts)
	case text != "":
		return []Operation{TextMessage{
			Delivery: Delivery{Silent: opts.Silent},
			Text:     text,
		}}
	default:
		return nil
	}
}

func batch(kind MediaKind, files []models.ResolvedFile, caption string, opts models.PublishOptions) []Operation {
	primary := files
	if len(primary) > MaxGroupSize {
		primary = files[:MaxGroupSize]
	}
	overflow := files[len(primary):]

	ops := make([]Operation, 0, 1+len(overflow))
	captioned := Delivery{Silent: opts.Silent, CaptionAbove: opts.CaptionAbove}

	if len(primary) == 1 {
		ops = append(ops, SingleMedia{
			Delivery: captioned,
			Kind:     kind,
			File:     primary[0],
			Caption:  caption,
		})
	} else {
		members := make([]models.ResolvedFile, len(primary))
		copy(members, primary)
		ops = append(ops, MediaGroup{
			Delivery: captioned,
			Kind:     kind,
			Members:  members,
			Caption:  caption,
		})
	}

	for _, file := range overflow {
		ops = append(ops, SingleMedia{
			Delivery: Delivery{Silent: opts.Silent},
			Kind:     kind,
			File:     file,
		})
	}

	return ops
}

// Describe renders a plan as one line per operation for dry runs.
func Describe(ops []Operation) string {
	if len(ops) == 0 {
		return "nothing to send"
	}

	var b strings.Builder
	for i, op := range ops {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. ", i+1)
		switch o := op.(type) {
		case TextMessage:
			fmt.Fprintf(&b, "text (%d chars)", len([]rune(o.Text)))
		case SingleMedia:
			fmt.Fprintf(&b, "%s %s", o.Kind, o.File.Path)
			if o.Caption != "" {
				b.WriteString(" with caption")
			}
		case MediaGroup:
			fmt.Fprintf(&b, "%s group of %d", o.Kind, len(o.Members))
			if o.Caption != "" {
				b.WriteString(" with caption")
			}
		}
		flags := op.Flags()
		if flags.Silent {
			b.WriteString(", silent")
		}
		if flags.CaptionAbove {
			b.WriteString(", caption above")
		}
	}
	return b.String()
}
