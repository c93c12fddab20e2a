// Package publisher runs the publish pipeline: it reads a note, converts it,
// plans the messages and dispatches them to every selected destination.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/notegram/internal/classifier"
	"github.com/xaenox/notegram/internal/formatter"
	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/plan"
	"github.com/xaenox/notegram/internal/storage"
	"github.com/xaenox/notegram/internal/tagger"
	"go.uber.org/zap"
)

// NoteSource reads notes and resolves their embeds.
type NoteSource interface {
	classifier.Resolver
	ReadNote(path string) (models.Note, error)
	ReadBinary(path string) ([]byte, error)
}

// Transport performs one send operation against a destination.
type Transport interface {
	Send(ctx context.Context, creds models.Credentials, op plan.Operation, files []models.FileData) error
}

type Publisher struct {
	notes      NoteSource
	presets    storage.Storage
	classifier *classifier.Classifier
	transport  Transport
	tagger     tagger.Tagger
	observer   Observer
	logger     *zap.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTagger appends hashtags chosen by t to every published note.
func WithTagger(t tagger.Tagger) Option {
	return func(p *Publisher) {
		p.tagger = t
	}
}

func WithObserver(o Observer) Option {
	return func(p *Publisher) {
		if o != nil {
			p.observer = o
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(notes NoteSource, presets storage.Storage, c *classifier.Classifier, transport Transport, opts ...Option) *Publisher {
	p := &Publisher{
		notes:      notes,
		presets:    presets,
		classifier: c,
		transport:  transport,
		observer:   nopObserver{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Draft is a note prepared for sending.
type Draft struct {
	Note        string                `json:"note"`
	Text        string                `json:"text"`
	Attachments classifier.Classified `json:"attachments"`
	Operations  []plan.Operation      `json:"-"`
}

// Preview prepares a note without sending anything.
func (p *Publisher) Preview(ctx context.Context, notePath string, opts models.PublishOptions) (*Draft, error) {
	note, err := p.notes.ReadNote(notePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	return p.draft(ctx, note, opts), nil
}

func (p *Publisher) draft(ctx context.Context, note models.Note, opts models.PublishOptions) *Draft {
	text := formatter.Convert(note.RawText)
	if p.tagger != nil {
		if line := tagger.Hashtags(p.tagger.Tags(ctx, note)); line != "" {
			if text != "" {
				text += "\n\n"
			}
			text += formatter.Escape(line)
		}
	}

	attachments := p.classifier.Classify(note.Embeds, note.Path, p.notes)

	return &Draft{
		Note:        note.Path,
		Text:        text,
		Attachments: attachments,
		Operations:  plan.Build(text, attachments, opts),
	}
}

// Result is the outcome of publishing to one destination.
type Result struct {
	Preset  models.Preset
	Planned int
	Sent    int
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Report lists the per-destination results in selection order.
type Report struct {
	Note    string
	Results []Result
}

// Err joins the failures of every destination, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Preset.Label(), res.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed counts destinations that did not receive every operation.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Publish sends a note to the selected destinations one after another. A
// failure stops the remaining operations of that destination only. The
// returned error is set when nothing was attempted; per-destination failures
// are in the report.
func (p *Publisher) Publish(ctx context.Context, notePath string, sel Selection, opts models.PublishOptions) (*Report, error) {
	note, err := p.notes.ReadNote(notePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}

	presets, err := p.resolveDestinations(ctx, sel)
	if err != nil {
		return nil, err
	}

	draft := p.draft(ctx, note, opts)
	if len(draft.Operations) == 0 {
		p.logger.Info("Nothing to publish", zap.String("note", note.Path))
	}

	report := &Report{Note: note.Path, Results: make([]Result, 0, len(presets))}
	for _, preset := range presets {
		sent, err := p.dispatch(ctx, preset, draft.Operations)
		result := Result{Preset: preset, Planned: len(draft.Operations), Sent: sent, Err: err}
		report.Results = append(report.Results, result)
		p.observer.RecordDestination(err)

		if err != nil {
			p.logger.Error("Failed to publish note",
				zap.String("note", note.Path),
				zap.String("preset", preset.Label()),
				zap.Int("sent", sent),
				zap.Int("planned", result.Planned),
				zap.Error(err))
			continue
		}
		p.logger.Info("Published note",
			zap.String("note", note.Path),
			zap.String("preset", preset.Label()),
			zap.Int("operations", sent))
	}

	return report, nil
}

func (p *Publisher) dispatch(ctx context.Context, preset models.Preset, ops []plan.Operation) (int, error) {
	sent := 0
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		files, err := p.readFiles(op)
		if err != nil {
			return sent, err
		}
		start := time.Now()
		err = p.transport.Send(ctx, preset.Credentials, op, files)
		p.observer.RecordOperation(op, time.Since(start), err)
		if err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (p *Publisher) readFiles(op plan.Operation) ([]models.FileData, error) {
	members := op.Files()
	files := make([]models.FileData, 0, len(members))
	for _, member := range members {
		data, err := p.notes.ReadBinary(member.Path)
		if err != nil {
			return nil, &models.AttachmentReadError{Path: member.Path, Err: err}
		}
		files = append(files, models.FileData{Name: member.Name, Bytes: data})
	}
	return files, nil
}
