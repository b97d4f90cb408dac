// Package enrich annotates stored headlines with entities and sentiment.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/nlp"
	"github.com/DeafMist/headline-radar/internal/store"
)

// Policy decides what a per-document failure does to the scan.
type Policy string

const (
	// FailFast aborts the scan on the first failed document.
	FailFast Policy = "fail-fast"
	// Continue records the failure, logs the document id and moves on.
	Continue Policy = "continue"
)

// ParsePolicy accepts the names above; empty selects FailFast.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case "", FailFast:
		return FailFast, nil
	case Continue:
		return Continue, nil
	default:
		return "", fmt.Errorf("%w: unknown enrich policy %q", errs.ErrConfig, raw)
	}
}

// Options tune a run.
type Options struct {
	Policy Policy
	// PendingOnly skips documents that already carry annotations, so a killed
	// run can be resumed without repeating finished work.
	PendingOnly bool
}

// Failure is the outcome of one document that could not be enriched.
type Failure struct {
	ID   string
	Text string
	Err  error
}

// FailureSink receives failures as they happen.
type FailureSink interface {
	Publish(ctx context.Context, runID string, f Failure) error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Scanned  int
	Enriched int
	Failures []Failure
	Elapsed  time.Duration
}

// Err joins every recorded failure, or returns nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	all := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		all = append(all, fmt.Errorf("document %s: %w", f.ID, f.Err))
	}
	return errors.Join(all...)
}

// Enricher derives annotations for stored documents.
type Enricher struct {
	store     store.Store
	extractor nlp.EntityExtractor
	scorer    nlp.SentimentScorer
	opts      Options
	sink      FailureSink
	log       *slog.Logger
}

// New builds an Enricher. sink may be nil.
func New(st store.Store, extractor nlp.EntityExtractor, scorer nlp.SentimentScorer, opts Options, sink FailureSink, log *slog.Logger) *Enricher {
	if opts.Policy == "" {
		opts.Policy = FailFast
	}
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{store: st, extractor: extractor, scorer: scorer, opts: opts, sink: sink, log: log}
}

// LabelForScore maps a compound score to a label. Exactly zero is neutral.
func LabelForScore(score float64) models.SentimentLabel {
	switch {
	case score > 0:
		return models.SentimentPositive
	case score < 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// FilterMentions keeps allowed entity types in extraction order, duplicates
// included.
func FilterMentions(mentions []nlp.Mention) []models.EntityMention {
	out := make([]models.EntityMention, 0, len(mentions))
	for _, m := range mentions {
		if !m.Type.Allowed() {
			continue
		}
		out = append(out, models.EntityMention{Type: m.Type, Text: m.Text})
	}
	return out
}

// Annotate computes the annotations of text. It has no side effects.
func (e *Enricher) Annotate(ctx context.Context, text string) (models.Annotations, error) {
	mentions, err := e.extractor.Extract(ctx, text)
	if err != nil {
		return models.Annotations{}, fmt.Errorf("%w: extract entities: %w", errs.ErrModel, err)
	}

	score, err := e.scorer.Score(ctx, text)
	if err != nil {
		return models.Annotations{}, fmt.Errorf("%w: score sentiment: %w", errs.ErrModel, err)
	}
	if math.IsNaN(score) || score < -1 || score > 1 {
		return models.Annotations{}, fmt.Errorf("%w: sentiment score %v outside [-1, 1]", errs.ErrModel, score)
	}

	return models.Annotations{
		Entities:       FilterMentions(mentions),
		SentimentLabel: LabelForScore(score),
	}, nil
}

// EnrichAll scans the store and writes annotations document by document.
// A failing scan cursor always aborts the run. Per-document model and update
// failures abort under FailFast and are collected under Continue.
func (e *Enricher) EnrichAll(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.NewString()}
	log := e.log.With(slog.String("run_id", report.RunID))

	q := store.Query{
		Pending: e.opts.PendingOnly,
		Fields:  []string{models.FieldText},
	}

	log.Info("enrichment started",
		slog.String("policy", string(e.opts.Policy)),
		slog.Bool("pending_only", e.opts.PendingOnly),
	)

	for doc, err := range e.store.Find(ctx, q) {
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("scan documents: %w", err)
		}
		report.Scanned++

		if err := e.enrichOne(ctx, doc); err != nil {
			f := Failure{ID: doc.ID, Text: doc.Text, Err: err}
			report.Failures = append(report.Failures, f)
			log.Warn("enrich document failed", slog.String("id", doc.ID), slog.Any("err", err))
			e.publish(ctx, report.RunID, f)

			if e.opts.Policy == FailFast {
				report.Elapsed = time.Since(start)
				return report, fmt.Errorf("document %s: %w", doc.ID, err)
			}
			continue
		}
		report.Enriched++

		if report.Scanned%1000 == 0 {
			log.Debug("enrichment progress", slog.Int("scanned", report.Scanned))
		}
	}

	report.Elapsed = time.Since(start)
	log.Info("enrichment finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("enriched", report.Enriched),
		slog.Int("failed", len(report.Failures)),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (e *Enricher) enrichOne(ctx context.Context, doc models.Headline) error {
	ann, err := e.Annotate(ctx, doc.Text)
	if err != nil {
		return err
	}
	return e.store.UpdateAnnotations(ctx, doc.ID, ann)
}

func (e *Enricher) publish(ctx context.Context, runID string, f Failure) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, runID, f); err != nil {
		e.log.Error("publish failure", slog.String("id", f.ID), slog.Any("err", err))
	}
}
