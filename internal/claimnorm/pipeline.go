package claimnorm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ignite/claims-pipeline/internal/pkg/logger"
)

// Source is one input to a pipeline run.
type Source struct {
	System  SourceSystem
	Name    string // location, used in logs and errors
	Records RecordStream
}

// Result is everything a run produces. Candidates is never nil.
type Result struct {
	AsOf       time.Time
	Candidates []Candidate
	Metrics    *Metrics
}

// Pipeline drives sources through their adapters and the classifier.
type Pipeline struct {
	classifier *Classifier
	asOf       time.Time
	now        func() time.Time
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithAsOf pins the reference date instead of reading the clock.
func WithAsOf(t time.Time) PipelineOption {
	return func(p *Pipeline) { p.asOf = t }
}

// WithClock replaces time.Now for resolving the reference date.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline returns a pipeline using classifier, or the default
// classifier when nil.
func NewPipeline(classifier *Classifier, opts ...PipelineOption) *Pipeline {
	if classifier == nil {
		classifier = NewClassifier()
	}
	p := &Pipeline{classifier: classifier, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AsOf resolves the reference date for a run.
func (p *Pipeline) AsOf() time.Time {
	if !p.asOf.IsZero() {
		return CalendarDate(p.asOf)
	}
	return CalendarDate(p.now())
}

// Run processes every source in order. The reference date is fixed once
// at the start. A decode error or a cancelled context aborts the run and
// no result is returned.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	res := &Result{
		AsOf:       p.AsOf(),
		Candidates: []Candidate{},
		Metrics:    NewMetrics(),
	}
	logger.Info("pipeline run started", "as_of", res.AsOf.Format(alphaDateLayout), "sources", len(sources))

	for _, src := range sources {
		if err := p.runSource(ctx, src, res); err != nil {
			return nil, err
		}
	}

	logger.Info("pipeline run finished",
		"total_processed", res.Metrics.TotalProcessed,
		"flagged", res.Metrics.FlaggedForResubmission,
		"excluded", res.Metrics.TotalExcluded())
	return res, nil
}

func (p *Pipeline) runSource(ctx context.Context, src Source, res *Result) error {
	adapter, err := NewAdapter(src.System)
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Name, err)
	}
	if src.Records == nil {
		return fmt.Errorf("source %s: no record stream", src.Name)
	}

	stream := adapter.Stream(src.Records)
	processed, flagged, malformed := 0, 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
		processed++

		outcome := p.classifier.ClassifyRecord(rec, res.AsOf)
		res.Metrics.Record(outcome, rec.Source)
		if rec.Malformed() {
			malformed++
			logger.Debug("malformed record", "source", src.System, "record", processed, "cause", rec.Cause)
			continue
		}
		if outcome.Eligible {
			flagged++
			res.Candidates = append(res.Candidates, Candidate{
				ClaimID:            rec.Claim.ClaimID,
				ResubmissionReason: outcome.ResubmissionReason,
				SourceSystem:       rec.Claim.SourceSystem,
				RecommendedChanges: outcome.RecommendedChanges,
			})
		}
	}

	logger.Info("source processed",
		"source", src.System,
		"location", src.Name,
		"records", processed,
		"flagged", flagged,
		"malformed", malformed)
	return nil
}
