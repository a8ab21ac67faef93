// Package runner wires a full pipeline run: open sources, classify, render
// and store artifacts, then notify.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/notify"
	"github.com/ignite/claims-pipeline/internal/pkg/distlock"
	"github.com/ignite/claims-pipeline/internal/pkg/logger"
	"github.com/ignite/claims-pipeline/internal/report"
	"github.com/ignite/claims-pipeline/internal/storage"
)

// Opener returns a reader for a source location.
type Opener interface {
	Open(ctx context.Context, loc storage.Location) (io.ReadCloser, error)
}

// Notifier is told about every successful run.
type Notifier interface {
	Notify(ctx context.Context, s notify.Summary) error
}

// Runner holds the collaborators of a run. Lock and Notifier are optional.
type Runner struct {
	Pipeline *claimnorm.Pipeline
	Opener   Opener
	Store    storage.ArtifactStore
	Lock     distlock.RunLock
	Notifier Notifier
	Names    report.Names
	Echo     io.Writer // receives the candidate JSON when set
}

// Outcome describes a finished run.
type Outcome struct {
	RunID     string
	Result    *claimnorm.Result
	Artifacts []string
	Elapsed   time.Duration
}

// Run executes one pipeline run under the run lock. Either both artifacts
// are written or the run fails with nothing written.
func (r *Runner) Run(ctx context.Context, args []SourceArg) (*Outcome, error) {
	if len(args) == 0 {
		return nil, claimnorm.ErrNoSources
	}
	lock := r.Lock
	if lock == nil {
		lock = distlock.NoopLock{}
	}

	runID := uuid.NewString()
	logger.SetFields("run_id", runID)
	defer logger.SetFields()

	var out *Outcome
	err := distlock.Guard(ctx, lock, func(ctx context.Context) error {
		var err error
		out, err = r.run(ctx, runID, args)
		return err
	})
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		return nil, err
	}

	if r.Notifier != nil {
		s := notify.Summary{RunID: out.RunID, Result: out.Result, Artifacts: out.Artifacts}
		if err := r.Notifier.Notify(ctx, s); err != nil {
			// artifacts are already written; a lost email does not fail the run
			logger.Warn("run summary not sent", "error", err)
		}
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, runID string, args []SourceArg) (*Outcome, error) {
	start := time.Now()

	sources, closeAll, err := r.openSources(ctx, args)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	pipeline := r.Pipeline
	if pipeline == nil {
		pipeline = claimnorm.NewPipeline(nil)
	}
	res, err := pipeline.Run(ctx, sources)
	if err != nil {
		return nil, err
	}

	artifacts, err := report.Artifacts(res, r.Names)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Write(ctx, artifacts); err != nil {
		return nil, fmt.Errorf("write artifacts: %w", err)
	}

	locations := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		locations = append(locations, r.Store.Location(a.Name))
	}
	logger.Info("artifacts written", "candidates", locations[0], "metrics", locations[1], "flagged", len(res.Candidates))

	if r.Echo != nil {
		if _, err := r.Echo.Write(artifacts[0].Body); err != nil {
			logger.Warn("echo candidates failed", "error", err)
		}
	}

	return &Outcome{
		RunID:     runID,
		Result:    res,
		Artifacts: locations,
		Elapsed:   time.Since(start),
	}, nil
}

// openSources opens every input up front so a missing file aborts the
// run before any record is classified.
func (r *Runner) openSources(ctx context.Context, args []SourceArg) ([]claimnorm.Source, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	sources := make([]claimnorm.Source, 0, len(args))
	for _, a := range args {
		rc, err := r.Opener.Open(ctx, a.Location)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, rc)

		stream, err := claimnorm.NewRecordStream(a.System, rc)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sources = append(sources, claimnorm.Source{
			System:  a.System,
			Name:    a.Location.String(),
			Records: stream,
		})
	}
	return sources, closeAll, nil
}
