package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/config"
	"github.com/ignite/claims-pipeline/internal/notify"
	"github.com/ignite/claims-pipeline/internal/pkg/distlock"
	"github.com/ignite/claims-pipeline/internal/report"
	"github.com/ignite/claims-pipeline/internal/storage"
)

// NewClassifier applies the eligibility section to the default rules.
func NewClassifier(cfg config.EligibilityConfig) *claimnorm.Classifier {
	extra := make([]claimnorm.RetryableReason, 0, len(cfg.RetryableReasons))
	for _, r := range cfg.RetryableReasons {
		extra = append(extra, claimnorm.RetryableReason{
			Keyword:     r.Keyword,
			Label:       r.Label,
			Remediation: r.Remediation,
		})
	}
	return claimnorm.NewClassifier(
		claimnorm.WithExtraReasons(extra...),
		claimnorm.WithMinAgeDays(cfg.MinAgeDays),
	)
}

// NewPipeline builds the pipeline, pinning the reference date when the
// config names one.
func NewPipeline(cfg config.EligibilityConfig) (*claimnorm.Pipeline, error) {
	var opts []claimnorm.PipelineOption
	asOf, ok, err := cfg.AsOfDate()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, claimnorm.WithAsOf(asOf))
	}
	return claimnorm.NewPipeline(NewClassifier(cfg), opts...), nil
}

// NewStore returns the artifact store named by the output section.
func NewStore(ctx context.Context, cfg config.OutputConfig) (storage.ArtifactStore, error) {
	switch cfg.Type {
	case "", "local":
		return storage.NewLocalStore(cfg.LocalPath)
	case "s3":
		client, err := storage.NewS3Client(ctx, storage.AWSOptions{Region: cfg.AWSRegion, Profile: cfg.GetAWSProfile()})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	}
	return nil, fmt.Errorf("output.type: unknown value %q", cfg.Type)
}

// FromConfig wires a Runner from configuration. The returned cleanup
// closes lock backends and is never nil.
func FromConfig(ctx context.Context, cfg *config.Config) (*Runner, func(), error) {
	pipeline, err := NewPipeline(cfg.Eligibility)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewStore(ctx, cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	r := &Runner{
		Pipeline: pipeline,
		Opener:   storage.NewOpener(storage.AWSOptions{Region: cfg.Sources.AWSRegion, Profile: cfg.Sources.GetAWSProfile()}),
		Store:    store,
		Names:    report.Names{Candidates: cfg.Output.CandidatesFile, Metrics: cfg.Output.MetricsFile},
	}

	cleanup := func() {}
	if cfg.Lock.Enabled {
		lock, closeLock, err := distlock.Open(distlock.Options{
			Key:         cfg.Lock.Key,
			RedisURL:    cfg.Lock.RedisURL,
			DatabaseURL: cfg.Lock.DatabaseURL,
			TTL:         cfg.Lock.TTL(),
		})
		if err != nil {
			return nil, nil, err
		}
		r.Lock = lock
		cleanup = func() { _ = closeLock() }
	}

	if cfg.Notify.Enabled {
		nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		n, err := notify.NewSESNotifier(nctx, notify.SESOptions{
			Region:    cfg.Notify.Region,
			AccessKey: cfg.Notify.AccessKey,
			SecretKey: cfg.Notify.SecretKey,
			From:      cfg.Notify.From,
			To:        cfg.Notify.To,
			Subject:   cfg.Notify.Subject,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		r.Notifier = n
	}
	return r, cleanup, nil
}
