// Package report renders a pipeline result into its two artifacts.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/storage"
)

// Names are the artifact file names.
type Names struct {
	Candidates string
	Metrics    string
}

// DefaultNames match the file names downstream billing tooling expects.
var DefaultNames = Names{
	Candidates: "resubmission_candidates.json",
	Metrics:    "pipeline_metrics.log",
}

// CandidatesJSON renders the candidate list as a two-space indented JSON
// array. An empty list renders as [].
func CandidatesJSON(candidates []claimnorm.Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []claimnorm.Candidate{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(candidates); err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}
	return buf.Bytes(), nil
}

// MetricsText renders the audit summary.
func MetricsText(m *claimnorm.Metrics) []byte {
	if m == nil {
		m = claimnorm.NewMetrics()
	}
	return []byte(m.Render())
}

// Artifacts renders both artifacts in memory, candidates first.
func Artifacts(res *claimnorm.Result, names Names) ([]storage.Artifact, error) {
	if res == nil {
		return nil, fmt.Errorf("no result to report")
	}
	if names.Candidates == "" {
		names.Candidates = DefaultNames.Candidates
	}
	if names.Metrics == "" {
		names.Metrics = DefaultNames.Metrics
	}
	candidates, err := CandidatesJSON(res.Candidates)
	if err != nil {
		return nil, err
	}
	return []storage.Artifact{
		{Name: names.Candidates, Body: candidates, ContentType: "application/json"},
		{Name: names.Metrics, Body: MetricsText(res.Metrics), ContentType: "text/plain; charset=utf-8"},
	}, nil
}
