package claimnorm

import (
	"fmt"
	"strings"

	"github.com/ignite/claims-pipeline/internal/pkg/logger"
)

// Metrics tallies classification outcomes for one pipeline run.
// It is not safe for concurrent use; the pipeline is its only writer.
type Metrics struct {
	TotalProcessed         int
	BySource               map[SourceSystem]int
	FlaggedForResubmission int
	ExcludedByReason       map[ExclusionReason]int
}

// NewMetrics returns a zeroed accumulator with every source and every
// exclusion reason pre-seeded.
func NewMetrics() *Metrics {
	m := &Metrics{
		BySource:         make(map[SourceSystem]int, len(Sources)),
		ExcludedByReason: make(map[ExclusionReason]int, len(ExclusionReasons)),
	}
	for _, s := range Sources {
		m.BySource[s] = 0
	}
	for _, r := range ExclusionReasons {
		m.ExcludedByReason[r] = 0
	}
	return m
}

// Record counts one classified record. An exclusion reason outside the
// known set is counted as malformed so the totals stay balanced.
func (m *Metrics) Record(o Outcome, src SourceSystem) {
	m.TotalProcessed++
	m.BySource[src]++
	if o.Eligible {
		m.FlaggedForResubmission++
		return
	}
	reason := o.Exclusion
	if _, ok := m.ExcludedByReason[reason]; !ok {
		logger.Warn("unknown exclusion reason counted as malformed", "reason", reason, "source", src)
		reason = ExcludedMalformed
	}
	m.ExcludedByReason[reason]++
}

// TotalExcluded sums every exclusion bucket.
func (m *Metrics) TotalExcluded() int {
	n := 0
	for _, c := range m.ExcludedByReason {
		n += c
	}
	return n
}

// Render produces the fixed-format audit summary.
func (m *Metrics) Render() string {
	var b strings.Builder
	b.WriteString("===== Pipeline Metrics Summary =====\n")
	fmt.Fprintf(&b, "Total processed: %d\n", m.TotalProcessed)

	parts := make([]string, 0, len(m.BySource))
	for _, s := range Sources {
		parts = append(parts, fmt.Sprintf("%s: %d", s, m.BySource[s]))
	}
	fmt.Fprintf(&b, "By source: {%s}\n", strings.Join(parts, ", "))

	fmt.Fprintf(&b, "Flagged for resubmission: %d\n", m.FlaggedForResubmission)
	b.WriteString("Excluded by reason:\n")
	for _, r := range ExclusionReasons {
		fmt.Fprintf(&b, "  - %s: %d\n", r, m.ExcludedByReason[r])
	}
	return b.String()
}
