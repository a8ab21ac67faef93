package report

import (
	"testing"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesJSON(t *testing.T) {
	out, err := CandidatesJSON([]claimnorm.Candidate{{
		ClaimID:            "A123",
		ResubmissionReason: "missing modifier",
		SourceSystem:       claimnorm.SourceAlpha,
		RecommendedChanges: "Confirm coverage/payer policy; update claim & appeal",
	}})
	require.NoError(t, err)

	want := `[
  {
    "claim_id": "A123",
    "resubmission_reason": "missing modifier",
    "source_system": "alpha",
    "recommended_changes": "Confirm coverage/payer policy; update claim & appeal"
  }
]
`
	assert.Equal(t, want, string(out))
}

func TestCandidatesJSON_Empty(t *testing.T) {
	out, err := CandidatesJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out))
}

func TestArtifacts(t *testing.T) {
	m := claimnorm.NewMetrics()
	res := &claimnorm.Result{Candidates: []claimnorm.Candidate{}, Metrics: m}

	arts, err := Artifacts(res, Names{Metrics: "audit.log"})
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "resubmission_candidates.json", arts[0].Name)
	assert.Equal(t, "[]\n", string(arts[0].Body))
	assert.Equal(t, "audit.log", arts[1].Name)
	assert.Equal(t, m.Render(), string(arts[1].Body))

	_, err = Artifacts(nil, DefaultNames)
	assert.Error(t, err)
}
