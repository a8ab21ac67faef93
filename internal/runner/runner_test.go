package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/config"
	"github.com/ignite/claims-pipeline/internal/notify"
	"github.com/ignite/claims-pipeline/internal/pkg/distlock"
	"github.com/ignite/claims-pipeline/internal/storage"
)

const alphaCSV = `claim_id,patient_id,procedure_code,denial_reason,submitted_at,status
A123,P001,99213,Missing modifier,2025-07-01,denied
A124,P002,99214,Incorrect NPI,2025-06-30,denied
A125,,99215,Authorization expired,2025-07-18,denied
A126,P003,99381,None,2025-07-15,approved
`

const betaJSON = `[
  {"id": "B987", "member": "P010", "code": "99213", "error_msg": "Prior auth required", "date": "2025-07-03T08:15:00", "status": "denied"},
  {"member": "P011", "code": "99214", "error_msg": "Missing modifier", "date": "2025-07-09T00:00:00", "status": "denied"}
]`

func writeInputs(t *testing.T) (string, []SourceArg) {
	t.Helper()
	dir := t.TempDir()
	alpha := filepath.Join(dir, "emr_alpha.csv")
	beta := filepath.Join(dir, "emr_beta.json")
	require.NoError(t, os.WriteFile(alpha, []byte(alphaCSV), 0644))
	require.NoError(t, os.WriteFile(beta, []byte(betaJSON), 0644))
	args, err := ParseSourceArgs([]string{alpha, "beta=" + beta})
	require.NoError(t, err)
	return dir, args
}

type recordingNotifier struct {
	got []notify.Summary
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, s notify.Summary) error {
	n.got = append(n.got, s)
	return n.err
}

func newTestRunner(t *testing.T, outDir string) *Runner {
	t.Helper()
	store, err := storage.NewLocalStore(outDir)
	require.NoError(t, err)
	return &Runner{
		Pipeline: claimnorm.NewPipeline(nil, claimnorm.WithAsOf(time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC))),
		Opener:   storage.NewOpener(storage.AWSOptions{}),
		Store:    store,
	}
}

func TestRunner_Run(t *testing.T) {
	_, args := writeInputs(t)
	outDir := filepath.Join(t.TempDir(), "out")
	r := newTestRunner(t, outDir)
	n := &recordingNotifier{err: errors.New("ses down")}
	r.Notifier = n
	var echo bytes.Buffer
	r.Echo = &echo

	out, err := r.Run(context.Background(), args)
	require.NoError(t, err)
	assert.NotEmpty(t, out.RunID)
	assert.Len(t, out.Artifacts, 2)

	candidates, err := os.ReadFile(filepath.Join(outDir, "resubmission_candidates.json"))
	require.NoError(t, err)
	assert.Contains(t, string(candidates), `"claim_id": "A123"`)
	assert.Contains(t, string(candidates), `"claim_id": "B987"`)
	assert.Equal(t, string(candidates), echo.String())

	metrics, err := os.ReadFile(filepath.Join(outDir, "pipeline_metrics.log"))
	require.NoError(t, err)
	assert.Equal(t, "===== Pipeline Metrics Summary =====\n"+
		"Total processed: 6\n"+
		"By source: {alpha: 4, beta: 2}\n"+
		"Flagged for resubmission: 3\n"+
		"Excluded by reason:\n"+
		"  - not_denied: 1\n"+
		"  - patient_missing: 1\n"+
		"  - too_recent: 0\n"+
		"  - non_retryable_or_ambiguous: 0\n"+
		"  - malformed: 1\n", string(metrics))

	// notification failures are logged, not fatal
	require.Len(t, n.got, 1)
	assert.Equal(t, out.RunID, n.got[0].RunID)
}

func TestRunner_Idempotent(t *testing.T) {
	_, args := writeInputs(t)
	outDir := t.TempDir()
	r := newTestRunner(t, outDir)

	_, err := r.Run(context.Background(), args)
	require.NoError(t, err)
	first, _ := os.ReadFile(filepath.Join(outDir, "resubmission_candidates.json"))
	firstMetrics, _ := os.ReadFile(filepath.Join(outDir, "pipeline_metrics.log"))

	_, err = r.Run(context.Background(), args)
	require.NoError(t, err)
	second, _ := os.ReadFile(filepath.Join(outDir, "resubmission_candidates.json"))
	secondMetrics, _ := os.ReadFile(filepath.Join(outDir, "pipeline_metrics.log"))

	assert.Equal(t, first, second)
	assert.Equal(t, firstMetrics, secondMetrics)
}

func TestRunner_MissingSourceWritesNothing(t *testing.T) {
	dir, args := writeInputs(t)
	args = append(args, SourceArg{System: claimnorm.SourceAlpha, Location: storage.Location{Path: filepath.Join(dir, "missing.csv")}})
	outDir := filepath.Join(t.TempDir(), "out")
	r := newTestRunner(t, outDir)

	_, err := r.Run(context.Background(), args)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entries, _ := os.ReadDir(outDir)
	assert.Empty(t, entries)
}

func TestRunner_UndecodableSourceWritesNothing(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "emr_beta.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": "B1"}`), 0644))
	outDir := filepath.Join(t.TempDir(), "out")
	r := newTestRunner(t, outDir)

	_, err := r.Run(context.Background(), []SourceArg{{System: claimnorm.SourceBeta, Location: storage.Location{Path: bad}}})
	assert.Error(t, err)

	entries, _ := os.ReadDir(outDir)
	assert.Empty(t, entries)
}

func TestRunner_LockHeld(t *testing.T) {
	_, args := writeInputs(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	holder := distlock.NewRedisLock(client, "claims", time.Minute)
	ok, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	r := newTestRunner(t, t.TempDir())
	r.Lock = distlock.NewRedisLock(client, "claims", time.Minute)
	_, err = r.Run(context.Background(), args)
	assert.ErrorIs(t, err, distlock.ErrHeld)
}

func TestRunner_NoSources(t *testing.T) {
	_, err := newTestRunner(t, t.TempDir()).Run(context.Background(), nil)
	assert.ErrorIs(t, err, claimnorm.ErrNoSources)
}

func TestParseSourceArg(t *testing.T) {
	tests := []struct {
		in     string
		system claimnorm.SourceSystem
		loc    string
	}{
		{"data/emr_alpha.csv", claimnorm.SourceAlpha, "data/emr_alpha.csv"},
		{"data/emr_beta.JSON", claimnorm.SourceBeta, "data/emr_beta.JSON"},
		{"beta=exports/today.txt", claimnorm.SourceBeta, "exports/today.txt"},
		{"ALPHA=s3://claims-raw/alpha.dat", claimnorm.SourceAlpha, "s3://claims-raw/alpha.dat"},
		{"data/run=1/emr_alpha.csv", claimnorm.SourceAlpha, "data/run=1/emr_alpha.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceArg(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.system, got.System)
			assert.Equal(t, tt.loc, got.Location.String())
		})
	}

	for _, bad := range []string{"gamma=x.csv", "data/emr.xml", "alpha="} {
		_, err := ParseSourceArg(bad)
		assert.Error(t, err, bad)
	}
	_, err := ParseSourceArg("claims.parquet")
	assert.ErrorIs(t, err, claimnorm.ErrUnknownSource)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Output.LocalPath = t.TempDir()
	cfg.Eligibility.AsOf = "2025-07-30"
	cfg.Eligibility.RetryableReasons = []config.RetryableReason{{Keyword: "timely filing"}}

	r, cleanup, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, r.Lock)
	assert.Nil(t, r.Notifier)
	assert.Equal(t, time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC), r.Pipeline.AsOf())
	assert.IsType(t, &storage.LocalStore{}, r.Store)

	cfg.Eligibility.AsOf = "tomorrow"
	_, _, err = FromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewClassifier_FromConfig(t *testing.T) {
	c := NewClassifier(config.EligibilityConfig{
		MinAgeDays:       3,
		RetryableReasons: []config.RetryableReason{{Keyword: "Timely Filing", Remediation: "Attach proof"}},
	})
	claim := &claimnorm.NormalizedClaim{
		ClaimID: "A1", PatientID: "P1", Status: "denied",
		DenialReason: "late: timely filing", SubmittedAt: time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC),
	}
	got := c.Classify(claim, time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC))
	assert.True(t, got.Eligible)
	assert.Equal(t, "timely filing", got.ResubmissionReason)
	assert.Equal(t, "Attach proof", got.RecommendedChanges)
}
