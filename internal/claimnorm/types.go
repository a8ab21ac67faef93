package claimnorm

import (
	"fmt"
	"time"
)

// SourceSystem identifies the EMR a claim record came from.
type SourceSystem string

const (
	SourceAlpha SourceSystem = "alpha"
	SourceBeta  SourceSystem = "beta"
)

// Sources lists every known source system in report order.
var Sources = []SourceSystem{SourceAlpha, SourceBeta}

// ParseSourceSystem maps a source-type indicator to a SourceSystem.
func ParseSourceSystem(s string) (SourceSystem, error) {
	switch SourceSystem(s) {
	case SourceAlpha, SourceBeta:
		return SourceSystem(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// ExclusionReason is the category assigned to a claim that is not resubmitted.
type ExclusionReason string

const (
	ExcludedNotDenied      ExclusionReason = "not_denied"
	ExcludedPatientMissing ExclusionReason = "patient_missing"
	ExcludedTooRecent      ExclusionReason = "too_recent"
	ExcludedNonRetryable   ExclusionReason = "non_retryable_or_ambiguous"
	ExcludedMalformed      ExclusionReason = "malformed"
)

// ExclusionReasons lists every exclusion reason in decision-chain order.
// The metrics summary prints them in this order.
var ExclusionReasons = []ExclusionReason{
	ExcludedNotDenied,
	ExcludedPatientMissing,
	ExcludedTooRecent,
	ExcludedNonRetryable,
	ExcludedMalformed,
}

// NormalizedClaim is the canonical claim shape shared by every source.
// Optional fields are empty strings (or a zero SubmittedAt) when absent.
type NormalizedClaim struct {
	ClaimID       string
	PatientID     string
	ProcedureCode string
	DenialReason  string
	SubmittedAt   time.Time
	Status        string
	SourceSystem  SourceSystem
}

// HasPatient reports whether a patient identifier was recovered.
func (c *NormalizedClaim) HasPatient() bool { return c.PatientID != "" }

// HasSubmittedAt reports whether a submission date was recovered.
func (c *NormalizedClaim) HasSubmittedAt() bool { return !c.SubmittedAt.IsZero() }

// AdaptedRecord is the output of a source adapter for one raw record.
// Claim is nil when the record is malformed; Cause then says why.
type AdaptedRecord struct {
	Claim  *NormalizedClaim
	Source SourceSystem
	Cause  string
}

// Malformed reports whether the record could not become a NormalizedClaim.
func (r AdaptedRecord) Malformed() bool { return r.Claim == nil }

// Outcome is the classification of one record: either eligible for
// resubmission, or excluded for exactly one reason.
type Outcome struct {
	Eligible           bool
	ResubmissionReason string
	RecommendedChanges string
	Exclusion          ExclusionReason
}

func eligible(label, remediation string) Outcome {
	return Outcome{Eligible: true, ResubmissionReason: label, RecommendedChanges: remediation}
}

func excluded(reason ExclusionReason) Outcome {
	return Outcome{Exclusion: reason}
}

func (o Outcome) String() string {
	if o.Eligible {
		return "eligible(" + o.ResubmissionReason + ")"
	}
	return "excluded(" + string(o.Exclusion) + ")"
}

// Candidate is one entry of the resubmission candidate list.
type Candidate struct {
	ClaimID            string       `json:"claim_id"`
	ResubmissionReason string       `json:"resubmission_reason"`
	SourceSystem       SourceSystem `json:"source_system"`
	RecommendedChanges string       `json:"recommended_changes"`
}
