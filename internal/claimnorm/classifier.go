package claimnorm

import (
	"strings"
	"time"
)

// DefaultMinAgeDays is how long a denial must sit before it may be resubmitted.
const DefaultMinAgeDays = 7

// RetryableReason maps a denial keyword to the label and remediation used
// for resubmission.
type RetryableReason struct {
	Keyword     string
	Label       string
	Remediation string
}

// DefaultRetryableReasons is checked in order; the first keyword contained
// in the denial reason wins.
var DefaultRetryableReasons = []RetryableReason{
	{Keyword: "missing modifier", Label: "missing modifier", Remediation: "Add correct CPT modifier, resubmit"},
	{Keyword: "incorrect npi", Label: "incorrect NPI", Remediation: "Correct provider NPI and resubmit"},
	{Keyword: "prior auth", Label: "prior auth required", Remediation: "Obtain prior authorization, resubmit"},
	{Keyword: "incorrect procedure", Label: "incorrect procedure", Remediation: "Verify CPT/HCPCS code mapping, correct if needed and resubmit"},
	{Keyword: "form incomplete", Label: "form incomplete", Remediation: "Fill missing fields and resubmit"},
	{Keyword: "not billable", Label: "not billable", Remediation: "Confirm coverage/payer policy; update claim or appeal"},
}

// Classifier decides whether a normalized claim qualifies for resubmission.
// It holds no per-claim state and is safe to share.
type Classifier struct {
	reasons    []RetryableReason
	minAgeDays int
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithExtraReasons appends reasons after the defaults. Keywords are
// normalized the same way denial reasons are.
func WithExtraReasons(extra ...RetryableReason) ClassifierOption {
	return func(c *Classifier) {
		for _, r := range extra {
			r.Keyword = lower(strings.Join(strings.Fields(r.Keyword), " "))
			if r.Keyword == "" {
				continue
			}
			if r.Label == "" {
				r.Label = r.Keyword
			}
			c.reasons = append(c.reasons, r)
		}
	}
}

// WithMinAgeDays overrides the too-recent window. Non-positive values are ignored.
func WithMinAgeDays(days int) ClassifierOption {
	return func(c *Classifier) {
		if days > 0 {
			c.minAgeDays = days
		}
	}
}

// NewClassifier builds a classifier over the default reason table.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		reasons:    append([]RetryableReason(nil), DefaultRetryableReasons...),
		minAgeDays: DefaultMinAgeDays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reasons returns the reason table in match order.
func (c *Classifier) Reasons() []RetryableReason {
	return append([]RetryableReason(nil), c.reasons...)
}

// Classify runs the decision chain. A nil claim is a record that was
// malformed upstream. asOf is the run's reference date.
func (c *Classifier) Classify(claim *NormalizedClaim, asOf time.Time) Outcome {
	if claim == nil {
		return excluded(ExcludedMalformed)
	}
	if claim.Status != "denied" {
		return excluded(ExcludedNotDenied)
	}
	if !claim.HasPatient() {
		return excluded(ExcludedPatientMissing)
	}
	if !claim.HasSubmittedAt() || DaysBetween(claim.SubmittedAt, asOf) < c.minAgeDays {
		return excluded(ExcludedTooRecent)
	}
	reason, ok := c.match(claim.DenialReason)
	if !ok {
		return excluded(ExcludedNonRetryable)
	}
	return eligible(reason.Label, reason.Remediation)
}

// ClassifyRecord classifies an adapter result.
func (c *Classifier) ClassifyRecord(rec AdaptedRecord, asOf time.Time) Outcome {
	return c.Classify(rec.Claim, asOf)
}

func (c *Classifier) match(denial string) (RetryableReason, bool) {
	if denial == "" {
		return RetryableReason{}, false
	}
	d := lower(denial)
	for _, r := range c.reasons {
		if strings.Contains(d, r.Keyword) {
			return r, true
		}
	}
	return RetryableReason{}, false
}
