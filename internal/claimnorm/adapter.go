package claimnorm

// RecordStream is a finite, single-pass producer of decoded records.
// Next returns io.EOF once the source is exhausted. Re-reading requires
// decoding the source again.
type RecordStream interface {
	Next() (RawRecord, error)
}

// Adapter turns raw records of one source shape into normalized claims.
type Adapter struct {
	mapping *SourceMapping
}

// NewAdapter returns the adapter for a source system.
func NewAdapter(src SourceSystem) (*Adapter, error) {
	m, err := MappingFor(src)
	if err != nil {
		return nil, err
	}
	return &Adapter{mapping: m}, nil
}

// Source returns the source system this adapter handles.
func (a *Adapter) Source() SourceSystem { return a.mapping.Source }

// Adapt normalizes a single raw record. A record without a claim id or
// status, or with an unparseable date, comes back malformed.
func (a *Adapter) Adapt(raw RawRecord) AdaptedRecord {
	out := AdaptedRecord{Source: a.mapping.Source}
	get := func(f CanonicalField) (string, bool) {
		return raw.Lookup(a.mapping.RawName(f))
	}

	rawID, _ := get(FieldClaimID)
	claimID := normalizeText(rawID)
	if claimID == "" {
		out.Cause = "missing " + a.mapping.RawName(FieldClaimID)
		return out
	}
	status := normalizeStatus(get(FieldStatus))
	if status == "" {
		out.Cause = "missing " + a.mapping.RawName(FieldStatus)
		return out
	}

	rawDate, ok := get(FieldSubmittedAt)
	submittedAt, _, err := parseSubmittedAt(rawDate, ok, a.mapping.DateLayout)
	if err != nil {
		out.Cause = "unparseable " + a.mapping.RawName(FieldSubmittedAt) + " " + quote(rawDate)
		return out
	}

	out.Claim = &NormalizedClaim{
		ClaimID:       claimID,
		PatientID:     normalizeOptional(get(FieldPatientID)),
		ProcedureCode: normalizeOptional(get(FieldProcedureCode)),
		DenialReason:  normalizeDenialReason(get(FieldDenialReason)),
		SubmittedAt:   submittedAt,
		Status:        status,
		SourceSystem:  a.mapping.Source,
	}
	return out
}

// Stream wraps a record stream so each Next yields an adapted record.
func (a *Adapter) Stream(records RecordStream) *AdaptedStream {
	return &AdaptedStream{adapter: a, records: records}
}

// AdaptedStream lazily adapts records from an underlying RecordStream.
type AdaptedStream struct {
	adapter *Adapter
	records RecordStream
}

// Next returns the next adapted record, or io.EOF when the source is done.
// Decode errors from the underlying stream are returned unchanged.
func (s *AdaptedStream) Next() (AdaptedRecord, error) {
	raw, err := s.records.Next()
	if err != nil {
		return AdaptedRecord{}, err
	}
	return s.adapter.Adapt(raw), nil
}

const maxQuoted = 40

func quote(s string) string {
	if r := []rune(s); len(r) > maxQuoted {
		s = string(r[:maxQuoted]) + "..."
	}
	return "\"" + s + "\""
}
