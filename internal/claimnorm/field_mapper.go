package claimnorm

// CanonicalField is a normalized claim field name used across all sources.
type CanonicalField string

const (
	FieldClaimID       CanonicalField = "claim_id"
	FieldPatientID     CanonicalField = "patient_id"
	FieldProcedureCode CanonicalField = "procedure_code"
	FieldDenialReason  CanonicalField = "denial_reason"
	FieldSubmittedAt   CanonicalField = "submitted_at"
	FieldStatus        CanonicalField = "status"
)

// Date layouts accepted by each source. Parsing is strict: anything else
// makes the record malformed.
const (
	alphaDateLayout = "2006-01-02"
	betaDateLayout  = "2006-01-02T15:04:05"
)

// SourceMapping describes how one source shape maps onto the canonical claim.
type SourceMapping struct {
	Source     SourceSystem
	Fields     map[CanonicalField]string // canonical field -> raw field name
	DateLayout string
}

// RawName returns the source field name that feeds a canonical field.
func (m *SourceMapping) RawName(f CanonicalField) string {
	if name, ok := m.Fields[f]; ok {
		return name
	}
	return string(f)
}

// alphaMapping: tabular export, headers already use canonical names.
var alphaMapping = SourceMapping{
	Source: SourceAlpha,
	Fields: map[CanonicalField]string{
		FieldClaimID:       "claim_id",
		FieldPatientID:     "patient_id",
		FieldProcedureCode: "procedure_code",
		FieldDenialReason:  "denial_reason",
		FieldSubmittedAt:   "submitted_at",
		FieldStatus:        "status",
	},
	DateLayout: alphaDateLayout,
}

// betaMapping: JSON export with its own short field names.
var betaMapping = SourceMapping{
	Source: SourceBeta,
	Fields: map[CanonicalField]string{
		FieldClaimID:       "id",
		FieldPatientID:     "member",
		FieldProcedureCode: "code",
		FieldDenialReason:  "error_msg",
		FieldSubmittedAt:   "date",
		FieldStatus:        "status",
	},
	DateLayout: betaDateLayout,
}

// MappingFor returns the field mapping for a source system.
func MappingFor(src SourceSystem) (*SourceMapping, error) {
	switch src {
	case SourceAlpha:
		return &alphaMapping, nil
	case SourceBeta:
		return &betaMapping, nil
	}
	_, err := ParseSourceSystem(string(src))
	return nil, err
}
