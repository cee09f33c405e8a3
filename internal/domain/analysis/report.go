package analysis

// Audit status enum; values are the persisted/wire contract and must not change.
const (
	AuditStatusPass    = "PASS"
	AuditStatusWarning = "WARNING"
	AuditStatusFail    = "FAIL"
	AuditStatusUnknown = "UNKNOWN" // reply could not be parsed
)

// Risk level enum
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Cross-check comparison status enum
const (
	CompareMatch           = "MATCH"
	CompareMismatch        = "MISMATCH"
	CompareWithinTolerance = "WITHIN_TOLERANCE"
)

// DocumentCheck is the per-document entry inside an audit report.
type DocumentCheck struct {
	DocumentType string   `json:"document_type"`
	FileName     string   `json:"file_name,omitempty"`
	Status       string   `json:"status"`
	Issues       []string `json:"issues,omitempty"`
}

// FieldComparison is one cross-field consistency result.
type FieldComparison struct {
	Field   string            `json:"field"`
	Status  string            `json:"status"` // MATCH | MISMATCH | WITHIN_TOLERANCE
	Values  map[string]string `json:"values,omitempty"`
	Details string            `json:"details,omitempty"`
}

// AuditReport is the structured object the model must emit. It is stored
// inside Result.Structured, never as its own row.
type AuditReport struct {
	AuditStatus        string            `json:"audit_status"`
	RiskLevel          string            `json:"risk_level"`
	DocumentsChecked   []DocumentCheck   `json:"documents_checked"`
	MissingDocuments   []string          `json:"missing_documents"`
	CrossCheckResults  []FieldComparison `json:"cross_check_results"`
	Errors             []string          `json:"errors"`
	Warnings           []string          `json:"warnings"`
	Summary            string            `json:"summary"`
	RecommendedActions []string          `json:"recommended_actions"`
}

// ValidStatus reports whether the model used a known audit_status value.
func (r *AuditReport) ValidStatus() bool {
	switch r.AuditStatus {
	case AuditStatusPass, AuditStatusWarning, AuditStatusFail:
		return true
	}
	return false
}
