package analysis

import (
	"encoding/json"
	"time"
)

// ResultID identifier type
type ResultID string

// Type enum; values are part of the persisted contract.
type Type string

const (
	TypeExtraction Type = "EXTRACTION"
	TypeCrossCheck Type = "CROSS_CHECK"
	TypeAudit      Type = "AUDIT"
)

// Result is one AI invocation, append-only. The most recent EXTRACTION
// row for a document doubles as its extraction cache entry.
type Result struct {
	ID         ResultID        `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ShipmentID string          `json:"shipment_id"`
	DocumentID string          `json:"document_id,omitempty"` // empty for shipment-wide rows
	Type       Type            `json:"type"`
	RawText    string          `json:"raw_text"`
	Structured json.RawMessage `json:"structured,omitempty"` // nil when parsing failed
	Model      string          `json:"model"`
	TokensUsed int             `json:"tokens_used"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExtractionOutput is what one document contributes to the audit prompt.
type ExtractionOutput struct {
	DocumentID   string          `json:"document_id"`
	DocumentType string          `json:"document_type"`
	FileName     string          `json:"file_name"`
	Extracted    json.RawMessage `json:"extracted,omitempty"`
	RawText      string          `json:"raw_text,omitempty"`
	Cached       bool            `json:"cached"`
	TokensUsed   int             `json:"tokens_used"`
}

// Content returns the structured payload when present, else the raw text.
func (e ExtractionOutput) Content() string {
	if len(e.Extracted) > 0 {
		return string(e.Extracted)
	}
	return e.RawText
}
