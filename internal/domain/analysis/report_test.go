package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An audit report written into a Result row and read back must reproduce
// the same object, nested arrays included.
func TestAuditReportRoundTripThroughResult(t *testing.T) {
	report := AuditReport{
		AuditStatus: AuditStatusFail,
		RiskLevel:   RiskHigh,
		DocumentsChecked: []DocumentCheck{
			{DocumentType: "commercial_invoice", FileName: "inv.pdf", Status: "issues_found", Issues: []string{"line totals do not sum"}},
			{DocumentType: "packing_list", FileName: "pl.pdf", Status: "ok"},
		},
		MissingDocuments: []string{"phytosanitary_certificate"},
		CrossCheckResults: []FieldComparison{
			{Field: "Gross weight", Status: CompareMismatch, Values: map[string]string{"commercial_invoice": "1000", "packing_list": "1050"}, Details: "5% over the 2% tolerance"},
			{Field: "Consignee", Status: CompareMatch},
		},
		Errors:             []string{"invoice arithmetic error"},
		Warnings:           []string{},
		Summary:            "package not releasable",
		RecommendedActions: []string{"correct invoice", "obtain phytosanitary certificate"},
	}

	structured, err := json.Marshal(&report)
	require.NoError(t, err)

	row := Result{
		ID:         "a-1",
		TenantID:   "acme",
		ShipmentID: "shp-1",
		Type:       TypeAudit,
		RawText:    "full reply",
		Structured: structured,
		Model:      "gpt-4o-mini",
		TokensUsed: 1234,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	encoded, err := json.Marshal(&row)
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(encoded, &back))

	var got AuditReport
	require.NoError(t, json.Unmarshal(back.Structured, &got))
	assert.Equal(t, report, got)
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{AuditStatusPass, AuditStatusWarning, AuditStatusFail} {
		assert.True(t, (&AuditReport{AuditStatus: s}).ValidStatus(), s)
	}
	assert.False(t, (&AuditReport{AuditStatus: AuditStatusUnknown}).ValidStatus())
	assert.False(t, (&AuditReport{AuditStatus: "pass"}).ValidStatus())
}

func TestExtractionOutputContent(t *testing.T) {
	withStructured := ExtractionOutput{Extracted: json.RawMessage(`{"a":1}`), RawText: "prose"}
	assert.Equal(t, `{"a":1}`, withStructured.Content())

	rawOnly := ExtractionOutput{RawText: "prose only"}
	assert.Equal(t, "prose only", rawOnly.Content())
}
