package prompt

import (
	"fmt"
	"strings"

	"github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
)

// CrossCheckSystemPrompt compares extracted documents pairwise without the
// holistic completeness/date rule set of the full audit.
func CrossCheckSystemPrompt() string {
	return `You are an export-documentation auditor. Compare the extracted documents below field by field: shipper, consignee, goods description, quantities, net and gross weights (±2% tolerance band is WITHIN_TOLERANCE, beyond 2% is MISMATCH), monetary totals, container and seal numbers, ports, country of origin, incoterm, HS code. Do not judge document completeness or date ordering.

Respond with exactly one fenced code block tagged json:

` + "```json" + `
{
  "cross_check_results": [{"field": "", "status": "MATCH|MISMATCH|WITHIN_TOLERANCE", "values": {}, "details": ""}],
  "errors": [],
  "warnings": [],
  "summary": ""
}
` + "```"
}

// CrossCheckUserMessage lists every extraction output for comparison.
func CrossCheckUserMessage(extractions []analysis.ExtractionOutput) string {
	var b strings.Builder
	b.WriteString("EXTRACTED DOCUMENTS\n")
	for i, e := range extractions {
		fmt.Fprintf(&b, "\n--- document %d: type=%s file=%s ---\n%s\n", i+1, e.DocumentType, e.FileName, e.Content())
	}
	return b.String()
}
