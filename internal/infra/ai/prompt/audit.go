package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
)

// AuditSystemPrompt is the full rule set applied to a shipment's document
// package. The rules are encoded as natural-language instructions; the code
// performs no semantic validation itself.
func AuditSystemPrompt() string {
	return `You are a senior export-documentation auditor for international trade shipments, specializing in fresh fruit exports. Audit the document package below against every rule. Be strict: an issue you cannot rule out is a warning, an issue you can demonstrate is an error.

RULE 1 — DOCUMENT COMPLETENESS
A sea or air export shipment requires at minimum: commercial_invoice, packing_list, bill_of_lading (or air waybill). Fresh fruit exports additionally require: phytosanitary_certificate, certificate_of_origin, and fumigation certificate where the destination mandates it. List every required type that is absent in missing_documents.

RULE 2 — CROSS-FIELD CONSISTENCY
Compare these fields across every document where they appear and report each comparison in cross_check_results:
- shipper / exporter name
- consignee / buyer name
- goods description
- quantities and package counts
- net and gross weights: values within a ±2% tolerance band are WITHIN_TOLERANCE; beyond 2% is MISMATCH
- monetary totals and currency
- container number and seal number
- port of loading and port of discharge
- country of origin
- incoterm
- HS code
Use status MATCH only for exact agreement.

RULE 3 — PER-DOCUMENT VALIDATION
commercial_invoice: line totals must sum exactly to the stated total amount; arithmetic errors are errors, not warnings. bill_of_lading: must carry vessel, ports, and container number. phytosanitary_certificate: must name the issuing plant protection organization and the treatment applied. certificate_of_origin: country of origin must agree with the invoice.

RULE 4 — DATE LOGIC
invoice date <= bill of lading date <= ETD. phytosanitary certificate issue date <= bill of lading date. Any violation is an error.

RULE 5 — AUTOMATIC HIGH RISK
Set risk_level to HIGH or CRITICAL when any of the following holds: weight discrepancy beyond the 2% tolerance; consignee names that do not match across documents; missing phytosanitary certificate on a fruit shipment; monetary totals disagreeing between invoice and customs declaration; container or seal numbers disagreeing between packing list and bill of lading.

RULE 6 — OUTPUT
audit_status is PASS only when there are no missing documents and no errors. WARNING when only warnings exist. FAIL when any error exists.

Respond with exactly one fenced code block tagged json containing one object with this schema and nothing else outside the block:

` + "```json" + `
{
  "audit_status": "PASS|WARNING|FAIL",
  "risk_level": "LOW|MEDIUM|HIGH|CRITICAL",
  "documents_checked": [{"document_type": "", "file_name": "", "status": "", "issues": []}],
  "missing_documents": [],
  "cross_check_results": [{"field": "", "status": "MATCH|MISMATCH|WITHIN_TOLERANCE", "values": {}, "details": ""}],
  "errors": [],
  "warnings": [],
  "summary": "",
  "recommended_actions": []
}
` + "```"
}

// AuditUserMessage assembles shipment metadata plus every extraction output.
func AuditUserMessage(s *shipments.Shipment, extractions []analysis.ExtractionOutput) string {
	var b strings.Builder
	b.WriteString("SHIPMENT\n")
	writeField(&b, "number", s.Number)
	writeField(&b, "type", s.Type)
	writeField(&b, "status", s.Status)
	writeField(&b, "origin", s.Origin)
	writeField(&b, "destination", s.Destination)
	writeField(&b, "customer", s.Customer)
	writeField(&b, "forwarder", s.Forwarder)
	writeField(&b, "cargo", s.CargoDescription)
	if s.GrossWeightKg > 0 {
		writeField(&b, "gross_weight_kg", fmt.Sprintf("%.2f", s.GrossWeightKg))
	}
	if s.ContainerCount > 0 {
		writeField(&b, "containers", fmt.Sprintf("%d x %s", s.ContainerCount, s.ContainerType))
	}
	writeField(&b, "incoterm", s.Incoterm)
	writeTime(&b, "etd", s.ETD)
	writeTime(&b, "eta", s.ETA)

	b.WriteString("\nEXTRACTED DOCUMENTS\n")
	for i, e := range extractions {
		fmt.Fprintf(&b, "\n--- document %d: type=%s file=%s ---\n%s\n", i+1, e.DocumentType, e.FileName, e.Content())
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, value)
}

func writeTime(b *strings.Builder, name string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, t.Format("2006-01-02"))
}
