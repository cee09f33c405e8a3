package prompt

import (
	"encoding/base64"
	"fmt"

	"github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
)

// ExtractionSystemPrompt pins the specialist persona for per-document extraction.
func ExtractionSystemPrompt() string {
	return `You are a specialist in international trade and export documentation. You extract structured data from shipping documents precisely and conservatively. Respond with a short assessment followed by exactly one JSON object containing the extracted fields. Use null for fields you cannot read. Never invent values.`
}

// Type-specific extraction instructions, keyed by document type.
var extractionInstructions = map[documents.Type]string{
	documents.TypeCommercialInvoice: `Extract from this commercial invoice: invoice_number, invoice_date, seller (shipper), buyer (consignee), goods_description, quantity, unit_price, line_totals, total_amount, currency, incoterm, country_of_origin, hs_code. Verify that line totals sum to the stated total_amount and note any arithmetic discrepancy.`,
	documents.TypePackingList:      `Extract from this packing list: packing_list_number, date, shipper, consignee, goods_description, number_of_packages, quantity_per_package, net_weight_kg, gross_weight_kg, volume_cbm, container_number, seal_number, marks_and_numbers.`,
	documents.TypeBillOfLading:     `Extract from this bill of lading: bl_number, bl_date, shipper, consignee, notify_party, vessel, voyage_number, port_of_loading, port_of_discharge, goods_description, gross_weight_kg, container_number, seal_number, freight_terms, number_of_originals.`,
	documents.TypeCertificateOrigin: `Extract from this certificate of origin: certificate_number, issue_date, issuing_authority, exporter, consignee, goods_description, country_of_origin, hs_code, invoice_reference.`,
	documents.TypePhytosanitaryCert: `Extract from this phytosanitary certificate: certificate_number, issue_date, issuing_authority (plant protection organization), exporter, consignee, place_of_origin, declared_product, botanical_name, quantity, treatment (type, chemical, duration, temperature), additional_declarations.`,
	documents.TypeCustomsDeclaration: `Extract from this customs declaration: declaration_number, declaration_date, exporter, customs_office, procedure_code, goods_description, hs_code, customs_value, currency, net_weight_kg, gross_weight_kg.`,
	documents.TypeInsurance:        `Extract from this insurance document: policy_number, issue_date, insurer, insured_party, coverage_amount, currency, covered_risks, voyage_or_shipment_reference, goods_description.`,
	documents.TypeFumigation:       `Extract from this fumigation certificate: certificate_number, treatment_date, fumigation_company, chemical_used, dosage, duration, temperature, goods_description, container_number, invoice_reference.`,
	documents.TypeOther:            `Extract every identifiable field from this trade document: document title, reference numbers, dates, parties, goods description, quantities, weights, monetary amounts.`,
}

// ExtractionInstruction returns the type-specific instruction prefix.
func ExtractionInstruction(t documents.Type) string {
	if s, ok := extractionInstructions[t]; ok {
		return s
	}
	return extractionInstructions[documents.TypeOther]
}

// ExtractionUserMessage glues the instruction prefix and the document content.
func ExtractionUserMessage(d *documents.Document, content string) string {
	return fmt.Sprintf("%s\n\nDocument file: %s\n\n%s", ExtractionInstruction(d.Type), d.FileName, content)
}

// BinaryContentBlock wraps a truncated base64 encoding of a binary file
// (image or PDF) with a descriptive header. prefixLen is the token-budget
// cap on the encoded content, not a correctness bound.
func BinaryContentBlock(d *documents.Document, data []byte, prefixLen int) string {
	enc := base64.StdEncoding.EncodeToString(data)
	truncated := false
	if prefixLen > 0 && len(enc) > prefixLen {
		enc = enc[:prefixLen]
		truncated = true
	}
	header := fmt.Sprintf("[Binary document: file=%s mime=%s size=%d bytes, base64-encoded", d.FileName, d.MimeType, d.SizeBytes)
	if truncated {
		header += fmt.Sprintf(", truncated to first %d characters", prefixLen)
	}
	header += "]"
	return header + "\n" + enc
}

// MetadataFallback is used when the underlying file cannot be read. The
// model is asked for a template analysis instead of a real extraction.
func MetadataFallback(d *documents.Document) string {
	return fmt.Sprintf(`The file for this document could not be read. Based only on the metadata below, produce a template analysis describing which fields a document of this type would normally contain and which of them can be inferred.

document_type: %s
doc_number: %s
file_name: %s`, d.Type, d.DocNumber, d.FileName)
}
