package middleware

import (
	"fmt"
	"strings"
)

// Input validation helpers for the document endpoints.

var allowedDocumentTypes = map[string]bool{
	"commercial_invoice":        true,
	"packing_list":              true,
	"bill_of_lading":            true,
	"certificate_of_origin":     true,
	"phytosanitary_certificate": true,
	"customs_declaration":       true,
	"insurance":                 true,
	"fumigation":                true,
	"other":                     true,
}

// ValidateDocumentType checks the declared document type against the enum.
func ValidateDocumentType(t string) error {
	if !allowedDocumentTypes[strings.ToLower(strings.TrimSpace(t))] {
		return fmt.Errorf("invalid document type: %s", t)
	}
	return nil
}

var allowedStatuses = map[string]bool{
	"uploaded": true,
	"checked":  true,
	"approved": true,
	"rejected": true,
}

// ValidateDocumentStatus checks a requested lifecycle status.
func ValidateDocumentStatus(s string) error {
	if !allowedStatuses[strings.ToLower(strings.TrimSpace(s))] {
		return fmt.Errorf("invalid document status: %s (allowed: uploaded, checked, approved, rejected)", s)
	}
	return nil
}

// ValidateMimeType restricts uploads to types the extraction pipeline can
// feed to the model.
func ValidateMimeType(mime string) error {
	m := strings.ToLower(strings.TrimSpace(mime))
	switch {
	case m == "":
		return nil // detected server-side from the file extension
	case strings.HasPrefix(m, "image/"),
		m == "application/pdf",
		strings.HasPrefix(m, "text/"),
		m == "application/json",
		m == "text/csv":
		return nil
	}
	return fmt.Errorf("unsupported mime type: %s", mime)
}
