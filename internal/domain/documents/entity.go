package documents

import (
	"strings"
	"time"
)

// DocumentID identifier type
type DocumentID string

// Type enum
type Type string

const (
	TypeCommercialInvoice  Type = "commercial_invoice"
	TypePackingList        Type = "packing_list"
	TypeBillOfLading       Type = "bill_of_lading"
	TypeCertificateOrigin  Type = "certificate_of_origin"
	TypePhytosanitaryCert  Type = "phytosanitary_certificate"
	TypeCustomsDeclaration Type = "customs_declaration"
	TypeInsurance          Type = "insurance"
	TypeFumigation         Type = "fumigation"
	TypeOther              Type = "other"
)

// Status enum; transitions only flow forward.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusChecked  Status = "checked"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Aggregate Root: Document
type Document struct {
	ID         DocumentID `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ShipmentID string     `json:"shipment_id"`
	Type       Type       `json:"type"`
	DocNumber  string     `json:"doc_number,omitempty"`
	FileName   string     `json:"file_name"`
	FileKey    string     `json:"file_key,omitempty"`
	MimeType   string     `json:"mime_type,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	Status     Status     `json:"status"`
	Deleted    bool       `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ParseType normalizes a caller-supplied document type, defaulting to "other".
func ParseType(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeCommercialInvoice, TypePackingList, TypeBillOfLading,
		TypeCertificateOrigin, TypePhytosanitaryCert, TypeCustomsDeclaration,
		TypeInsurance, TypeFumigation, TypeOther:
		return t
	}
	return TypeOther
}

// Promotable reports whether an audit PASS may move the document to checked.
// Approved and rejected documents are never touched.
func (s Status) Promotable() bool {
	return s == StatusUploaded
}

// CanTransition enforces the forward-only lifecycle.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusUploaded:
		return to == StatusChecked || to == StatusApproved || to == StatusRejected
	case StatusChecked:
		return to == StatusApproved || to == StatusRejected
	default:
		return false
	}
}

// BinaryContent reports whether the file should be truncated and
// base64-wrapped before going into a prompt.
func (d *Document) BinaryContent() bool {
	return strings.HasPrefix(d.MimeType, "image/") || d.MimeType == "application/pdf"
}
