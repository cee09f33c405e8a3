package documents

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist for the tenant.
	ErrNotFound = errors.New("document not found")
	// ErrNoDocuments signals the full-audit precondition: nothing to audit yet.
	ErrNoDocuments = errors.New("no documents uploaded for shipment")
	// ErrFileNotFound means the stored file is missing; extraction falls back
	// to a metadata-only prompt instead of failing.
	ErrFileNotFound = errors.New("document file not found")
	// ErrInvalidTransition guards the forward-only status lifecycle.
	ErrInvalidTransition = errors.New("invalid document status transition")
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, tenant string, id DocumentID) (*Document, error)
	// ListByShipment returns non-deleted documents ordered by created_at ascending.
	ListByShipment(ctx context.Context, tenant string, shipmentID string) ([]*Document, error)
	UpdateStatus(ctx context.Context, tenant string, id DocumentID, status Status) error
	// MarkChecked promotes every non-deleted uploaded document of the shipment
	// to checked. Approved, rejected and already-checked rows are left alone.
	MarkChecked(ctx context.Context, tenant string, shipmentID string) error
	// SoftDelete hides the document; its analysis rows remain as audit trail.
	SoftDelete(ctx context.Context, tenant string, id DocumentID) error
}

// FileStore port: read/write document bytes by object key.
type FileStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
