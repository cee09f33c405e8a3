package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, tenant_id, shipment_id, doc_type, doc_number, file_name,
       file_key, mime_type, size_bytes, status, deleted, created_at`

// Save insert/update Document record
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO shipment_documents
(id, tenant_id, shipment_id, doc_type, doc_number, file_name,
 file_key, mime_type, size_bytes, status, deleted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
 doc_type=EXCLUDED.doc_type, doc_number=EXCLUDED.doc_number, file_name=EXCLUDED.file_name,
 file_key=EXCLUDED.file_key, mime_type=EXCLUDED.mime_type, size_bytes=EXCLUDED.size_bytes,
 status=EXCLUDED.status, deleted=EXCLUDED.deleted;
`
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.TenantID, d.ShipmentID, d.Type, d.DocNumber, d.FileName,
		d.FileKey, d.MimeType, d.SizeBytes, d.Status, d.Deleted, created,
	)
	return err
}

// Get by ID + Tenant; soft-deleted documents are invisible
func (r *DocumentRepository) Get(ctx context.Context, tenant string, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT ` + documentColumns + `
FROM shipment_documents
WHERE tenant_id=$1 AND id=$2 AND NOT deleted LIMIT 1;
`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, tenant, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// ListByShipment returns non-deleted documents, oldest first
func (r *DocumentRepository) ListByShipment(ctx context.Context, tenant string, shipmentID string) ([]*domain.Document, error) {
	const q = `
SELECT ` + documentColumns + `
FROM shipment_documents
WHERE tenant_id=$1 AND shipment_id=$2 AND NOT deleted
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus hanya update kolom status
func (r *DocumentRepository) UpdateStatus(ctx context.Context, tenant string, id domain.DocumentID, status domain.Status) error {
	const q = `
UPDATE shipment_documents
SET status = $1
WHERE tenant_id = $2 AND id = $3 AND NOT deleted;`
	_, err := r.db.ExecContext(ctx, q, status, tenant, id)
	return err
}

// MarkChecked promotes uploaded documents of the shipment to checked
func (r *DocumentRepository) MarkChecked(ctx context.Context, tenant string, shipmentID string) error {
	const q = `
UPDATE shipment_documents
SET status = $1
WHERE tenant_id = $2 AND shipment_id = $3 AND NOT deleted AND status = $4;`
	_, err := r.db.ExecContext(ctx, q, domain.StatusChecked, tenant, shipmentID, domain.StatusUploaded)
	return err
}

// SoftDelete hides the document; its analysis rows stay as audit trail
func (r *DocumentRepository) SoftDelete(ctx context.Context, tenant string, id domain.DocumentID) error {
	const q = `
UPDATE shipment_documents
SET deleted = TRUE
WHERE tenant_id = $1 AND id = $2;`
	_, err := r.db.ExecContext(ctx, q, tenant, id)
	return err
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var docNumber, fileKey, mimeType sql.NullString
	if err := row.Scan(
		&d.ID, &d.TenantID, &d.ShipmentID, &d.Type, &docNumber, &d.FileName,
		&fileKey, &mimeType, &d.SizeBytes, &d.Status, &d.Deleted, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.DocNumber = docNumber.String
	d.FileKey = fileKey.String
	d.MimeType = mimeType.String
	return &d, nil
}
