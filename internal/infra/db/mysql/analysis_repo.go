package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, tenant_id, shipment_id, document_id, analysis_type,
       raw_text, structured_json, model, tokens_used, created_at`

// Save appends an analysis row. Rows are never updated afterwards.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Result) error {
	const q = `
INSERT INTO analysis_results
(id, tenant_id, shipment_id, document_id, analysis_type,
 raw_text, structured_json, model, tokens_used, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var structured sql.NullString
	if len(a.Structured) > 0 {
		structured = sql.NullString{String: string(a.Structured), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.TenantID, a.ShipmentID, nullString(a.DocumentID), a.Type,
		a.RawText, structured, a.Model, a.TokensUsed, created,
	)
	return err
}

// LatestExtraction is the cache lookup: newest EXTRACTION row for a document.
// Returns nil, nil when the document has never been extracted.
func (r *AnalysisRepository) LatestExtraction(ctx context.Context, tenant string, documentID string) (*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results
WHERE tenant_id=? AND document_id=? AND analysis_type=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, documentID, domain.TypeExtraction))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// LatestExtractionsByShipment returns the newest EXTRACTION row per distinct
// document of the shipment.
func (r *AnalysisRepository) LatestExtractionsByShipment(ctx context.Context, tenant string, shipmentID string) ([]*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results a
WHERE a.tenant_id=? AND a.shipment_id=? AND a.analysis_type=?
  AND a.document_id IS NOT NULL
  AND a.created_at = (
    SELECT MAX(b.created_at)
    FROM analysis_results b
    WHERE b.tenant_id=a.tenant_id AND b.document_id=a.document_id AND b.analysis_type=a.analysis_type
  )
ORDER BY a.created_at ASC, a.id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, shipmentID, domain.TypeExtraction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Result
	seen := make(map[string]bool)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		// created_at ties can return two rows for one document; keep the first
		if seen[a.DocumentID] {
			continue
		}
		seen[a.DocumentID] = true
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestByType returns the newest row of one type for the shipment, or nil.
func (r *AnalysisRepository) LatestByType(ctx context.Context, tenant string, shipmentID string, t domain.Type) (*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results
WHERE tenant_id=? AND shipment_id=? AND analysis_type=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, shipmentID, t))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// Paginate returns a page of analysis rows ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, shipmentID string, page, pageSize int) ([]*domain.Result, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results
WHERE tenant_id=? AND shipment_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, shipmentID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Result
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAnalysis(row rowScanner) (*domain.Result, error) {
	var a domain.Result
	var documentID, structured sql.NullString
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.ShipmentID, &documentID, &a.Type,
		&a.RawText, &structured, &a.Model, &a.TokensUsed, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.DocumentID = documentID.String
	if structured.Valid {
		a.Structured = json.RawMessage(structured.String)
	}
	return &a, nil
}
