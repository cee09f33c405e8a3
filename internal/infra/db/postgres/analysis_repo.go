package postgres

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

// Save appends an analysis row; the table is append-only.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Result) error {
	const q = `
INSERT INTO analysis_results
(id, tenant_id, shipment_id, document_id, analysis_type,
 raw_text, structured_json, model, tokens_used, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var structured sql.NullString
	if len(a.Structured) > 0 {
		structured = sql.NullString{String: string(a.Structured), Valid: true}
	}
	var documentID sql.NullString
	if a.DocumentID != "" {
		documentID = sql.NullString{String: a.DocumentID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.TenantID, a.ShipmentID, documentID, a.Type,
		a.RawText, structured, a.Model, a.TokensUsed, created,
	)
	return err
}

// LatestExtraction returns the newest EXTRACTION row for a document, or nil.
func (r *AnalysisRepository) LatestExtraction(ctx context.Context, tenant string, documentID string) (*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results
WHERE tenant_id=$1 AND document_id=$2 AND analysis_type=$3
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, documentID, domain.TypeExtraction))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// LatestExtractionsByShipment uses DISTINCT ON to keep the newest row per document.
func (r *AnalysisRepository) LatestExtractionsByShipment(ctx context.Context, tenant string, shipmentID string) ([]*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + ` FROM (
  SELECT DISTINCT ON (document_id) ` + analysisColumns + `
  FROM analysis_results
  WHERE tenant_id=$1 AND shipment_id=$2 AND analysis_type=$3 AND document_id IS NOT NULL
  ORDER BY document_id, created_at DESC, id DESC
) latest
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, shipmentID, domain.TypeExtraction)
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

// LatestByType returns the newest row of one type for the shipment, or nil.
func (r *AnalysisRepository) LatestByType(ctx context.Context, tenant string, shipmentID string, t domain.Type) (*domain.Result, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM analysis_results
WHERE tenant_id=$1 AND shipment_id=$2 AND analysis_type=$3
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
WHERE tenant_id=$1 AND shipment_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4;
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

type rowScanner interface {
	Scan(dest ...any) error
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
