package analysis

import "context"

// Repository port for the append-only analysis trail. Rows are never
// updated or deleted; "latest" queries define the cache semantics.
type Repository interface {
	Save(ctx context.Context, r *Result) error
	// LatestExtraction returns the most recent EXTRACTION row for a document,
	// or nil when the document has never been extracted.
	LatestExtraction(ctx context.Context, tenant string, documentID string) (*Result, error)
	// LatestExtractionsByShipment returns the most recent EXTRACTION row per
	// distinct document of the shipment, oldest extraction first.
	LatestExtractionsByShipment(ctx context.Context, tenant string, shipmentID string) ([]*Result, error)
	// LatestByType returns the most recent row of the given type for the
	// shipment, or nil when none exists.
	LatestByType(ctx context.Context, tenant string, shipmentID string, t Type) (*Result, error)
	Paginate(ctx context.Context, tenant string, shipmentID string, page, pageSize int) ([]*Result, error)
}
