package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
)

type ShipmentRepository struct {
	db *sql.DB
}

func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

const shipmentColumns = `id, tenant_id, number, type, status, origin, destination,
       customer, forwarder, cargo_description, gross_weight_kg,
       container_count, container_type, incoterm, etd, eta, created_at`

// Save insert/update Shipment record
func (r *ShipmentRepository) Save(ctx context.Context, s *domain.Shipment) error {
	const q = `
INSERT INTO shipments
(id, tenant_id, number, type, status, origin, destination,
 customer, forwarder, cargo_description, gross_weight_kg,
 container_count, container_type, incoterm, etd, eta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
 number=EXCLUDED.number, type=EXCLUDED.type, status=EXCLUDED.status,
 origin=EXCLUDED.origin, destination=EXCLUDED.destination,
 customer=EXCLUDED.customer, forwarder=EXCLUDED.forwarder,
 cargo_description=EXCLUDED.cargo_description, gross_weight_kg=EXCLUDED.gross_weight_kg,
 container_count=EXCLUDED.container_count, container_type=EXCLUDED.container_type,
 incoterm=EXCLUDED.incoterm, etd=EXCLUDED.etd, eta=EXCLUDED.eta;
`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var etd, eta sql.NullTime
	if s.ETD != nil {
		etd = sql.NullTime{Time: *s.ETD, Valid: true}
	}
	if s.ETA != nil {
		eta = sql.NullTime{Time: *s.ETA, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.TenantID, s.Number, s.Type, s.Status, s.Origin, s.Destination,
		s.Customer, s.Forwarder, s.CargoDescription, s.GrossWeightKg,
		s.ContainerCount, s.ContainerType, s.Incoterm, etd, eta, created,
	)
	return err
}

// Get by ID + Tenant
func (r *ShipmentRepository) Get(ctx context.Context, tenant string, id domain.ShipmentID) (*domain.Shipment, error) {
	const q = `
SELECT ` + shipmentColumns + `
FROM shipments
WHERE tenant_id=$1 AND id=$2 LIMIT 1;
`
	s, err := scanShipment(r.db.QueryRowContext(ctx, q, tenant, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// Latest shipments per tenant
func (r *ShipmentRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Shipment, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + shipmentColumns + `
FROM shipments
WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanShipment(row rowScanner) (*domain.Shipment, error) {
	var s domain.Shipment
	var forwarder, cargo, containerType, incoterm sql.NullString
	var etd, eta sql.NullTime
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.Number, &s.Type, &s.Status, &s.Origin, &s.Destination,
		&s.Customer, &forwarder, &cargo, &s.GrossWeightKg,
		&s.ContainerCount, &containerType, &incoterm, &etd, &eta, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Forwarder = forwarder.String
	s.CargoDescription = cargo.String
	s.ContainerType = containerType.String
	s.Incoterm = incoterm.String
	if etd.Valid {
		t := etd.Time
		s.ETD = &t
	}
	if eta.Valid {
		t := eta.Time
		s.ETA = &t
	}
	return &s, nil
}
