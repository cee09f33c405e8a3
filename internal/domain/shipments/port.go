package shipments

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a shipment does not exist for the tenant.
var ErrNotFound = errors.New("shipment not found")

// Repository port (interface untuk persistence)
type Repository interface {
	Get(ctx context.Context, tenant string, id ShipmentID) (*Shipment, error)
	Save(ctx context.Context, s *Shipment) error
	Latest(ctx context.Context, tenant string, limit int) ([]*Shipment, error)
}
