package shipments

import "time"

// ShipmentID identifier type
type ShipmentID string

// Shipment is the aggregate root for one export movement. The audit
// workflow reads it only for metadata; it is never mutated here.
type Shipment struct {
	ID               ShipmentID `json:"id"`
	TenantID         string     `json:"tenant_id"`
	Number           string     `json:"number"`
	Type             string     `json:"type"` // sea_freight | air_freight | land
	Status           string     `json:"status"`
	Origin           string     `json:"origin"`
	Destination      string     `json:"destination"`
	Customer         string     `json:"customer"`
	Forwarder        string     `json:"forwarder,omitempty"`
	CargoDescription string     `json:"cargo_description,omitempty"`
	GrossWeightKg    float64    `json:"gross_weight_kg,omitempty"`
	ContainerCount   int        `json:"container_count,omitempty"`
	ContainerType    string     `json:"container_type,omitempty"`
	Incoterm         string     `json:"incoterm,omitempty"`
	ETD              *time.Time `json:"etd,omitempty"`
	ETA              *time.Time `json:"eta,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
