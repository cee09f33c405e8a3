package documents

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nam4792-debug/agologistics-sub001/internal/application"
	domain "github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
)

// Service implements document upload and lifecycle use-cases.
type Service struct {
	Shipments shipments.Repository
	Documents domain.Repository
	Files     domain.FileStore
	Clock     application.Clock
}

// UploadCommand carries one uploaded file plus its declared metadata.
type UploadCommand struct {
	TenantID   string
	ShipmentID string
	Type       string
	DocNumber  string
	FileName   string
	MimeType   string
	Data       []byte
}

// Upload stores the file and creates the document row in status uploaded.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Document, error) {
	if _, err := s.Shipments.Get(ctx, cmd.TenantID, shipments.ShipmentID(cmd.ShipmentID)); err != nil {
		return nil, err
	}

	id := domain.DocumentID(uuid.New().String())
	key := fmt.Sprintf("%s/%s/%s%s", cmd.TenantID, cmd.ShipmentID, id, filepath.Ext(cmd.FileName))

	if _, err := s.Files.Upload(ctx, key, cmd.Data, cmd.MimeType); err != nil {
		return nil, fmt.Errorf("upload document file: %w", err)
	}

	doc := &domain.Document{
		ID:         id,
		TenantID:   cmd.TenantID,
		ShipmentID: cmd.ShipmentID,
		Type:       domain.ParseType(cmd.Type),
		DocNumber:  cmd.DocNumber,
		FileName:   cmd.FileName,
		FileKey:    key,
		MimeType:   cmd.MimeType,
		SizeBytes:  int64(len(cmd.Data)),
		Status:     domain.StatusUploaded,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Documents.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns the shipment's non-deleted documents, oldest first.
func (s *Service) List(ctx context.Context, tenant string, shipmentID string) ([]*domain.Document, error) {
	if _, err := s.Shipments.Get(ctx, tenant, shipments.ShipmentID(shipmentID)); err != nil {
		return nil, err
	}
	return s.Documents.ListByShipment(ctx, tenant, shipmentID)
}

// Delete soft-deletes a document. Its analysis rows are kept.
func (s *Service) Delete(ctx context.Context, tenant string, id domain.DocumentID) error {
	if _, err := s.Documents.Get(ctx, tenant, id); err != nil {
		return err
	}
	return s.Documents.SoftDelete(ctx, tenant, id)
}

// UpdateStatus moves a document along the forward-only lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, tenant string, id domain.DocumentID, to domain.Status) (*domain.Document, error) {
	doc, err := s.Documents.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !doc.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.Status, to)
	}
	if err := s.Documents.UpdateStatus(ctx, tenant, id, to); err != nil {
		return nil, err
	}
	doc.Status = to
	return doc, nil
}
