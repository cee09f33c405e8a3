package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nam4792-debug/agologistics-sub001/internal/application"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/ai"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
	"github.com/nam4792-debug/agologistics-sub001/internal/infra/ai/prompt"
)

// ErrNotEnoughExtractions signals the cross-check precondition: fewer than
// two documents of the shipment have ever been extracted.
var ErrNotEnoughExtractions = errors.New("cross-check requires at least 2 extracted documents")

const (
	defaultConcurrency     = 4
	defaultBinaryPrefixLen = 5000
	defaultExtractTokens   = 1024
	defaultAuditTokens     = 4096
)

// Service implements the document-audit use-cases: per-document extraction
// with caching, the full shipment audit, and the pairwise cross-check.
// Safe for concurrent use.
type Service struct {
	Shipments shipments.Repository
	Documents documents.Repository
	Analyses  analysis.Repository
	Files     documents.FileStore
	AI        ai.Generator
	Clock     application.Clock

	// Concurrency bounds the extraction fan-out; BinaryPrefixLen caps the
	// base64 prefix fed to the model for image/PDF files.
	Concurrency     int
	BinaryPrefixLen int
	ExtractTokens   int
	AuditTokens     int
	CallTimeout     time.Duration

	locks *shipmentLocks
}

func NewService(
	ships shipments.Repository,
	docs documents.Repository,
	analyses analysis.Repository,
	files documents.FileStore,
	gen ai.Generator,
	clock application.Clock,
) *Service {
	return &Service{
		Shipments: ships,
		Documents: docs,
		Analyses:  analyses,
		Files:     files,
		AI:        gen,
		Clock:     clock,
		locks:     newShipmentLocks(),
	}
}

//
// ==== USE CASES ====
//

// AuditOutcome is the response of a full shipment audit.
type AuditOutcome struct {
	AnalysisID  string                      `json:"analysis_id"`
	AuditStatus string                      `json:"audit_status"`
	RiskLevel   string                      `json:"risk_level,omitempty"`
	Report      *analysis.AuditReport       `json:"report,omitempty"`
	RawText     string                      `json:"raw_text"`
	Degraded    bool                        `json:"degraded,omitempty"`
	TokensUsed  int                         `json:"tokens_used"`
	Extractions []analysis.ExtractionOutput `json:"extractions"`
}

// CrossCheckOutcome is the response of a pairwise cross-check.
type CrossCheckOutcome struct {
	AnalysisID string          `json:"analysis_id"`
	RawText    string          `json:"raw_text"`
	Structured json.RawMessage `json:"structured,omitempty"`
	TokensUsed int             `json:"tokens_used"`
	Documents  int             `json:"documents"`
}

// ExtractDocument runs (or replays from cache) the extraction for one
// document. force bypasses the cache and always calls the model.
func (s *Service) ExtractDocument(ctx context.Context, tenant string, id documents.DocumentID, force bool) (analysis.ExtractionOutput, error) {
	doc, err := s.Documents.Get(ctx, tenant, id)
	if err != nil {
		return analysis.ExtractionOutput{}, err
	}
	return s.extractOne(ctx, tenant, doc, force)
}

// RunAudit executes the whole pipeline: select documents, extract each one
// (cache-aware, bounded fan-out), compose the rule prompt, invoke the model
// once, persist the AUDIT row and promote documents on a clean PASS.
func (s *Service) RunAudit(ctx context.Context, tenant string, shipmentID string) (AuditOutcome, error) {
	ship, err := s.Shipments.Get(ctx, tenant, shipments.ShipmentID(shipmentID))
	if err != nil {
		return AuditOutcome{}, err
	}

	key := tenant + "/" + shipmentID
	if !s.locks.TryAcquire(key) {
		return AuditOutcome{}, ErrAuditInProgress
	}
	defer s.locks.Release(key)

	docs, err := s.Documents.ListByShipment(ctx, tenant, shipmentID)
	if err != nil {
		return AuditOutcome{}, err
	}
	if len(docs) == 0 {
		return AuditOutcome{}, documents.ErrNoDocuments
	}

	// Fan out per-document extraction; one failure aborts the audit, but
	// rows persisted by the units that finished remain as cache.
	extractions := make([]analysis.ExtractionOutput, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, d := range docs {
		g.Go(func() error {
			out, err := s.extractOne(gctx, tenant, d, false)
			if err != nil {
				return fmt.Errorf("extract %s: %w", d.FileName, err)
			}
			extractions[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AuditOutcome{}, err
	}

	res, err := s.generate(ctx, ai.Request{
		SystemPrompt: prompt.AuditSystemPrompt(),
		Messages: []ai.Message{
			{Role: "user", Content: prompt.AuditUserMessage(ship, extractions)},
		},
		MaxTokens: s.auditTokens(),
	})
	if err != nil {
		return AuditOutcome{}, err
	}

	parsed := analysis.ParseAuditReport(res.Text)

	row := &analysis.Result{
		ID:         analysis.ResultID(uuid.New().String()),
		TenantID:   tenant,
		ShipmentID: shipmentID,
		Type:       analysis.TypeAudit,
		RawText:    res.Text,
		Structured: parsed.Raw,
		Model:      res.Model,
		TokensUsed: res.TokensUsed,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Analyses.Save(ctx, row); err != nil {
		return AuditOutcome{}, err
	}

	status := analysis.AuditStatusUnknown
	risk := ""
	if parsed.Report != nil {
		status = parsed.Report.AuditStatus
		risk = parsed.Report.RiskLevel
		// Promote only on a clean fenced-block PASS; the brace-scan fallback
		// is too weak a signal to mutate document state.
		if status == analysis.AuditStatusPass && !parsed.Degraded {
			if err := s.Documents.MarkChecked(ctx, tenant, shipmentID); err != nil {
				return AuditOutcome{}, err
			}
		}
	}

	return AuditOutcome{
		AnalysisID:  string(row.ID),
		AuditStatus: status,
		RiskLevel:   risk,
		Report:      parsed.Report,
		RawText:     res.Text,
		Degraded:    parsed.Degraded,
		TokensUsed:  res.TokensUsed,
		Extractions: extractions,
	}, nil
}

// CrossCheck compares the latest extraction of every document pairwise.
// Precondition is at least two prior EXTRACTION rows, independent of the
// live document count.
func (s *Service) CrossCheck(ctx context.Context, tenant string, shipmentID string) (CrossCheckOutcome, error) {
	if _, err := s.Shipments.Get(ctx, tenant, shipments.ShipmentID(shipmentID)); err != nil {
		return CrossCheckOutcome{}, err
	}

	rows, err := s.Analyses.LatestExtractionsByShipment(ctx, tenant, shipmentID)
	if err != nil {
		return CrossCheckOutcome{}, err
	}
	if len(rows) < 2 {
		return CrossCheckOutcome{}, ErrNotEnoughExtractions
	}

	extractions := make([]analysis.ExtractionOutput, 0, len(rows))
	byID := s.documentIndex(ctx, tenant, shipmentID)
	for _, r := range rows {
		out := analysis.ExtractionOutput{
			DocumentID:   r.DocumentID,
			DocumentType: "unknown",
			Extracted:    r.Structured,
			RawText:      r.RawText,
			Cached:       true,
			TokensUsed:   r.TokensUsed,
		}
		if d, ok := byID[r.DocumentID]; ok {
			out.DocumentType = string(d.Type)
			out.FileName = d.FileName
		}
		extractions = append(extractions, out)
	}

	res, err := s.generate(ctx, ai.Request{
		SystemPrompt: prompt.CrossCheckSystemPrompt(),
		Messages: []ai.Message{
			{Role: "user", Content: prompt.CrossCheckUserMessage(extractions)},
		},
		MaxTokens: s.auditTokens(),
	})
	if err != nil {
		return CrossCheckOutcome{}, err
	}

	structured := analysis.ParseFencedOrFirst(res.Text)
	row := &analysis.Result{
		ID:         analysis.ResultID(uuid.New().String()),
		TenantID:   tenant,
		ShipmentID: shipmentID,
		Type:       analysis.TypeCrossCheck,
		RawText:    res.Text,
		Structured: structured,
		Model:      res.Model,
		TokensUsed: res.TokensUsed,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Analyses.Save(ctx, row); err != nil {
		return CrossCheckOutcome{}, err
	}

	return CrossCheckOutcome{
		AnalysisID: string(row.ID),
		RawText:    res.Text,
		Structured: structured,
		TokensUsed: res.TokensUsed,
		Documents:  len(extractions),
	}, nil
}

// ListAnalyses returns the paginated analysis history for a shipment.
func (s *Service) ListAnalyses(ctx context.Context, tenant string, shipmentID string, page, pageSize int) ([]*analysis.Result, error) {
	return s.Analyses.Paginate(ctx, tenant, shipmentID, page, pageSize)
}

// LatestAudit returns the most recent AUDIT row, or nil when none exists.
func (s *Service) LatestAudit(ctx context.Context, tenant string, shipmentID string) (*analysis.Result, error) {
	return s.Analyses.LatestByType(ctx, tenant, shipmentID, analysis.TypeAudit)
}

//
// ==== internals ====
//

// extractOne is the per-document unit of the fan-out. Cache first, then
// file content (binary files truncated), metadata fallback when the file
// is unreadable, one model call, best-effort parse, persist.
func (s *Service) extractOne(ctx context.Context, tenant string, doc *documents.Document, force bool) (analysis.ExtractionOutput, error) {
	if !force {
		prior, err := s.Analyses.LatestExtraction(ctx, tenant, string(doc.ID))
		if err != nil {
			return analysis.ExtractionOutput{}, err
		}
		if prior != nil {
			return analysis.ExtractionOutput{
				DocumentID:   string(doc.ID),
				DocumentType: string(doc.Type),
				FileName:     doc.FileName,
				Extracted:    prior.Structured,
				RawText:      prior.RawText,
				Cached:       true,
				TokensUsed:   prior.TokensUsed,
			}, nil
		}
	}

	userMsg := prompt.ExtractionUserMessage(doc, s.documentContent(ctx, doc))

	res, err := s.generate(ctx, ai.Request{
		SystemPrompt: prompt.ExtractionSystemPrompt(),
		Messages:     []ai.Message{{Role: "user", Content: userMsg}},
		MaxTokens:    s.extractTokens(),
	})
	if err != nil {
		return analysis.ExtractionOutput{}, err
	}

	structured := analysis.ParseStructured(res.Text)
	row := &analysis.Result{
		ID:         analysis.ResultID(uuid.New().String()),
		TenantID:   tenant,
		ShipmentID: doc.ShipmentID,
		DocumentID: string(doc.ID),
		Type:       analysis.TypeExtraction,
		RawText:    res.Text,
		Structured: structured,
		Model:      res.Model,
		TokensUsed: res.TokensUsed,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Analyses.Save(ctx, row); err != nil {
		return analysis.ExtractionOutput{}, err
	}

	return analysis.ExtractionOutput{
		DocumentID:   string(doc.ID),
		DocumentType: string(doc.Type),
		FileName:     doc.FileName,
		Extracted:    structured,
		RawText:      res.Text,
		Cached:       false,
		TokensUsed:   res.TokensUsed,
	}, nil
}

// documentContent loads the file bytes for the prompt. Read failures are a
// degraded condition, never fatal: the metadata fallback is used instead.
func (s *Service) documentContent(ctx context.Context, doc *documents.Document) string {
	if doc.FileKey == "" {
		return prompt.MetadataFallback(doc)
	}
	data, err := s.Files.Read(ctx, doc.FileKey)
	if err != nil {
		return prompt.MetadataFallback(doc)
	}
	if doc.BinaryContent() {
		return prompt.BinaryContentBlock(doc, data, s.binaryPrefixLen())
	}
	return string(data)
}

func (s *Service) documentIndex(ctx context.Context, tenant string, shipmentID string) map[string]*documents.Document {
	idx := make(map[string]*documents.Document)
	docs, err := s.Documents.ListByShipment(ctx, tenant, shipmentID)
	if err != nil {
		// Extraction rows of deleted documents are still comparable; a doc
		// lookup failure only costs the type/filename labels.
		return idx
	}
	for _, d := range docs {
		idx[string(d.ID)] = d
	}
	return idx
}

func (s *Service) generate(ctx context.Context, req ai.Request) (ai.Result, error) {
	if s.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CallTimeout)
		defer cancel()
	}
	return s.AI.Generate(ctx, req)
}

func (s *Service) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return defaultConcurrency
}

func (s *Service) binaryPrefixLen() int {
	if s.BinaryPrefixLen > 0 {
		return s.BinaryPrefixLen
	}
	return defaultBinaryPrefixLen
}

func (s *Service) extractTokens() int {
	if s.ExtractTokens > 0 {
		return s.ExtractTokens
	}
	return defaultExtractTokens
}

func (s *Service) auditTokens() int {
	if s.AuditTokens > 0 {
		return s.AuditTokens
	}
	return defaultAuditTokens
}
