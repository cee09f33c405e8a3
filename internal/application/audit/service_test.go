package audit

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nam4792-debug/agologistics-sub001/internal/domain/ai"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
)

//
// ==== fakes ====
//

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeShipments struct {
	byID map[string]*shipments.Shipment
}

func (f *fakeShipments) Get(_ context.Context, tenant string, id shipments.ShipmentID) (*shipments.Shipment, error) {
	if s, ok := f.byID[string(id)]; ok && s.TenantID == tenant {
		return s, nil
	}
	return nil, shipments.ErrNotFound
}

func (f *fakeShipments) Save(_ context.Context, s *shipments.Shipment) error {
	f.byID[string(s.ID)] = s
	return nil
}

func (f *fakeShipments) Latest(_ context.Context, _ string, _ int) ([]*shipments.Shipment, error) {
	return nil, nil
}

type fakeDocuments struct {
	mu               sync.Mutex
	docs             []*documents.Document
	markCheckedCalls int
}

func (f *fakeDocuments) Save(_ context.Context, d *documents.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, d)
	return nil
}

func (f *fakeDocuments) Get(_ context.Context, tenant string, id documents.DocumentID) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id && d.TenantID == tenant && !d.Deleted {
			return d, nil
		}
	}
	return nil, documents.ErrNotFound
}

func (f *fakeDocuments) ListByShipment(_ context.Context, tenant string, shipmentID string) ([]*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*documents.Document
	for _, d := range f.docs {
		if d.TenantID == tenant && d.ShipmentID == shipmentID && !d.Deleted {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocuments) UpdateStatus(_ context.Context, _ string, id documents.DocumentID, status documents.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			d.Status = status
		}
	}
	return nil
}

func (f *fakeDocuments) MarkChecked(_ context.Context, tenant string, shipmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCheckedCalls++
	for _, d := range f.docs {
		if d.TenantID == tenant && d.ShipmentID == shipmentID && !d.Deleted && d.Status == documents.StatusUploaded {
			d.Status = documents.StatusChecked
		}
	}
	return nil
}

func (f *fakeDocuments) SoftDelete(_ context.Context, _ string, id documents.DocumentID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			d.Deleted = true
		}
	}
	return nil
}

type fakeAnalyses struct {
	mu   sync.Mutex
	rows []*analysis.Result
}

func (f *fakeAnalyses) Save(_ context.Context, r *analysis.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeAnalyses) LatestExtraction(_ context.Context, tenant string, documentID string) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.TenantID == tenant && r.DocumentID == documentID && r.Type == analysis.TypeExtraction {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeAnalyses) LatestExtractionsByShipment(_ context.Context, tenant string, shipmentID string) ([]*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := make(map[string]*analysis.Result)
	var order []string
	for _, r := range f.rows {
		if r.TenantID == tenant && r.ShipmentID == shipmentID && r.Type == analysis.TypeExtraction && r.DocumentID != "" {
			if _, seen := latest[r.DocumentID]; !seen {
				order = append(order, r.DocumentID)
			}
			latest[r.DocumentID] = r
		}
	}
	out := make([]*analysis.Result, 0, len(latest))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

func (f *fakeAnalyses) LatestByType(_ context.Context, tenant string, shipmentID string, t analysis.Type) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.TenantID == tenant && r.ShipmentID == shipmentID && r.Type == t {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeAnalyses) Paginate(_ context.Context, tenant string, shipmentID string, _, _ int) ([]*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*analysis.Result
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.TenantID == tenant && r.ShipmentID == shipmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAnalyses) count(t analysis.Type) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Type == t {
			n++
		}
	}
	return n
}

type fakeFiles struct {
	files map[string][]byte
}

func (f *fakeFiles) Read(_ context.Context, key string) ([]byte, error) {
	if data, ok := f.files[key]; ok {
		return data, nil
	}
	return nil, documents.ErrFileNotFound
}

func (f *fakeFiles) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.files[key] = data
	return "http://files/" + key, nil
}

type fakeGen struct {
	mu          sync.Mutex
	calls       []ai.Request
	inFlight    int
	maxInFlight int
	delay       time.Duration
	reply       func(req ai.Request) (ai.Result, error)
}

func (g *fakeGen) Generate(ctx context.Context, req ai.Request) (ai.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return ai.Result{}, ctx.Err()
		}
	}
	return g.reply(req)
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGen) call(i int) ai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[i]
}

//
// ==== helpers ====
//

const (
	testTenant   = "acme"
	testShipment = "shp-1"
)

func isAuditCall(req ai.Request) bool {
	return strings.Contains(req.SystemPrompt, "RULE 1")
}

// replyPassFenced answers extraction calls with a small object and the audit
// call with a fenced PASS report.
func replyPassFenced(req ai.Request) (ai.Result, error) {
	if isAuditCall(req) {
		return ai.Result{
			Text:       "Done.\n```json\n{\"audit_status\":\"PASS\",\"risk_level\":\"LOW\",\"summary\":\"clean\"}\n```",
			Model:      "test-model",
			TokensUsed: 100,
		}, nil
	}
	return ai.Result{Text: `ok {"field":"value"}`, Model: "test-model", TokensUsed: 10}, nil
}

func newTestService(docs *fakeDocuments, analyses *fakeAnalyses, files *fakeFiles, gen *fakeGen) *Service {
	ships := &fakeShipments{byID: map[string]*shipments.Shipment{
		testShipment: {
			ID:          testShipment,
			TenantID:    testTenant,
			Number:      "EXP-2025-001",
			Type:        "sea_freight",
			Status:      "in_progress",
			Origin:      "Valparaiso",
			Destination: "Rotterdam",
			Customer:    "FruitCo BV",
		},
	}}
	if files == nil {
		files = &fakeFiles{files: map[string][]byte{}}
	}
	return NewService(ships, docs, analyses, files, gen, &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
}

func textDoc(id, name string) *documents.Document {
	return &documents.Document{
		ID:         documents.DocumentID(id),
		TenantID:   testTenant,
		ShipmentID: testShipment,
		Type:       documents.TypeCommercialInvoice,
		FileName:   name,
		FileKey:    "acme/" + id,
		MimeType:   "text/plain",
		Status:     documents.StatusUploaded,
	}
}

//
// ==== tests ====
//

func TestRunAuditNoDocuments(t *testing.T) {
	docs := &fakeDocuments{}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, analyses, nil, gen)

	_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.ErrorIs(t, err, documents.ErrNoDocuments)

	// precondition failure must not touch the model or the trail
	assert.Equal(t, 0, gen.callCount())
	assert.Empty(t, analyses.rows)
}

func TestRunAuditUnknownShipment(t *testing.T) {
	svc := newTestService(&fakeDocuments{}, &fakeAnalyses{}, nil, &fakeGen{reply: replyPassFenced})

	_, err := svc.RunAudit(context.Background(), testTenant, "missing")
	assert.ErrorIs(t, err, shipments.ErrNotFound)
}

func TestRunAuditPassPromotesUploadedOnly(t *testing.T) {
	approved := textDoc("d3", "col.pdf")
	approved.Status = documents.StatusApproved
	docs := &fakeDocuments{docs: []*documents.Document{
		textDoc("d1", "invoice.txt"),
		textDoc("d2", "packing.txt"),
		approved,
	}}
	analyses := &fakeAnalyses{}
	files := &fakeFiles{files: map[string][]byte{
		"acme/d1": []byte("invoice body"),
		"acme/d2": []byte("packing list body"),
		"acme/d3": []byte("col body"),
	}}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, analyses, files, gen)

	out, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	assert.Equal(t, analysis.AuditStatusPass, out.AuditStatus)
	assert.False(t, out.Degraded)
	assert.Len(t, out.Extractions, 3)
	assert.Equal(t, 1, docs.markCheckedCalls)

	// uploaded documents promoted, approved never demoted
	assert.Equal(t, documents.StatusChecked, docs.docs[0].Status)
	assert.Equal(t, documents.StatusChecked, docs.docs[1].Status)
	assert.Equal(t, documents.StatusApproved, docs.docs[2].Status)

	// one EXTRACTION row per document plus one AUDIT row
	assert.Equal(t, 3, analyses.count(analysis.TypeExtraction))
	assert.Equal(t, 1, analyses.count(analysis.TypeAudit))
}

func TestRunAuditSecondRunHitsCache(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{
		textDoc("d1", "invoice.txt"),
		textDoc("d2", "packing.txt"),
	}}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, analyses, nil, gen)

	_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)
	firstCalls := gen.callCount() // 2 extractions + 1 audit

	out, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	// only the audit call is new; both documents come from cache
	assert.Equal(t, firstCalls+1, gen.callCount())
	for _, e := range out.Extractions {
		assert.True(t, e.Cached, e.FileName)
	}
	// no new EXTRACTION rows were written
	assert.Equal(t, 2, analyses.count(analysis.TypeExtraction))
}

func TestRunAuditNoJSONReplyReportsUnknown(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{textDoc("d1", "invoice.txt")}}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: func(req ai.Request) (ai.Result, error) {
		if isAuditCall(req) {
			return ai.Result{Text: "I am unable to format a report today.", TokensUsed: 5}, nil
		}
		return ai.Result{Text: `{"field":"value"}`, TokensUsed: 5}, nil
	}}
	svc := newTestService(docs, analyses, nil, gen)

	out, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	assert.Equal(t, analysis.AuditStatusUnknown, out.AuditStatus)
	assert.Equal(t, "I am unable to format a report today.", out.RawText)
	assert.Nil(t, out.Report)
	assert.True(t, out.Degraded)

	// audit row persisted with nil structured payload, no promotion
	row := analyses.rows[len(analyses.rows)-1]
	assert.Equal(t, analysis.TypeAudit, row.Type)
	assert.Nil(t, row.Structured)
	assert.Equal(t, 0, docs.markCheckedCalls)
}

func TestRunAuditDegradedPassDoesNotPromote(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{textDoc("d1", "invoice.txt")}}
	gen := &fakeGen{reply: func(req ai.Request) (ai.Result, error) {
		if isAuditCall(req) {
			// PASS with no fenced block: too weak a signal to mutate documents
			return ai.Result{Text: `{"audit_status":"PASS","risk_level":"LOW"}`}, nil
		}
		return ai.Result{Text: `{"field":"value"}`}, nil
	}}
	svc := newTestService(docs, &fakeAnalyses{}, nil, gen)

	out, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	assert.Equal(t, analysis.AuditStatusPass, out.AuditStatus)
	assert.True(t, out.Degraded)
	assert.Equal(t, 0, docs.markCheckedCalls)
	assert.Equal(t, documents.StatusUploaded, docs.docs[0].Status)
}

func TestRunAuditConcurrentRequestsConflict(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{textDoc("d1", "invoice.txt")}}
	gen := &fakeGen{delay: 100 * time.Millisecond, reply: replyPassFenced}
	svc := newTestService(docs, &fakeAnalyses{}, nil, gen)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
		firstDone <- err
	}()

	// wait until the first audit is inside the model call
	require.Eventually(t, func() bool { return gen.callCount() > 0 }, time.Second, 5*time.Millisecond)

	_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	assert.ErrorIs(t, err, ErrAuditInProgress)

	require.NoError(t, <-firstDone)

	// lock released after completion; a third run succeeds
	_, err = svc.RunAudit(context.Background(), testTenant, testShipment)
	assert.NoError(t, err)
}

func TestRunAuditExtractionFanOutIsBounded(t *testing.T) {
	var all []*documents.Document
	for _, id := range []string{"d1", "d2", "d3", "d4", "d5", "d6"} {
		all = append(all, textDoc(id, id+".txt"))
	}
	docs := &fakeDocuments{docs: all}
	gen := &fakeGen{delay: 20 * time.Millisecond, reply: replyPassFenced}
	svc := newTestService(docs, &fakeAnalyses{}, nil, gen)
	svc.Concurrency = 2

	_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	assert.Equal(t, 7, gen.callCount()) // 6 extractions + 1 audit
	assert.LessOrEqual(t, gen.maxInFlight, 2)
}

func TestRunAuditExtractionFailureAborts(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{
		textDoc("d1", "invoice.txt"),
		textDoc("d2", "packing.txt"),
	}}
	analyses := &fakeAnalyses{}
	boom := errors.New("model unavailable")
	gen := &fakeGen{reply: func(req ai.Request) (ai.Result, error) {
		if strings.Contains(req.Messages[0].Content, "packing.txt") {
			return ai.Result{}, boom
		}
		return ai.Result{Text: `{"field":"value"}`}, nil
	}}
	svc := newTestService(docs, analyses, nil, gen)

	_, err := svc.RunAudit(context.Background(), testTenant, testShipment)
	require.ErrorIs(t, err, boom)

	// no AUDIT row on abort; surviving extraction rows stay as cache
	assert.Equal(t, 0, analyses.count(analysis.TypeAudit))
}

func TestExtractDocumentCacheAndForce(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{textDoc("d1", "invoice.txt")}}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, analyses, nil, gen)

	first, err := svc.ExtractDocument(context.Background(), testTenant, "d1", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, gen.callCount())

	second, err := svc.ExtractDocument(context.Background(), testTenant, "d1", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, gen.callCount()) // cache hit, no model call
	assert.Equal(t, first.RawText, second.RawText)

	third, err := svc.ExtractDocument(context.Background(), testTenant, "d1", true)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, gen.callCount()) // force bypasses the cache
	assert.Equal(t, 2, analyses.count(analysis.TypeExtraction))
}

func TestExtractDocumentFileMissingFallsBackToMetadata(t *testing.T) {
	doc := textDoc("d1", "invoice.txt")
	doc.DocNumber = "INV-42"
	docs := &fakeDocuments{docs: []*documents.Document{doc}}
	gen := &fakeGen{reply: replyPassFenced}
	// no files registered: every read fails
	svc := newTestService(docs, &fakeAnalyses{}, &fakeFiles{files: map[string][]byte{}}, gen)

	out, err := svc.ExtractDocument(context.Background(), testTenant, "d1", false)
	require.NoError(t, err)
	assert.False(t, out.Cached)

	msg := gen.call(0).Messages[0].Content
	assert.Contains(t, msg, "could not be read")
	assert.Contains(t, msg, "INV-42")
}

func TestExtractDocumentBinaryTruncation(t *testing.T) {
	doc := textDoc("d1", "invoice.pdf")
	doc.MimeType = "application/pdf"
	doc.SizeBytes = 9000
	docs := &fakeDocuments{docs: []*documents.Document{doc}}
	files := &fakeFiles{files: map[string][]byte{"acme/d1": make([]byte, 9000)}}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, &fakeAnalyses{}, files, gen)
	svc.BinaryPrefixLen = 100

	_, err := svc.ExtractDocument(context.Background(), testTenant, "d1", false)
	require.NoError(t, err)

	msg := gen.call(0).Messages[0].Content
	assert.Contains(t, msg, "truncated to first 100 characters")
	// the full encoding must not leak into the prompt
	full := base64.StdEncoding.EncodeToString(make([]byte, 9000))
	assert.NotContains(t, msg, full)
	assert.Contains(t, msg, full[:100])
}

func TestCrossCheckPreconditions(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{textDoc("d1", "invoice.txt")}}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: replyPassFenced}
	svc := newTestService(docs, analyses, nil, gen)

	// zero extractions
	_, err := svc.CrossCheck(context.Background(), testTenant, testShipment)
	require.ErrorIs(t, err, ErrNotEnoughExtractions)

	// exactly one extraction is still not enough
	_, err = svc.ExtractDocument(context.Background(), testTenant, "d1", false)
	require.NoError(t, err)
	_, err = svc.CrossCheck(context.Background(), testTenant, testShipment)
	require.ErrorIs(t, err, ErrNotEnoughExtractions)
}

func TestCrossCheckComparesLatestExtractions(t *testing.T) {
	docs := &fakeDocuments{docs: []*documents.Document{
		textDoc("d1", "invoice.txt"),
		textDoc("d2", "packing.txt"),
	}}
	analyses := &fakeAnalyses{}
	gen := &fakeGen{reply: func(req ai.Request) (ai.Result, error) {
		if strings.Contains(req.SystemPrompt, "Compare the extracted documents") {
			return ai.Result{
				Text:       "```json\n{\"cross_check_results\":[{\"field\":\"Gross weight\",\"status\":\"MATCH\"}],\"summary\":\"ok\"}\n```",
				TokensUsed: 50,
			}, nil
		}
		return ai.Result{Text: `{"gross_weight_kg":1000}`, TokensUsed: 10}, nil
	}}
	svc := newTestService(docs, analyses, nil, gen)

	for _, id := range []string{"d1", "d2"} {
		_, err := svc.ExtractDocument(context.Background(), testTenant, documents.DocumentID(id), false)
		require.NoError(t, err)
	}

	out, err := svc.CrossCheck(context.Background(), testTenant, testShipment)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Documents)
	require.NotNil(t, out.Structured)
	assert.Contains(t, string(out.Structured), "MATCH")
	assert.Equal(t, 1, analyses.count(analysis.TypeCrossCheck))

	// the comparison prompt carries both documents' extracted content
	last := gen.call(gen.callCount() - 1)
	assert.Contains(t, last.Messages[0].Content, "invoice.txt")
	assert.Contains(t, last.Messages[0].Content, "packing.txt")
	assert.Contains(t, last.Messages[0].Content, "gross_weight_kg")
}
