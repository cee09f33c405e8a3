package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appaudit "github.com/nam4792-debug/agologistics-sub001/internal/application/audit"
	appdocs "github.com/nam4792-debug/agologistics-sub001/internal/application/documents"
	domai "github.com/nam4792-debug/agologistics-sub001/internal/domain/ai"
	domdocs "github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
	domships "github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
	"github.com/nam4792-debug/agologistics-sub001/internal/middleware"
)

// errBadRequest wraps caller-correctable input errors.
var errBadRequest = errors.New("bad request")

const maxUploadBytes = 32 << 20

type Router struct {
	auditSvc *appaudit.Service
	docsSvc  *appdocs.Service
}

func NewRouter(auditSvc *appaudit.Service, docsSvc *appdocs.Service) http.Handler {
	r := &Router{auditSvc: auditSvc, docsSvc: docsSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/shipments/{id}/audit", r.wrap(r.handleRunAudit))
		rt.Post("/shipments/{id}/cross-check", r.wrap(r.handleCrossCheck))
		rt.Get("/shipments/{id}/audit/latest", r.wrap(r.handleLatestAudit))
		rt.Get("/shipments/{id}/analyses", r.wrap(r.handleListAnalyses))
		rt.Post("/shipments/{id}/documents", r.wrap(r.handleUploadDocument))
		rt.Get("/shipments/{id}/documents", r.wrap(r.handleListDocuments))
		rt.Post("/documents/{id}/extract", r.wrap(r.handleExtract))
		rt.Patch("/documents/{id}/status", r.wrap(r.handleDocumentStatus))
		rt.Delete("/documents/{id}", r.wrap(r.handleDeleteDocument))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors to status codes. Internal errors are logged and
// redacted; the raw message never reaches the caller.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domships.ErrNotFound),
			errors.Is(err, domdocs.ErrNotFound),
			errors.Is(err, sql.ErrNoRows):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, domdocs.ErrNoDocuments),
			errors.Is(err, appaudit.ErrNotEnoughExtractions),
			errors.Is(err, domdocs.ErrInvalidTransition),
			errors.Is(err, errBadRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, appaudit.ErrAuditInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		default:
			log.Printf("request failed: method=%s path=%s err=%v", req.Method, req.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/{tenant}/shipments/{id}/audit
func (r *Router) handleRunAudit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	out, err := r.auditSvc.RunAudit(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	middleware.IncrementAudits()
	middleware.AddTokensUsed(out.TokensUsed)
	return writeJSON(w, out)
}

// POST /v1/{tenant}/shipments/{id}/cross-check
func (r *Router) handleCrossCheck(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	out, err := r.auditSvc.CrossCheck(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	middleware.IncrementCrossChecks()
	middleware.AddTokensUsed(out.TokensUsed)
	return writeJSON(w, out)
}

// POST /v1/{tenant}/documents/{id}/extract?force=true
func (r *Router) handleExtract(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	force := req.URL.Query().Get("force") == "true"

	out, err := r.auditSvc.ExtractDocument(req.Context(), tenant, domdocs.DocumentID(id), force)
	if err != nil {
		return err
	}
	if !out.Cached {
		middleware.IncrementExtractions()
		middleware.AddTokensUsed(out.TokensUsed)
	}
	return writeJSON(w, out)
}

// GET /v1/{tenant}/shipments/{id}/audit/latest
func (r *Router) handleLatestAudit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	row, err := r.auditSvc.LatestAudit(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	if row == nil {
		http.Error(w, "no audit yet", http.StatusNotFound)
		return nil
	}
	return writeJSON(w, row)
}

// GET /v1/{tenant}/shipments/{id}/analyses?page=&page_size=
func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.auditSvc.ListAnalyses(req.Context(), tenant, id, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// POST /v1/{tenant}/shipments/{id}/documents (multipart: file, type, doc_number)
func (r *Router) handleUploadDocument(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	shipmentID := chi.URLParam(req, "id")

	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: file is required", errBadRequest)
	}
	defer file.Close()

	docType := req.FormValue("type")
	if err := middleware.ValidateDocumentType(docType); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateMimeType(header.Header.Get("Content-Type")); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	doc, err := r.docsSvc.Upload(req.Context(), appdocs.UploadCommand{
		TenantID:   tenant,
		ShipmentID: shipmentID,
		Type:       docType,
		DocNumber:  req.FormValue("doc_number"),
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Data:       data,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(doc)
}

// GET /v1/{tenant}/shipments/{id}/documents
func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	list, err := r.docsSvc.List(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// PATCH /v1/{tenant}/documents/{id}/status
// Body: {"status": "approved"}
func (r *Router) handleDocumentStatus(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateDocumentStatus(body.Status); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	doc, err := r.docsSvc.UpdateStatus(req.Context(), tenant, domdocs.DocumentID(id), domdocs.Status(body.Status))
	if err != nil {
		return err
	}
	return writeJSON(w, doc)
}

// DELETE /v1/{tenant}/documents/{id}
func (r *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	if err := r.docsSvc.Delete(req.Context(), tenant, domdocs.DocumentID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
