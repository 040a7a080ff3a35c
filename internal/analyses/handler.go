package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/documents"
	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/shared/server/middleware"
	"contract-analyzer/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	DocRepo documents.DocumentsRepo
	// Async enqueues analyze requests instead of running them inline.
	Async bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, docRepo documents.DocumentsRepo, async bool) *Handler {
	return &Handler{Svc: svc, DocRepo: docRepo, Async: async}
}

// DocumentDetail is a document with its analysis results embedded.
type DocumentDetail struct {
	documents.DocumentResponse
	AnalysisResults []AnalysisResult `json:"analysisResults"`
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id", h.getDocument)
	rg.POST("/documents/:id/analyze", h.analyze)
	rg.GET("/documents/:id/analyses", h.listResults)
}

// loadDocument resolves :id for the caller and writes the error response on failure.
func (h *Handler) loadDocument(c *gin.Context) (documents.Document, bool) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return documents.Document{}, false
	}
	doc, err := h.DocRepo.GetByID(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found or you don't have permission to access it", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load document", nil)
		}
		return documents.Document{}, false
	}
	middleware.SetDocumentID(c, doc.ID)
	return doc, true
}

func (h *Handler) getDocument(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	results, err := h.Svc.List(c.Request.Context(), doc.ID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analyses", nil)
		return
	}
	respond.OK(c, DocumentDetail{
		DocumentResponse: documents.ToResponse(doc),
		AnalysisResults:  results,
	})
}

func (h *Handler) analyze(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	if h.Async {
		if err := h.Svc.Enqueue(ctx, doc); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to queue analysis", nil)
			return
		}
		respond.Accepted(c, gin.H{
			"documentId": doc.ID,
			"status":     "queued",
		})
		return
	}

	out, err := h.Svc.Analyze(ctx, doc)
	if err != nil {
		var parseErr *extract.DocumentParseError
		switch {
		case errors.Is(err, ErrAnalysisInProgress):
			respond.Error(c, http.StatusConflict, "analysis_in_progress", "an analysis for this document is already running", nil)
		case errors.Is(err, ErrUnsupportedFormat):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_format", "document type is not supported for analysis", gin.H{"mimeType": doc.MimeType})
		case errors.As(err, &parseErr):
			respond.Error(c, http.StatusInternalServerError, "document_parse_error", "Failed to analyze document", gin.H{"mimeType": parseErr.MimeType})
		default:
			respond.Error(c, http.StatusInternalServerError, "analysis_failed", "Failed to analyze document", nil)
		}
		return
	}
	middleware.SetStatusTransition(c, doc.Status+"->"+documents.StatusAnalyzed)
	respond.OK(c, out)
}

func (h *Handler) listResults(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	results, err := h.Svc.List(c.Request.Context(), doc.ID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, results)
}
