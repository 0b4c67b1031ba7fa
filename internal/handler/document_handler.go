package handler

import (
	"errors"

	"github.com/docchat-ai/docchat/internal/adapter/store"
	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
	"github.com/docchat-ai/docchat/internal/service"
	"github.com/gofiber/fiber/v3"
)

// DocumentHandler handles document upload and listing endpoints.
type DocumentHandler struct {
	ingest *service.IngestService
	store  *store.PostgresStore
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(ingest *service.IngestService, s *store.PostgresStore) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, store: s}
}

// Register sets up document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	docs := router.Group("/documents")
	docs.Post("/", h.Upload)
	docs.Get("/", h.List)
	docs.Get("/:id", h.Get)
}

// Upload accepts a batch of base64-encoded files, hands them to the external
// processing service and waits for every job to reach a terminal state. The
// response carries one outcome per file; a single failing file does not
// invalidate the rest of the batch.
func (h *DocumentHandler) Upload(c fiber.Ctx) error {
	var body struct {
		Files []port.FileUpload `json:"files"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(body.Files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no files provided"})
	}
	for _, f := range body.Files {
		if f.FileName == "" || f.FileContent == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "each file needs file_name and file_content"})
		}
	}

	outcomes, err := h.ingest.ProcessUploads(c.Context(), body.Files)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	for _, o := range outcomes {
		if o.DocumentID != "" {
			go h.store.WriteAudit(domain.AuditActionUpload, "document", o.DocumentID, o.FileName, c.IP(), c.Get("User-Agent"))
		}
	}

	return c.JSON(fiber.Map{"documents": outcomes, "count": len(outcomes)})
}

// List returns all documents, newest first.
func (h *DocumentHandler) List(c fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"documents": docs, "count": len(docs)})
}

// Get returns a single document.
func (h *DocumentHandler) Get(c fiber.Ctx) error {
	doc, err := h.store.GetDocument(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(doc)
}
