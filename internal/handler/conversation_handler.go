package handler

import (
	"errors"

	"github.com/docchat-ai/docchat/internal/adapter/store"
	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
	"github.com/docchat-ai/docchat/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ConversationHandler handles conversation lifecycle endpoints.
type ConversationHandler struct {
	ingest *service.IngestService
	store  *store.PostgresStore
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(ingest *service.IngestService, s *store.PostgresStore) *ConversationHandler {
	return &ConversationHandler{ingest: ingest, store: s}
}

// Register sets up conversation routes.
func (h *ConversationHandler) Register(router fiber.Router) {
	conv := router.Group("/conversations")
	conv.Post("/from-document", h.CreateFromDocument)
	conv.Get("/", h.List)
	conv.Get("/:id", h.Get)
	conv.Delete("/:id", h.Delete)
}

// CreateFromDocument runs the ingestion pipeline over a document's extracted
// text and creates a conversation bound to the resulting index, so chat turns
// can retrieve from it without recomputing the index name.
func (h *ConversationHandler) CreateFromDocument(c fiber.Ctx) error {
	var body struct {
		DocumentID string `json:"document_id"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.DocumentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "document_id required"})
	}

	doc, err := h.store.GetDocument(c.Context(), body.DocumentID)
	if errors.Is(err, port.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	indexName, dimension, err := h.ingest.IngestDocument(c.Context(), doc)
	if errors.Is(err, port.ErrNoExtractedText) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no text available for embeddings"})
	}
	var cfgErr *port.ConfigError
	if errors.As(err, &cfgErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": cfgErr.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	conv, err := h.store.CreateConversation(c.Context(), &domain.Conversation{
		Title: "Chat: " + doc.Filename,
		Binding: &domain.ConversationBinding{
			DocumentID:   doc.ID,
			IndexName:    indexName,
			EmbeddingDim: dimension,
		},
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	go h.store.WriteAudit(domain.AuditActionIngest, "document", doc.ID, indexName, c.IP(), c.Get("User-Agent"))

	return c.JSON(fiber.Map{"id": conv.ID})
}

// List returns all conversations without transcripts.
func (h *ConversationHandler) List(c fiber.Ctx) error {
	conversations, err := h.store.ListConversations(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"conversations": conversations, "count": len(conversations)})
}

// Get returns a conversation with its full transcript.
func (h *ConversationHandler) Get(c fiber.Ctx) error {
	conv, err := h.store.GetConversation(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrConversationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(conv)
}

// Delete removes a conversation and its transcript.
func (h *ConversationHandler) Delete(c fiber.Ctx) error {
	err := h.store.DeleteConversation(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrConversationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}
