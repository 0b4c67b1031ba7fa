package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docchat-ai/docchat/internal/adapter/store"
	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
	"github.com/docchat-ai/docchat/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ChatHandler handles retrieval-augmented chat turns over a conversation.
type ChatHandler struct {
	rag   *service.RAGService
	store *store.PostgresStore
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(rag *service.RAGService, s *store.PostgresStore) *ChatHandler {
	return &ChatHandler{rag: rag, store: s}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	chat := router.Group("/chat")
	chat.Post("/:conversationId", h.Chat)
}

// Chat runs one chat turn. With stream=true the response is sent as SSE
// tokens; either way the finalized exchange is appended to the transcript
// exactly once, after the full response exists.
func (h *ChatHandler) Chat(c fiber.Ctx) error {
	var body struct {
		Message string `json:"message"`
		Stream  bool   `json:"stream"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message required"})
	}

	conv, err := h.store.GetConversation(c.Context(), c.Params("conversationId"))
	if errors.Is(err, port.ErrConversationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !body.Stream {
		chatCtx, cancel := context.WithTimeout(c.Context(), 2*time.Minute)
		defer cancel()

		reply, err := h.rag.Answer(chatCtx, conv, body.Message)
		if err != nil {
			return h.chatError(c, err)
		}
		if err := h.store.AppendExchange(context.Background(), conv.ID, body.Message, reply); err != nil {
			slog.Error("failed to persist exchange", "conversation_id", conv.ID, "error", err)
		}
		go h.store.WriteAudit(domain.AuditActionChatTurn, "conversation", conv.ID, "", c.IP(), c.Get("User-Agent"))
		return c.JSON(fiber.Map{"response": reply, "conversation_id": conv.ID})
	}

	tokens, err := h.rag.AnswerStream(c.Context(), conv, body.Message)
	if err != nil {
		return h.chatError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	// Captured before streaming starts; the context is recycled after.
	ip := c.IP()
	userAgent := c.Get("User-Agent")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		var full strings.Builder
		for token := range tokens {
			full.WriteString(token)
			data, _ := json.Marshal(fiber.Map{"token": token})
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}

		// Phase 2 of the turn: the stream has completed, persist the
		// exchange once. The request context may already be gone if the
		// consumer disconnected, so the write uses its own context.
		if full.Len() > 0 {
			if err := h.store.AppendExchange(context.Background(), conv.ID, body.Message, full.String()); err != nil {
				slog.Error("failed to persist exchange", "conversation_id", conv.ID, "error", err)
			}
			go h.store.WriteAudit(domain.AuditActionChatTurn, "conversation", conv.ID, "", ip, userAgent)
		}

		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		w.Flush()
	})
}

func (h *ChatHandler) chatError(c fiber.Ctx, err error) error {
	var cfgErr *port.ConfigError
	if errors.As(err, &cfgErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": cfgErr.Error()})
	}
	var notFound *port.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": notFound.Error() + "; ingest the document before chatting about it",
		})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
}
