package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

const maxExcerpts = 5

const excerptInstructions = "Use them to answer the user concisely and cite when you used document content. " +
	"The answer should be in plain language that non-professional people can understand. " +
	"If the excerpts do not cover the question, say so instead of guessing."

// RAGService decides, per chat turn, whether and how to splice retrieved
// document context into the model conversation.
type RAGService struct {
	ai        port.AIProvider
	vectors   port.VectorIndex
	indexBase string
	topK      int
}

// NewRAGService creates a new RAG service.
func NewRAGService(ai port.AIProvider, vectors port.VectorIndex, indexBase string, topK int) *RAGService {
	if topK <= 0 {
		topK = maxExcerpts
	}
	return &RAGService{ai: ai, vectors: vectors, indexBase: indexBase, topK: topK}
}

// Augment returns the message sequence to send to the model. When the
// conversation is bound to a document and the latest user message has text,
// relevant excerpts are retrieved and prepended as a single system message;
// in every other case the input sequence is returned unchanged. The input
// slice is never mutated.
func (s *RAGService) Augment(ctx context.Context, conv *domain.Conversation, messages []domain.Message) ([]domain.Message, error) {
	if conv == nil || conv.Binding == nil || conv.Binding.DocumentID == "" {
		return messages, nil
	}

	userText := latestUserText(messages)
	if userText == "" {
		return messages, nil
	}

	vector, err := s.ai.Embed(ctx, userText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	indexName := conv.Binding.IndexName
	if indexName == "" {
		if s.indexBase == "" {
			return nil, &port.ConfigError{Missing: "VECTOR_INDEX", Hint: "base name for vector indexes"}
		}
		indexName = IndexName(s.indexBase, len(vector))
	}

	matches, err := s.vectors.Query(ctx, indexName, conv.Binding.DocumentID, vector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("query index %q: %w", indexName, err)
	}

	excerpts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Text == "" {
			continue
		}
		excerpts = append(excerpts, m.Metadata.Text)
		if len(excerpts) == maxExcerpts {
			break
		}
	}
	if len(excerpts) == 0 {
		return messages, nil
	}

	slog.Info("retrieval context attached", "conversation_id", conv.ID, "document_id", conv.Binding.DocumentID, "excerpts", len(excerpts))

	contextMessage := domain.Message{
		Role: domain.RoleSystem,
		Content: fmt.Sprintf("Relevant excerpts from the document:\n\n%s\n\n%s",
			strings.Join(excerpts, "\n\n---\n\n"), excerptInstructions),
	}

	augmented := make([]domain.Message, 0, len(messages)+1)
	augmented = append(augmented, contextMessage)
	augmented = append(augmented, messages...)
	return augmented, nil
}

// Answer runs one non-streaming retrieval-augmented chat turn.
func (s *RAGService) Answer(ctx context.Context, conv *domain.Conversation, userMessage string) (string, error) {
	messages := append(historyOf(conv), domain.Message{Role: domain.RoleUser, Content: userMessage})

	augmented, err := s.Augment(ctx, conv, messages)
	if err != nil {
		return "", err
	}
	return s.ai.Chat(ctx, augmented)
}

// AnswerStream runs one retrieval-augmented chat turn, streaming the response
// token-by-token. The caller owns transcript finalization.
func (s *RAGService) AnswerStream(ctx context.Context, conv *domain.Conversation, userMessage string) (<-chan string, error) {
	messages := append(historyOf(conv), domain.Message{Role: domain.RoleUser, Content: userMessage})

	augmented, err := s.Augment(ctx, conv, messages)
	if err != nil {
		return nil, err
	}
	return s.ai.ChatStream(ctx, augmented)
}

// QueryDocument retrieves excerpts for an ad-hoc question against a document
// without a conversation, answering from a derived index name.
func (s *RAGService) QueryDocument(ctx context.Context, documentID, question string) (string, []domain.QueryMatch, error) {
	if s.indexBase == "" {
		return "", nil, &port.ConfigError{Missing: "VECTOR_INDEX", Hint: "base name for vector indexes"}
	}

	vector, err := s.ai.Embed(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}

	indexName := IndexName(s.indexBase, len(vector))
	matches, err := s.vectors.Query(ctx, indexName, documentID, vector, s.topK)
	if err != nil {
		return "", nil, fmt.Errorf("query index %q: %w", indexName, err)
	}

	excerpts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Text != "" {
			excerpts = append(excerpts, m.Metadata.Text)
		}
	}

	messages := []domain.Message{{Role: domain.RoleUser, Content: question}}
	if len(excerpts) > 0 {
		messages = []domain.Message{
			{
				Role: domain.RoleSystem,
				Content: fmt.Sprintf("Relevant excerpts from the document:\n\n%s\n\n%s",
					strings.Join(excerpts, "\n\n---\n\n"), excerptInstructions),
			},
			{Role: domain.RoleUser, Content: question},
		}
	}

	answer, err := s.ai.Chat(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("chat: %w", err)
	}
	return answer, matches, nil
}

func historyOf(conv *domain.Conversation) []domain.Message {
	if conv == nil {
		return nil
	}
	history := make([]domain.Message, len(conv.Messages))
	copy(history, conv.Messages)
	return history
}

// latestUserText extracts the text of the most recent user message.
func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
