package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

func boundConversation() *domain.Conversation {
	return &domain.Conversation{
		ID: "conv-1",
		Binding: &domain.ConversationBinding{
			DocumentID:   "doc-1",
			IndexName:    "docs-384",
			EmbeddingDim: 384,
		},
	}
}

func userMessages(content string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: content}}
}

func TestAugment_NoBindingIsIdentity(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{}
	rag := NewRAGService(ai, vectors, "docs", 5)

	messages := userMessages("what does the report say?")
	out, err := rag.Augment(context.Background(), &domain.Conversation{ID: "conv-1"}, messages)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
	assert.Empty(t, ai.embedCalls, "no retrieval should be attempted")
	assert.Empty(t, vectors.queries)
}

func TestAugment_NoUserTextIsIdentity(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{}
	rag := NewRAGService(ai, vectors, "docs", 5)

	messages := []domain.Message{{Role: domain.RoleAssistant, Content: "hello"}}
	out, err := rag.Augment(context.Background(), boundConversation(), messages)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
	assert.Empty(t, ai.embedCalls)
}

func TestAugment_NoMatchesIsIdentity(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{}
	rag := NewRAGService(ai, vectors, "docs", 5)

	messages := userMessages("question")
	out, err := rag.Augment(context.Background(), boundConversation(), messages)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
	require.Len(t, vectors.queries, 1)
}

func TestAugment_PrependsSingleContextMessage(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{
		matches: []domain.QueryMatch{
			{ID: "doc-1::0", Score: 0.9, Metadata: domain.ChunkMetadata{Text: "first excerpt"}},
			{ID: "doc-1::3", Score: 0.8, Metadata: domain.ChunkMetadata{Text: ""}},
			{ID: "doc-1::1", Score: 0.7, Metadata: domain.ChunkMetadata{Text: "second excerpt"}},
		},
	}
	rag := NewRAGService(ai, vectors, "docs", 5)

	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "earlier question"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
		{Role: domain.RoleUser, Content: "what medications are mentioned?"},
	}

	out, err := rag.Augment(context.Background(), boundConversation(), messages)
	require.NoError(t, err)
	require.Len(t, out, len(messages)+1)

	context0 := out[0]
	assert.Equal(t, domain.RoleSystem, context0.Role)
	assert.Contains(t, context0.Content, "first excerpt")
	assert.Contains(t, context0.Content, "second excerpt")
	assert.NotContains(t, context0.Content, "earlier answer")

	// Excerpts appear in relevance order, separated visibly.
	assert.Less(t,
		strings.Index(context0.Content, "first excerpt"),
		strings.Index(context0.Content, "second excerpt"))
	assert.Contains(t, context0.Content, "\n\n---\n\n")

	// Original messages are unmodified, in order, after the context.
	assert.Equal(t, messages, out[1:])
}

func TestAugment_CapsExcerptsAtFive(t *testing.T) {
	matches := make([]domain.QueryMatch, 7)
	for i := range matches {
		matches[i] = domain.QueryMatch{Metadata: domain.ChunkMetadata{Text: strings.Repeat("x", i+1)}}
	}

	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{matches: matches}
	rag := NewRAGService(ai, vectors, "docs", 10)

	out, err := rag.Augment(context.Background(), boundConversation(), userMessages("q"))
	require.NoError(t, err)

	separators := strings.Count(out[0].Content, "\n\n---\n\n")
	assert.Equal(t, maxExcerpts-1, separators)
}

func TestAugment_PrefersBoundIndexName(t *testing.T) {
	ai := &fakeAI{dimension: 768} // dimension differs from the bound index
	vectors := &fakeVectorIndex{}
	rag := NewRAGService(ai, vectors, "docs", 5)

	conv := boundConversation() // bound to docs-384
	_, err := rag.Augment(context.Background(), conv, userMessages("q"))
	require.NoError(t, err)

	require.Len(t, vectors.queries, 1)
	assert.Equal(t, "docs-384", vectors.queries[0].index)
	assert.Equal(t, "doc-1", vectors.queries[0].namespace)
	assert.Equal(t, 5, vectors.queries[0].topK)
}

func TestAugment_DerivesIndexNameFromDimension(t *testing.T) {
	ai := &fakeAI{dimension: 768}
	vectors := &fakeVectorIndex{}
	rag := NewRAGService(ai, vectors, "docs", 5)

	conv := &domain.Conversation{
		ID:      "conv-1",
		Binding: &domain.ConversationBinding{DocumentID: "doc-1"},
	}
	_, err := rag.Augment(context.Background(), conv, userMessages("q"))
	require.NoError(t, err)

	require.Len(t, vectors.queries, 1)
	assert.Equal(t, "docs-768", vectors.queries[0].index)
}

func TestAugment_MissingIndexBaseIsConfigError(t *testing.T) {
	ai := &fakeAI{dimension: 768}
	rag := NewRAGService(ai, &fakeVectorIndex{}, "", 5)

	conv := &domain.Conversation{
		ID:      "conv-1",
		Binding: &domain.ConversationBinding{DocumentID: "doc-1"},
	}
	_, err := rag.Augment(context.Background(), conv, userMessages("q"))

	var cfgErr *port.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "VECTOR_INDEX")
}

func TestAugment_QueryErrorPropagates(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{queryErr: &port.NotFoundError{Resource: "index", Name: "docs-384"}}
	rag := NewRAGService(ai, vectors, "docs", 5)

	_, err := rag.Augment(context.Background(), boundConversation(), userMessages("q"))

	var notFound *port.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "docs-384", notFound.Name)
}

func TestAnswer_UsesAugmentedMessages(t *testing.T) {
	ai := &fakeAI{dimension: 384, chatReply: "grounded answer"}
	vectors := &fakeVectorIndex{
		matches: []domain.QueryMatch{{Metadata: domain.ChunkMetadata{Text: "an excerpt"}}},
	}
	rag := NewRAGService(ai, vectors, "docs", 5)

	conv := boundConversation()
	conv.Messages = []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}

	reply, err := rag.Answer(context.Background(), conv, "what is in the report?")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", reply)

	require.Len(t, ai.chatCalls, 1)
	sent := ai.chatCalls[0]
	require.Len(t, sent, 4) // context + 2 history + new user message
	assert.Equal(t, domain.RoleSystem, sent[0].Role)
	assert.Equal(t, "what is in the report?", sent[len(sent)-1].Content)
}

func TestQueryDocument_ReturnsAnswerAndSources(t *testing.T) {
	ai := &fakeAI{dimension: 384, chatReply: "the answer"}
	vectors := &fakeVectorIndex{
		matches: []domain.QueryMatch{{ID: "doc-1::0", Metadata: domain.ChunkMetadata{Text: "source text"}}},
	}
	rag := NewRAGService(ai, vectors, "docs", 5)

	answer, matches, err := rag.QueryDocument(context.Background(), "doc-1", "question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-1::0", matches[0].ID)

	require.Len(t, vectors.queries, 1)
	assert.Equal(t, "docs-384", vectors.queries[0].index)
	assert.Equal(t, "doc-1", vectors.queries[0].namespace)
}
