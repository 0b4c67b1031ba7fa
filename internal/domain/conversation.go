package domain

import (
	"errors"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role      string    `json:"role"      db:"role"`
	Content   string    `json:"content"   db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConversationBinding ties a conversation to a source document and remembers
// which vector index (and embedding dimensionality) was used at ingestion time,
// so retrieval never has to guess the index even if the default embedding model
// changes later.
type ConversationBinding struct {
	DocumentID   string `json:"document_id"            db:"document_id"`
	IndexName    string `json:"index_name,omitempty"   db:"index_name"`
	EmbeddingDim int    `json:"embedding_dim,omitempty" db:"embedding_dim"`
}

// Validate enforces the binding invariants at write time.
func (b *ConversationBinding) Validate() error {
	if b == nil {
		return nil
	}
	if b.DocumentID == "" {
		return errors.New("binding requires a document id")
	}
	if (b.IndexName == "") != (b.EmbeddingDim == 0) {
		return errors.New("index name and embedding dimension must be set together")
	}
	if b.EmbeddingDim < 0 {
		return errors.New("embedding dimension must be positive")
	}
	return nil
}

// Conversation is a chat transcript, optionally bound to a document for
// retrieval-augmented answers. The transcript is append-only.
type Conversation struct {
	ID        string               `json:"id"         db:"id"`
	Title     string               `json:"title"      db:"title"`
	Messages  []Message            `json:"messages"`
	Binding   *ConversationBinding `json:"binding,omitempty"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}
