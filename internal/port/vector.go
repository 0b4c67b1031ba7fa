package port

import (
	"context"

	"github.com/docchat-ai/docchat/internal/domain"
)

// VectorIndex abstracts a namespaced remote vector database. One namespace per
// document; indexes are named per embedding dimensionality so vectors of
// different sizes never collide.
type VectorIndex interface {
	// Upsert writes records by ID into the namespace of the given index,
	// auto-creating the index on first use. An empty batch is a no-op.
	// Index and namespace must be non-empty; violating this is a caller
	// contract error, not a backend error.
	Upsert(ctx context.Context, index, namespace string, records []domain.VectorRecord) error

	// Query returns up to topK nearest records in the namespace, ranked by
	// similarity, each with its stored metadata. A missing index surfaces as
	// *NotFoundError; a namespace with no data yields an empty match list.
	Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]domain.QueryMatch, error)
}
