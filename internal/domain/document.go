package domain

import "time"

// Document is an uploaded file after external processing: its summary plus the
// plain text extracted for later Q&A. ExtractedText is immutable once stored.
type Document struct {
	ID            string    `json:"id"             db:"id"`
	Filename      string    `json:"filename"       db:"filename"`
	Summary       string    `json:"summary"        db:"summary"`
	ExtractedText string    `json:"extracted_text" db:"extracted_text"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
}

// Chunk is one sliding window over a document's extracted text. Chunks are
// transient: produced and consumed within a single ingestion call.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// ChunkMetadata is stored alongside each vector so retrieval can recover the
// source text without a second lookup.
type ChunkMetadata struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

// VectorRecord is one embedded chunk as written to the vector index.
// The ID is "{documentID}::{chunkIndex}", unique within a namespace.
type VectorRecord struct {
	ID       string        `json:"id"`
	Values   []float32     `json:"values"`
	Metadata ChunkMetadata `json:"metadata"`
}

// QueryMatch is a single nearest-neighbor result, highest similarity first.
type QueryMatch struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}
