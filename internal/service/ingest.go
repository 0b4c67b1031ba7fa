package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

// minExtractedTextLen guards against indexing documents whose extraction
// produced nothing usable.
const minExtractedTextLen = 20

// IndexName derives the vector index name from the configured base and the
// embedding dimensionality actually produced. Pure function: embeddings of
// different dimensionality never share an index.
func IndexName(base string, dimension int) string {
	return fmt.Sprintf("%s-%d", base, dimension)
}

// DocumentSaver is the slice of the store the ingest service needs.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, d *domain.Document) (*domain.Document, error)
}

// IngestService runs the full upload pipeline: submit files to the external
// processing service, poll their jobs to completion, persist the resulting
// documents, and populate a per-document vector namespace from the extracted
// text.
type IngestService struct {
	ai         port.AIProvider
	vectors    port.VectorIndex
	processing port.ProcessingClient
	poller     *JobPoller
	store      DocumentSaver

	indexBase    string
	chunkSize    int
	chunkOverlap int
}

// NewIngestService creates an ingest service.
func NewIngestService(ai port.AIProvider, vectors port.VectorIndex, processing port.ProcessingClient, poller *JobPoller, store DocumentSaver, indexBase string, chunkSize, chunkOverlap int) *IngestService {
	return &IngestService{
		ai:           ai,
		vectors:      vectors,
		processing:   processing,
		poller:       poller,
		store:        store,
		indexBase:    indexBase,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// UploadOutcome is the per-file result of an upload batch.
type UploadOutcome struct {
	FileName   string `json:"file_name"`
	DocumentID string `json:"document_id,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProcessUploads submits the files for external processing, waits on all jobs
// concurrently and persists a document per finished job. A failing file is
// reported in its outcome; the other files stay valid.
func (s *IngestService) ProcessUploads(ctx context.Context, files []port.FileUpload) ([]UploadOutcome, error) {
	jobs, err := s.processing.Submit(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("submit uploads: %w", err)
	}

	slog.Info("uploads submitted", "files", len(files), "jobs", len(jobs))

	outcomes := make([]UploadOutcome, 0, len(jobs))
	for _, outcome := range s.poller.WaitAll(ctx, jobs) {
		result := UploadOutcome{FileName: outcome.Job.FileName}
		if outcome.Err != nil {
			result.Error = outcome.Err.Error()
			outcomes = append(outcomes, result)
			continue
		}

		parsed := parseProcessingResult(outcome.Update.Result)
		doc, err := s.store.SaveDocument(ctx, &domain.Document{
			Filename:      outcome.Job.FileName,
			Summary:       parsed.Summary,
			ExtractedText: parsed.ExtractedText,
		})
		if err != nil {
			result.Error = err.Error()
			outcomes = append(outcomes, result)
			continue
		}

		result.DocumentID = doc.ID
		result.Summary = doc.Summary
		outcomes = append(outcomes, result)
	}

	return outcomes, nil
}

// parseProcessingResult validates the summarizer payload of a finished job.
// A malformed payload is recovered locally: the raw output becomes the summary
// string rather than failing the whole ingestion.
func parseProcessingResult(raw json.RawMessage) domain.ProcessingResult {
	if len(raw) == 0 {
		return domain.ProcessingResult{}
	}

	var parsed domain.ProcessingResult
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Summary != "" {
		return parsed
	}

	// Maybe the payload is a bare JSON string.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.ProcessingResult{Summary: strings.TrimSpace(text)}
	}

	slog.Warn("processing result did not match expected structure, using raw payload as summary")
	return domain.ProcessingResult{Summary: strings.TrimSpace(string(raw))}
}

// IngestDocument chunks, embeds and upserts a document's extracted text into
// its own namespace, returning the resolved index name and the embedding
// dimensionality so the caller can bind them to a conversation.
func (s *IngestService) IngestDocument(ctx context.Context, doc *domain.Document) (string, int, error) {
	text := strings.TrimSpace(doc.ExtractedText)
	if len(text) < minExtractedTextLen {
		return "", 0, port.ErrNoExtractedText
	}
	if s.indexBase == "" {
		return "", 0, &port.ConfigError{Missing: "VECTOR_INDEX", Hint: "base name for vector indexes"}
	}

	chunks, err := ChunkText(text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return "", 0, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return "", 0, port.ErrNoExtractedText
	}

	embeddings, err := s.ai.EmbedBatch(ctx, chunks)
	if err != nil {
		return "", 0, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	dimension := len(embeddings[0])
	if dimension == 0 {
		return "", 0, fmt.Errorf("embed document %s: empty embedding", doc.ID)
	}
	indexName := IndexName(s.indexBase, dimension)

	records := make([]domain.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.VectorRecord{
			ID:     fmt.Sprintf("%s::%d", doc.ID, i),
			Values: embeddings[i],
			Metadata: domain.ChunkMetadata{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				ChunkIndex: i,
				Text:       chunk,
			},
		}
	}

	if err := s.vectors.Upsert(ctx, indexName, doc.ID, records); err != nil {
		return "", 0, fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	slog.Info("document indexed", "document_id", doc.ID, "chunks", len(chunks), "index", indexName, "dimension", dimension)
	return indexName, dimension, nil
}
