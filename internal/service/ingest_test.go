package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

func TestIndexName(t *testing.T) {
	assert.Equal(t, "docs-384", IndexName("docs", 384))
	assert.Equal(t, "docs-768", IndexName("docs", 768))
	assert.Equal(t, "medical-reports-1536", IndexName("medical-reports", 1536))
}

func TestParseProcessingResult(t *testing.T) {
	t.Run("structured payload", func(t *testing.T) {
		raw := json.RawMessage(`{"summary":"a blood panel","medications":[{"name":"aspirin","purpose":"pain"}],"extracted_text":"full text"}`)
		parsed := parseProcessingResult(raw)
		assert.Equal(t, "a blood panel", parsed.Summary)
		assert.Equal(t, "full text", parsed.ExtractedText)
		require.Len(t, parsed.Medications, 1)
		assert.Equal(t, "aspirin", parsed.Medications[0].Name)
	})

	t.Run("bare json string", func(t *testing.T) {
		parsed := parseProcessingResult(json.RawMessage(`"  just a summary  "`))
		assert.Equal(t, "just a summary", parsed.Summary)
		assert.Empty(t, parsed.Medications)
	})

	t.Run("malformed payload becomes raw summary", func(t *testing.T) {
		parsed := parseProcessingResult(json.RawMessage(`{"summ`))
		assert.Equal(t, `{"summ`, parsed.Summary)
	})

	t.Run("valid json without summary becomes raw summary", func(t *testing.T) {
		parsed := parseProcessingResult(json.RawMessage(`{"other":"field"}`))
		assert.Equal(t, `{"other":"field"}`, parsed.Summary)
	})

	t.Run("empty payload", func(t *testing.T) {
		parsed := parseProcessingResult(nil)
		assert.Empty(t, parsed.Summary)
	})
}

func TestIngestDocument_UpsertsChunkRecords(t *testing.T) {
	ai := &fakeAI{dimension: 384}
	vectors := &fakeVectorIndex{}
	svc := NewIngestService(ai, vectors, newFakeProcessing(), NewJobPoller(newFakeProcessing(), 0, 0), &fakeDocStore{}, "docs", 40, 10)

	doc := &domain.Document{
		ID:            "doc-1",
		Filename:      "report.pdf",
		ExtractedText: strings.Repeat("lorem ipsum dolor sit amet ", 10),
	}

	indexName, dimension, err := svc.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "docs-384", indexName)
	assert.Equal(t, 384, dimension)

	require.Len(t, vectors.upserts, 1)
	up := vectors.upserts[0]
	assert.Equal(t, "docs-384", up.index)
	assert.Equal(t, "doc-1", up.namespace, "each document gets its own namespace")
	require.NotEmpty(t, up.records)

	for i, rec := range up.records {
		assert.Equal(t, fmt.Sprintf("doc-1::%d", i), rec.ID)
		assert.Len(t, rec.Values, 384)
		assert.Equal(t, "doc-1", rec.Metadata.DocumentID)
		assert.Equal(t, "report.pdf", rec.Metadata.Filename)
		assert.Equal(t, i, rec.Metadata.ChunkIndex)
		assert.NotEmpty(t, rec.Metadata.Text)
	}
}

func TestIngestDocument_TooLittleText(t *testing.T) {
	svc := NewIngestService(&fakeAI{dimension: 384}, &fakeVectorIndex{}, newFakeProcessing(), nil, &fakeDocStore{}, "docs", 1000, 200)

	for _, text := range []string{"", "   ", "short"} {
		_, _, err := svc.IngestDocument(context.Background(), &domain.Document{ID: "doc-1", ExtractedText: text})
		assert.ErrorIs(t, err, port.ErrNoExtractedText)
	}
}

func TestIngestDocument_MissingIndexBase(t *testing.T) {
	svc := NewIngestService(&fakeAI{dimension: 384}, &fakeVectorIndex{}, newFakeProcessing(), nil, &fakeDocStore{}, "", 1000, 200)

	_, _, err := svc.IngestDocument(context.Background(), &domain.Document{
		ID:            "doc-1",
		ExtractedText: "long enough extracted text to pass the minimum",
	})

	var cfgErr *port.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "VECTOR_INDEX")
}

func TestIngestDocument_EmbedErrorPropagates(t *testing.T) {
	ai := &fakeAI{embedErr: errBackendDown}
	vectors := &fakeVectorIndex{}
	svc := NewIngestService(ai, vectors, newFakeProcessing(), nil, &fakeDocStore{}, "docs", 1000, 200)

	_, _, err := svc.IngestDocument(context.Background(), &domain.Document{
		ID:            "doc-1",
		ExtractedText: "long enough extracted text to pass the minimum",
	})

	require.ErrorIs(t, err, errBackendDown)
	assert.Empty(t, vectors.upserts, "nothing may be upserted when embedding fails")
}

func TestProcessUploads_MixedOutcomes(t *testing.T) {
	processing := newFakeProcessing()
	processing.jobs = []port.EnqueuedJob{
		{JobID: "job-ok", FileName: "good.pdf"},
		{JobID: "job-bad", FileName: "bad.pdf"},
	}
	processing.script("job-ok", port.JobUpdate{
		JobID:  "job-ok",
		Status: domain.JobStatusFinished,
		Result: json.RawMessage(`{"summary":"a clean bill of health","extracted_text":"the full report text"}`),
	})
	processing.script("job-bad", port.JobUpdate{
		JobID:  "job-bad",
		Status: domain.JobStatusFailed,
		Error:  "unreadable scan",
	})

	store := &fakeDocStore{}
	poller := NewJobPoller(processing, 0, 0)
	svc := NewIngestService(&fakeAI{dimension: 384}, &fakeVectorIndex{}, processing, poller, store, "docs", 1000, 200)

	outcomes, err := svc.ProcessUploads(context.Background(), []port.FileUpload{
		{FileName: "good.pdf"}, {FileName: "bad.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byName := map[string]UploadOutcome{}
	for _, o := range outcomes {
		byName[o.FileName] = o
	}

	good := byName["good.pdf"]
	assert.NotEmpty(t, good.DocumentID)
	assert.Equal(t, "a clean bill of health", good.Summary)
	assert.Empty(t, good.Error)

	bad := byName["bad.pdf"]
	assert.Empty(t, bad.DocumentID)
	assert.Contains(t, bad.Error, "unreadable scan")

	require.Len(t, store.saved, 1, "only the finished job is persisted")
	assert.Equal(t, "good.pdf", store.saved[0].Filename)
	assert.Equal(t, "the full report text", store.saved[0].ExtractedText)
}

func TestProcessUploads_SubmitFailure(t *testing.T) {
	svc := NewIngestService(&fakeAI{dimension: 384}, &fakeVectorIndex{}, failingProcessing{}, nil, &fakeDocStore{}, "docs", 1000, 200)

	_, err := svc.ProcessUploads(context.Background(), []port.FileUpload{{FileName: "a.pdf"}})
	require.ErrorIs(t, err, errBackendDown)
}

func TestProcessUploads_StoreFailureIsPerFile(t *testing.T) {
	processing := newFakeProcessing()
	processing.jobs = []port.EnqueuedJob{{JobID: "job-1", FileName: "a.pdf"}}
	processing.script("job-1", port.JobUpdate{
		JobID:  "job-1",
		Status: domain.JobStatusFinished,
		Result: json.RawMessage(`{"summary":"ok"}`),
	})

	svc := NewIngestService(&fakeAI{dimension: 384}, &fakeVectorIndex{}, processing, NewJobPoller(processing, 0, 0), &fakeDocStore{saveErr: errBackendDown}, "docs", 1000, 200)

	outcomes, err := svc.ProcessUploads(context.Background(), []port.FileUpload{{FileName: "a.pdf"}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0].Error, "backend down")
}

type failingProcessing struct{}

func (failingProcessing) Submit(ctx context.Context, files []port.FileUpload) ([]port.EnqueuedJob, error) {
	return nil, errBackendDown
}

func (failingProcessing) JobStatus(ctx context.Context, jobID string) (*port.JobUpdate, error) {
	return nil, errBackendDown
}
