package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

// fakeAI returns deterministic embeddings whose dimension is configurable and
// records every call.
type fakeAI struct {
	dimension  int
	embedErr   error
	chatReply  string
	chatErr    error
	embedCalls [][]string
	chatCalls  [][]domain.Message
}

func (f *fakeAI) ModelName() string { return "fake" }

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.embedCalls = append(f.embedCalls, texts)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dimension)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (f *fakeAI) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	f.chatCalls = append(f.chatCalls, messages)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

func (f *fakeAI) ChatStream(ctx context.Context, messages []domain.Message) (<-chan string, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	f.chatCalls = append(f.chatCalls, messages)
	ch := make(chan string, 1)
	ch <- f.chatReply
	close(ch)
	return ch, nil
}

// fakeVectorIndex records upserts and serves canned query matches.
type fakeVectorIndex struct {
	matches  []domain.QueryMatch
	queryErr error

	upserts []upsertCall
	queries []queryCall
}

type upsertCall struct {
	index     string
	namespace string
	records   []domain.VectorRecord
}

type queryCall struct {
	index     string
	namespace string
	topK      int
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, index, namespace string, records []domain.VectorRecord) error {
	f.upserts = append(f.upserts, upsertCall{index: index, namespace: namespace, records: records})
	return nil
}

func (f *fakeVectorIndex) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]domain.QueryMatch, error) {
	f.queries = append(f.queries, queryCall{index: index, namespace: namespace, topK: topK})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

// fakeProcessing serves scripted job updates, one script per job ID.
type fakeProcessing struct {
	mu      sync.Mutex
	scripts map[string][]port.JobUpdate
	calls   map[string]int
	jobs    []port.EnqueuedJob
}

func newFakeProcessing() *fakeProcessing {
	return &fakeProcessing{
		scripts: make(map[string][]port.JobUpdate),
		calls:   make(map[string]int),
	}
}

func (f *fakeProcessing) script(jobID string, updates ...port.JobUpdate) {
	f.scripts[jobID] = updates
}

func (f *fakeProcessing) Submit(ctx context.Context, files []port.FileUpload) ([]port.EnqueuedJob, error) {
	return f.jobs, nil
}

func (f *fakeProcessing) JobStatus(ctx context.Context, jobID string) (*port.JobUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	script, ok := f.scripts[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, port.ErrJobNotFound)
	}
	n := f.calls[jobID]
	f.calls[jobID]++
	if n >= len(script) {
		n = len(script) - 1 // terminal statuses never change
	}
	update := script[n]
	return &update, nil
}

func (f *fakeProcessing) pollCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[jobID]
}

// fakeDocStore implements DocumentSaver in memory.
type fakeDocStore struct {
	saveErr error
	saved   []domain.Document
}

func (f *fakeDocStore) SaveDocument(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	doc := *d
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(f.saved)+1)
	}
	f.saved = append(f.saved, doc)
	return &doc, nil
}

var errBackendDown = errors.New("backend down")
