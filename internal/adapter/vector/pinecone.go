package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
)

// Config holds connection details for the vector index service.
type Config struct {
	APIURL string // control plane, e.g. https://api.pinecone.io
	APIKey string
	Cloud  string // serverless spec for index auto-creation
	Region string
}

// Client implements port.VectorIndex against a Pinecone-compatible REST API.
// The control plane resolves index hosts; data-plane calls go to the index host
// directly. Resolved hosts are cached per index for the client's lifetime.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	hosts map[string]string // index name -> data-plane host
}

// NewClient creates a vector index client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		hosts:      make(map[string]string),
	}
}

// Upsert writes records into the namespace of the given index.
//
// If the index does not exist it is auto-created with the dimensionality of the
// first record, provided cloud/region configuration is available; creation
// conflicts (a concurrent creator) are treated as success, and the upsert is
// retried exactly once after the index reports ready.
func (c *Client) Upsert(ctx context.Context, index, namespace string, records []domain.VectorRecord) error {
	if strings.TrimSpace(index) == "" {
		return errors.New("vector upsert: index name is required")
	}
	if strings.TrimSpace(namespace) == "" {
		return errors.New("vector upsert: namespace is required")
	}
	if len(records) == 0 {
		return nil
	}

	err := c.upsertOnce(ctx, index, namespace, records)
	if err == nil {
		return nil
	}

	var notFound *port.NotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	dimension := len(records[0].Values)
	if dimension == 0 {
		return fmt.Errorf("vector upsert: cannot infer embedding dimension to create index %q", index)
	}

	if c.cfg.Cloud == "" || c.cfg.Region == "" {
		return &port.ConfigError{
			Missing: "VECTOR_CLOUD and VECTOR_REGION",
			Hint:    fmt.Sprintf("index %q not found; create it manually or set both so it can be auto-created", index),
		}
	}

	if err := c.createIndex(ctx, index, dimension); err != nil {
		return err
	}
	if err := c.waitUntilReady(ctx, index); err != nil {
		return err
	}

	return c.upsertOnce(ctx, index, namespace, records)
}

// Query returns up to topK nearest records in the namespace with their metadata.
func (c *Client) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]domain.QueryMatch, error) {
	if strings.TrimSpace(index) == "" {
		return nil, errors.New("vector query: index name is required")
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("vector query: namespace is required")
	}
	if topK <= 0 {
		topK = 5
	}

	host, err := c.hostFor(ctx, index)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"namespace":       namespace,
		"includeMetadata": true,
	}

	var resp struct {
		Matches []domain.QueryMatch `json:"matches"`
	}
	if err := c.do(ctx, http.MethodPost, dataURL(host)+"/query", payload, &resp); err != nil {
		var notFound *port.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &port.NotFoundError{Resource: "index", Name: index}
		}
		return nil, fmt.Errorf("vector query: %w", err)
	}

	if resp.Matches == nil {
		return []domain.QueryMatch{}, nil
	}
	return resp.Matches, nil
}

func (c *Client) upsertOnce(ctx context.Context, index, namespace string, records []domain.VectorRecord) error {
	host, err := c.hostFor(ctx, index)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"vectors":   records,
		"namespace": namespace,
	}
	if err := c.do(ctx, http.MethodPost, dataURL(host)+"/vectors/upsert", payload, nil); err != nil {
		var notFound *port.NotFoundError
		if errors.As(err, &notFound) {
			c.forgetHost(index)
			return &port.NotFoundError{Resource: "index", Name: index}
		}
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// describeIndex resolves an index on the control plane. A 404 surfaces as
// *port.NotFoundError so callers can tell "no index yet" apart from transient
// backend failures.
func (c *Client) describeIndex(ctx context.Context, index string) (*indexDescription, error) {
	var desc indexDescription
	err := c.do(ctx, http.MethodGet, c.cfg.APIURL+"/indexes/"+index, nil, &desc)
	if err != nil {
		var notFound *port.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &port.NotFoundError{Resource: "index", Name: index}
		}
		return nil, fmt.Errorf("describe index %q: %w", index, err)
	}
	return &desc, nil
}

// createIndex creates a serverless index. "Already exists" is success: a
// concurrent creator must not escalate to failure.
func (c *Client) createIndex(ctx context.Context, index string, dimension int) error {
	payload := map[string]interface{}{
		"name":      index,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]interface{}{
			"serverless": map[string]string{
				"cloud":  c.cfg.Cloud,
				"region": c.cfg.Region,
			},
		},
	}

	err := c.do(ctx, http.MethodPost, c.cfg.APIURL+"/indexes", payload, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("create index %q: %w", index, err)
	}
	return nil
}

// waitUntilReady blocks until the index accepts writes.
func (c *Client) waitUntilReady(ctx context.Context, index string) error {
	deadline := time.Now().Add(2 * time.Minute)
	for {
		desc, err := c.describeIndex(ctx, index)
		if err == nil && desc.Status.Ready {
			c.rememberHost(index, desc.Host)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("index %q was not ready in time", index)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) hostFor(ctx context.Context, index string) (string, error) {
	c.mu.Lock()
	host, ok := c.hosts[index]
	c.mu.Unlock()
	if ok {
		return host, nil
	}

	desc, err := c.describeIndex(ctx, index)
	if err != nil {
		return "", err
	}
	c.rememberHost(index, desc.Host)
	return desc.Host, nil
}

func (c *Client) rememberHost(index, host string) {
	if host == "" {
		return
	}
	c.mu.Lock()
	c.hosts[index] = host
	c.mu.Unlock()
}

func (c *Client) forgetHost(index string) {
	c.mu.Lock()
	delete(c.hosts, index)
	c.mu.Unlock()
}

// dataURL prefixes the data-plane host with https unless a scheme is present.
func dataURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// apiError carries the upstream status and body of a non-2xx response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("vector API error (%d): %s", e.Status, e.Body)
}

// do issues a JSON request and decodes the response into out when non-nil.
// 404 responses are normalized to *port.NotFoundError.
func (c *Client) do(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Api-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &port.NotFoundError{Resource: "resource", Name: url}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &apiError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
