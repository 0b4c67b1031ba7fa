package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
	"github.com/google/uuid"
)

// PostgresStore handles all relational database operations: documents,
// conversations, transcripts and the audit log. Vectors live in the remote
// vector index, never here.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, ensures the schema and returns a store
// instance. The handle is created once per process and shared; opening is
// idempotent at the pool level.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			summary TEXT NOT NULL DEFAULT '',
			extracted_text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			document_id TEXT REFERENCES documents(id),
			index_name TEXT,
			embedding_dim INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Documents ---

// SaveDocument inserts a document, generating an ID when absent. Filenames are
// unique: re-uploading one returns the existing record untouched, keeping
// extracted text immutable.
func (s *PostgresStore) SaveDocument(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	query := `INSERT INTO documents (id, filename, summary, extracted_text)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (filename) DO NOTHING
	          RETURNING id, filename, summary, extracted_text, created_at`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query, d.ID, d.Filename, d.Summary, d.ExtractedText).Scan(
		&doc.ID, &doc.Filename, &doc.Summary, &doc.ExtractedText, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return s.GetDocumentByFilename(ctx, d.Filename)
	}
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return &doc, nil
}

// GetDocument returns a document by ID.
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT id, filename, summary, extracted_text, created_at FROM documents WHERE id = $1`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Filename, &doc.Summary, &doc.ExtractedText, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// GetDocumentByFilename returns a document by its unique filename.
func (s *PostgresStore) GetDocumentByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	query := `SELECT id, filename, summary, extracted_text, created_at FROM documents WHERE filename = $1`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query, filename).Scan(
		&doc.ID, &doc.Filename, &doc.Summary, &doc.ExtractedText, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document by filename: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	query := `SELECT id, filename, summary, extracted_text, created_at FROM documents ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Summary, &doc.ExtractedText, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// --- Conversations ---

// CreateConversation inserts a conversation, validating its document binding
// at write time.
func (s *PostgresStore) CreateConversation(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	if err := c.Binding.Validate(); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	var docID, indexName sql.NullString
	var dim sql.NullInt64
	if c.Binding != nil {
		docID = sql.NullString{String: c.Binding.DocumentID, Valid: true}
		if c.Binding.IndexName != "" {
			indexName = sql.NullString{String: c.Binding.IndexName, Valid: true}
			dim = sql.NullInt64{Int64: int64(c.Binding.EmbeddingDim), Valid: true}
		}
	}

	query := `INSERT INTO conversations (id, title, document_id, index_name, embedding_dim)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at`

	if err := s.db.QueryRowContext(ctx, query, c.ID, c.Title, docID, indexName, dim).Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// GetConversation returns a conversation with its full transcript.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT id, title, document_id, index_name, embedding_dim, created_at
	          FROM conversations WHERE id = $1`

	var c domain.Conversation
	var docID, indexName sql.NullString
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &docID, &indexName, &dim, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	if docID.Valid {
		c.Binding = &domain.ConversationBinding{
			DocumentID:   docID.String,
			IndexName:    indexName.String,
			EmbeddingDim: int(dim.Int64),
		}
	}

	msgQuery := `SELECT role, content, created_at FROM conversation_messages
	             WHERE conversation_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, msgQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

// ListConversations returns all conversations without transcripts, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	query := `SELECT id, title, document_id, index_name, embedding_dim, created_at
	          FROM conversations ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var docID, indexName sql.NullString
		var dim sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Title, &docID, &indexName, &dim, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if docID.Valid {
			c.Binding = &domain.ConversationBinding{
				DocumentID:   docID.String,
				IndexName:    indexName.String,
				EmbeddingDim: int(dim.Int64),
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its transcript.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrConversationNotFound
	}
	return nil
}

// AppendExchange atomically appends one completed user/assistant exchange to a
// conversation's transcript. This is the second phase of the chat turn: it runs
// exactly once, after the response stream has completed in full.
func (s *PostgresStore) AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO conversation_messages (conversation_id, role, content) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, conversationID, domain.RoleUser, userContent); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, conversationID, domain.RoleAssistant, assistantContent); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}

	return tx.Commit()
}

// --- Audit ---

// WriteAudit persists one audit record.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(query, action, resource, resourceID, details, ip, userAgent)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns recent audit records, optionally filtered by action.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs WHERE ($2 = '' OR action = $2)
	          ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit, action)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.Action, &l.Resource, &l.ResourceID, &l.Details, &l.IP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
