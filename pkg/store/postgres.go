package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
)

type PostgresConfig struct {
	ConnString string
	VectorDim  int
}

// Postgres backs both the document store and the vector store with a
// single database, exposed through the Documents and Vectors views.
// Embeddings live in their own table with a foreign key to documents,
// so deleting a document removes its vector in the same transaction
// and a vector can never outlive its document.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

// PostgresDocuments implements the document store over Postgres.
type PostgresDocuments struct {
	s *Postgres
}

// PostgresVectors implements the vector store over pgvector.
type PostgresVectors struct {
	s *Postgres
}

var (
	_ types.DocumentStore = (*PostgresDocuments)(nil)
	_ types.VectorStore   = (*PostgresVectors)(nil)
)

func NewPostgresWithConfig(config PostgresConfig) (*Postgres, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768 // Default for nomic-embed-text
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &Postgres{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Postgres) Documents() *PostgresDocuments {
	return &PostgresDocuments{s: s}
}

func (s *Postgres) Vectors() *PostgresVectors {
	return &PostgresVectors{s: s}
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createDocuments := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	_, err = s.pool.Exec(ctx, createDocuments)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %v", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS documents_user_created_idx
		ON documents (user_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create documents index: %v", err)
	}

	createEmbeddings := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_embeddings (
			document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.config.VectorDim)

	_, err = s.pool.Exec(ctx, createEmbeddings)
	if err != nil {
		return fmt.Errorf("failed to create embeddings table: %v", err)
	}

	// Create vector index
	createIndex := `
		CREATE INDEX IF NOT EXISTS document_embeddings_embedding_idx
		ON document_embeddings
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`

	_, err = s.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %v", err)
	}

	return nil
}

func (d *PostgresDocuments) Insert(ctx context.Context, doc *models.Document) error {
	_, err := d.s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, title, content, embedding_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.UserID, doc.Title, doc.Content, string(doc.EmbeddingStatus), doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %v", err)
	}
	return nil
}

func (d *PostgresDocuments) Get(ctx context.Context, owner, id string) (*models.Document, error) {
	return d.getWhere(ctx, `WHERE id = $1 AND user_id = $2`, id, owner)
}

func (d *PostgresDocuments) GetAny(ctx context.Context, id string) (*models.Document, error) {
	return d.getWhere(ctx, `WHERE id = $1`, id)
}

func (d *PostgresDocuments) getWhere(ctx context.Context, where string, args ...any) (*models.Document, error) {
	row := d.s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, content, embedding_status, created_at
		FROM documents `+where, args...)

	var doc models.Document
	var status string
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &status, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %v", err)
	}
	doc.EmbeddingStatus = models.EmbeddingStatus(status)

	return &doc, nil
}

func (d *PostgresDocuments) List(ctx context.Context, owner string) ([]models.Document, error) {
	rows, err := d.s.pool.Query(ctx, `
		SELECT id, user_id, title, content, embedding_status, created_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %v", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (d *PostgresDocuments) ListByStatus(ctx context.Context, statuses ...models.EmbeddingStatus) ([]models.Document, error) {
	wanted := make([]string, len(statuses))
	for i, st := range statuses {
		wanted[i] = string(st)
	}

	rows, err := d.s.pool.Query(ctx, `
		SELECT id, user_id, title, content, embedding_status, created_at
		FROM documents
		WHERE embedding_status = ANY($1)
		ORDER BY created_at`, wanted)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %v", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows pgx.Rows) ([]models.Document, error) {
	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var status string
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		doc.EmbeddingStatus = models.EmbeddingStatus(status)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %v", err)
	}

	return docs, nil
}

func (d *PostgresDocuments) Delete(ctx context.Context, owner, id string) error {
	// The foreign key cascades to document_embeddings, so the document
	// and its vector disappear together.
	tag, err := d.s.pool.Exec(ctx, `
		DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (d *PostgresDocuments) SetStatus(ctx context.Context, id string, from, to models.EmbeddingStatus) (bool, error) {
	tag, err := d.s.pool.Exec(ctx, `
		UPDATE documents SET embedding_status = $1
		WHERE id = $2 AND embedding_status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update status: %v", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (v *PostgresVectors) Upsert(ctx context.Context, documentID, owner string, vector []float32) error {
	if isZeroVector(vector) {
		return fmt.Errorf("refusing to store zero vector for document %s", documentID)
	}

	_, err := v.s.pool.Exec(ctx, `
		INSERT INTO document_embeddings (document_id, user_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			embedding = EXCLUDED.embedding`,
		documentID, owner, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %v", err)
	}
	return nil
}

func (v *PostgresVectors) Delete(ctx context.Context, documentID string) error {
	_, err := v.s.pool.Exec(ctx, `
		DELETE FROM document_embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %v", err)
	}
	return nil
}

// Query returns the owner's top-k ready vectors by cosine similarity.
// The join on embedding_status guarantees vectors of pending or failed
// documents are never visible, even if a stale vector row exists from
// an earlier attempt.
func (v *PostgresVectors) Query(ctx context.Context, owner string, vector []float32, k int) ([]models.VectorMatch, error) {
	rows, err := v.s.pool.Query(ctx, `
		SELECT e.document_id, 1 - (e.embedding <=> $1) AS similarity
		FROM document_embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE e.user_id = $2 AND d.embedding_status = 'ready'
		ORDER BY e.embedding <=> $1, d.created_at DESC
		LIMIT $3`,
		pgvector.NewVector(vector), owner, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %v", err)
	}
	defer rows.Close()

	var matches []models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		if err := rows.Scan(&m.DocumentID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match: %v", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %v", err)
	}

	return matches, nil
}

func isZeroVector(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}
