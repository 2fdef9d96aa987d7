// Package store loads searchable documents from the platform's Postgres
// database. It is the source of truth the index is built from and the
// fallback when a snapshot cannot be deserialized.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/clinilearn/casesearch/internal/index"
	cserrors "github.com/clinilearn/casesearch/pkg/errors"
	"github.com/clinilearn/casesearch/pkg/postgres"
)

// DocumentStore reads documents from the search_documents table.
type DocumentStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a DocumentStore over the given Postgres client.
func New(client *postgres.Client) *DocumentStore {
	return &DocumentStore{
		db:     client.DB,
		logger: slog.Default().With("component", "document-store"),
	}
}

const listQuery = `
SELECT id, doc_type, specialty, tags, published_at, title, description, content
FROM search_documents
ORDER BY created_at, id`

// ListDocuments returns every searchable document in creation order, so
// a rebuild reproduces the original insertion ordinals.
func (s *DocumentStore) ListDocuments(ctx context.Context) ([]index.Document, error) {
	rows, err := s.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []index.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	s.logger.Debug("documents loaded", "count", len(docs))
	return docs, nil
}

const getQuery = `
SELECT id, doc_type, specialty, tags, published_at, title, description, content
FROM search_documents
WHERE id = $1`

// GetDocument returns one document by id, or ErrDocumentNotFound.
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (index.Document, error) {
	row := s.db.QueryRowContext(ctx, getQuery, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return index.Document{}, fmt.Errorf("%w: %s", cserrors.ErrDocumentNotFound, id)
	}
	return doc, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (index.Document, error) {
	var (
		doc         index.Document
		docType     sql.NullString
		specialty   sql.NullString
		publishedAt sql.NullTime
		title       sql.NullString
		description sql.NullString
		content     sql.NullString
	)
	err := row.Scan(
		&doc.ID,
		&docType,
		&specialty,
		pq.Array(&doc.Tags),
		&publishedAt,
		&title,
		&description,
		&content,
	)
	if err == sql.ErrNoRows {
		return doc, err
	}
	if err != nil {
		return doc, fmt.Errorf("scanning document row: %w", err)
	}
	doc.Type = docType.String
	doc.Specialty = specialty.String
	if publishedAt.Valid {
		doc.Date = publishedAt.Time
	}
	doc.Fields = map[string]any{}
	if title.Valid {
		doc.Fields["title"] = title.String
	}
	if description.Valid {
		doc.Fields["description"] = description.String
	}
	if content.Valid {
		doc.Fields["content"] = content.String
	}
	return doc, nil
}
