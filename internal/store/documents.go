package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/model"
)

// documentRow maps 1:1 to the documents table. The body is kept as text so
// every dialect scans it the same way.
type documentRow struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       string    `db:"data"`
	Published  bool      `db:"published"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func documentRowFromModel(doc *model.Document) documentRow {
	data := string(doc.Data)
	if data == "" {
		data = "{}"
	}
	return documentRow{
		Collection: doc.Collection,
		ID:         doc.ID,
		Data:       data,
		Published:  doc.Published,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func (r documentRow) toModel() model.Document {
	return model.Document{
		ID:         r.ID,
		Collection: r.Collection,
		Data:       json.RawMessage(r.Data),
		Published:  r.Published,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// CreateDocument inserts a document. A UUIDv7 is assigned when ID is empty.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.Must(uuid.NewV7()).String()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	const q = `INSERT INTO documents
		(collection, id, data, published, created_at, updated_at)
		VALUES
		(:collection, :id, :data, :published, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, documentRowFromModel(doc)); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns one document from a collection.
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*model.Document, error) {
	var row documentRow
	q := s.db.Rebind("SELECT * FROM documents WHERE collection = ? AND id = ?")
	if err := s.db.GetContext(ctx, &row, q, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc := row.toModel()
	return &doc, nil
}

// ListDocuments returns documents of a collection, newest first, together
// with the total count matching the visibility filter.
func (s *Store) ListDocuments(ctx context.Context, collection string, opts model.ListOptions) ([]model.Document, int, error) {
	where := "WHERE collection = ?"
	args := []interface{}{collection}
	if !opts.IncludeUnpublished {
		where += " AND published = ?"
		args = append(args, true)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM documents "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	q := "SELECT * FROM documents " + where + " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]model.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.toModel()
	}
	return docs, total, nil
}

// UpdateDocument replaces a document's body and published flag. UpdatedAt is
// refreshed and CreatedAt reloaded from the stored row.
func (s *Store) UpdateDocument(ctx context.Context, doc *model.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	row := documentRowFromModel(doc)

	const q = `UPDATE documents SET
		data = :data, published = :published, updated_at = :updated_at
		WHERE collection = :collection AND id = :id`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	stored, err := s.GetDocument(ctx, doc.Collection, doc.ID)
	if err != nil {
		return err
	}
	doc.CreatedAt = stored.CreatedAt
	return nil
}

// PutDocument creates the document under a fixed ID or replaces it when it
// already exists. Used for singleton documents such as site settings.
func (s *Store) PutDocument(ctx context.Context, doc *model.Document) error {
	if _, err := s.GetDocument(ctx, doc.Collection, doc.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.CreateDocument(ctx, doc)
		}
		return err
	}
	return s.UpdateDocument(ctx, doc)
}

// DeleteDocument removes a document from a collection.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	q := s.db.Rebind("DELETE FROM documents WHERE collection = ? AND id = ?")
	result, err := s.db.ExecContext(ctx, q, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDocuments returns the number of documents in a collection.
func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM documents WHERE collection = ?")
	if err := s.db.GetContext(ctx, &count, q, collection); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}
