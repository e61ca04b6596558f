package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"planethero/internal/database"

	"go.uber.org/zap"
)

// ===============================
// POSTGRES DOCUMENT STORE
// ===============================
//
// Documents live in one table keyed by (collection, id) with a jsonb body.
// Increment and append are single UPDATE statements; the row lock taken by
// UPDATE serializes concurrent writers to the same document.

const (
	pgGetDocument = `SELECT fields FROM documents WHERE collection = $1 AND id = $2`

	pgReplaceDocument = `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`

	pgMergeDocument = `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = NOW()`

	pgCreateDocument = `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`

	pgIncrementField = `
		UPDATE documents
		SET fields = jsonb_set(
				fields,
				ARRAY[$3::text],
				to_jsonb(COALESCE((fields->>($3::text))::bigint, 0) + $4::bigint),
				true),
			updated_at = NOW()
		WHERE collection = $1 AND id = $2`

	pgAppendToSet = `
		UPDATE documents
		SET fields = jsonb_set(
				fields,
				ARRAY[$3::text],
				CASE
					WHEN COALESCE(fields->($3::text), '[]'::jsonb) @> to_jsonb(ARRAY[$4::text])
						THEN COALESCE(fields->($3::text), '[]'::jsonb)
					ELSE COALESCE(fields->($3::text), '[]'::jsonb) || to_jsonb(ARRAY[$4::text])
				END,
				true),
			updated_at = NOW()
		WHERE collection = $1 AND id = $2`

	pgListDocuments = `SELECT id, fields FROM documents WHERE collection = $1 ORDER BY id`
)

type postgresStore struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewPostgresStore wraps a database manager whose schema has been migrated.
func NewPostgresStore(db *database.Manager, logger *zap.Logger) DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresStore{db: db, logger: logger}
}

func (s *postgresStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, pgGetDocument, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get document: %w", err)
	}

	fields, err := decodeDocumentJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("postgres decode document: %w", err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *postgresStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	body, err := encodeDocumentJSON(fields)
	if err != nil {
		return err
	}

	query := pgReplaceDocument
	if merge {
		query = pgMergeDocument
	}
	if _, err := s.db.ExecContext(ctx, query, collection, id, body); err != nil {
		return fmt.Errorf("postgres set document: %w", err)
	}
	return nil
}

func (s *postgresStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := encodeDocumentJSON(fields)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, pgCreateDocument, collection, id, body)
	if err != nil {
		return fmt.Errorf("postgres create document: %w", err)
	}
	return requireRow(result, ErrAlreadyExists)
}

func (s *postgresStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) error {
	result, err := s.db.ExecContext(ctx, pgIncrementField, collection, id, field, delta)
	if err != nil {
		return fmt.Errorf("postgres increment %q: %w", field, err)
	}
	return requireRow(result, ErrNotFound)
}

func (s *postgresStore) AppendToSet(ctx context.Context, collection, id, field, value string) error {
	result, err := s.db.ExecContext(ctx, pgAppendToSet, collection, id, field, value)
	if err != nil {
		return fmt.Errorf("postgres append to %q: %w", field, err)
	}
	return requireRow(result, ErrNotFound)
}

func (s *postgresStore) ListDocuments(ctx context.Context, collection string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, pgListDocuments, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("postgres scan document: %w", err)
		}
		fields, err := decodeDocumentJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres decode document %q: %w", id, err)
		}
		docs = append(docs, &Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres list documents: %w", err)
	}
	return docs, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

// QueryMetrics reports the connection pool and query counters.
func (s *postgresStore) QueryMetrics() *database.MetricsSnapshot {
	return s.db.Metrics()
}

// requireRow maps "no row touched" to notTouched.
func requireRow(result sql.Result, notTouched error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres rows affected: %w", err)
	}
	if n == 0 {
		return notTouched
	}
	return nil
}

func encodeDocumentJSON(fields map[string]interface{}) (string, error) {
	body, err := json.Marshal(normalizeFields(fields))
	if err != nil {
		return "", fmt.Errorf("store: encode document: %w", err)
	}
	return string(body), nil
}

// decodeDocumentJSON decodes a jsonb body keeping integers exact. Arrays made
// only of strings come back as []string, matching the other backends.
func decodeDocumentJSON(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		switch t := v.(type) {
		case json.Number:
			if i, err := t.Int64(); err == nil {
				fields[k] = i
			} else if f, err := t.Float64(); err == nil {
				fields[k] = f
			}
		case []interface{}:
			if strs, ok := stringSlice(t); ok {
				fields[k] = strs
			}
		}
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return fields, nil
}

func stringSlice(items []interface{}) ([]string, bool) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
