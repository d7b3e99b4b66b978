package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lendgate/internal/document"
	"lendgate/pkg/sentinel"
)

// Schema creates the document record table. inline_data carries the base64
// payload when the inline backend is configured, storage_key otherwise.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    id                    TEXT PRIMARY KEY,
    user_id               TEXT NOT NULL,
    activation_profile_id TEXT,
    document_type         TEXT NOT NULL,
    original_filename     TEXT NOT NULL,
    file_size             BIGINT NOT NULL,
    mime_type             TEXT NOT NULL,
    checksum              TEXT NOT NULL DEFAULT '',
    storage_key           TEXT NOT NULL DEFAULT '',
    inline_data           TEXT NOT NULL DEFAULT '',
    verification_status   TEXT NOT NULL DEFAULT 'pending',
    verification_notes    TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL,
    CHECK (storage_key = '' OR inline_data = '')
);
CREATE INDEX IF NOT EXISTS documents_user_id_idx ON documents (user_id, created_at DESC)`

// PostgresRecords stores document metadata rows.
type PostgresRecords struct {
	db *sql.DB
}

func NewPostgresRecords(db *sql.DB) *PostgresRecords {
	return &PostgresRecords{db: db}
}

const selectDocument = `
SELECT id, user_id, activation_profile_id, document_type, original_filename,
       file_size, mime_type, checksum, storage_key, inline_data,
       verification_status, verification_notes, created_at, updated_at
FROM documents`

func (s *PostgresRecords) Create(ctx context.Context, doc *document.Document) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (
    id, user_id, activation_profile_id, document_type, original_filename,
    file_size, mime_type, checksum, storage_key, inline_data,
    verification_status, verification_notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.UserID, nullable(doc.ActivationProfileID),
		string(doc.DocumentType), doc.OriginalFilename, doc.FileSize,
		doc.MimeType, doc.Checksum, doc.StorageKey, doc.InlineData,
		string(doc.VerificationStatus), doc.VerificationNotes,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresRecords) Get(ctx context.Context, documentID string) (*document.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, selectDocument+" WHERE id = $1", documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresRecords) Update(ctx context.Context, doc *document.Document) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE documents SET
    activation_profile_id = $2,
    document_type         = $3,
    original_filename     = $4,
    file_size             = $5,
    mime_type             = $6,
    checksum              = $7,
    storage_key           = $8,
    inline_data           = $9,
    verification_status   = $10,
    verification_notes    = $11,
    updated_at            = $12
WHERE id = $1`,
		doc.ID, nullable(doc.ActivationProfileID), string(doc.DocumentType),
		doc.OriginalFilename, doc.FileSize, doc.MimeType, doc.Checksum,
		doc.StorageKey, doc.InlineData, string(doc.VerificationStatus),
		doc.VerificationNotes, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRecords) Delete(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRecords) ListForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		selectDocument+" WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*document.Document, error) {
	return scanDocumentRow(row)
}

func scanDocumentRow(row rowScanner) (*document.Document, error) {
	var (
		doc       document.Document
		docType   string
		status    string
		profileID sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.UserID, &profileID, &docType,
		&doc.OriginalFilename, &doc.FileSize, &doc.MimeType, &doc.Checksum,
		&doc.StorageKey, &doc.InlineData, &status, &doc.VerificationNotes,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.DocumentType = document.Type(docType)
	doc.VerificationStatus = document.VerificationStatus(status)
	if profileID.Valid {
		doc.ActivationProfileID = profileID.String
	}
	return &doc, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
