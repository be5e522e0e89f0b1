package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type DocumentRepo struct {
	db DB
}

func NewDocumentRepo(db DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `id, uploader_id, room_id, title, subject, filename, storage_key,
	file_size, mime_type, source, source_url, extracted_text, created_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	d := &models.Document{}
	err := row.Scan(
		&d.ID, &d.UploaderID, &d.RoomID, &d.Title, &d.Subject, &d.Filename, &d.StorageKey,
		&d.FileSize, &d.MimeType, &d.Source, &d.SourceURL, &d.ExtractedText, &d.CreatedAt,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return d, nil
}

func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO documents (id, uploader_id, room_id, title, subject, filename, storage_key,
			file_size, mime_type, source, source_url, extracted_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		d.ID, d.UploaderID, d.RoomID, d.Title, d.Subject, d.Filename, d.StorageKey,
		d.FileSize, d.MimeType, d.Source, d.SourceURL, d.ExtractedText,
	).Scan(&d.CreatedAt)
}

func (r *DocumentRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND uploader_id = $2`, id, userID)
	return scanDocument(row)
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE uploader_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		// Listing omits the extracted body.
		d.ExtractedText = ""
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx, `DELETE FROM documents WHERE id = $1 AND uploader_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
