package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PDFRepository interface {
	CreatePDF(ctx context.Context, f *model.PDFFile) error
	GetPDF(ctx context.Context, id int64) (*model.PDFFile, error)
	// ListPDFsByUser returns the newest files first.
	ListPDFsByUser(ctx context.Context, userID int64, limit int) ([]model.PDFFile, error)
	PDFFilenameExists(ctx context.Context, userID int64, filename string) (bool, error)
	// DeletePDF removes the record; strokes and images cascade.
	DeletePDF(ctx context.Context, id int64) error
}

type pdfRepo struct {
	pool *pgxpool.Pool
}

func NewPDFRepo(pool *pgxpool.Pool) PDFRepository {
	return &pdfRepo{pool: pool}
}

const pdfColumns = `id, user_id, filename, file_path, file_size, page_count, quota_used, created_at, updated_at`

func (r *pdfRepo) CreatePDF(ctx context.Context, f *model.PDFFile) error {
	const q = `
		INSERT INTO pdf_files (user_id, filename, file_path, file_size, page_count, quota_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + pdfColumns
	row := r.pool.QueryRow(ctx, q, f.UserID, f.Filename, f.FilePath, f.FileSize, f.PageCount, f.QuotaUsed)
	if err := scanPDF(row, f); err != nil {
		return fmt.Errorf("creating pdf %s for user %d: %w", f.Filename, f.UserID, err)
	}
	return nil
}

func (r *pdfRepo) GetPDF(ctx context.Context, id int64) (*model.PDFFile, error) {
	const q = `SELECT ` + pdfColumns + ` FROM pdf_files WHERE id = $1`
	var f model.PDFFile
	if err := scanPDF(r.pool.QueryRow(ctx, q, id), &f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching pdf %d: %w", id, err)
	}
	return &f, nil
}

func (r *pdfRepo) ListPDFsByUser(ctx context.Context, userID int64, limit int) ([]model.PDFFile, error) {
	const q = `
		SELECT ` + pdfColumns + `
		FROM pdf_files
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pdfs for user %d: %w", userID, err)
	}
	defer rows.Close()

	files := []model.PDFFile{}
	for rows.Next() {
		var f model.PDFFile
		if err := scanPDF(rows, &f); err != nil {
			return nil, fmt.Errorf("scanning pdf row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pdf rows: %w", err)
	}
	return files, nil
}

func (r *pdfRepo) PDFFilenameExists(ctx context.Context, userID int64, filename string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM pdf_files WHERE user_id = $1 AND filename = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, userID, filename).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking filename %s for user %d: %w", filename, userID, err)
	}
	return exists, nil
}

func (r *pdfRepo) DeletePDF(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pdf_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting pdf %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPDF(row pgx.Row, f *model.PDFFile) error {
	return row.Scan(&f.ID, &f.UserID, &f.Filename, &f.FilePath, &f.FileSize, &f.PageCount, &f.QuotaUsed, &f.CreatedAt, &f.UpdatedAt)
}
