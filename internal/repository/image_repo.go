package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ImageRepository stores images placed on pages. List methods return
// creation order; a page of 0 means every page.
type ImageRepository interface {
	CreateImage(ctx context.Context, img *model.PageImage) error
	GetImage(ctx context.Context, id int64) (*model.PageImage, error)
	ListImages(ctx context.Context, pdfID int64, page int) ([]model.PageImage, error)
	UpdateImagePlacement(ctx context.Context, id int64, p model.ImagePlacement) (*model.PageImage, error)
	DeleteImage(ctx context.Context, id int64) error
}

type imageRepo struct {
	pool *pgxpool.Pool
}

func NewImageRepo(pool *pgxpool.Pool) ImageRepository {
	return &imageRepo{pool: pool}
}

const imageColumns = `id, pdf_id, page_number, image_path, x, y, img_width, img_height, rotation, created_at`

func (r *imageRepo) CreateImage(ctx context.Context, img *model.PageImage) error {
	const q = `
		INSERT INTO page_images (pdf_id, page_number, image_path, x, y, img_width, img_height, rotation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + imageColumns
	row := r.pool.QueryRow(ctx, q, img.PDFID, img.PageNumber, img.ImagePath, img.X, img.Y, img.Width, img.Height, img.Rotation)
	if err := scanImage(row, img); err != nil {
		return fmt.Errorf("creating image on pdf %d page %d: %w", img.PDFID, img.PageNumber, err)
	}
	return nil
}

func (r *imageRepo) GetImage(ctx context.Context, id int64) (*model.PageImage, error) {
	const q = `SELECT ` + imageColumns + ` FROM page_images WHERE id = $1`
	var img model.PageImage
	if err := scanImage(r.pool.QueryRow(ctx, q, id), &img); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching image %d: %w", id, err)
	}
	return &img, nil
}

func (r *imageRepo) ListImages(ctx context.Context, pdfID int64, page int) ([]model.PageImage, error) {
	const q = `
		SELECT ` + imageColumns + `
		FROM page_images
		WHERE pdf_id = $1
		  AND ($2 = 0 OR page_number = $2)
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, q, pdfID, page)
	if err != nil {
		return nil, fmt.Errorf("listing images for pdf %d: %w", pdfID, err)
	}
	defer rows.Close()

	images := []model.PageImage{}
	for rows.Next() {
		var img model.PageImage
		if err := scanImage(rows, &img); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating image rows: %w", err)
	}
	return images, nil
}

func (r *imageRepo) UpdateImagePlacement(ctx context.Context, id int64, p model.ImagePlacement) (*model.PageImage, error) {
	const q = `
		UPDATE page_images
		SET x = $2, y = $3, img_width = $4, img_height = $5, rotation = $6
		WHERE id = $1
		RETURNING ` + imageColumns
	var img model.PageImage
	if err := scanImage(r.pool.QueryRow(ctx, q, id, p.X, p.Y, p.Width, p.Height, p.Rotation), &img); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating image %d: %w", id, err)
	}
	return &img, nil
}

func (r *imageRepo) DeleteImage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM page_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting image %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanImage(row pgx.Row, img *model.PageImage) error {
	return row.Scan(&img.ID, &img.PDFID, &img.PageNumber, &img.ImagePath, &img.X, &img.Y, &img.Width, &img.Height, &img.Rotation, &img.CreatedAt)
}
