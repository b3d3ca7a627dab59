package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StrokeRepository stores brush strokes. List methods return creation order.
// A page of 0 means every page.
type StrokeRepository interface {
	CreateStroke(ctx context.Context, s *model.BrushStroke) error
	// CreateStrokes inserts all strokes in one transaction.
	CreateStrokes(ctx context.Context, strokes []*model.BrushStroke) error
	GetStroke(ctx context.Context, id int64) (*model.BrushStroke, error)
	ListStrokes(ctx context.Context, pdfID int64, page int) ([]model.BrushStroke, error)
	DeleteStroke(ctx context.Context, id int64) error
	DeletePageStrokes(ctx context.Context, pdfID int64, page int) (int64, error)
}

type strokeRepo struct {
	pool *pgxpool.Pool
}

func NewStrokeRepo(pool *pgxpool.Pool) StrokeRepository {
	return &strokeRepo{pool: pool}
}

const strokeColumns = `id, pdf_id, page_number, points, color, width, opacity, tool, created_at`

const insertStrokeQ = `
	INSERT INTO brush_strokes (pdf_id, page_number, points, color, width, opacity, tool)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + strokeColumns

func (r *strokeRepo) CreateStroke(ctx context.Context, s *model.BrushStroke) error {
	points, err := json.Marshal(s.Points)
	if err != nil {
		return fmt.Errorf("encoding stroke points: %w", err)
	}
	row := r.pool.QueryRow(ctx, insertStrokeQ, s.PDFID, s.PageNumber, points, s.Color, s.Width, s.Opacity, string(s.Tool))
	if err := scanStroke(row, s); err != nil {
		return fmt.Errorf("creating stroke on pdf %d page %d: %w", s.PDFID, s.PageNumber, err)
	}
	return nil
}

func (r *strokeRepo) CreateStrokes(ctx context.Context, strokes []*model.BrushStroke) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction for stroke batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	for _, s := range strokes {
		points, err := json.Marshal(s.Points)
		if err != nil {
			return fmt.Errorf("encoding stroke points: %w", err)
		}
		row := tx.QueryRow(ctx, insertStrokeQ, s.PDFID, s.PageNumber, points, s.Color, s.Width, s.Opacity, string(s.Tool))
		if err := scanStroke(row, s); err != nil {
			return fmt.Errorf("creating stroke on pdf %d page %d: %w", s.PDFID, s.PageNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing stroke batch: %w", err)
	}
	return nil
}

func (r *strokeRepo) GetStroke(ctx context.Context, id int64) (*model.BrushStroke, error) {
	const q = `SELECT ` + strokeColumns + ` FROM brush_strokes WHERE id = $1`
	var s model.BrushStroke
	if err := scanStroke(r.pool.QueryRow(ctx, q, id), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching stroke %d: %w", id, err)
	}
	return &s, nil
}

func (r *strokeRepo) ListStrokes(ctx context.Context, pdfID int64, page int) ([]model.BrushStroke, error) {
	const q = `
		SELECT ` + strokeColumns + `
		FROM brush_strokes
		WHERE pdf_id = $1
		  AND ($2 = 0 OR page_number = $2)
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, q, pdfID, page)
	if err != nil {
		return nil, fmt.Errorf("listing strokes for pdf %d: %w", pdfID, err)
	}
	defer rows.Close()

	strokes := []model.BrushStroke{}
	for rows.Next() {
		var s model.BrushStroke
		if err := scanStroke(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning stroke row: %w", err)
		}
		strokes = append(strokes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stroke rows: %w", err)
	}
	return strokes, nil
}

func (r *strokeRepo) DeleteStroke(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM brush_strokes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting stroke %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *strokeRepo) DeletePageStrokes(ctx context.Context, pdfID int64, page int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM brush_strokes WHERE pdf_id = $1 AND page_number = $2`, pdfID, page)
	if err != nil {
		return 0, fmt.Errorf("clearing strokes on pdf %d page %d: %w", pdfID, page, err)
	}
	return tag.RowsAffected(), nil
}

func scanStroke(row pgx.Row, s *model.BrushStroke) error {
	var points []byte
	var tool string
	if err := row.Scan(&s.ID, &s.PDFID, &s.PageNumber, &points, &s.Color, &s.Width, &s.Opacity, &tool, &s.CreatedAt); err != nil {
		return err
	}
	s.Tool = model.Tool(tool)
	if err := json.Unmarshal(points, &s.Points); err != nil {
		return fmt.Errorf("decoding points of stroke %d: %w", s.ID, err)
	}
	return nil
}
