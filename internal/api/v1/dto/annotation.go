package dto

import (
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
)

// StrokeRequestDTO is one freehand stroke. Omitted style fields take defaults.
type StrokeRequestDTO struct {
	PDFID      int64         `json:"pdf_id" validate:"required,gt=0"`
	PageNumber int           `json:"page_number" validate:"required,gt=0"`
	Points     []model.Point `json:"points" validate:"required,min=1"`
	Color      string        `json:"color" validate:"omitempty,max=32"`
	Width      *float64      `json:"width" validate:"omitempty,gt=0"`
	Opacity    *float64      `json:"opacity" validate:"omitempty,gte=0,lte=1"`
	Tool       model.Tool    `json:"tool" validate:"omitempty,oneof=pen highlighter eraser"`
}

// BatchStrokeItemDTO is a stroke inside a batch; the document comes from the batch.
type BatchStrokeItemDTO struct {
	PageNumber int           `json:"page_number" validate:"required,gt=0"`
	Points     []model.Point `json:"points" validate:"required,min=1"`
	Color      string        `json:"color" validate:"omitempty,max=32"`
	Width      *float64      `json:"width" validate:"omitempty,gt=0"`
	Opacity    *float64      `json:"opacity" validate:"omitempty,gte=0,lte=1"`
	Tool       model.Tool    `json:"tool" validate:"omitempty,oneof=pen highlighter eraser"`
}

type BatchStrokeRequestDTO struct {
	PDFID   int64                `json:"pdf_id" validate:"required,gt=0"`
	Strokes []BatchStrokeItemDTO `json:"strokes" validate:"required,min=1,dive"`
}

type StrokeResponseDTO struct {
	StrokeID   int64         `json:"stroke_id"`
	PDFID      int64         `json:"pdf_id"`
	PageNumber int           `json:"page_number"`
	Color      string        `json:"color"`
	Width      float64       `json:"width"`
	Opacity    float64       `json:"opacity"`
	Tool       model.Tool    `json:"tool"`
	Points     []model.Point `json:"points"`
	CreatedAt  time.Time     `json:"created_at"`
}

type BatchStrokeResponseDTO struct {
	PDFID      int64   `json:"pdf_id"`
	SavedCount int     `json:"saved_count"`
	StrokeIDs  []int64 `json:"stroke_ids"`
}

type StrokeListResponseDTO struct {
	PDFID       int64               `json:"pdf_id"`
	StrokeCount int                 `json:"stroke_count"`
	Strokes     []StrokeResponseDTO `json:"strokes"`
}

type ClearPageResponseDTO struct {
	PDFID        int64 `json:"pdf_id"`
	PageNumber   int   `json:"page_number"`
	DeletedCount int64 `json:"deleted_count"`
}

type ImageResponseDTO struct {
	ImageID    int64     `json:"image_id"`
	PDFID      int64     `json:"pdf_id"`
	PageNumber int       `json:"page_number"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"img_width"`
	Height     float64   `json:"img_height"`
	Rotation   float64   `json:"rotation"`
	CreatedAt  time.Time `json:"created_at"`
}

type ImageListResponseDTO struct {
	PDFID      int64              `json:"pdf_id"`
	ImageCount int                `json:"image_count"`
	Images     []ImageResponseDTO `json:"images"`
}

// ImagePlacementDTO replaces every placement field of an image.
type ImagePlacementDTO struct {
	X        *float64 `json:"x" validate:"required"`
	Y        *float64 `json:"y" validate:"required"`
	Width    *float64 `json:"img_width" validate:"required,gt=0"`
	Height   *float64 `json:"img_height" validate:"required,gt=0"`
	Rotation float64  `json:"rotation"`
}

func NewStrokeResponse(s *model.BrushStroke) StrokeResponseDTO {
	return StrokeResponseDTO{
		StrokeID:   s.ID,
		PDFID:      s.PDFID,
		PageNumber: s.PageNumber,
		Color:      s.Color,
		Width:      s.Width,
		Opacity:    s.Opacity,
		Tool:       s.Tool,
		Points:     s.Points,
		CreatedAt:  s.CreatedAt,
	}
}

func NewImageResponse(img *model.PageImage) ImageResponseDTO {
	return ImageResponseDTO{
		ImageID:    img.ID,
		PDFID:      img.PDFID,
		PageNumber: img.PageNumber,
		X:          img.X,
		Y:          img.Y,
		Width:      img.Width,
		Height:     img.Height,
		Rotation:   img.Rotation,
		CreatedAt:  img.CreatedAt,
	}
}
