package model

import "time"

// Coordinates of strokes and images live in the 150 DPI pixel space the
// client renders pages in.

type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolPen, ToolHighlighter, ToolEraser:
		return true
	}
	return false
}

const (
	DefaultStrokeColor   = "#000000"
	DefaultStrokeWidth   = 2.0
	DefaultStrokeOpacity = 1.0
	DefaultImageWidth    = 200.0
	DefaultImageHeight   = 200.0
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BrushStroke is an immutable freehand path on one page.
type BrushStroke struct {
	ID         int64     `db:"id" json:"id"`
	PDFID      int64     `db:"pdf_id" json:"pdf_id"`
	PageNumber int       `db:"page_number" json:"page_number"`
	Points     []Point   `db:"points" json:"points"`
	Color      string    `db:"color" json:"color"`
	Width      float64   `db:"width" json:"width"`
	Opacity    float64   `db:"opacity" json:"opacity"`
	Tool       Tool      `db:"tool" json:"tool"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PageImage is a raster placed on one page. Rotation is clockwise degrees.
type PageImage struct {
	ID         int64     `db:"id" json:"id"`
	PDFID      int64     `db:"pdf_id" json:"pdf_id"`
	PageNumber int       `db:"page_number" json:"page_number"`
	ImagePath  string    `db:"image_path" json:"image_path"`
	X          float64   `db:"x" json:"x"`
	Y          float64   `db:"y" json:"y"`
	Width      float64   `db:"img_width" json:"img_width"`
	Height     float64   `db:"img_height" json:"img_height"`
	Rotation   float64   `db:"rotation" json:"rotation"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ImagePlacement is the full set of mutable PageImage fields. Updates replace
// all of them at once.
type ImagePlacement struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
}
