// Package composite flattens stored annotations onto a PDF. For every page
// the placed images are drawn first, then the brush strokes, each group in
// creation order. Coordinates arrive in the client's reference DPI pixel
// space and are scaled to points.
package composite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/pdfkit"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Editor is the subset of pdfkit.Document the engine drives.
type Editor interface {
	PageCount() int
	InsertImage(page int, r pdfkit.Rect, img image.Image) error
	DrawPolyline(page int, pts []pdfkit.Point, st pdfkit.StrokeStyle) error
	Export() ([]byte, error)
}

// ImageSource loads stored image bytes. Read returns storage.ErrNotExist for
// missing objects.
type ImageSource interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Layer is everything annotated on one document.
type Layer struct {
	Strokes []model.BrushStroke
	Images  []model.PageImage
}

type Options struct {
	// ReferenceDPI is the resolution annotation coordinates are recorded in.
	ReferenceDPI float64
	// Prefetch bounds concurrent image loads.
	Prefetch int
	// Open parses the source document. Defaults to pdfkit.Open.
	Open func(pdf []byte) (Editor, error)
}

type Engine struct {
	images   ImageSource
	scale    float64
	prefetch int
	open     func(pdf []byte) (Editor, error)
	logger   zerolog.Logger
}

func NewEngine(images ImageSource, opts Options, logger zerolog.Logger) *Engine {
	dpi := opts.ReferenceDPI
	if dpi <= 0 {
		dpi = 150
	}
	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = 4
	}
	open := opts.Open
	if open == nil {
		open = func(pdf []byte) (Editor, error) { return pdfkit.Open(pdf) }
	}
	return &Engine{
		images:   images,
		scale:    72 / dpi,
		prefetch: prefetch,
		open:     open,
		logger:   logger.With().Str("service", "CompositeEngine").Logger(),
	}
}

// Composite returns pdf with layer drawn on top. The input is not modified.
func (e *Engine) Composite(ctx context.Context, pdf []byte, layer Layer) ([]byte, error) {
	doc, err := e.open(pdf)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	if err := e.Apply(ctx, doc, layer); err != nil {
		return nil, err
	}
	out, err := doc.Export()
	if err != nil {
		return nil, fmt.Errorf("exporting document: %w", err)
	}
	return out, nil
}

// Apply draws layer onto doc without exporting it.
func (e *Engine) Apply(ctx context.Context, doc Editor, layer Layer) error {
	rasters, err := e.loadImages(ctx, layer.Images)
	if err != nil {
		return err
	}

	imagesByPage := make(map[int][]int)
	for i, img := range layer.Images {
		imagesByPage[img.PageNumber] = append(imagesByPage[img.PageNumber], i)
	}
	strokesByPage := make(map[int][]model.BrushStroke)
	for _, s := range layer.Strokes {
		strokesByPage[s.PageNumber] = append(strokesByPage[s.PageNumber], s)
	}

	pages := doc.PageCount()
	for page := 1; page <= pages; page++ {
		for _, i := range imagesByPage[page] {
			if rasters[i] == nil {
				continue
			}
			if err := e.placeImage(doc, layer.Images[i], rasters[i]); err != nil {
				return fmt.Errorf("placing image %d on page %d: %w", layer.Images[i].ID, page, err)
			}
		}
		for _, s := range strokesByPage[page] {
			if err := e.drawStroke(doc, s); err != nil {
				return fmt.Errorf("drawing stroke %d on page %d: %w", s.ID, page, err)
			}
		}
	}

	e.logIgnored(pages, imagesByPage, strokesByPage)
	return nil
}

// loadImages fetches, decodes and rotates every image concurrently. Entries
// that could not be used are nil.
func (e *Engine) loadImages(ctx context.Context, images []model.PageImage) ([]image.Image, error) {
	rasters := make([]image.Image, len(images))
	if len(images) == 0 {
		return rasters, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.prefetch)
	for i := range images {
		pi := images[i]
		g.Go(func() error {
			data, err := e.images.Read(gctx, pi.ImagePath)
			if err != nil {
				if errors.Is(err, storage.ErrNotExist) {
					e.logger.Debug().Int64("image_id", pi.ID).Str("path", pi.ImagePath).Msg("Image file missing, skipping")
					return nil
				}
				return fmt.Errorf("loading image %d: %w", pi.ID, err)
			}
			src, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				e.logger.Warn().Err(err).Int64("image_id", pi.ID).Str("path", pi.ImagePath).Msg("Image file undecodable, skipping")
				return nil
			}
			if math.Abs(pi.Rotation) > rotationThreshold {
				src = RotateClockwise(src, pi.Rotation)
			}
			rasters[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rasters, nil
}

// placeImage fits raster into the stored box keeping its aspect ratio and
// centers it.
func (e *Engine) placeImage(doc Editor, pi model.PageImage, raster image.Image) error {
	b := raster.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}
	box := pdfkit.Rect{
		X0: pi.X * e.scale,
		Y0: pi.Y * e.scale,
		X1: (pi.X + pi.Width) * e.scale,
		Y1: (pi.Y + pi.Height) * e.scale,
	}
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil
	}
	return doc.InsertImage(pi.PageNumber, FitRect(box, b.Dx(), b.Dy()), raster)
}

// FitRect returns the largest rect with the w:h aspect ratio centered in box.
func FitRect(box pdfkit.Rect, w, h int) pdfkit.Rect {
	fit := math.Min(box.Width()/float64(w), box.Height()/float64(h))
	dw, dh := float64(w)*fit, float64(h)*fit
	x0 := box.X0 + (box.Width()-dw)/2
	y0 := box.Y0 + (box.Height()-dh)/2
	return pdfkit.Rect{X0: x0, Y0: y0, X1: x0 + dw, Y1: y0 + dh}
}

func (e *Engine) drawStroke(doc Editor, s model.BrushStroke) error {
	if len(s.Points) < 2 {
		return nil
	}
	st := pdfkit.StrokeStyle{
		Color:   ParseHexColor(s.Color),
		Width:   s.Width * e.scale,
		Opacity: clamp01(s.Opacity),
	}
	if s.Tool == model.ToolEraser {
		st.Color = pdfkit.White
		st.Opacity = 1
	}
	pts := make([]pdfkit.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = pdfkit.Point{X: p.X * e.scale, Y: p.Y * e.scale}
	}
	return doc.DrawPolyline(s.PageNumber, pts, st)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (e *Engine) logIgnored(pages int, images map[int][]int, strokes map[int][]model.BrushStroke) {
	var out []int
	for p := range images {
		if p < 1 || p > pages {
			out = append(out, p)
		}
	}
	for p := range strokes {
		if (p < 1 || p > pages) && images[p] == nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return
	}
	sort.Ints(out)
	e.logger.Warn().Ints("pages", out).Int("page_count", pages).Msg("Annotations outside document ignored")
}
