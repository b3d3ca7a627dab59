package service

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
	"net/http"
	"path"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
)

// StrokeInput is one stroke as submitted by a client. Nil style fields take
// the model defaults.
type StrokeInput struct {
	PDFID      int64
	PageNumber int
	Points     []model.Point
	Color      string
	Width      *float64
	Opacity    *float64
	Tool       model.Tool
}

// ImageInput is a raster to place on a page. Zero width or height takes the
// model default.
type ImageInput struct {
	PDFID      int64
	PageNumber int
	Data       []byte
	Placement  model.ImagePlacement
}

// ImageFile is a stored image's content.
type ImageFile struct {
	Data        []byte
	ContentType string
}

type AnnotationService interface {
	SaveStroke(ctx context.Context, userID int64, in StrokeInput) (*model.BrushStroke, error)
	// SaveStrokes stores all strokes or none. Every stroke must target the
	// same document.
	SaveStrokes(ctx context.Context, userID int64, in []StrokeInput) ([]*model.BrushStroke, error)
	ListStrokes(ctx context.Context, userID, pdfID int64, page int) ([]model.BrushStroke, error)
	DeleteStroke(ctx context.Context, userID, strokeID int64) error
	ClearPage(ctx context.Context, userID, pdfID int64, page int) (int64, error)

	InsertImage(ctx context.Context, userID int64, in ImageInput) (*model.PageImage, error)
	ListImages(ctx context.Context, userID, pdfID int64, page int) ([]model.PageImage, error)
	GetImage(ctx context.Context, userID, imageID int64) (*model.PageImage, error)
	ImageFile(ctx context.Context, userID, imageID int64) (*ImageFile, error)
	UpdateImagePlacement(ctx context.Context, userID, imageID int64, p model.ImagePlacement) (*model.PageImage, error)
	DeleteImage(ctx context.Context, userID, imageID int64) error
}

type annotationService struct {
	pdfs    repository.PDFRepository
	strokes repository.StrokeRepository
	images  repository.ImageRepository
	store   storage.Storage
	logger  zerolog.Logger
}

func NewAnnotationService(
	pdfs repository.PDFRepository,
	strokes repository.StrokeRepository,
	images repository.ImageRepository,
	store storage.Storage,
	logger zerolog.Logger,
) AnnotationService {
	return &annotationService{
		pdfs:    pdfs,
		strokes: strokes,
		images:  images,
		store:   store,
		logger:  logger.With().Str("service", "AnnotationService").Logger(),
	}
}

// ownedPDF loads pdfID and checks that userID owns it. Foreign documents are
// reported as not found.
func ownedPDF(ctx context.Context, repo repository.PDFRepository, userID, pdfID int64) (*model.PDFFile, error) {
	f, err := repo.GetPDF(ctx, pdfID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("pdf %d: %w", pdfID, ErrNotFound)
		}
		return nil, err
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("pdf %d: %w", pdfID, ErrNotFound)
	}
	return f, nil
}

func checkPage(f *model.PDFFile, page int) error {
	if page < 1 || page > f.PageCount {
		return invalidArgument("page %d out of range 1..%d", page, f.PageCount)
	}
	return nil
}

func buildStroke(f *model.PDFFile, in StrokeInput) (*model.BrushStroke, error) {
	if err := checkPage(f, in.PageNumber); err != nil {
		return nil, err
	}
	if len(in.Points) == 0 {
		return nil, invalidArgument("stroke needs at least one point")
	}
	for _, p := range in.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, invalidArgument("stroke point is not finite")
		}
	}
	s := &model.BrushStroke{
		PDFID:      f.ID,
		PageNumber: in.PageNumber,
		Points:     in.Points,
		Color:      in.Color,
		Width:      model.DefaultStrokeWidth,
		Opacity:    model.DefaultStrokeOpacity,
		Tool:       in.Tool,
	}
	if s.Color == "" {
		s.Color = model.DefaultStrokeColor
	}
	if s.Tool == "" {
		s.Tool = model.ToolPen
	}
	if !s.Tool.Valid() {
		return nil, invalidArgument("unknown tool %q", in.Tool)
	}
	if in.Width != nil {
		s.Width = *in.Width
	}
	if !(s.Width > 0) || math.IsInf(s.Width, 0) {
		return nil, invalidArgument("width must be positive")
	}
	if in.Opacity != nil {
		s.Opacity = *in.Opacity
	}
	if !(s.Opacity >= 0 && s.Opacity <= 1) {
		return nil, invalidArgument("opacity must be within 0..1")
	}
	return s, nil
}

func (s *annotationService) SaveStroke(ctx context.Context, userID int64, in StrokeInput) (*model.BrushStroke, error) {
	f, err := ownedPDF(ctx, s.pdfs, userID, in.PDFID)
	if err != nil {
		return nil, err
	}
	stroke, err := buildStroke(f, in)
	if err != nil {
		return nil, err
	}
	if err := s.strokes.CreateStroke(ctx, stroke); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", f.ID).Msg("Failed to save stroke")
		return nil, err
	}
	return stroke, nil
}

func (s *annotationService) SaveStrokes(ctx context.Context, userID int64, in []StrokeInput) ([]*model.BrushStroke, error) {
	if len(in) == 0 {
		return nil, invalidArgument("no strokes given")
	}
	pdfID := in[0].PDFID
	f, err := ownedPDF(ctx, s.pdfs, userID, pdfID)
	if err != nil {
		return nil, err
	}
	strokes := make([]*model.BrushStroke, len(in))
	for i, si := range in {
		if si.PDFID != pdfID {
			return nil, invalidArgument("stroke %d targets pdf %d, batch is for pdf %d", i, si.PDFID, pdfID)
		}
		st, err := buildStroke(f, si)
		if err != nil {
			return nil, fmt.Errorf("stroke %d: %w", i, err)
		}
		strokes[i] = st
	}
	if err := s.strokes.CreateStrokes(ctx, strokes); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", f.ID).Int("count", len(strokes)).Msg("Failed to save stroke batch")
		return nil, err
	}
	return strokes, nil
}

func (s *annotationService) ListStrokes(ctx context.Context, userID, pdfID int64, page int) ([]model.BrushStroke, error) {
	if _, err := ownedPDF(ctx, s.pdfs, userID, pdfID); err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, invalidArgument("page must not be negative")
	}
	return s.strokes.ListStrokes(ctx, pdfID, page)
}

func (s *annotationService) DeleteStroke(ctx context.Context, userID, strokeID int64) error {
	st, err := s.strokes.GetStroke(ctx, strokeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("stroke %d: %w", strokeID, ErrNotFound)
		}
		return err
	}
	if _, err := ownedPDF(ctx, s.pdfs, userID, st.PDFID); err != nil {
		return fmt.Errorf("stroke %d: %w", strokeID, ErrNotFound)
	}
	if err := s.strokes.DeleteStroke(ctx, strokeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("stroke %d: %w", strokeID, ErrNotFound)
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("stroke_id", strokeID).Msg("Failed to delete stroke")
		return err
	}
	return nil
}

func (s *annotationService) ClearPage(ctx context.Context, userID, pdfID int64, page int) (int64, error) {
	f, err := ownedPDF(ctx, s.pdfs, userID, pdfID)
	if err != nil {
		return 0, err
	}
	if err := checkPage(f, page); err != nil {
		return 0, err
	}
	n, err := s.strokes.DeletePageStrokes(ctx, pdfID, page)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", pdfID).Int("page", page).Msg("Failed to clear page strokes")
		return 0, err
	}
	return n, nil
}

var imageExtensions = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
}

func validPlacement(p model.ImagePlacement) error {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height, p.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidArgument("placement values must be finite")
		}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return invalidArgument("image width and height must be positive")
	}
	return nil
}

func (s *annotationService) InsertImage(ctx context.Context, userID int64, in ImageInput) (*model.PageImage, error) {
	f, err := ownedPDF(ctx, s.pdfs, userID, in.PDFID)
	if err != nil {
		return nil, err
	}
	if err := checkPage(f, in.PageNumber); err != nil {
		return nil, err
	}
	p := in.Placement
	if p.Width == 0 {
		p.Width = model.DefaultImageWidth
	}
	if p.Height == 0 {
		p.Height = model.DefaultImageHeight
	}
	if err := validPlacement(p); err != nil {
		return nil, err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: image is not a supported raster", ErrInvalidFile)
	}
	ext, ok := imageExtensions[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image format %s", ErrInvalidFile, format)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	dir := fmt.Sprintf("images/%d", userID)
	key := path.Join(dir, id.String()+ext)
	if err := s.store.EnsureDir(ctx, dir); err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, key, in.Data); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Failed to store image")
		return nil, err
	}

	img := &model.PageImage{
		PDFID:      f.ID,
		PageNumber: in.PageNumber,
		ImagePath:  key,
		X:          p.X,
		Y:          p.Y,
		Width:      p.Width,
		Height:     p.Height,
		Rotation:   p.Rotation,
	}
	if err := s.images.CreateImage(ctx, img); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", f.ID).Msg("Failed to record image")
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("Failed to remove orphaned image")
		}
		return nil, err
	}
	return img, nil
}

func (s *annotationService) ListImages(ctx context.Context, userID, pdfID int64, page int) ([]model.PageImage, error) {
	if _, err := ownedPDF(ctx, s.pdfs, userID, pdfID); err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, invalidArgument("page must not be negative")
	}
	return s.images.ListImages(ctx, pdfID, page)
}

func (s *annotationService) GetImage(ctx context.Context, userID, imageID int64) (*model.PageImage, error) {
	img, err := s.images.GetImage(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("image %d: %w", imageID, ErrNotFound)
		}
		return nil, err
	}
	if _, err := ownedPDF(ctx, s.pdfs, userID, img.PDFID); err != nil {
		return nil, fmt.Errorf("image %d: %w", imageID, ErrNotFound)
	}
	return img, nil
}

func (s *annotationService) ImageFile(ctx context.Context, userID, imageID int64) (*ImageFile, error) {
	img, err := s.GetImage(ctx, userID, imageID)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(ctx, img.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.logger.Error().Bool("storage_inconsistency", true).Int64("image_id", imageID).Str("key", img.ImagePath).Msg("Image record has no stored object")
			return nil, ErrStorageInconsistency
		}
		return nil, err
	}
	return &ImageFile{Data: data, ContentType: imageContentType(img.ImagePath, data)}, nil
}

func imageContentType(key string, data []byte) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

func (s *annotationService) UpdateImagePlacement(ctx context.Context, userID, imageID int64, p model.ImagePlacement) (*model.PageImage, error) {
	if _, err := s.GetImage(ctx, userID, imageID); err != nil {
		return nil, err
	}
	if err := validPlacement(p); err != nil {
		return nil, err
	}
	img, err := s.images.UpdateImagePlacement(ctx, imageID, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("image %d: %w", imageID, ErrNotFound)
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("image_id", imageID).Msg("Failed to update image placement")
		return nil, err
	}
	return img, nil
}

func (s *annotationService) DeleteImage(ctx context.Context, userID, imageID int64) error {
	img, err := s.GetImage(ctx, userID, imageID)
	if err != nil {
		return err
	}
	if err := s.images.DeleteImage(ctx, imageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("image %d: %w", imageID, ErrNotFound)
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("image_id", imageID).Msg("Failed to delete image")
		return err
	}
	if err := s.store.Delete(ctx, img.ImagePath); err != nil {
		s.logger.Warn().Err(err).Str("key", img.ImagePath).Msg("Failed to remove stored image")
	}
	return nil
}
