package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/composite"
	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/pdfkit"
	"github.com/samuelysliu/pdf-editor/internal/pubsub"
	"github.com/samuelysliu/pdf-editor/internal/repository"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 50
	DefaultRenderDPI = 150
	MinRenderDPI     = 36
	MaxRenderDPI     = 600
	// maxNameSuffix bounds the _N search for a free filename.
	maxNameSuffix = 10000
)

// UploadResult is either UploadCompleted or UploadDeclined.
type UploadResult interface {
	isUploadResult()
}

type UploadCompleted struct {
	File           *model.PDFFile
	QuotaRemaining int
}

// UploadDeclined means the caller's quota does not cover the document.
// Nothing was stored or deducted.
type UploadDeclined struct {
	Needed    int
	Available int
}

func (UploadCompleted) isUploadResult() {}
func (UploadDeclined) isUploadResult()  {}

// Document is a file ready to be sent to the client.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

type PDFService interface {
	Upload(ctx context.Context, userID int64, filename string, data []byte) (UploadResult, error)
	List(ctx context.Context, userID int64, limit int) ([]model.PDFFile, error)
	Get(ctx context.Context, userID, pdfID int64) (*model.PDFFile, error)
	Merge(ctx context.Context, userID int64, ids []int64, outputName string) (*model.PDFFile, error)
	Delete(ctx context.Context, userID, pdfID int64) error
	Download(ctx context.Context, userID, pdfID int64) (*Document, error)
	RenderPage(ctx context.Context, userID, pdfID int64, page, dpi int) ([]byte, error)
	ConvertToWord(ctx context.Context, userID, pdfID int64) (*Document, error)
}

type PDFServiceOptions struct {
	ListLimitMax int
	EventsTopic  string
}

type pdfService struct {
	pdfs      repository.PDFRepository
	strokes   repository.StrokeRepository
	images    repository.ImageRepository
	quota     QuotaService
	store     storage.Storage
	engine    *composite.Engine
	raster    pdfkit.Rasterizer
	converter WordConverter
	publisher pubsub.Publisher
	opts      PDFServiceOptions
	logger    zerolog.Logger
}

func NewPDFService(
	repos repository.Repositories,
	quota QuotaService,
	store storage.Storage,
	engine *composite.Engine,
	raster pdfkit.Rasterizer,
	converter WordConverter,
	publisher pubsub.Publisher,
	opts PDFServiceOptions,
	logger zerolog.Logger,
) PDFService {
	if opts.ListLimitMax <= 0 {
		opts.ListLimitMax = 200
	}
	if publisher == nil {
		publisher = pubsub.Noop{}
	}
	return &pdfService{
		pdfs:      repos.PDFs,
		strokes:   repos.Strokes,
		images:    repos.Images,
		quota:     quota,
		store:     store,
		engine:    engine,
		raster:    raster,
		converter: converter,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With().Str("service", "PDFService").Logger(),
	}
}

func uploadDir(userID int64) string {
	return fmt.Sprintf("uploads/%d", userID)
}

// cleanFilename drops any directory part a client sent along.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// uniqueName returns name, or name with a _N suffix before the extension,
// such that neither a record nor a stored object uses it yet.
func (s *pdfService) uniqueName(ctx context.Context, userID int64, name string) (string, string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	dir := uploadDir(userID)
	candidate := name
	for n := 1; n <= maxNameSuffix; n++ {
		key := path.Join(dir, candidate)
		taken, err := s.pdfs.PDFFilenameExists(ctx, userID, candidate)
		if err != nil {
			return "", "", err
		}
		if !taken {
			taken, err = s.store.Exists(ctx, key)
			if err != nil {
				return "", "", err
			}
		}
		if !taken {
			return candidate, key, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return "", "", fmt.Errorf("no free filename for %q", name)
}

func (s *pdfService) Upload(ctx context.Context, userID int64, filename string, data []byte) (UploadResult, error) {
	name := cleanFilename(filename)
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, invalidArgument("only .pdf files are accepted")
	}
	pages, err := pdfkit.PageCount(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if pages <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidFile)
	}

	res, err := s.quota.CheckAndDeduct(ctx, userID, pages)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return UploadDeclined{Needed: res.Needed, Available: res.Available}, nil
	}

	f, err := s.persist(ctx, userID, name, data, pages, pages)
	if err != nil {
		s.refund(ctx, userID, pages)
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Int64("pdf_id", f.ID).Int("pages", pages).Msg("PDF uploaded")
	s.publish(ctx, pubsub.Event{
		Type:   pubsub.EventPDFUploaded,
		UserID: userID,
		Data:   map[string]any{"pdf_id": f.ID, "page_count": pages, "quota_used": pages},
	})
	return UploadCompleted{File: f, QuotaRemaining: res.Remaining}, nil
}

// persist writes data under a free name and records it. On failure nothing is
// left behind.
func (s *pdfService) persist(ctx context.Context, userID int64, name string, data []byte, pages, quotaUsed int) (*model.PDFFile, error) {
	if err := s.store.EnsureDir(ctx, uploadDir(userID)); err != nil {
		return nil, err
	}
	name, key, err := s.uniqueName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, key, data); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Failed to write PDF")
		return nil, err
	}
	f := &model.PDFFile{
		UserID:    userID,
		Filename:  name,
		FilePath:  key,
		FileSize:  int64(len(data)),
		PageCount: pages,
		QuotaUsed: quotaUsed,
	}
	if err := s.pdfs.CreatePDF(ctx, f); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Failed to record PDF")
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("Failed to remove orphaned PDF")
		}
		return nil, err
	}
	return f, nil
}

func (s *pdfService) refund(ctx context.Context, userID int64, pages int) {
	if _, err := s.quota.Add(context.WithoutCancel(ctx), userID, pages); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int("pages", pages).Msg("Failed to refund quota")
		return
	}
	s.logger.Info().Int64("user_id", userID).Int("pages", pages).Msg("Quota refunded")
}

func (s *pdfService) publish(ctx context.Context, ev pubsub.Event) {
	if s.opts.EventsTopic == "" {
		return
	}
	if _, err := pubsub.PublishEvent(ctx, s.publisher, s.opts.EventsTopic, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Type).Int64("user_id", ev.UserID).Msg("Failed to publish event")
	}
}

func (s *pdfService) List(ctx context.Context, userID int64, limit int) ([]model.PDFFile, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > s.opts.ListLimitMax {
		limit = s.opts.ListLimitMax
	}
	files, err := s.pdfs.ListPDFsByUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to list PDFs")
		return nil, err
	}
	return files, nil
}

func (s *pdfService) Get(ctx context.Context, userID, pdfID int64) (*model.PDFFile, error) {
	return ownedPDF(ctx, s.pdfs, userID, pdfID)
}

func (s *pdfService) Merge(ctx context.Context, userID int64, ids []int64, outputName string) (*model.PDFFile, error) {
	seen := make(map[int64]bool, len(ids))
	var unique []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) < 2 {
		return nil, invalidArgument("at least two distinct documents are required to merge")
	}

	name := cleanFilename(outputName)
	if name == "" {
		name = "merged.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}

	var (
		docs    [][]byte
		missing []int64
		pages   int
	)
	for _, id := range unique {
		f, err := ownedPDF(ctx, s.pdfs, userID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return nil, err
		}
		data, err := s.store.Read(ctx, f.FilePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				s.logger.Error().Bool("storage_inconsistency", true).Int64("pdf_id", id).Str("key", f.FilePath).Msg("PDF record has no stored object")
				missing = append(missing, id)
				continue
			}
			return nil, err
		}
		docs = append(docs, data)
		pages += f.PageCount
	}
	if len(missing) > 0 {
		return nil, &MissingFilesError{IDs: missing}
	}

	merged, err := pdfkit.Merge(docs)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to merge PDFs")
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	f, err := s.persist(ctx, userID, name, merged, pages, 0)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Int64("pdf_id", f.ID).Int("sources", len(unique)).Int("pages", pages).Msg("PDFs merged")
	return f, nil
}

func (s *pdfService) Delete(ctx context.Context, userID, pdfID int64) error {
	f, err := ownedPDF(ctx, s.pdfs, userID, pdfID)
	if err != nil {
		return err
	}
	images, err := s.images.ListImages(ctx, pdfID, 0)
	if err != nil {
		return err
	}
	if err := s.pdfs.DeletePDF(ctx, pdfID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("pdf %d: %w", pdfID, ErrNotFound)
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", pdfID).Msg("Failed to delete PDF record")
		return err
	}
	for _, img := range images {
		if err := s.store.Delete(ctx, img.ImagePath); err != nil {
			s.logger.Warn().Err(err).Str("key", img.ImagePath).Msg("Failed to remove stored image")
		}
	}
	if err := s.store.Delete(ctx, f.FilePath); err != nil {
		s.logger.Warn().Err(err).Str("key", f.FilePath).Msg("Failed to remove stored PDF")
	}
	s.logger.Info().Int64("user_id", userID).Int64("pdf_id", pdfID).Msg("PDF deleted")
	return nil
}

// source loads the owned record and its stored bytes.
func (s *pdfService) source(ctx context.Context, userID, pdfID int64) (*model.PDFFile, []byte, error) {
	f, err := ownedPDF(ctx, s.pdfs, userID, pdfID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Read(ctx, f.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.logger.Error().Bool("storage_inconsistency", true).Int64("pdf_id", pdfID).Str("key", f.FilePath).Msg("PDF record has no stored object")
			return nil, nil, ErrStorageInconsistency
		}
		return nil, nil, err
	}
	return f, data, nil
}

func (s *pdfService) Download(ctx context.Context, userID, pdfID int64) (*Document, error) {
	f, data, err := s.source(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}
	strokes, err := s.strokes.ListStrokes(ctx, pdfID, 0)
	if err != nil {
		return nil, err
	}
	images, err := s.images.ListImages(ctx, pdfID, 0)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Composite(ctx, data, composite.Layer{Strokes: strokes, Images: images})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", pdfID).Msg("Failed to composite annotations")
		return nil, err
	}
	name := f.Filename
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return &Document{Filename: name, ContentType: "application/pdf", Data: out}, nil
}

func (s *pdfService) RenderPage(ctx context.Context, userID, pdfID int64, page, dpi int) ([]byte, error) {
	if dpi == 0 {
		dpi = DefaultRenderDPI
	}
	if dpi < MinRenderDPI || dpi > MaxRenderDPI {
		return nil, invalidArgument("dpi must be within %d..%d", MinRenderDPI, MaxRenderDPI)
	}
	f, data, err := s.source(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}
	if err := checkPage(f, page); err != nil {
		return nil, err
	}
	png, err := s.raster.RenderPage(ctx, data, page, dpi)
	if err != nil {
		s.logger.Error().Err(err).Int64("pdf_id", pdfID).Int("page", page).Int("dpi", dpi).Msg("Failed to render page")
		return nil, err
	}
	return png, nil
}

func (s *pdfService) ConvertToWord(ctx context.Context, userID, pdfID int64) (*Document, error) {
	f, data, err := s.source(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}
	docx, err := s.converter.ConvertToDocx(ctx, data)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("pdf_id", pdfID).Msg("Failed to convert PDF to Word")
		return nil, err
	}
	base := strings.TrimSuffix(f.Filename, path.Ext(f.Filename))
	return &Document{Filename: base + ".docx", ContentType: docxContentType, Data: docx}, nil
}
