package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/dto"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type PDFHandler struct {
	pdfService     service.PDFService
	quotaService   service.QuotaService
	validate       *validator.Validate
	maxUploadBytes int64
	logger         zerolog.Logger
}

func NewPDFHandler(
	pdfService service.PDFService,
	quotaService service.QuotaService,
	validate *validator.Validate,
	maxUploadBytes int64,
	logger zerolog.Logger,
) *PDFHandler {
	return &PDFHandler{
		pdfService:     pdfService,
		quotaService:   quotaService,
		validate:       validate,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("handler", "PDFHandler").Logger(),
	}
}

// RegisterRoutes mounts document routes
func (h *PDFHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Post("/pdf/upload", h.upload)
		r.Get("/pdf/list", h.list)
		r.Get("/pdf/quota", h.quota)
		r.Get("/pdf/page-image/{id}/{page}", h.renderPage)
		r.Post("/pdf/merge", h.merge)
		r.Get("/pdf/convert-to-word/{pdfID}", h.convertToWord)
		r.Get("/pdf/download/{pdfID}", h.download)
		r.Delete("/pdf/delete/{pdfID}", h.delete)
	})
}

// readUpload reads the named multipart file, enforcing the upload limit.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
			return "", nil, false
		}
		writeFail(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return "", nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", field))
		return "", nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "failed to read upload")
		return "", nil, false
	}
	return header.Filename, data, true
}

// upload godoc
// @Summary Upload a PDF
// @Description Stores the document and deducts one quota unit per page.
// @Tags pdf
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Success 201 {object} dto.UploadResponseDTO
// @Failure 400 {object} dto.Envelope
// @Failure 402 {object} dto.QuotaDeclinedDTO
// @Router /pdf/upload [post]
func (h *PDFHandler) upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	name, data, ok := readUpload(w, r, "file", h.maxUploadBytes)
	if !ok {
		return
	}
	res, err := h.pdfService.Upload(r.Context(), userID, name, data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch res := res.(type) {
	case service.UploadCompleted:
		writeOK(w, http.StatusCreated, "PDF uploaded and quota deducted", dto.UploadResponseDTO{
			PDFResponseDTO: dto.NewPDFResponse(res.File),
			QuotaRemaining: res.QuotaRemaining,
		})
	case service.UploadDeclined:
		writeJSON(w, http.StatusPaymentRequired, dto.Envelope{
			Error: fmt.Sprintf("insufficient quota: need %d, have %d", res.Needed, res.Available),
			Data:  dto.QuotaDeclinedDTO{Needed: res.Needed, Available: res.Available},
		})
	}
}

// list godoc
// @Summary List documents
// @Tags pdf
// @Produce json
// @Param limit query int false "Maximum number of documents"
// @Success 200 {object} dto.PDFListResponseDTO
// @Router /pdf/list [get]
func (h *PDFHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	files, err := h.pdfService.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := dto.PDFListResponseDTO{Files: make([]dto.PDFResponseDTO, len(files)), Total: len(files)}
	for i := range files {
		out.Files[i] = dto.NewPDFResponse(&files[i])
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *PDFHandler) quota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.quotaService.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "", dto.QuotaResponseDTO{UserID: st.UserID, Quota: st.Quota})
}

// renderPage godoc
// @Summary Render a page as PNG
// @Tags pdf
// @Produce png
// @Param id path int true "Document ID"
// @Param page path int true "Page number, starting at 1"
// @Param dpi query int false "Resolution, default 150"
// @Success 200 {file} binary
// @Router /pdf/page-image/{id}/{page} [get]
func (h *PDFHandler) renderPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := pathInt(w, r, "page")
	if !ok {
		return
	}
	dpi, ok := queryInt(w, r, "dpi", service.DefaultRenderDPI)
	if !ok {
		return
	}
	png, err := h.pdfService.RenderPage(r.Context(), userID, pdfID, page, dpi)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeFile(w, "image/png", "", png)
}

// merge godoc
// @Summary Merge documents
// @Description Concatenates two or more distinct documents. No quota is charged.
// @Tags pdf
// @Accept json
// @Produce json
// @Param merge body dto.MergeRequestDTO true "Documents to merge"
// @Success 201 {object} dto.PDFResponseDTO
// @Failure 404 {object} dto.MissingFilesDTO
// @Router /pdf/merge [post]
func (h *PDFHandler) merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.MergeRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	f, err := h.pdfService.Merge(r.Context(), userID, req.PDFIDs, req.OutputName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, fmt.Sprintf("Merged %d pages into %s", f.PageCount, f.Filename), dto.NewPDFResponse(f))
}

func (h *PDFHandler) convertToWord(w http.ResponseWriter, r *http.Request) {
	h.sendDocument(w, r, h.pdfService.ConvertToWord)
}

// download godoc
// @Summary Download with annotations
// @Description Returns the document with every stroke and image burned in.
// @Tags pdf
// @Produce application/pdf
// @Param pdfID path int true "Document ID"
// @Success 200 {file} binary
// @Router /pdf/download/{pdfID} [get]
func (h *PDFHandler) download(w http.ResponseWriter, r *http.Request) {
	h.sendDocument(w, r, h.pdfService.Download)
}

func (h *PDFHandler) sendDocument(w http.ResponseWriter, r *http.Request, produce func(ctx context.Context, userID, pdfID int64) (*service.Document, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "pdfID")
	if !ok {
		return
	}
	doc, err := produce(r.Context(), userID, pdfID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeFile(w, doc.ContentType, doc.Filename, doc.Data)
}

func (h *PDFHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "pdfID")
	if !ok {
		return
	}
	if err := h.pdfService.Delete(r.Context(), userID, pdfID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "PDF deleted", map[string]int64{"pdf_id": pdfID})
}
