package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/dto"
	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AnnotationHandler serves brush strokes and page images.
type AnnotationHandler struct {
	annotations    service.AnnotationService
	validate       *validator.Validate
	maxUploadBytes int64
	logger         zerolog.Logger
}

func NewAnnotationHandler(annotations service.AnnotationService, validate *validator.Validate, maxUploadBytes int64, logger zerolog.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		annotations:    annotations,
		validate:       validate,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("handler", "AnnotationHandler").Logger(),
	}
}

func (h *AnnotationHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Post("/pdf/brush-save", h.saveStroke)
		r.Post("/pdf/brush-save-batch", h.saveStrokes)
		r.Get("/pdf/brush-strokes/{pdfID}", h.listStrokes)
		r.Delete("/pdf/brush-stroke/{strokeID}", h.deleteStroke)
		r.Delete("/pdf/brush-strokes/{pdfID}/page/{page}", h.clearPage)

		r.Post("/pdf/insert-image", h.insertImage)
		r.Get("/pdf/page-images/{pdfID}", h.listImages)
		r.Get("/pdf/page-image-file/{imageID}", h.imageFile)
		r.Put("/pdf/page-image/{id}", h.updateImage)
		r.Delete("/pdf/page-image/{id}", h.deleteImage)
	})
}

// saveStroke godoc
// @Summary Save a brush stroke
// @Tags annotations
// @Accept json
// @Produce json
// @Param stroke body dto.StrokeRequestDTO true "Stroke"
// @Success 201 {object} dto.StrokeResponseDTO
// @Failure 400 {object} dto.Envelope
// @Failure 404 {object} dto.Envelope
// @Router /pdf/brush-save [post]
func (h *AnnotationHandler) saveStroke(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.StrokeRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	st, err := h.annotations.SaveStroke(r.Context(), userID, service.StrokeInput{
		PDFID:      req.PDFID,
		PageNumber: req.PageNumber,
		Points:     req.Points,
		Color:      req.Color,
		Width:      req.Width,
		Opacity:    req.Opacity,
		Tool:       req.Tool,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, "Brush stroke saved successfully", dto.NewStrokeResponse(st))
}

// saveStrokes godoc
// @Summary Save several strokes at once
// @Description Either every stroke is stored or none is.
// @Tags annotations
// @Accept json
// @Produce json
// @Param strokes body dto.BatchStrokeRequestDTO true "Strokes"
// @Success 201 {object} dto.BatchStrokeResponseDTO
// @Router /pdf/brush-save-batch [post]
func (h *AnnotationHandler) saveStrokes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.BatchStrokeRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	in := make([]service.StrokeInput, len(req.Strokes))
	for i, s := range req.Strokes {
		in[i] = service.StrokeInput{
			PDFID:      req.PDFID,
			PageNumber: s.PageNumber,
			Points:     s.Points,
			Color:      s.Color,
			Width:      s.Width,
			Opacity:    s.Opacity,
			Tool:       s.Tool,
		}
	}
	saved, err := h.annotations.SaveStrokes(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ids := make([]int64, len(saved))
	for i, s := range saved {
		ids[i] = s.ID
	}
	writeOK(w, http.StatusCreated, fmt.Sprintf("%d brush strokes saved", len(saved)), dto.BatchStrokeResponseDTO{
		PDFID:      req.PDFID,
		SavedCount: len(saved),
		StrokeIDs:  ids,
	})
}

func (h *AnnotationHandler) listStrokes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "pdfID")
	if !ok {
		return
	}
	page, ok := queryInt(w, r, "page_number", 0)
	if !ok {
		return
	}
	strokes, err := h.annotations.ListStrokes(r.Context(), userID, pdfID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := dto.StrokeListResponseDTO{PDFID: pdfID, StrokeCount: len(strokes), Strokes: make([]dto.StrokeResponseDTO, len(strokes))}
	for i := range strokes {
		out.Strokes[i] = dto.NewStrokeResponse(&strokes[i])
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *AnnotationHandler) deleteStroke(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	strokeID, ok := pathID(w, r, "strokeID")
	if !ok {
		return
	}
	if err := h.annotations.DeleteStroke(r.Context(), userID, strokeID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Brush stroke deleted", map[string]int64{"stroke_id": strokeID})
}

func (h *AnnotationHandler) clearPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "pdfID")
	if !ok {
		return
	}
	page, ok := pathInt(w, r, "page")
	if !ok {
		return
	}
	n, err := h.annotations.ClearPage(r.Context(), userID, pdfID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("%d brush strokes cleared from page %d", n, page), dto.ClearPageResponseDTO{
		PDFID:        pdfID,
		PageNumber:   page,
		DeletedCount: n,
	})
}

// formFloat parses an optional multipart float field.
func formFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

// insertImage godoc
// @Summary Place an image on a page
// @Description Coordinates are in the 150 DPI page raster space.
// @Tags annotations
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PNG, JPEG, GIF or WebP image"
// @Param pdf_id formData int true "Document ID"
// @Param page_number formData int true "Page number"
// @Param x formData number false "Left edge"
// @Param y formData number false "Top edge"
// @Param img_width formData number false "Width, default 200"
// @Param img_height formData number false "Height, default 200"
// @Param rotation formData number false "Clockwise degrees"
// @Success 201 {object} dto.ImageResponseDTO
// @Router /pdf/insert-image [post]
func (h *AnnotationHandler) insertImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	_, data, ok := readUpload(w, r, "file", h.maxUploadBytes)
	if !ok {
		return
	}
	pdfID, err := strconv.ParseInt(r.FormValue("pdf_id"), 10, 64)
	if err != nil || pdfID <= 0 {
		writeFail(w, http.StatusBadRequest, "invalid pdf_id")
		return
	}
	page, err := strconv.Atoi(r.FormValue("page_number"))
	if err != nil || page <= 0 {
		writeFail(w, http.StatusBadRequest, "invalid page_number")
		return
	}
	var p model.ImagePlacement
	for _, f := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"x", &p.X, 0},
		{"y", &p.Y, 0},
		{"img_width", &p.Width, model.DefaultImageWidth},
		{"img_height", &p.Height, model.DefaultImageHeight},
		{"rotation", &p.Rotation, 0},
	} {
		v, err := formFloat(r, f.name, f.def)
		if err != nil {
			writeFail(w, http.StatusBadRequest, err.Error())
			return
		}
		*f.dst = v
	}

	img, err := h.annotations.InsertImage(r.Context(), userID, service.ImageInput{
		PDFID:      pdfID,
		PageNumber: page,
		Data:       data,
		Placement:  p,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, "Image inserted successfully", dto.NewImageResponse(img))
}

func (h *AnnotationHandler) listImages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pdfID, ok := pathID(w, r, "pdfID")
	if !ok {
		return
	}
	page, ok := queryInt(w, r, "page_number", 0)
	if !ok {
		return
	}
	images, err := h.annotations.ListImages(r.Context(), userID, pdfID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := dto.ImageListResponseDTO{PDFID: pdfID, ImageCount: len(images), Images: make([]dto.ImageResponseDTO, len(images))}
	for i := range images {
		out.Images[i] = dto.NewImageResponse(&images[i])
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *AnnotationHandler) imageFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageID")
	if !ok {
		return
	}
	f, err := h.annotations.ImageFile(r.Context(), userID, imageID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeFile(w, f.ContentType, "", f.Data)
}

// updateImage godoc
// @Summary Move, resize or rotate an image
// @Description Replaces the whole placement.
// @Tags annotations
// @Accept json
// @Produce json
// @Param id path int true "Image ID"
// @Param placement body dto.ImagePlacementDTO true "Placement"
// @Success 200 {object} dto.ImageResponseDTO
// @Router /pdf/page-image/{id} [put]
func (h *AnnotationHandler) updateImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ImagePlacementDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	img, err := h.annotations.UpdateImagePlacement(r.Context(), userID, imageID, model.ImagePlacement{
		X:        *req.X,
		Y:        *req.Y,
		Width:    *req.Width,
		Height:   *req.Height,
		Rotation: req.Rotation,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Image updated", dto.NewImageResponse(img))
}

func (h *AnnotationHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.annotations.DeleteImage(r.Context(), userID, imageID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Image deleted", map[string]int64{"image_id": imageID})
}
