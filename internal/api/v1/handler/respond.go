package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/dto"
	"github.com/samuelysliu/pdf-editor/internal/middleware"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxJSONBody caps request bodies that are not file uploads.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, dto.Envelope{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.Envelope{Error: message})
}

// writeError maps service errors to HTTP statuses. Only 5xx responses are
// logged, and their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var missing *service.MissingFilesError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusNotFound, dto.Envelope{
			Error: missing.Error(),
			Data:  dto.MissingFilesDTO{MissingIDs: missing.IDs},
		})
	case errors.Is(err, service.ErrStorageInconsistency):
		writeFail(w, http.StatusNotFound, "file not found in storage")
	case errors.Is(err, service.ErrNotFound):
		writeFail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidFile),
		errors.Is(err, service.ErrVerificationFailed),
		errors.Is(err, service.ErrUsernameTaken):
		writeFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeFail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAlreadyProcessed):
		writeFail(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMockPurchaseDisabled):
		writeFail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConverterUnavailable):
		writeFail(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeFail(w, http.StatusInternalServerError, "internal server error")
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return n, true
}

// queryInt returns def when the parameter is absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return n, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
		if disposition == "" {
			disposition = "attachment"
		}
		w.Header().Set("Content-Disposition", disposition)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
