package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("pdf 3: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrStorageInconsistency, http.StatusNotFound},
		{&service.MissingFilesError{IDs: []int64{4}}, http.StatusNotFound},
		{fmt.Errorf("%w: page 0", service.ErrInvalidArgument), http.StatusBadRequest},
		{service.ErrInvalidFile, http.StatusBadRequest},
		{service.ErrVerificationFailed, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrAlreadyProcessed, http.StatusConflict},
		{service.ErrMockPurchaseDisabled, http.StatusForbidden},
		{service.ErrConverterUnavailable, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), zerolog.Nop(), tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestWriteErrorHidesInternalText(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), zerolog.Nop(), errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestWriteFileDisposition(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"ascii", "combined.pdf", "attachment; filename=combined.pdf"},
		{"spaces quoted", "my notes.pdf", `attachment; filename="my notes.pdf"`},
		{"non-ascii", "會議紀錄.pdf", "attachment; filename*=utf-8''%E6%9C%83%E8%AD%B0%E7%B4%80%E9%8C%84.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeFile(rec, "application/pdf", tt.filename, []byte("%PDF"))
			assert.Equal(t, tt.want, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "4", rec.Header().Get("Content-Length"))
		})
	}
}
