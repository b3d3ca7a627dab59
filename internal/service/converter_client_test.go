package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterClientPostsPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/convert/docx", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF-1.4", string(body))
		_, _ = w.Write([]byte("PK-docx"))
	}))
	defer srv.Close()

	c := NewConverterClient(srv.URL+"/", time.Second, zerolog.Nop())
	out, err := c.ConvertToDocx(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "PK-docx", string(out))
}

func TestConverterClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewConverterClient(srv.URL, time.Second, zerolog.Nop())
	_, err := c.ConvertToDocx(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestConverterClientUnconfigured(t *testing.T) {
	c := NewConverterClient("", time.Second, zerolog.Nop())
	_, err := c.ConvertToDocx(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConverterUnavailable)
}
