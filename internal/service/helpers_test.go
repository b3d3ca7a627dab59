package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"testing"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, store *memory.Store, name string, quota int) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Quota: quota}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func newPDF(t *testing.T, store *memory.Store, userID int64, pages int) *model.PDFFile {
	t.Helper()
	f := &model.PDFFile{UserID: userID, Filename: "doc.pdf", FilePath: "uploads/doc.pdf", PageCount: pages, QuotaUsed: pages}
	require.NoError(t, store.CreatePDF(context.Background(), f))
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
