package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository/memory"
	"github.com/samuelysliu/pdf-editor/internal/service"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type annotationFixture struct {
	store *memory.Store
	files *storage.Local
	svc   service.AnnotationService
	owner *model.User
	other *model.User
	pdf   *model.PDFFile
}

func newAnnotationFixture(t *testing.T) *annotationFixture {
	t.Helper()
	store := memory.New()
	files := storage.NewLocal(t.TempDir())
	f := &annotationFixture{
		store: store,
		files: files,
		svc:   service.NewAnnotationService(store, store, store, files, zerolog.Nop()),
		owner: newUser(t, store, "owner", 10),
		other: newUser(t, store, "other", 10),
	}
	f.pdf = newPDF(t, store, f.owner.ID, 3)
	return f
}

func line() []model.Point {
	return []model.Point{{X: 10, Y: 10}, {X: 50, Y: 50}}
}

func TestSaveStrokeDefaults(t *testing.T) {
	f := newAnnotationFixture(t)

	s, err := f.svc.SaveStroke(context.Background(), f.owner.ID, service.StrokeInput{
		PDFID: f.pdf.ID, PageNumber: 1, Points: line(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultStrokeColor, s.Color)
	assert.Equal(t, model.DefaultStrokeWidth, s.Width)
	assert.Equal(t, model.DefaultStrokeOpacity, s.Opacity)
	assert.Equal(t, model.ToolPen, s.Tool)
	assert.NotZero(t, s.ID)
}

func TestSaveStrokeValidation(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	cases := map[string]service.StrokeInput{
		"page zero":     {PDFID: f.pdf.ID, PageNumber: 0, Points: line()},
		"page past end": {PDFID: f.pdf.ID, PageNumber: 4, Points: line()},
		"no points":     {PDFID: f.pdf.ID, PageNumber: 1},
		"bad tool":      {PDFID: f.pdf.ID, PageNumber: 1, Points: line(), Tool: "crayon"},
		"zero width":    {PDFID: f.pdf.ID, PageNumber: 1, Points: line(), Width: ptr(0.0)},
		"opacity > 1":   {PDFID: f.pdf.ID, PageNumber: 1, Points: line(), Opacity: ptr(1.5)},
		"opacity < 0":   {PDFID: f.pdf.ID, PageNumber: 1, Points: line(), Opacity: ptr(-0.1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SaveStroke(ctx, f.owner.ID, in)
			assert.ErrorIs(t, err, service.ErrInvalidArgument)
		})
	}
}

func TestSaveStrokeForeignPDF(t *testing.T) {
	f := newAnnotationFixture(t)

	_, err := f.svc.SaveStroke(context.Background(), f.other.ID, service.StrokeInput{
		PDFID: f.pdf.ID, PageNumber: 1, Points: line(),
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSaveStrokesIsAllOrNothing(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveStrokes(ctx, f.owner.ID, []service.StrokeInput{
		{PDFID: f.pdf.ID, PageNumber: 1, Points: line()},
		{PDFID: f.pdf.ID, PageNumber: 9, Points: line()},
	})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	strokes, err := f.svc.ListStrokes(ctx, f.owner.ID, f.pdf.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, strokes)

	saved, err := f.svc.SaveStrokes(ctx, f.owner.ID, []service.StrokeInput{
		{PDFID: f.pdf.ID, PageNumber: 1, Points: line()},
		{PDFID: f.pdf.ID, PageNumber: 2, Points: line(), Tool: model.ToolEraser},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	strokes, err = f.svc.ListStrokes(ctx, f.owner.ID, f.pdf.ID, 2)
	require.NoError(t, err)
	require.Len(t, strokes, 1)
	assert.Equal(t, model.ToolEraser, strokes[0].Tool)
}

func TestListStrokesCreationOrder(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		s, err := f.svc.SaveStroke(ctx, f.owner.ID, service.StrokeInput{PDFID: f.pdf.ID, PageNumber: 1, Points: line()})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	strokes, err := f.svc.ListStrokes(ctx, f.owner.ID, f.pdf.ID, 1)
	require.NoError(t, err)
	var got []int64
	for _, s := range strokes {
		got = append(got, s.ID)
	}
	assert.Equal(t, ids, got)
}

func TestDeleteStrokeScopedToOwner(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	s, err := f.svc.SaveStroke(ctx, f.owner.ID, service.StrokeInput{PDFID: f.pdf.ID, PageNumber: 1, Points: line()})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteStroke(ctx, f.other.ID, s.ID), service.ErrNotFound)
	require.NoError(t, f.svc.DeleteStroke(ctx, f.owner.ID, s.ID))
	assert.ErrorIs(t, f.svc.DeleteStroke(ctx, f.owner.ID, s.ID), service.ErrNotFound)
}

func TestClearPage(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	for _, page := range []int{1, 1, 2} {
		_, err := f.svc.SaveStroke(ctx, f.owner.ID, service.StrokeInput{PDFID: f.pdf.ID, PageNumber: page, Points: line()})
		require.NoError(t, err)
	}
	n, err := f.svc.ClearPage(ctx, f.owner.ID, f.pdf.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rest, err := f.svc.ListStrokes(ctx, f.owner.ID, f.pdf.ID, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 2, rest[0].PageNumber)
}

func TestInsertImageStoresFile(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	img, err := f.svc.InsertImage(ctx, f.owner.ID, service.ImageInput{
		PDFID: f.pdf.ID, PageNumber: 2, Data: pngBytes(t, 4, 4),
		Placement: model.ImagePlacement{X: 5, Y: 6},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultImageWidth, img.Width)
	assert.Equal(t, model.DefaultImageHeight, img.Height)
	assert.True(t, strings.HasPrefix(img.ImagePath, "images/"))
	assert.True(t, strings.HasSuffix(img.ImagePath, ".png"))

	file, err := f.svc.ImageFile(ctx, f.owner.ID, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
	assert.Equal(t, pngBytes(t, 4, 4), file.Data)

	_, err = f.svc.ImageFile(ctx, f.other.ID, img.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestInsertImageRejectsGarbage(t *testing.T) {
	f := newAnnotationFixture(t)

	_, err := f.svc.InsertImage(context.Background(), f.owner.ID, service.ImageInput{
		PDFID: f.pdf.ID, PageNumber: 1, Data: []byte("not an image"),
	})
	assert.ErrorIs(t, err, service.ErrInvalidFile)
}

func TestUpdateImagePlacement(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	img, err := f.svc.InsertImage(ctx, f.owner.ID, service.ImageInput{PDFID: f.pdf.ID, PageNumber: 1, Data: pngBytes(t, 2, 2)})
	require.NoError(t, err)

	p := model.ImagePlacement{X: 1, Y: 2, Width: 30, Height: 40, Rotation: 90}
	got, err := f.svc.UpdateImagePlacement(ctx, f.owner.ID, img.ID, p)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Width)
	assert.Equal(t, 90.0, got.Rotation)

	_, err = f.svc.UpdateImagePlacement(ctx, f.owner.ID, img.ID, model.ImagePlacement{Width: -1, Height: 1})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = f.svc.UpdateImagePlacement(ctx, f.other.ID, img.ID, p)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteImageRemovesStoredObject(t *testing.T) {
	f := newAnnotationFixture(t)
	ctx := context.Background()

	img, err := f.svc.InsertImage(ctx, f.owner.ID, service.ImageInput{PDFID: f.pdf.ID, PageNumber: 1, Data: pngBytes(t, 2, 2)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteImage(ctx, f.owner.ID, img.ID))
	exists, err := f.files.Exists(ctx, img.ImagePath)
	require.NoError(t, err)
	assert.False(t, exists)

	images, err := f.svc.ListImages(ctx, f.owner.ID, f.pdf.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, images)
}
