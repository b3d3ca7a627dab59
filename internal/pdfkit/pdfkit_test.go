package pdfkit

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/samuelysliu/pdf-editor/internal/pdfkit/pdfkittest"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	n, err := PageCount(pdfkittest.Blank(3, 612, 792))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPageCountRejectsGarbage(t *testing.T) {
	_, err := PageCount([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = PageCount(nil)
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestMergeSumsPages(t *testing.T) {
	out, err := Merge([][]byte{pdfkittest.Blank(2, 612, 792), pdfkittest.Blank(3, 595, 842)})
	require.NoError(t, err)

	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPageSizeInherited(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(1, 300, 400))
	require.NoError(t, err)
	w, h, err := doc.PageSize(1)
	require.NoError(t, err)
	assert.Equal(t, 300.0, w)
	assert.Equal(t, 400.0, h)

	_, _, err = doc.PageSize(2)
	assert.Error(t, err)
}

func TestDrawPolylineContent(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(1, 300, 400))
	require.NoError(t, err)

	err = doc.DrawPolyline(1, []Point{{X: 10, Y: 20}, {X: 30.5, Y: 40}}, StrokeStyle{Color: Color{R: 1}, Width: 0.96, Opacity: 1})
	require.NoError(t, err)

	got := doc.pages[1].ops.String()
	want := "q 1 0 0 RG 0.96 w 1 J 1 j\n10 380 m\n30.5 360 l\nS Q\n"
	assert.Equal(t, want, got)
}

func TestDrawPolylineSkipsSinglePoint(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(1, 300, 400))
	require.NoError(t, err)
	require.NoError(t, doc.DrawPolyline(1, []Point{{X: 1, Y: 1}}, StrokeStyle{Width: 1, Opacity: 1}))
	assert.Empty(t, doc.pages)
}

func TestTranslucentStrokeUsesExtGState(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(2, 300, 400))
	require.NoError(t, err)
	st := StrokeStyle{Width: 1, Opacity: 0.5}
	require.NoError(t, doc.DrawPolyline(1, []Point{{0, 0}, {1, 1}}, st))
	require.NoError(t, doc.DrawPolyline(2, []Point{{0, 0}, {1, 1}}, st))

	assert.Len(t, doc.opacity, 1)
	assert.Len(t, doc.pages[1].states, 1)
	assert.Len(t, doc.pages[2].states, 1)
	assert.Contains(t, doc.pages[2].ops.String(), "/GSPdfe1 gs")
}

func TestExportWithOverlays(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(2, 612, 792))
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
		img.Set(x, 1, color.NRGBA{B: 255, A: 128})
	}
	require.NoError(t, doc.InsertImage(1, Rect{X0: 10, Y0: 10, X1: 50, Y1: 30}, img))
	require.NoError(t, doc.DrawPolyline(2, []Point{{0, 0}, {100, 100}, {200, 50}}, StrokeStyle{Width: 2, Opacity: 0.4}))

	assert.Equal(t, "q 40 0 0 20 10 762 cm /ImPdfe1 Do Q\n", doc.pages[1].ops.String())

	out, err := doc.Export()
	require.NoError(t, err)
	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNum(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		-0.00001:   "0",
		1:          "1",
		10:         "10",
		0.5:        "0.5",
		1.23456789: "1.2346",
		-3.25:      "-3.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, num(in), "num(%v)", in)
	}
}

func TestImageSMaskOnlyWhenTranslucent(t *testing.T) {
	doc, err := Open(pdfkittest.Blank(1, 612, 792))
	require.NoError(t, err)

	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			opaque.Set(x, y, color.NRGBA{G: 255, A: 255})
			translucent.Set(x, y, color.NRGBA{G: 255, A: 10})
		}
	}

	ref, err := doc.imageXObject(opaque)
	require.NoError(t, err)
	sd, _, err := doc.ctx.DereferenceStreamDict(ref)
	require.NoError(t, err)
	_, found := sd.Dict.Find("SMask")
	assert.False(t, found)

	ref, err = doc.imageXObject(translucent)
	require.NoError(t, err)
	sd, _, err = doc.ctx.DereferenceStreamDict(ref)
	require.NoError(t, err)
	_, found = sd.Dict.Find("SMask")
	assert.True(t, found)
}

func TestOverlayStreamSeparatedFromPageContent(t *testing.T) {
	// Blank writes its content without a trailing newline.
	doc, err := Open(pdfkittest.Blank(1, 612, 792))
	require.NoError(t, err)
	require.NoError(t, doc.DrawPolyline(1, []Point{{0, 0}, {10, 10}}, StrokeStyle{Width: 1, Opacity: 1}))

	o := doc.pages[1]
	require.NoError(t, doc.commit(o))
	contents, ok := o.dict["Contents"].(types.Array)
	require.True(t, ok)
	require.Len(t, contents, 3)

	open, _, err := doc.ctx.DereferenceStreamDict(contents[0])
	require.NoError(t, err)
	assert.Equal(t, "q\n", string(open.Content))

	closing, _, err := doc.ctx.DereferenceStreamDict(contents[2])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(closing.Content, []byte("\nQ\n")))
}

func TestExportIsByteIdentical(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for x := 0; x < 3; x++ {
		img.Set(x, x, color.NRGBA{R: 200, A: 90})
	}
	export := func() []byte {
		doc, err := Open(pdfkittest.Blank(2, 612, 792))
		require.NoError(t, err)
		require.NoError(t, doc.InsertImage(2, Rect{X0: 5, Y0: 5, X1: 65, Y1: 65}, img))
		require.NoError(t, doc.DrawPolyline(1, []Point{{1, 1}, {50, 80}}, StrokeStyle{Color: Color{G: 1}, Width: 3, Opacity: 0.5}))
		out, err := doc.Export()
		require.NoError(t, err)
		return out
	}

	a := export()
	b := export()
	assert.True(t, bytes.Equal(a, b))
	assert.Contains(t, string(a), "D:19700101000000+00'00'")

	n, err := PageCount(a)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
