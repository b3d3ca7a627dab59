package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samuelysliu/pdf-editor/internal/composite"
	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/pdfkit"
	"github.com/samuelysliu/pdf-editor/internal/pdfkit/pdfkittest"
	"github.com/samuelysliu/pdf-editor/internal/repository/memory"
	"github.com/samuelysliu/pdf-editor/internal/service"
	"github.com/samuelysliu/pdf-editor/internal/service/mocks"
	"github.com/samuelysliu/pdf-editor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pdfFixture struct {
	store     *memory.Store
	files     storage.Storage
	raster    *mocks.MockRasterizer
	converter *mocks.MockWordConverter
	publisher *mocks.MockPublisher
	quota     service.QuotaService
	svc       service.PDFService
}

// refundFailure deducts normally and fails every refund.
type refundFailure struct {
	*memory.Store
	err error
}

func (r refundFailure) AddQuota(context.Context, int64, int) (int, error) {
	return 0, r.err
}

func newPDFFixture(t *testing.T, files storage.Storage) *pdfFixture {
	t.Helper()
	if files == nil {
		files = storage.NewLocal(t.TempDir())
	}
	store := memory.New()
	f := &pdfFixture{
		store:     store,
		files:     files,
		raster:    new(mocks.MockRasterizer),
		converter: new(mocks.MockWordConverter),
		publisher: new(mocks.MockPublisher),
	}
	f.quota = service.NewQuotaService(store, zerolog.Nop())
	engine := composite.NewEngine(files, composite.Options{}, zerolog.Nop())
	f.svc = service.NewPDFService(store.Repositories(), f.quota, files, engine, f.raster, f.converter, f.publisher,
		service.PDFServiceOptions{EventsTopic: "events"}, zerolog.Nop())
	f.publisher.On("Publish", mock.Anything, "events", mock.Anything).Return("1", nil).Maybe()
	return f
}

func (f *pdfFixture) balance(t *testing.T, userID int64) int {
	t.Helper()
	st, err := f.quota.Status(context.Background(), userID)
	require.NoError(t, err)
	return st.Quota
}

func upload(t *testing.T, f *pdfFixture, userID int64, name string, pages int) *model.PDFFile {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), userID, name, pdfkittest.Blank(pages, 612, 792))
	require.NoError(t, err)
	done, ok := res.(service.UploadCompleted)
	require.True(t, ok, "expected completed upload, got %T", res)
	return done.File
}

func TestUploadDeductsPages(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)

	res, err := f.svc.Upload(context.Background(), u.ID, "report.pdf", pdfkittest.Blank(3, 612, 792))
	require.NoError(t, err)
	done := res.(service.UploadCompleted)
	assert.Equal(t, 7, done.QuotaRemaining)
	assert.Equal(t, 3, done.File.PageCount)
	assert.Equal(t, 3, done.File.QuotaUsed)
	assert.Equal(t, "uploads/"+itoa(u.ID)+"/report.pdf", done.File.FilePath)
	assert.Equal(t, 7, f.balance(t, u.ID))

	exists, err := f.files.Exists(context.Background(), done.File.FilePath)
	require.NoError(t, err)
	assert.True(t, exists)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, "events", mock.Anything)
}

func TestUploadDeclinedLeavesNothing(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 2)

	res, err := f.svc.Upload(context.Background(), u.ID, "report.pdf", pdfkittest.Blank(3, 612, 792))
	require.NoError(t, err)
	assert.Equal(t, service.UploadDeclined{Needed: 3, Available: 2}, res)
	assert.Equal(t, 2, f.balance(t, u.ID))

	files, err := f.svc.List(context.Background(), u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadRejectsBeforeDeduction(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, u.ID, "notes.txt", pdfkittest.Blank(1, 612, 792))
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = f.svc.Upload(ctx, u.ID, "broken.pdf", []byte("%PDF-1.4 garbage"))
	assert.ErrorIs(t, err, service.ErrInvalidFile)
	assert.Equal(t, 10, f.balance(t, u.ID))
}

func TestUploadSuffixesDuplicateNames(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)

	first := upload(t, f, u.ID, "doc.pdf", 1)
	second := upload(t, f, u.ID, "doc.pdf", 1)
	third := upload(t, f, u.ID, "../../doc.pdf", 1)
	assert.Equal(t, "doc.pdf", first.Filename)
	assert.Equal(t, "doc_1.pdf", second.Filename)
	assert.Equal(t, "doc_2.pdf", third.Filename)
}

func TestUploadRefundsOnWriteFailure(t *testing.T) {
	files := new(mocks.MockStorage)
	files.On("EnsureDir", mock.Anything, mock.Anything).Return(nil)
	files.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	files.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	f := newPDFFixture(t, files)
	u := newUser(t, f.store, "alice", 10)

	_, err := f.svc.Upload(context.Background(), u.ID, "doc.pdf", pdfkittest.Blank(4, 612, 792))
	require.Error(t, err)
	assert.Equal(t, 10, f.balance(t, u.ID))
	files.AssertExpectations(t)
}

func TestListLimits(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 100)
	for i := 0; i < 3; i++ {
		upload(t, f, u.ID, "doc.pdf", 1)
	}

	files, err := f.svc.List(context.Background(), u.ID, 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "doc_2.pdf", files[0].Filename)
}

func TestMergeDedupesAndChargesNothing(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	a := upload(t, f, u.ID, "a.pdf", 2)
	b := upload(t, f, u.ID, "b.pdf", 3)
	before := f.balance(t, u.ID)

	merged, err := f.svc.Merge(context.Background(), u.ID, []int64{a.ID, a.ID, b.ID}, "combined")
	require.NoError(t, err)
	assert.Equal(t, "combined.pdf", merged.Filename)
	assert.Equal(t, 5, merged.PageCount)
	assert.Equal(t, 0, merged.QuotaUsed)
	assert.Equal(t, before, f.balance(t, u.ID))

	data, err := f.files.Read(context.Background(), merged.FilePath)
	require.NoError(t, err)
	n, err := pdfkit.PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMergeNeedsTwoDistinctFiles(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	a := upload(t, f, u.ID, "a.pdf", 1)

	_, err := f.svc.Merge(context.Background(), u.ID, []int64{a.ID, a.ID}, "x.pdf")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestMergeReportsMissingFiles(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	other := newUser(t, f.store, "bob", 10)
	a := upload(t, f, u.ID, "a.pdf", 1)
	foreign := upload(t, f, other.ID, "b.pdf", 1)

	_, err := f.svc.Merge(context.Background(), u.ID, []int64{a.ID, foreign.ID, 999}, "x.pdf")
	var missing *service.MissingFilesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []int64{foreign.ID, 999}, missing.IDs)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	doc := upload(t, f, u.ID, "a.pdf", 2)
	ctx := context.Background()

	notes := service.NewAnnotationService(f.store, f.store, f.store, f.files, zerolog.Nop())
	s, err := notes.SaveStroke(ctx, u.ID, service.StrokeInput{PDFID: doc.ID, PageNumber: 1, Points: line()})
	require.NoError(t, err)
	img, err := notes.InsertImage(ctx, u.ID, service.ImageInput{PDFID: doc.ID, PageNumber: 2, Data: pngBytes(t, 2, 2)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, u.ID, doc.ID))

	_, err = f.store.GetStroke(ctx, s.ID)
	assert.Error(t, err)
	_, err = f.store.GetImage(ctx, img.ID)
	assert.Error(t, err)
	for _, key := range []string{doc.FilePath, img.ImagePath} {
		exists, err := f.files.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
	assert.ErrorIs(t, f.svc.Delete(ctx, u.ID, doc.ID), service.ErrNotFound)
}

func TestDeleteForeignPDF(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	other := newUser(t, f.store, "bob", 10)
	doc := upload(t, f, u.ID, "a.pdf", 1)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), other.ID, doc.ID), service.ErrNotFound)
}

func TestDownloadComposites(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	doc := upload(t, f, u.ID, "a.pdf", 2)
	ctx := context.Background()

	notes := service.NewAnnotationService(f.store, f.store, f.store, f.files, zerolog.Nop())
	_, err := notes.SaveStroke(ctx, u.ID, service.StrokeInput{PDFID: doc.ID, PageNumber: 2, Points: line(), Color: "#ff0000"})
	require.NoError(t, err)

	out, err := f.svc.Download(ctx, u.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", out.Filename)
	assert.Equal(t, "application/pdf", out.ContentType)
	n, err := pdfkit.PageCount(out.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDownloadMissingObject(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	doc := upload(t, f, u.ID, "a.pdf", 1)
	require.NoError(t, f.files.Delete(context.Background(), doc.FilePath))

	_, err := f.svc.Download(context.Background(), u.ID, doc.ID)
	assert.ErrorIs(t, err, service.ErrStorageInconsistency)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRenderPage(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	doc := upload(t, f, u.ID, "a.pdf", 2)
	ctx := context.Background()

	f.raster.On("RenderPage", mock.Anything, mock.Anything, 2, 150).Return([]byte("png"), nil).Once()
	out, err := f.svc.RenderPage(ctx, u.ID, doc.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), out)

	_, err = f.svc.RenderPage(ctx, u.ID, doc.ID, 3, 150)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = f.svc.RenderPage(ctx, u.ID, doc.ID, 1, 20)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = f.svc.RenderPage(ctx, u.ID, doc.ID, 1, 601)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	f.raster.AssertExpectations(t)
}

func TestConvertToWord(t *testing.T) {
	f := newPDFFixture(t, nil)
	u := newUser(t, f.store, "alice", 10)
	doc := upload(t, f, u.ID, "report.pdf", 1)

	f.converter.On("ConvertToDocx", mock.Anything, mock.Anything).Return([]byte("PK"), nil)
	out, err := f.svc.ConvertToWord(context.Background(), u.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", out.Filename)
	assert.Equal(t, []byte("PK"), out.Data)
}

func TestUploadRefundFailureKeepsWriteError(t *testing.T) {
	files := new(mocks.MockStorage)
	files.On("EnsureDir", mock.Anything, mock.Anything).Return(nil)
	files.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	writeErr := errors.New("disk full")
	files.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(writeErr)
	f := newPDFFixture(t, files)
	u := newUser(t, f.store, "alice", 10)
	quota := service.NewQuotaService(refundFailure{Store: f.store, err: errors.New("db gone")}, zerolog.Nop())
	engine := composite.NewEngine(files, composite.Options{}, zerolog.Nop())
	svc := service.NewPDFService(f.store.Repositories(), quota, files, engine, f.raster, f.converter, f.publisher,
		service.PDFServiceOptions{EventsTopic: "events"}, zerolog.Nop())

	_, err := svc.Upload(context.Background(), u.ID, "doc.pdf", pdfkittest.Blank(4, 612, 792))
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, 6, f.balance(t, u.ID))
}
