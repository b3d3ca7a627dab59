package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip postgres integration test")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, 10, true)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func createTestUser(t *testing.T, repos Repositories, quota int) *model.User {
	t.Helper()
	suffix := time.Now().UnixNano()
	u := &model.User{
		Username:     fmt.Sprintf("user-%d", suffix),
		Email:        fmt.Sprintf("user-%d@example.com", suffix),
		PasswordHash: "hash",
		Quota:        quota,
	}
	require.NoError(t, repos.Users.CreateUser(context.Background(), u))
	return u
}

func TestPostgresConcurrentDeduct(t *testing.T) {
	repos := NewPostgres(testPool(t))
	u := createTestUser(t, repos, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repos.Quota.DeductQuota(ctx, u.ID, 3)
			if err == nil && ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	q, err := repos.Quota.GetQuota(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q)
}

func TestPostgresCreditTransactionDuplicate(t *testing.T) {
	repos := NewPostgres(testPool(t))
	u := createTestUser(t, repos, 5)
	ctx := context.Background()
	extID := fmt.Sprintf("GPA.%d", time.Now().UnixNano())

	bal, err := repos.Payments.CreditTransaction(ctx, &model.Transaction{
		UserID: u.ID, TransactionID: extID, ProductID: "pdf_editor_50_pages", Amount: 100, QuotaAdded: 50, Status: model.TransactionCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, 55, bal)

	_, err = repos.Payments.CreditTransaction(ctx, &model.Transaction{
		UserID: u.ID, TransactionID: extID, ProductID: "pdf_editor_50_pages", Amount: 100, QuotaAdded: 50, Status: model.TransactionCompleted,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	q, err := repos.Quota.GetQuota(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, q)
}

func TestPostgresStrokeCascade(t *testing.T) {
	repos := NewPostgres(testPool(t))
	u := createTestUser(t, repos, 5)
	ctx := context.Background()

	f := &model.PDFFile{UserID: u.ID, Filename: "a.pdf", FilePath: "uploads/a.pdf", PageCount: 2}
	require.NoError(t, repos.PDFs.CreatePDF(ctx, f))
	s := &model.BrushStroke{PDFID: f.ID, PageNumber: 1, Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Color: "#ff0000", Width: 2, Opacity: 1, Tool: model.ToolPen}
	require.NoError(t, repos.Strokes.CreateStroke(ctx, s))

	got, err := repos.Strokes.ListStrokes(ctx, f.ID, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s.Points, got[0].Points)

	require.NoError(t, repos.PDFs.DeletePDF(ctx, f.ID))
	_, err = repos.Strokes.GetStroke(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
