// Package memory is an in-process implementation of every repository,
// used by tests and by STORE=memory development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	users         map[int64]*model.User
	pdfs          map[int64]*model.PDFFile
	strokes       map[int64]*model.BrushStroke
	images        map[int64]*model.PageImage
	transactions  map[int64]*model.Transaction
	subscriptions map[int64]*model.Subscription
}

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:           now,
		users:         make(map[int64]*model.User),
		pdfs:          make(map[int64]*model.PDFFile),
		strokes:       make(map[int64]*model.BrushStroke),
		images:        make(map[int64]*model.PageImage),
		transactions:  make(map[int64]*model.Transaction),
		subscriptions: make(map[int64]*model.Subscription),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:         s,
		Quota:         s,
		PDFs:          s,
		Strokes:       s,
		Images:        s,
		Payments:      s,
		Subscriptions: s,
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// User store implementation

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// DeleteUser removes a user and everything they own.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	for pid, f := range s.pdfs {
		if f.UserID == id {
			s.deletePDFLocked(pid)
		}
	}
	for tid, t := range s.transactions {
		if t.UserID == id {
			delete(s.transactions, tid)
		}
	}
	for sid, sub := range s.subscriptions {
		if sub.UserID == id {
			delete(s.subscriptions, sid)
		}
	}
	return nil
}

// Quota store implementation

func (s *Store) DeductQuota(_ context.Context, userID int64, pages int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	if u.Quota < pages {
		return u.Quota, false, nil
	}
	u.Quota -= pages
	u.UpdatedAt = s.now()
	return u.Quota, true, nil
}

func (s *Store) AddQuota(_ context.Context, userID int64, pages int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addQuotaLocked(userID, pages)
}

func (s *Store) addQuotaLocked(userID int64, pages int) (int, error) {
	u, ok := s.users[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Quota += pages
	u.UpdatedAt = s.now()
	return u.Quota, nil
}

func (s *Store) GetQuota(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return u.Quota, nil
}

// PDF store implementation

func (s *Store) CreatePDF(_ context.Context, f *model.PDFFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[f.UserID]; !ok {
		return repository.ErrNotFound
	}
	f.ID = s.nextID()
	f.CreatedAt = s.now()
	f.UpdatedAt = f.CreatedAt
	cp := *f
	s.pdfs[f.ID] = &cp
	return nil
}

func (s *Store) GetPDF(_ context.Context, id int64) (*model.PDFFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.pdfs[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListPDFsByUser(_ context.Context, userID int64, limit int) ([]model.PDFFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := []model.PDFFile{}
	for _, f := range s.pdfs {
		if f.UserID == userID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].ID > files[j].ID
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (s *Store) PDFFilenameExists(_ context.Context, userID int64, filename string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.pdfs {
		if f.UserID == userID && f.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeletePDF(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pdfs[id]; !ok {
		return repository.ErrNotFound
	}
	s.deletePDFLocked(id)
	return nil
}

func (s *Store) deletePDFLocked(id int64) {
	delete(s.pdfs, id)
	for sid, st := range s.strokes {
		if st.PDFID == id {
			delete(s.strokes, sid)
		}
	}
	for iid, img := range s.images {
		if img.PDFID == id {
			delete(s.images, iid)
		}
	}
}

// Stroke store implementation

func (s *Store) CreateStroke(_ context.Context, st *model.BrushStroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createStrokeLocked(st)
}

func (s *Store) CreateStrokes(_ context.Context, strokes []*model.BrushStroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range strokes {
		if _, ok := s.pdfs[st.PDFID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, st := range strokes {
		if err := s.createStrokeLocked(st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createStrokeLocked(st *model.BrushStroke) error {
	if _, ok := s.pdfs[st.PDFID]; !ok {
		return repository.ErrNotFound
	}
	st.ID = s.nextID()
	st.CreatedAt = s.now()
	cp := *st
	cp.Points = append([]model.Point(nil), st.Points...)
	s.strokes[st.ID] = &cp
	return nil
}

func (s *Store) GetStroke(_ context.Context, id int64) (*model.BrushStroke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.strokes[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListStrokes(_ context.Context, pdfID int64, page int) ([]model.BrushStroke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strokes := []model.BrushStroke{}
	for _, st := range s.strokes {
		if st.PDFID == pdfID && (page == 0 || st.PageNumber == page) {
			strokes = append(strokes, *st)
		}
	}
	sort.Slice(strokes, func(i, j int) bool {
		if !strokes[i].CreatedAt.Equal(strokes[j].CreatedAt) {
			return strokes[i].CreatedAt.Before(strokes[j].CreatedAt)
		}
		return strokes[i].ID < strokes[j].ID
	})
	return strokes, nil
}

func (s *Store) DeleteStroke(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strokes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.strokes, id)
	return nil
}

func (s *Store) DeletePageStrokes(_ context.Context, pdfID int64, page int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, st := range s.strokes {
		if st.PDFID == pdfID && st.PageNumber == page {
			delete(s.strokes, id)
			n++
		}
	}
	return n, nil
}

// Image store implementation

func (s *Store) CreateImage(_ context.Context, img *model.PageImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pdfs[img.PDFID]; !ok {
		return repository.ErrNotFound
	}
	img.ID = s.nextID()
	img.CreatedAt = s.now()
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) GetImage(_ context.Context, id int64) (*model.PageImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if img, ok := s.images[id]; ok {
		cp := *img
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListImages(_ context.Context, pdfID int64, page int) ([]model.PageImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images := []model.PageImage{}
	for _, img := range s.images {
		if img.PDFID == pdfID && (page == 0 || img.PageNumber == page) {
			images = append(images, *img)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		if !images[i].CreatedAt.Equal(images[j].CreatedAt) {
			return images[i].CreatedAt.Before(images[j].CreatedAt)
		}
		return images[i].ID < images[j].ID
	})
	return images, nil
}

func (s *Store) UpdateImagePlacement(_ context.Context, id int64, p model.ImagePlacement) (*model.PageImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	img.X, img.Y = p.X, p.Y
	img.Width, img.Height = p.Width, p.Height
	img.Rotation = p.Rotation
	cp := *img
	return &cp, nil
}

func (s *Store) DeleteImage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.images, id)
	return nil
}

// Payment store implementation

func (s *Store) GetTransactionByExternalID(_ context.Context, externalID string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t := s.transactionLocked(externalID); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) transactionLocked(externalID string) *model.Transaction {
	for _, t := range s.transactions {
		if t.TransactionID == externalID {
			return t
		}
	}
	return nil
}

func (s *Store) CreditTransaction(_ context.Context, t *model.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transactionLocked(t.TransactionID) != nil {
		return 0, repository.ErrDuplicate
	}
	if _, ok := s.users[t.UserID]; !ok {
		return 0, repository.ErrNotFound
	}
	s.insertTransactionLocked(t)
	return s.addQuotaLocked(t.UserID, t.QuotaAdded)
}

func (s *Store) insertTransactionLocked(t *model.Transaction) {
	t.ID = s.nextID()
	t.CreatedAt = s.now()
	cp := *t
	s.transactions[t.ID] = &cp
}

func (s *Store) ListTransactions(_ context.Context, userID int64, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := []model.Transaction{}
	for _, t := range s.transactions {
		if t.UserID == userID {
			txs = append(txs, *t)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Subscription store implementation

func (s *Store) GetSubscription(_ context.Context, id int64) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetActiveSubscription(_ context.Context, userID int64) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub := s.activeSubscriptionLocked(userID); sub != nil {
		cp := *sub
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) activeSubscriptionLocked(userID int64) *model.Subscription {
	var best *model.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID || sub.Status != model.SubscriptionActive {
			continue
		}
		if best == nil || sub.EndDate.After(best.EndDate) {
			best = sub
		}
	}
	return best
}

func (s *Store) ListSubscriptions(_ context.Context, userID int64) ([]model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := []model.Subscription{}
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID > subs[j].ID })
	return subs, nil
}

func (s *Store) GrantSubscription(_ context.Context, g repository.SubscriptionGrant) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transactionLocked(g.TransactionID) != nil {
		return nil, repository.ErrDuplicate
	}
	if _, ok := s.users[g.UserID]; !ok {
		return nil, repository.ErrNotFound
	}
	s.insertTransactionLocked(&model.Transaction{
		UserID:        g.UserID,
		TransactionID: g.TransactionID,
		ProductID:     g.ProductID,
		Status:        model.TransactionCompleted,
		ReceiptData:   g.Receipt,
	})

	if sub := s.activeSubscriptionLocked(g.UserID); sub != nil {
		sub.EndDate = g.End(sub.EndDate)
		sub.TransactionID = g.TransactionID
		sub.ReceiptData = g.Receipt
		sub.ProductID = g.ProductID
		sub.UpdatedAt = s.now()
		cp := *sub
		return &cp, nil
	}

	sub := &model.Subscription{
		ID:            s.nextID(),
		UserID:        g.UserID,
		ProductID:     g.ProductID,
		TransactionID: g.TransactionID,
		ReceiptData:   g.Receipt,
		StartDate:     g.Now,
		EndDate:       g.End(time.Time{}),
		Status:        model.SubscriptionActive,
		CreatedAt:     s.now(),
	}
	sub.UpdatedAt = sub.CreatedAt
	s.subscriptions[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (s *Store) ExpireSubscriptions(_ context.Context, userID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.Status == model.SubscriptionActive && !sub.EndDate.After(now) {
			sub.Status = model.SubscriptionExpired
			sub.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *Store) SetSubscriptionStatus(_ context.Context, id int64, status model.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	return nil
}
