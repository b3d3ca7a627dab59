package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every repository the services need.
type Repositories struct {
	Users         UserRepository
	Quota         QuotaRepository
	PDFs          PDFRepository
	Strokes       StrokeRepository
	Images        ImageRepository
	Payments      PaymentRepository
	Subscriptions SubscriptionRepository
}

// NewPostgres wires the pgx implementations onto one pool.
func NewPostgres(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:         NewUserRepo(pool),
		Quota:         NewQuotaRepo(pool),
		PDFs:          NewPDFRepo(pool),
		Strokes:       NewStrokeRepo(pool),
		Images:        NewImageRepo(pool),
		Payments:      NewPaymentRepo(pool),
		Subscriptions: NewSubscriptionRepo(pool),
	}
}
