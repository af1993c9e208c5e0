package models

import "context"

type Repository interface {
	// CreatePaywall returns ErrDuplicatePaywallID when the id is taken.
	CreatePaywall(ctx context.Context, paywall *Paywall) error
	// GetPaywall returns ErrNotFound when absent.
	GetPaywall(ctx context.Context, id string) (*Paywall, error)
	// ListPaywalls returns the most recent paywalls first.
	ListPaywalls(ctx context.Context, limit int) ([]*Paywall, error)

	// FindPurchase returns nil, nil when no purchase has the key.
	FindPurchase(ctx context.Context, key PurchaseKey) (*Purchase, error)
	// InsertPurchaseIfAbsent inserts atomically against the natural key.
	// When the key already exists it returns inserted=false and the stored row.
	InsertPurchaseIfAbsent(ctx context.Context, purchase *Purchase) (inserted bool, existing *Purchase, err error)
	// ListPurchasesByBuyer returns the buyer's purchases with Paywall populated, newest first.
	ListPurchasesByBuyer(ctx context.Context, buyerAddress string) ([]*Purchase, error)

	Ping(ctx context.Context) error
	Close() error
}
