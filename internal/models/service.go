package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CreatePaywallRequest carries creator input for a new paywall.
type CreatePaywallRequest struct {
	// ID is optional. A random id is generated when empty.
	ID          string
	URL         string
	Description string
	Price       decimal.Decimal
	Network     string
	// Currency is optional and must match the network currency when given.
	Currency      string
	PayoutAddress string
}

// VerifyRequest asks for an oracle lookup of a transaction against a paywall.
type VerifyRequest struct {
	PaywallID    string
	BuyerAddress string
	TxRef        string
	// Network is optional and must match the paywall network when given.
	Network string
}

// Verification is the result of a VerifyRequest. Nothing is persisted.
type Verification struct {
	// Confirmed is true when the state is sufficient to grant under the network policy.
	Confirmed bool    `json:"confirmed"`
	State     TxState `json:"state"`
	// RecipientMatches and AmountSufficient are only meaningful when the chain exposes them.
	RecipientMatches bool             `json:"recipientMatches"`
	AmountSufficient bool             `json:"amountSufficient"`
	Counterparty     string           `json:"counterparty,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Timestamp        *time.Time       `json:"timestamp,omitempty"`
	Shielded         bool             `json:"shielded,omitempty"`
}

// SettleRequest is a buyer's claim that a transaction paid for a paywall.
type SettleRequest struct {
	PaywallID    string
	BuyerAddress string
	TxRef        string
	// ClaimedAmount is informational. The observed amount is what gets checked.
	ClaimedAmount   *decimal.Decimal
	ClaimedCurrency string
	Network         string
}

// Settlement is the outcome of a successful settle call.
type Settlement struct {
	Granted        bool    `json:"granted"`
	PurchaseID     string  `json:"purchaseId"`
	AlreadySettled bool    `json:"alreadySettled"`
	URL            string  `json:"url,omitempty"`
	State          TxState `json:"state"`
	AmountVerified bool    `json:"amountVerified"`
}

// PaywallI is the application service behind the HTTP gateway.
type PaywallI interface {
	CreatePaywall(ctx context.Context, req *CreatePaywallRequest) (*Paywall, error)
	GetPaywall(ctx context.Context, id string) (*Paywall, error)
	ListPaywalls(ctx context.Context, limit int) ([]*Paywall, error)
	// Link is the public URL of the paywall page.
	Link(id string) string

	// VerifyPayment is an oracle passthrough with no side effects.
	VerifyPayment(ctx context.Context, req *VerifyRequest) (*Verification, error)
	// Settle grants access and records the purchase exactly once per natural key.
	Settle(ctx context.Context, req *SettleRequest) (*Settlement, error)
	ListPurchases(ctx context.Context, buyerAddress string) ([]*Purchase, error)

	// Health checks the backing store.
	Health(ctx context.Context) error
}

// APIServer is a startable, stoppable network front end.
type APIServer interface {
	Start()
	Shutdown() error
}
