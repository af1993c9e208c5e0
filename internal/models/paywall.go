package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaywallStatus is informational. Access is decided by the existence of a Purchase.
type PaywallStatus string

const (
	PaywallStatusCreated PaywallStatus = "created"
	PaywallStatusActive  PaywallStatus = "active"
)

// Paywall gates a URL behind a price on one network.
type Paywall struct {
	// ID is the public identifier, chosen by the creator or generated.
	ID string `json:"id" gorm:"column:id;primaryKey;size:64"`
	// URL is the destination revealed after settlement.
	URL string `json:"url" gorm:"column:url;not null"`
	// Description is an optional creator supplied note.
	Description string `json:"description,omitempty" gorm:"column:description"`
	// Price is denominated in whole tokens of Currency. Zero means free.
	Price decimal.Decimal `json:"price" gorm:"column:price;type:numeric(38,18);not null"`
	// Currency is derived from Network.
	Currency string `json:"currency" gorm:"column:currency;size:16;not null"`
	// Network is the chain payments are accepted on.
	Network Network `json:"network" gorm:"column:network;size:32;not null"`
	// PayoutAddress receives the payment. Empty only for free paywalls.
	PayoutAddress string        `json:"payoutAddress,omitempty" gorm:"column:payout_address;type:text"`
	Status        PaywallStatus `json:"status" gorm:"column:status;size:16;not null"`
	CreatedAt     time.Time     `json:"createdAt" gorm:"column:created_at;index;not null"`
}

func (Paywall) TableName() string {
	return "paywalls"
}

// IsFree reports whether the paywall grants access without a payment.
func (p *Paywall) IsFree() bool {
	return !p.Price.IsPositive()
}

// Purchase records that a buyer satisfied a paywall with a given transaction.
// (PaywallID, BuyerWalletAddress, TransactionHash) is unique.
type Purchase struct {
	// ID is a surrogate identifier returned to clients as purchaseId.
	ID string `json:"purchaseId" gorm:"column:id;primaryKey;size:36"`
	// PaywallID references paywalls.id.
	PaywallID string `json:"paywallId" gorm:"column:paywall_id;size:64;not null;uniqueIndex:idx_purchases_natural_key,priority:1"`
	// BuyerWalletAddress is normalized per network before storage.
	BuyerWalletAddress string `json:"buyerWalletAddress" gorm:"column:buyer_wallet_address;type:text;not null;uniqueIndex:idx_purchases_natural_key,priority:2;index:idx_purchases_buyer"`
	// TransactionHash is the on-chain reference, or a synthetic one for free paywalls.
	TransactionHash string `json:"transactionHash" gorm:"column:transaction_hash;type:text;not null;uniqueIndex:idx_purchases_natural_key,priority:3"`
	// AmountPaid is the observed on-chain amount, not the client claim.
	AmountPaid decimal.Decimal `json:"amountPaid" gorm:"column:amount_paid;type:numeric(38,18);not null"`
	Currency   string          `json:"currency" gorm:"column:currency;size:16;not null"`
	Network    Network         `json:"network" gorm:"column:network;size:32;not null"`
	// ObservedState is the transaction state seen when access was granted.
	ObservedState TxState `json:"observedState" gorm:"column:observed_state;size:16;not null"`
	// AmountVerified is false when the amount could not be read from the chain.
	AmountVerified bool      `json:"amountVerified" gorm:"column:amount_verified;not null"`
	PurchasedAt    time.Time `json:"purchasedAt" gorm:"column:purchased_at;index;not null"`
	// Paywall is only populated by listing queries.
	Paywall *Paywall `json:"paywall,omitempty" gorm:"foreignKey:PaywallID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// PurchaseKey is the natural key of a Purchase.
type PurchaseKey struct {
	PaywallID    string
	BuyerAddress string
	TxRef        string
}

func (p *Purchase) Key() PurchaseKey {
	return PurchaseKey{PaywallID: p.PaywallID, BuyerAddress: p.BuyerWalletAddress, TxRef: p.TransactionHash}
}
