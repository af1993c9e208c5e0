package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TxState is the normalized state of an on-chain transaction.
type TxState string

const (
	TxStateNotFound  TxState = "not_found"
	TxStatePending   TxState = "pending"
	TxStateConfirmed TxState = "confirmed"
	// TxStateFailed is a mined transaction that did not execute (reverted or errored).
	TxStateFailed TxState = "failed"
	// TxStateFree marks purchases of free paywalls where no transaction was observed.
	TxStateFree TxState = "free"
)

// Lookup is what a ChainOracle learned about a transaction reference.
type Lookup struct {
	State TxState `json:"state"`
	// Counterparty is the recipient of the transfer, empty when unknown.
	Counterparty string `json:"counterparty,omitempty"`
	// Sender is the paying account when the chain exposes it.
	Sender string `json:"sender,omitempty"`
	// ObservedAmount is denominated in whole tokens. Nil when hidden or unknown.
	ObservedAmount *decimal.Decimal `json:"amount,omitempty"`
	Timestamp      *time.Time       `json:"timestamp,omitempty"`
	// Shielded is set for Zcash transactions whose amount and recipient are hidden.
	Shielded bool `json:"shielded,omitempty"`
}

// ChainOracle answers "does this transaction exist and what does it show"
// for a single network.
type ChainOracle interface {
	Network() Network
	// LookupTransaction returns ErrInvalidReference for malformed references
	// and ErrOracleUnavailable for transport failures. A missing transaction
	// is a Lookup with TxStateNotFound, not an error.
	LookupTransaction(ctx context.Context, txRef, expectedRecipient string) (*Lookup, error)
}

// OracleProvider selects the oracle for a network.
type OracleProvider interface {
	For(network Network) (ChainOracle, error)
}
