package paywall

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/validation"
)

const (
	outcomeGranted        = "granted"
	outcomeAlreadySettled = "already_settled"
	outcomeFree           = "free"
)

// Settle grants access to a paywall when txRef is an acceptable payment and
// records the Purchase exactly once per (paywall, buyer, txRef).
//
// A repeated or concurrent identical request is answered from the stored row.
// Only the insert decides who settled first; FindPurchase is a shortcut that
// saves an oracle round trip.
func (s *Service) Settle(ctx context.Context, req *models.SettleRequest) (settlement *models.Settlement, err error) {
	network := "unknown"
	defer func() {
		s.metrics.Settlement(network, settleOutcome(settlement, err))
	}()

	paywall, err := s.loadPaywall(ctx, req.PaywallID, req.Network)
	if err != nil {
		return nil, err
	}
	network = paywall.Network.String()

	if req.ClaimedCurrency != "" && !equalCurrency(req.ClaimedCurrency, paywall.Currency) {
		return nil, models.NewError(models.CodeInvalidRequest, "paywall %s is priced in %s, not %s", paywall.ID, paywall.Currency, req.ClaimedCurrency)
	}

	if paywall.IsFree() {
		return s.settleFree(ctx, paywall, req)
	}

	buyer := validation.NormalizeAddress(req.BuyerAddress, paywall.Network)
	if err := validation.ValidateAddress(buyer, paywall.Network); err != nil {
		return nil, err
	}
	txRef := validation.NormalizeTxRef(req.TxRef, paywall.Network)
	if err := validation.ValidateTxRef(txRef, paywall.Network); err != nil {
		return nil, err
	}

	key := models.PurchaseKey{PaywallID: paywall.ID, BuyerAddress: buyer, TxRef: txRef}
	existing, err := s.repo.FindPurchase(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug("Purchase already settled", "paywall", paywall.ID, "buyer", buyer, "tx", txRef)
		return alreadySettled(paywall, existing), nil
	}

	lookup, err := s.lookup(ctx, paywall, txRef)
	if err != nil {
		return nil, err
	}

	purchase, err := s.acceptPayment(paywall, lookup, req.ClaimedAmount, txRef)
	if err != nil {
		s.logger.Info("Payment rejected", "paywall", paywall.ID, "buyer", buyer, "tx", txRef, "state", lookup.State, "error", err)
		return nil, err
	}
	purchase.ID = uuid.NewString()
	purchase.PaywallID = paywall.ID
	purchase.BuyerWalletAddress = buyer
	purchase.TransactionHash = txRef
	purchase.Currency = paywall.Currency
	purchase.Network = paywall.Network
	purchase.PurchasedAt = s.now()
	if lookup.Sender != "" && !validation.SameAddress(lookup.Sender, buyer, paywall.Network) {
		s.logger.Debug("Payment sent from another account than the buyer", "paywall", paywall.ID, "buyer", buyer, "sender", lookup.Sender)
	}

	return s.record(ctx, paywall, purchase)
}

// acceptPayment applies the paywall terms to a lookup and returns the purchase
// to record, with only the amount and audit fields set.
func (s *Service) acceptPayment(paywall *models.Paywall, lookup *models.Lookup, claimed *decimal.Decimal, txRef string) (*models.Purchase, error) {
	switch lookup.State {
	case models.TxStateNotFound:
		return nil, models.NewError(models.CodePaymentNotFound, "transaction %s was not found", txRef).WithNetwork(paywall.Network)
	case models.TxStateFailed:
		return nil, models.NewError(models.CodePaymentMismatch, "transaction %s failed on chain", txRef).WithNetwork(paywall.Network)
	case models.TxStatePending:
		if !s.config.TrustPending(paywall.Network) {
			return nil, models.NewError(models.CodePaymentPending, "transaction %s is not confirmed yet", txRef).WithNetwork(paywall.Network)
		}
	case models.TxStateConfirmed:
	default:
		return nil, models.NewError(models.CodeInternal, "unexpected transaction state %q", lookup.State)
	}

	if lookup.Shielded {
		// Recorded for audit only, the chain cannot confirm it.
		amount := paywall.Price
		if claimed != nil && claimed.IsPositive() && checkAmount(*claimed, paywall.Network) == nil {
			amount = *claimed
		}
		return &models.Purchase{AmountPaid: amount, ObservedState: lookup.State, AmountVerified: false}, nil
	}

	if lookup.Counterparty == "" {
		return nil, models.NewError(models.CodePaymentMismatch, "transaction %s does not transfer %s", txRef, paywall.Currency).WithNetwork(paywall.Network)
	}
	if !validation.SameAddress(lookup.Counterparty, paywall.PayoutAddress, paywall.Network) {
		return nil, models.NewError(models.CodePaymentMismatch, "transaction %s pays %s, not the paywall payout address", txRef, lookup.Counterparty).WithNetwork(paywall.Network)
	}
	if lookup.ObservedAmount == nil || lookup.ObservedAmount.LessThan(paywall.Price) {
		paid := decimal.Zero
		if lookup.ObservedAmount != nil {
			paid = *lookup.ObservedAmount
		}
		return nil, models.NewError(models.CodePaymentMismatch, "paid %s %s, price is %s %s", paid.String(), paywall.Currency, paywall.Price.String(), paywall.Currency).WithNetwork(paywall.Network)
	}

	return &models.Purchase{AmountPaid: *lookup.ObservedAmount, ObservedState: lookup.State, AmountVerified: true}, nil
}

// settleFree grants a zero price paywall without asking the chain.
// Buyer and transaction are optional; an absent reference is replaced by a
// synthetic one so the natural key stays unique per buyer.
func (s *Service) settleFree(ctx context.Context, paywall *models.Paywall, req *models.SettleRequest) (*models.Settlement, error) {
	buyer := validation.NormalizeAddress(req.BuyerAddress, paywall.Network)
	if buyer != "" {
		if err := validation.ValidateAddress(buyer, paywall.Network); err != nil {
			return nil, err
		}
	}

	txRef := validation.NormalizeTxRef(req.TxRef, paywall.Network)
	if txRef == "" {
		holder := buyer
		if holder == "" {
			holder = "anonymous"
		}
		txRef = "free:" + holder
	}

	purchase := &models.Purchase{
		ID:                 uuid.NewString(),
		PaywallID:          paywall.ID,
		BuyerWalletAddress: buyer,
		TransactionHash:    txRef,
		AmountPaid:         decimal.Zero,
		Currency:           paywall.Currency,
		Network:            paywall.Network,
		ObservedState:      models.TxStateFree,
		AmountVerified:     false,
		PurchasedAt:        s.now(),
	}
	return s.record(ctx, paywall, purchase)
}

// record inserts the purchase. Losing the insert race to an identical
// request is still a grant.
func (s *Service) record(ctx context.Context, paywall *models.Paywall, purchase *models.Purchase) (*models.Settlement, error) {
	inserted, existing, err := s.repo.InsertPurchaseIfAbsent(ctx, purchase)
	if err != nil {
		s.logger.Error("Failed to record purchase", "paywall", paywall.ID, "tx", purchase.TransactionHash, "error", err)
		return nil, err
	}
	if !inserted {
		return alreadySettled(paywall, existing), nil
	}

	s.logger.Info("Purchase settled",
		"paywall", paywall.ID,
		"purchase", purchase.ID,
		"buyer", purchase.BuyerWalletAddress,
		"tx", purchase.TransactionHash,
		"amount", purchase.AmountPaid.String(),
		"state", purchase.ObservedState,
		"amount_verified", purchase.AmountVerified,
	)
	return &models.Settlement{
		Granted:        true,
		PurchaseID:     purchase.ID,
		URL:            paywall.URL,
		State:          purchase.ObservedState,
		AmountVerified: purchase.AmountVerified,
	}, nil
}

func alreadySettled(paywall *models.Paywall, existing *models.Purchase) *models.Settlement {
	return &models.Settlement{
		Granted:        true,
		PurchaseID:     existing.ID,
		AlreadySettled: true,
		URL:            paywall.URL,
		State:          existing.ObservedState,
		AmountVerified: existing.AmountVerified,
	}
}

func settleOutcome(settlement *models.Settlement, err error) string {
	switch {
	case err != nil:
		return string(models.CodeOf(err))
	case settlement.AlreadySettled:
		return outcomeAlreadySettled
	case settlement.State == models.TxStateFree:
		return outcomeFree
	default:
		return outcomeGranted
	}
}

func equalCurrency(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
