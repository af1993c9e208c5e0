package paywall

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paywallio/paywalld/internal/config"
	"github.com/paywallio/paywalld/internal/metrics"
	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
	"github.com/paywallio/paywalld/pkg/validation"
)

const (
	generatedIDLength   = 6
	generatedIDAttempts = 5
)

// maxAmount is the smallest value that no longer fits a numeric(38,18) column.
var maxAmount = decimal.New(1, 20)

// Service is the paywall application service.
// It owns every business rule: paywall creation, payment verification
// and purchase settlement. The HTTP gateway only translates requests.
type Service struct {
	logger *logger.Logger
	config *config.Config

	repo    models.Repository
	oracles models.OracleProvider
	metrics metrics.Recorder

	// now is the clock used for created_at and purchased_at.
	now func() time.Time
}

// NewService creates a new paywall Service
func NewService(
	repo models.Repository,
	oracles models.OracleProvider,
	recorder metrics.Recorder,
	logger *logger.Logger,
	config *config.Config,
) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{
		repo:    repo,
		oracles: oracles,
		metrics: recorder,
		logger:  logger,
		config:  config,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ models.PaywallI = (*Service)(nil)

// CreatePaywall validates creator input and stores a new active paywall.
func (s *Service) CreatePaywall(ctx context.Context, req *models.CreatePaywallRequest) (*models.Paywall, error) {
	network, err := models.ParseNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	if req.Currency != "" && !equalCurrency(req.Currency, network.Currency()) {
		return nil, models.NewError(models.CodeInvalidRequest, "currency %s is not accepted on %s, use %s", req.Currency, network, network.Currency())
	}
	if req.Price.IsNegative() {
		return nil, models.NewError(models.CodeInvalidRequest, "price cannot be negative")
	}
	if err := checkAmount(req.Price, network); err != nil {
		return nil, err
	}
	if err := validation.ValidateContentURL(req.URL); err != nil {
		return nil, err
	}

	payout := validation.NormalizeAddress(req.PayoutAddress, network)
	if req.Price.IsPositive() || payout != "" {
		if payout == "" {
			return nil, models.NewError(models.CodeInvalidRequest, "payout address is required for paid paywalls")
		}
		if err := validation.ValidateAddress(payout, network); err != nil {
			return nil, err
		}
	}

	paywall := &models.Paywall{
		URL:           strings.TrimSpace(req.URL),
		Description:   strings.TrimSpace(req.Description),
		Price:         req.Price,
		Currency:      network.Currency(),
		Network:       network,
		PayoutAddress: payout,
		Status:        models.PaywallStatusActive,
		CreatedAt:     s.now(),
	}

	if req.ID != "" {
		paywall.ID = validation.NormalizePaywallID(req.ID)
		if err := validation.ValidatePaywallID(paywall.ID); err != nil {
			return nil, err
		}
		if err := s.repo.CreatePaywall(ctx, paywall); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedID(ctx, paywall); err != nil {
		return nil, err
	}

	s.logger.Info("Paywall created", "id", paywall.ID, "network", network, "price", paywall.Price.String())
	return paywall, nil
}

// createWithGeneratedID retries on the rare collision of a short random id.
func (s *Service) createWithGeneratedID(ctx context.Context, paywall *models.Paywall) error {
	var err error
	for i := 0; i < generatedIDAttempts; i++ {
		paywall.ID = generatePaywallID()
		err = s.repo.CreatePaywall(ctx, paywall)
		if !errors.Is(err, models.ErrDuplicatePaywallID) {
			return err
		}
		s.logger.Debug("Generated paywall id collided, retrying", "id", paywall.ID)
	}
	return err
}

// generatePaywallID returns a random lowercase base36 id.
func generatePaywallID() string {
	u := uuid.New()
	id := new(big.Int).SetBytes(u[:8]).Text(36)
	for len(id) < generatedIDLength {
		id = "0" + id
	}
	return id[:generatedIDLength]
}

func (s *Service) GetPaywall(ctx context.Context, id string) (*models.Paywall, error) {
	id = validation.NormalizePaywallID(id)
	if err := validation.ValidatePaywallID(id); err != nil {
		return nil, err
	}
	return s.repo.GetPaywall(ctx, id)
}

// ListPaywalls returns the most recent paywalls. The limit is clamped to the configured maximum.
func (s *Service) ListPaywalls(ctx context.Context, limit int) ([]*models.Paywall, error) {
	if limit <= 0 || limit > s.config.ListLimit {
		limit = s.config.ListLimit
	}
	return s.repo.ListPaywalls(ctx, limit)
}

func (s *Service) Link(id string) string {
	return fmt.Sprintf("%s/paywall/%s", s.config.BaseDomain, id)
}

// ListPurchases returns every purchase of a buyer across networks.
func (s *Service) ListPurchases(ctx context.Context, buyerAddress string) ([]*models.Purchase, error) {
	buyer := strings.TrimSpace(buyerAddress)
	if buyer == "" {
		return nil, models.NewError(models.CodeInvalidRequest, "buyer address is required")
	}
	// The network is unknown here; EVM addresses are stored lowercased.
	if validation.IsValidAddress(buyer, models.NetworkBNB) {
		buyer = strings.ToLower(buyer)
	}
	return s.repo.ListPurchasesByBuyer(ctx, buyer)
}

func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// loadPaywall resolves the paywall of a verify or settle request and checks
// the optional client supplied network against it.
func (s *Service) loadPaywall(ctx context.Context, paywallID, network string) (*models.Paywall, error) {
	id := validation.NormalizePaywallID(paywallID)
	if err := validation.ValidatePaywallID(id); err != nil {
		return nil, err
	}

	var requested models.Network
	if strings.TrimSpace(network) != "" {
		n, err := models.ParseNetwork(network)
		if err != nil {
			return nil, err
		}
		requested = n
	}

	paywall, err := s.repo.GetPaywall(ctx, id)
	if err != nil {
		return nil, err
	}
	if requested != "" && requested != paywall.Network {
		return nil, models.NewError(models.CodeInvalidRequest, "paywall %s accepts payments on %s, not %s", paywall.ID, paywall.Network, requested)
	}
	return paywall, nil
}

// lookup asks the network's oracle about txRef. Transport failures come back
// as VerificationUnavailable so the client retries instead of giving up.
func (s *Service) lookup(ctx context.Context, paywall *models.Paywall, txRef string) (*models.Lookup, error) {
	oracle, err := s.oracles.For(paywall.Network)
	if err != nil {
		return nil, models.WrapError(models.CodeVerificationUnavailable, err, "payments on %s cannot be verified right now", paywall.Network).WithNetwork(paywall.Network)
	}

	start := time.Now()
	lookup, err := oracle.LookupTransaction(ctx, txRef, paywall.PayoutAddress)
	state := "error"
	if lookup != nil {
		state = string(lookup.State)
	}
	s.metrics.OracleLookup(paywall.Network.String(), state, time.Since(start))

	if err != nil {
		if errors.Is(err, models.ErrInvalidReference) {
			return nil, err
		}
		s.logger.Warn("Chain lookup failed", "network", paywall.Network, "tx", txRef, "error", err)
		return nil, models.WrapError(models.CodeVerificationUnavailable, err, "payment could not be verified, try again later").WithNetwork(paywall.Network)
	}
	return lookup, nil
}

// evaluate compares a lookup against the paywall terms.
func (s *Service) evaluate(paywall *models.Paywall, lookup *models.Lookup) *models.Verification {
	v := &models.Verification{
		State:        lookup.State,
		Counterparty: lookup.Counterparty,
		Amount:       lookup.ObservedAmount,
		Timestamp:    lookup.Timestamp,
		Shielded:     lookup.Shielded,
	}

	accepted := lookup.State == models.TxStateConfirmed ||
		(lookup.State == models.TxStatePending && s.config.TrustPending(paywall.Network))

	// Shielded transfers hide recipient and amount, presence in a block is all there is.
	if lookup.Shielded {
		v.Confirmed = accepted
		return v
	}

	v.RecipientMatches = lookup.Counterparty != "" && validation.SameAddress(lookup.Counterparty, paywall.PayoutAddress, paywall.Network)
	v.AmountSufficient = lookup.ObservedAmount != nil && lookup.ObservedAmount.GreaterThanOrEqual(paywall.Price)
	v.Confirmed = accepted && v.RecipientMatches && v.AmountSufficient
	return v
}

// VerifyPayment looks a transaction up without recording anything.
func (s *Service) VerifyPayment(ctx context.Context, req *models.VerifyRequest) (*models.Verification, error) {
	paywall, err := s.loadPaywall(ctx, req.PaywallID, req.Network)
	if err != nil {
		return nil, err
	}
	if req.BuyerAddress != "" {
		if err := validation.ValidateAddress(validation.NormalizeAddress(req.BuyerAddress, paywall.Network), paywall.Network); err != nil {
			return nil, err
		}
	}
	if paywall.IsFree() {
		return &models.Verification{Confirmed: true, State: models.TxStateFree, RecipientMatches: true, AmountSufficient: true}, nil
	}

	txRef := validation.NormalizeTxRef(req.TxRef, paywall.Network)
	if err := validation.ValidateTxRef(txRef, paywall.Network); err != nil {
		return nil, err
	}

	lookup, err := s.lookup(ctx, paywall, txRef)
	if err != nil {
		return nil, err
	}
	if lookup.State == models.TxStateNotFound {
		return nil, models.NewError(models.CodePaymentNotFound, "transaction %s was not found", txRef).WithNetwork(paywall.Network)
	}
	return s.evaluate(paywall, lookup), nil
}

// checkAmount rejects amounts finer than the base unit of network or too
// large to be stored.
func checkAmount(amount decimal.Decimal, network models.Network) error {
	if !amount.Equal(amount.Truncate(network.Decimals())) {
		return models.NewError(models.CodeInvalidRequest, "amount %s is finer than the smallest %s unit", amount.String(), network.Currency())
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return models.NewError(models.CodeInvalidRequest, "amount %s is too large", amount.String())
	}
	return nil
}
