package http_api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/paywallio/paywalld/internal/models"
)

// CreatePaywallRequest represents the JSON body for paywall creation
type CreatePaywallRequest struct {
	ID            string           `json:"id" binding:"omitempty,max=64"`
	URL           string           `json:"url" binding:"required"`
	Description   string           `json:"description" binding:"max=1024"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	Currency      string           `json:"currency"`
	Network       string           `json:"network" binding:"required"`
	PayoutAddress string           `json:"payoutAddress"`
	// WalletAddress is the payout field name used by older clients.
	WalletAddress string `json:"walletAddress"`
}

// PaywallResponse is returned on creation
type PaywallResponse struct {
	ID            string               `json:"id"`
	Link          string               `json:"link"`
	Price         decimal.Decimal      `json:"price"`
	Currency      string               `json:"currency"`
	Network       models.Network       `json:"network"`
	PayoutAddress string               `json:"payoutAddress,omitempty"`
	Status        models.PaywallStatus `json:"status"`
}

// VerifyPaymentRequest represents the JSON body for a payment check
type VerifyPaymentRequest struct {
	PaywallID    string `json:"paywallId" binding:"required"`
	BuyerAddress string `json:"buyerAddress"`
	TxRef        string `json:"txRef"`
	TxHash       string `json:"txHash"`
	Network      string `json:"network"`
}

// PurchaseRequest represents the JSON body for a settlement claim.
// Field names sent by older clients are accepted as fallbacks.
type PurchaseRequest struct {
	PaywallID          string           `json:"paywallId" binding:"required"`
	BuyerAddress       string           `json:"buyerAddress"`
	BuyerWalletAddress string           `json:"buyerWalletAddress"`
	TxRef              string           `json:"txRef"`
	TransactionHash    string           `json:"transactionHash"`
	ClaimedAmount      *decimal.Decimal `json:"claimedAmount"`
	AmountPaid         *decimal.Decimal `json:"amountPaid"`
	ClaimedCurrency    string           `json:"claimedCurrency"`
	Currency           string           `json:"currency"`
	Network            string           `json:"network"`
}

// ListResponse wraps list endpoints
type ListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string           `json:"error"`
	Code      models.ErrorCode `json:"code"`
	Retryable bool             `json:"retryable"`
}

// statusOf maps an error code to its HTTP status.
func statusOf(code models.ErrorCode) int {
	switch code {
	case models.CodeInvalidRequest, models.CodeInvalidAddress, models.CodeInvalidReference:
		return http.StatusBadRequest
	case models.CodeDuplicatePaywallID, models.CodePaymentPending:
		return http.StatusConflict
	case models.CodeNotFound, models.CodePaymentNotFound:
		return http.StatusNotFound
	case models.CodePaymentMismatch:
		return http.StatusPaymentRequired
	case models.CodeOracleUnavailable, models.CodeVerificationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Untyped errors are logged and hidden.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	var e *models.Error
	if !errors.As(err, &e) || e.Code == models.CodeInternal {
		s.logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: models.CodeInternal})
		return
	}

	status := statusOf(e.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", "method", c.Request.Method, "path", c.FullPath(), "code", e.Code, "error", err)
	} else {
		s.logger.Debug("Request rejected", "method", c.Request.Method, "path", c.FullPath(), "code", e.Code, "error", err)
	}

	msg := e.Message
	if e.Network != "" {
		msg += " (" + e.Network.String() + ")"
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: e.Code, Retryable: e.Retryable()})
}

func (s *HTTPServer) badRequest(c *gin.Context, err error) {
	s.writeError(c, models.WrapError(models.CodeInvalidRequest, err, "invalid request body: %s", err.Error()))
}

// createPaywall is a handler for POST /paywalls.
func (s *HTTPServer) createPaywall(c *gin.Context) {
	var req CreatePaywallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	payout := req.PayoutAddress
	if payout == "" {
		payout = req.WalletAddress
	}

	paywall, err := s.paywalls.CreatePaywall(c.Request.Context(), &models.CreatePaywallRequest{
		ID:            req.ID,
		URL:           req.URL,
		Description:   req.Description,
		Price:         *req.Price,
		Network:       req.Network,
		Currency:      req.Currency,
		PayoutAddress: payout,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, PaywallResponse{
		ID:            paywall.ID,
		Link:          s.paywalls.Link(paywall.ID),
		Price:         paywall.Price,
		Currency:      paywall.Currency,
		Network:       paywall.Network,
		PayoutAddress: paywall.PayoutAddress,
		Status:        paywall.Status,
	})
}

// getPaywall is a handler for GET /paywalls/:id.
func (s *HTTPServer) getPaywall(c *gin.Context) {
	paywall, err := s.paywalls.GetPaywall(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paywall)
}

// listPaywalls is a handler for GET /paywalls, most recent first.
func (s *HTTPServer) listPaywalls(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(c, models.NewError(models.CodeInvalidRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	paywalls, err := s.paywalls.ListPaywalls(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if paywalls == nil {
		paywalls = []*models.Paywall{}
	}
	c.JSON(http.StatusOK, ListResponse{Items: paywalls, Count: len(paywalls)})
}

// verifyPayment is a handler for POST /payments/verify.
// It reports what the chain shows without recording anything.
func (s *HTTPServer) verifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	txRef := req.TxRef
	if txRef == "" {
		txRef = req.TxHash
	}

	verification, err := s.paywalls.VerifyPayment(c.Request.Context(), &models.VerifyRequest{
		PaywallID:    req.PaywallID,
		BuyerAddress: req.BuyerAddress,
		TxRef:        txRef,
		Network:      req.Network,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

// recordPurchase is a handler for POST /purchases.
// The content URL is only part of the response once access is granted.
func (s *HTTPServer) recordPurchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	settle := &models.SettleRequest{
		PaywallID:       req.PaywallID,
		BuyerAddress:    firstNonEmpty(req.BuyerAddress, req.BuyerWalletAddress),
		TxRef:           firstNonEmpty(req.TxRef, req.TransactionHash),
		ClaimedAmount:   req.ClaimedAmount,
		ClaimedCurrency: firstNonEmpty(req.ClaimedCurrency, req.Currency),
		Network:         req.Network,
	}
	if settle.ClaimedAmount == nil {
		settle.ClaimedAmount = req.AmountPaid
	}

	settlement, err := s.paywalls.Settle(c.Request.Context(), settle)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !settlement.Granted {
		settlement.URL = ""
	}
	c.JSON(http.StatusOK, settlement)
}

// listPurchases is a handler for GET /purchases?buyerAddress=.
func (s *HTTPServer) listPurchases(c *gin.Context) {
	buyer := firstNonEmpty(c.Query("buyerAddress"), c.Query("walletAddress"))
	if buyer == "" {
		s.writeError(c, models.NewError(models.CodeInvalidRequest, "buyerAddress is required"))
		return
	}

	purchases, err := s.paywalls.ListPurchases(c.Request.Context(), buyer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if purchases == nil {
		purchases = []*models.Purchase{}
	}
	c.JSON(http.StatusOK, ListResponse{Items: purchases, Count: len(purchases)})
}

// health reports whether the store is reachable.
func (s *HTTPServer) health(c *gin.Context) {
	if err := s.paywalls.Health(c.Request.Context()); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
