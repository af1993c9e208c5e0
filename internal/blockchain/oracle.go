package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/paywallio/paywalld/internal/models"
)

// unavailable converts a transport failure into a retryable oracle error.
// A deadline or a dropped connection never means the transaction is absent.
func unavailable(network models.Network, err error) error {
	msg := "chain RPC request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "chain RPC request timed out"
	}
	return models.WrapError(models.CodeOracleUnavailable, err, msg).WithNetwork(network)
}

// toDecimal converts an amount of base units into whole tokens.
func toDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

func notFound() *models.Lookup {
	return &models.Lookup{State: models.TxStateNotFound}
}
