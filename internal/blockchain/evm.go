package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
	"github.com/paywallio/paywalld/pkg/validation"
)

// evmBackend is the subset of ethclient.Client the oracle needs.
type evmBackend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// EVMOracle looks up native token transfers on an EVM compatible chain.
type EVMOracle struct {
	logger  *logger.Logger
	network models.Network
	apiURL  string
	timeout time.Duration

	mu     sync.Mutex
	client evmBackend
	closer func()
}

var _ models.ChainOracle = (*EVMOracle)(nil)

// NewEVMOracle creates an oracle that dials apiURL on first use.
func NewEVMOracle(network models.Network, apiURL string, timeout time.Duration, logger *logger.Logger) *EVMOracle {
	return &EVMOracle{network: network, apiURL: apiURL, timeout: timeout, logger: logger}
}

func newEVMOracleWithBackend(network models.Network, backend evmBackend, timeout time.Duration, logger *logger.Logger) *EVMOracle {
	return &EVMOracle{network: network, timeout: timeout, logger: logger, client: backend}
}

func (o *EVMOracle) Network() models.Network {
	return o.network
}

func (o *EVMOracle) connect(ctx context.Context) (evmBackend, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client != nil {
		return o.client, nil
	}
	client, err := ethclient.DialContext(ctx, o.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the %s RPC server: %w", o.network, err)
	}
	o.client = client
	o.closer = client.Close
	return client, nil
}

// LookupTransaction resolves a transaction hash. A transaction known to the
// node without a receipt is pending and still carries its recipient and value.
func (o *EVMOracle) LookupTransaction(ctx context.Context, txRef, expectedRecipient string) (*models.Lookup, error) {
	if err := validation.ValidateTxRef(txRef, o.network); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client, err := o.connect(ctx)
	if err != nil {
		return nil, unavailable(o.network, err)
	}

	hash := common.HexToHash(txRef)
	tx, isPending, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return notFound(), nil
		}
		return nil, unavailable(o.network, err)
	}

	amount := toDecimal(tx.Value(), o.network.Decimals())
	lookup := &models.Lookup{ObservedAmount: &amount, Sender: txSender(tx)}
	if to := tx.To(); to != nil {
		lookup.Counterparty = to.Hex()
	}

	if isPending {
		lookup.State = models.TxStatePending
		return lookup, nil
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		// Mined but the node has not indexed the receipt yet.
		if errors.Is(err, ethereum.NotFound) {
			lookup.State = models.TxStatePending
			return lookup, nil
		}
		return nil, unavailable(o.network, err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		lookup.State = models.TxStateFailed
		return lookup, nil
	}
	lookup.State = models.TxStateConfirmed

	if receipt.BlockNumber != nil {
		header, err := client.HeaderByNumber(ctx, receipt.BlockNumber)
		if err != nil {
			o.logger.Warn("Failed to get block header for timestamp", "network", o.network, "block", receipt.BlockNumber, "error", err)
		} else {
			ts := time.Unix(int64(header.Time), 0).UTC()
			lookup.Timestamp = &ts
		}
	}

	return lookup, nil
}

// txSender recovers the signing account, empty when the signature does not verify.
func txSender(tx *types.Transaction) string {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return ""
	}
	return from.Hex()
}

func (o *EVMOracle) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closer != nil {
		o.closer()
	}
	o.client = nil
	o.closer = nil
}
