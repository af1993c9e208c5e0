package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
	"github.com/paywallio/paywalld/pkg/validation"
)

// blockchairTime is the layout of Blockchair timestamps (UTC).
const blockchairTime = "2006-01-02 15:04:05"

// TransactionDashboard is the Blockchair /dashboards/transaction/{hash} payload for one hash.
type TransactionDashboard struct {
	Transaction struct {
		BlockID             int64  `json:"block_id"`
		Hash                string `json:"hash"`
		Time                string `json:"time"`
		InputCountShielded  int    `json:"input_count_shielded"`
		OutputCountShielded int    `json:"output_count_shielded"`
		OutputTotal         int64  `json:"output_total"`
	} `json:"transaction"`
	Inputs []struct {
		Recipient string `json:"recipient"`
		Value     int64  `json:"value"`
	} `json:"inputs"`
	Outputs []struct {
		Recipient string `json:"recipient"`
		Value     int64  `json:"value"`
	} `json:"outputs"`
}

type dashboardResponse struct {
	// Data is an object keyed by hash, or an empty array when nothing matched.
	Data json.RawMessage `json:"data"`
}

// ZcashOracle verifies Zcash transactions through the Blockchair explorer API.
// Shielded transactions hide amount and recipient, so only their presence in a
// block can be established.
type ZcashOracle struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

var _ models.ChainOracle = (*ZcashOracle)(nil)

func NewZcashOracle(baseURL string, timeout time.Duration, logger *logger.Logger) *ZcashOracle {
	return &ZcashOracle{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *ZcashOracle) Network() models.Network {
	return models.NetworkZcash
}

func (o *ZcashOracle) LookupTransaction(ctx context.Context, txRef, expectedRecipient string) (*models.Lookup, error) {
	if err := validation.ValidateTxRef(txRef, models.NetworkZcash); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.client.Timeout)
	defer cancel()

	dashboard, err := o.fetchTransaction(ctx, txRef)
	if err != nil {
		return nil, unavailable(models.NetworkZcash, err)
	}
	if dashboard == nil {
		return notFound(), nil
	}
	return lookupFromDashboard(dashboard, expectedRecipient), nil
}

// fetchTransaction returns nil, nil when the explorer does not know the hash.
func (o *ZcashOracle) fetchTransaction(ctx context.Context, hash string) (*TransactionDashboard, error) {
	url := fmt.Sprintf("%s/dashboards/transaction/%s", o.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var envelope dashboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, nil
	}
	var byHash map[string]*TransactionDashboard
	if err := json.Unmarshal(data, &byHash); err != nil {
		return nil, fmt.Errorf("failed to decode transaction data: %w", err)
	}
	for key, dashboard := range byHash {
		if strings.EqualFold(key, hash) {
			return dashboard, nil
		}
	}
	return nil, nil
}

func lookupFromDashboard(d *TransactionDashboard, expectedRecipient string) *models.Lookup {
	lookup := &models.Lookup{State: models.TxStateConfirmed}
	if d.Transaction.BlockID == -1 {
		lookup.State = models.TxStatePending
	}
	if ts, err := time.Parse(blockchairTime, d.Transaction.Time); err == nil {
		lookup.Timestamp = &ts
	}
	if len(d.Inputs) > 0 {
		lookup.Sender = d.Inputs[0].Recipient
	}

	if d.Transaction.InputCountShielded > 0 || d.Transaction.OutputCountShielded > 0 {
		lookup.Shielded = true
		return lookup
	}

	// Sum every transparent output paying the expected recipient.
	var paid int64
	for _, out := range d.Outputs {
		if out.Recipient == expectedRecipient {
			paid += out.Value
		}
	}
	if paid > 0 {
		lookup.Counterparty = expectedRecipient
	} else if len(d.Outputs) > 0 {
		lookup.Counterparty = d.Outputs[0].Recipient
		paid = d.Outputs[0].Value
	}
	amount := toDecimal(big.NewInt(paid), models.NetworkZcash.Decimals())
	lookup.ObservedAmount = &amount
	return lookup
}
