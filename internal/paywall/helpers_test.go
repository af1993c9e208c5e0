package paywall

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paywallio/paywalld/internal/blockchain"
	"github.com/paywallio/paywalld/internal/config"
	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/internal/repository"
	"github.com/paywallio/paywalld/pkg/logger"
)

var (
	payoutEVM = "0x" + strings.Repeat("A", 40)
	buyerEVM  = "0x52908400098527886E0F7030069857D2E4169EE7"
	txEVM     = "0x" + strings.Repeat("de", 32)

	payoutZcash = "t1Rv4exT7bqhZqi2j7xz8bUHDMxwosrjADU"
	buyerZcash  = "t1XVXWCvpMgBvUaed4XDqWtgQgJSu1Ghz7F"
	txZcash     = strings.Repeat("ab", 32)
)

// fakeOracle returns a fixed lookup and counts calls.
type fakeOracle struct {
	network models.Network

	mu     sync.Mutex
	lookup *models.Lookup
	err    error
	calls  int
	delay  time.Duration
}

func (f *fakeOracle) Network() models.Network {
	return f.network
}

func (f *fakeOracle) LookupTransaction(ctx context.Context, _ string, _ string) (*models.Lookup, error) {
	f.mu.Lock()
	f.calls++
	lookup, err, delay := f.lookup, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	cp := *lookup
	return &cp, nil
}

func (f *fakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder captures settlement outcomes.
type recorder struct {
	mu       sync.Mutex
	outcomes []string
	lookups  int
}

func (r *recorder) Settlement(network, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, network+"/"+outcome)
}

func (r *recorder) OracleLookup(string, string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
}

func (r *recorder) HTTPRequest(string, string, int, time.Duration) {}

type fixture struct {
	svc     *Service
	repo    *repository.MemoryDB
	oracles map[models.Network]*fakeOracle
	metrics *recorder
}

func testConfig() *config.Config {
	return &config.Config{
		BaseDomain: "https://paywall.example",
		ListLimit:  100,
		Networks: map[models.Network]config.NetworkConfig{
			models.NetworkBNB:    {RPCURL: "http://bnb"},
			models.NetworkMonad:  {RPCURL: "http://monad", TrustPending: true},
			models.NetworkSolana: {RPCURL: "http://solana"},
			models.NetworkZcash:  {RPCURL: "http://zcash"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    repository.NewMemoryDB(),
		oracles: make(map[models.Network]*fakeOracle),
		metrics: &recorder{},
	}
	var all []models.ChainOracle
	for _, n := range []models.Network{models.NetworkBNB, models.NetworkMonad, models.NetworkSolana, models.NetworkZcash} {
		o := &fakeOracle{network: n, lookup: &models.Lookup{State: models.TxStateNotFound}}
		f.oracles[n] = o
		all = append(all, o)
	}
	f.svc = NewService(f.repo, blockchain.NewStaticOracles(all...), f.metrics, logger.NewNop(), testConfig())
	return f
}

func (f *fixture) paywall(t *testing.T, id string, network models.Network, price, payout string) *models.Paywall {
	t.Helper()
	p, err := f.svc.CreatePaywall(context.Background(), &models.CreatePaywallRequest{
		ID:            id,
		URL:           "https://content.example/" + id,
		Price:         decimal.RequireFromString(price),
		Network:       string(network),
		PayoutAddress: payout,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) chain(network models.Network, lookup *models.Lookup) *fakeOracle {
	o := f.oracles[network]
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookup = lookup
	o.err = nil
	return o
}

func confirmed(counterparty, amount string) *models.Lookup {
	d := decimal.RequireFromString(amount)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Lookup{State: models.TxStateConfirmed, Counterparty: counterparty, ObservedAmount: &d, Timestamp: &ts}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
