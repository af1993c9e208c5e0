package blockchain

import (
	"sync"

	"github.com/paywallio/paywalld/internal/config"
	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
)

// Oracles holds one ChainOracle per configured network.
type Oracles struct {
	mu      sync.RWMutex
	oracles map[models.Network]models.ChainOracle
}

var _ models.OracleProvider = (*Oracles)(nil)

// NewOracles builds an oracle for every network that has an endpoint configured.
func NewOracles(cfg *config.Config, logger *logger.Logger) *Oracles {
	o := &Oracles{oracles: make(map[models.Network]models.ChainOracle)}

	for _, network := range models.Networks() {
		nc := cfg.Network(network)
		if nc.RPCURL == "" {
			logger.Warn("No RPC endpoint configured, payments on this network cannot be verified", "network", network)
			continue
		}

		log := logger.With("network", network)
		var oracle models.ChainOracle
		switch network.Family() {
		case models.FamilyEVM:
			oracle = NewEVMOracle(network, nc.RPCURL, cfg.OracleTimeout, log)
		case models.FamilySolana:
			oracle = NewSolanaOracle(nc.RPCURL, cfg.OracleTimeout, log)
		case models.FamilyZcash:
			oracle = NewZcashOracle(nc.RPCURL, cfg.OracleTimeout, log)
		default:
			continue
		}
		o.oracles[network] = oracle
		logger.Debug("Chain oracle configured", "network", network, "trust_pending", nc.TrustPending)
	}

	return o
}

// NewStaticOracles wraps already built oracles.
func NewStaticOracles(oracles ...models.ChainOracle) *Oracles {
	o := &Oracles{oracles: make(map[models.Network]models.ChainOracle, len(oracles))}
	for _, oracle := range oracles {
		o.oracles[oracle.Network()] = oracle
	}
	return o
}

// For returns the oracle of a network, or OracleUnavailable when none is configured.
func (o *Oracles) For(network models.Network) (models.ChainOracle, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	oracle, ok := o.oracles[network]
	if !ok {
		return nil, models.NewError(models.CodeOracleUnavailable, "no chain oracle configured").WithNetwork(network)
	}
	return oracle, nil
}

// Close releases RPC connections held by the oracles.
func (o *Oracles) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, oracle := range o.oracles {
		if c, ok := oracle.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
