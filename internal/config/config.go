package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/paywallio/paywalld/internal/models"
)

// NetworkConfig holds the per-network chain access settings.
type NetworkConfig struct {
	// RPCURL is the JSON-RPC endpoint (EVM, Solana) or explorer API base (Zcash).
	// An empty value disables verification on that network.
	RPCURL string
	// TrustPending grants access on a seen but not yet confirmed transaction.
	TrustPending bool
}

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// BaseDomain is the public origin paywall links are built from.
	BaseDomain string
	// ListLimit caps list endpoints.
	ListLimit int

	// Storage configuration
	MemoryStore      bool
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresSSLMode  string

	// Blockchain configuration
	OracleTimeout time.Duration
	Networks      map[models.Network]NetworkConfig
}

// networkEnv describes the environment keys and defaults of one network.
type networkEnv struct {
	prefix       string
	rpcKey       string
	defaultRPC   string
	trustPending bool
}

var networkEnvs = map[models.Network]networkEnv{
	models.NetworkBNB:        {prefix: "BNB", rpcKey: "BNB_RPC_URL", defaultRPC: "https://bsc-dataseed.binance.org/"},
	models.NetworkBNBTestnet: {prefix: "BNB_TESTNET", rpcKey: "BNB_TESTNET_RPC_URL", defaultRPC: "https://data-seed-prebsc-1-s1.binance.org:8545/"},
	models.NetworkMonad:      {prefix: "MONAD", rpcKey: "MONAD_RPC_URL", defaultRPC: "https://rpc.monad.xyz", trustPending: true},
	models.NetworkSolana:     {prefix: "SOLANA", rpcKey: "SOLANA_RPC_URL", defaultRPC: "https://api.mainnet-beta.solana.com"},
	models.NetworkZcash:      {prefix: "ZCASH", rpcKey: "ZCASH_API_URL", defaultRPC: "https://api.blockchair.com/zcash"},
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 8080),
		BaseDomain:       strings.TrimRight(getEnv("BASE_DOMAIN", "http://localhost:3000"), "/"),
		ListLimit:        getEnvAsInt("LIST_LIMIT", 100),
		MemoryStore:      getEnvAsBool("MEMORY_STORE", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "paywall"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		OracleTimeout:    getEnvAsDuration("ORACLE_TIMEOUT", 10*time.Second),
		Networks:         make(map[models.Network]NetworkConfig, len(networkEnvs)),
	}

	for network, env := range networkEnvs {
		cfg.Networks[network] = NetworkConfig{
			RPCURL:       getEnv(env.rpcKey, env.defaultRPC),
			TrustPending: getEnvAsBool(env.prefix+"_TRUST_PENDING", env.trustPending),
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	}

	if _, err := url.ParseRequestURI(c.BaseDomain); err != nil {
		return fmt.Errorf("invalid BASE_DOMAIN: %w", err)
	}

	if c.ListLimit <= 0 {
		return fmt.Errorf("LIST_LIMIT must be positive")
	}

	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}

	if !c.MemoryStore {
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	}

	for network, nc := range c.Networks {
		if !network.Valid() {
			return fmt.Errorf("unknown network %q in configuration", network)
		}
		if nc.RPCURL == "" {
			continue
		}
		if _, err := url.ParseRequestURI(nc.RPCURL); err != nil {
			return fmt.Errorf("invalid RPC URL for %s: %w", network, err)
		}
	}

	return nil
}

// Network returns the settings of one network. Unknown networks get the zero value.
func (c *Config) Network(n models.Network) NetworkConfig {
	return c.Networks[n]
}

// TrustPending reports whether pending transactions grant access on the network.
func (c *Config) TrustPending(n models.Network) bool {
	return c.Networks[n].TrustPending
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode)
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
