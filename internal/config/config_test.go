package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paywallio/paywalld/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 100, cfg.ListLimit)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout)
	assert.Equal(t, "http://localhost:3000", cfg.BaseDomain)

	for _, n := range models.Networks() {
		assert.NotEmpty(t, cfg.Network(n).RPCURL, n)
	}
	assert.True(t, cfg.TrustPending(models.NetworkMonad))
	assert.False(t, cfg.TrustPending(models.NetworkBNB))
	assert.False(t, cfg.TrustPending(models.NetworkZcash))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9000")
	t.Setenv("BASE_DOMAIN", "https://paywall.example/")
	t.Setenv("ORACLE_TIMEOUT", "2500ms")
	t.Setenv("MONAD_TRUST_PENDING", "false")
	t.Setenv("BNB_TRUST_PENDING", "true")
	t.Setenv("SOLANA_RPC_URL", "https://solana.example")
	t.Setenv("MEMORY_STORE", "true")
	t.Setenv("POSTGRES_HOST", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, "https://paywall.example", cfg.BaseDomain)
	assert.Equal(t, 2500*time.Millisecond, cfg.OracleTimeout)
	assert.False(t, cfg.TrustPending(models.NetworkMonad))
	assert.True(t, cfg.TrustPending(models.NetworkBNB))
	assert.Equal(t, "https://solana.example", cfg.Network(models.NetworkSolana).RPCURL)
	assert.True(t, cfg.MemoryStore)
}

func TestLoadConfig_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("API_PORT", "eighty")
	t.Setenv("ORACLE_TIMEOUT", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIPort:       8080,
			BaseDomain:    "http://localhost:3000",
			ListLimit:     100,
			PostgresHost:  "localhost",
			PostgresDB:    "paywall",
			OracleTimeout: time.Second,
			Networks: map[models.Network]NetworkConfig{
				models.NetworkBNB:   {RPCURL: "https://bsc-dataseed.binance.org/"},
				models.NetworkZcash: {},
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.APIPort = 0 }},
		{"base domain", func(c *Config) { c.BaseDomain = "not a url" }},
		{"list limit", func(c *Config) { c.ListLimit = 0 }},
		{"timeout", func(c *Config) { c.OracleTimeout = 0 }},
		{"postgres host", func(c *Config) { c.PostgresHost = "" }},
		{"unknown network", func(c *Config) { c.Networks["dogecoin"] = NetworkConfig{} }},
		{"bad rpc url", func(c *Config) { c.Networks[models.NetworkBNB] = NetworkConfig{RPCURL: "::"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	memory := valid()
	memory.MemoryStore = true
	memory.PostgresHost = ""
	assert.NoError(t, memory.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresUser: "u", PostgresPassword: "p", PostgresDB: "paywall", PostgresPort: 5433, PostgresSSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=paywall port=5433 sslmode=require", cfg.PostgresDSN())
}
