package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/vaultminter/internal/models"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// loadValid mirrors startup: read the environment, then validate.
func loadValid(t *testing.T) (*Config, error) {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VAULT_ENCRYPTION_KEY", testKey)

	cfg, err := loadValid(t)
	require.NoError(t, err)

	assert.Equal(t, "prepareQueue", cfg.PrepareQueueName)
	assert.Equal(t, "mintQueue", cfg.MintQueueName)
	assert.Equal(t, 5, cfg.PrepareConcurrency)
	assert.Equal(t, 5, cfg.MintConcurrency)
	assert.Equal(t, uint64(5_000), cfg.TransferCostPerToken)
	assert.Equal(t, uint64(10_000_000), cfg.MinimumReservedBuffer)
	assert.Equal(t, 60*time.Second, cfg.SolanaConfirmTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VAULT_ENCRYPTION_KEY", testKey)
	t.Setenv("MINT_QUEUE_NAME", "claims")
	t.Setenv("MINT_CONCURRENCY", "2")
	t.Setenv("TRANSFER_COST_PER_TOKEN", "0.00001")
	t.Setenv("JOB_RETRY_BACKOFF", "250ms")

	cfg, err := loadValid(t)
	require.NoError(t, err)

	assert.Equal(t, "claims", cfg.MintQueueName)
	assert.Equal(t, 2, cfg.MintConcurrency)
	assert.Equal(t, uint64(10_000), cfg.TransferCostPerToken)
	assert.Equal(t, 250*time.Millisecond, cfg.JobRetryBackoff)
}

func TestLoadRejectsBadAmounts(t *testing.T) {
	t.Setenv("VAULT_ENCRYPTION_KEY", testKey)
	t.Setenv("MINIMUM_RESERVED_BUFFER", "lots")

	_, err := loadValid(t)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SolanaRPCURL:         "https://api.devnet.solana.com",
			RabbitMQURL:          "amqp://localhost",
			PrepareQueueName:     "p",
			MintQueueName:        "m",
			ReconcileQueueName:   "r",
			PrepareConcurrency:   1,
			MintConcurrency:      1,
			ReconcileConcurrency: 1,
			JobMaxAttempts:       1,
			VaultEncryptionKey:   testKey,
			PostgresDB:           "db",
			PostgresHost:         "localhost",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no rpc", func(c *Config) { c.SolanaRPCURL = "" }},
		{"no queue name", func(c *Config) { c.MintQueueName = "" }},
		{"zero concurrency", func(c *Config) { c.PrepareConcurrency = 0 }},
		{"zero attempts", func(c *Config) { c.JobMaxAttempts = 0 }},
		{"no key source", func(c *Config) { c.VaultEncryptionKey = "" }},
		{"short key", func(c *Config) { c.VaultEncryptionKey = "0011" }},
		{"non hex key", func(c *Config) { c.VaultEncryptionKey = strings.Repeat("zz", 32) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestRPCEndpoint(t *testing.T) {
	c := &Config{SolanaRPCURL: "https://devnet.helius-rpc.com/"}
	assert.Equal(t, "https://devnet.helius-rpc.com/", c.RPCEndpoint())

	c.HeliusAPIKey = "k1"
	assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=k1", c.RPCEndpoint())

	c.SolanaRPCURL = "https://rpc.example.com/?x=1"
	assert.Equal(t, "https://rpc.example.com/?x=1&api-key=k1", c.RPCEndpoint())
}

func TestLoadSkipsValidation(t *testing.T) {
	t.Setenv("VAULT_ENCRYPTION_KEY", "")
	t.Setenv("VAULT_ENCRYPTION_KEY_SECRET", "")

	_, err := loadValid(t)
	require.Error(t, err)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateQueue())
}

func TestQueueName(t *testing.T) {
	cfg := &Config{PrepareQueueName: "p", MintQueueName: "m", ReconcileQueueName: "r"}

	for kind, want := range map[models.JobKind]string{
		models.JobKindPrepare:   "p",
		models.JobKindMint:      "m",
		models.JobKindReconcile: "r",
	} {
		got, err := cfg.QueueName(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := cfg.QueueName("burn")
	assert.Error(t, err)
}
