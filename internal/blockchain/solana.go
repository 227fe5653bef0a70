package blockchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
	"github.com/core-coin/vaultminter/pkg/validation"
)

const (
	// DefaultConfirmTimeout bounds how long a sent transaction may take to reach
	// the confirmed commitment level.
	DefaultConfirmTimeout = 60 * time.Second

	defaultPollInterval = time.Second
)

type Solana struct {
	logger   *logger.Logger
	client   *client.Client
	uploader models.MetadataUploader

	confirmTimeout time.Duration
	pollInterval   time.Duration
}

var _ models.LedgerService = (*Solana)(nil)

// NewSolana creates a new Solana ledger client. The uploader is handed to every
// signer it builds.
func NewSolana(rpcURL string, uploader models.MetadataUploader, confirmTimeout time.Duration, logger *logger.Logger) *Solana {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Solana{
		logger:         logger,
		client:         client.NewClient(rpcURL),
		uploader:       uploader,
		confirmTimeout: confirmTimeout,
		pollInterval:   defaultPollInterval,
	}
}

// NewSigner binds a 64-byte ed25519 secret key to the client.
func (s *Solana) NewSigner(secretKey []byte) (models.LedgerSigner, error) {
	if len(secretKey) != 64 {
		return nil, fmt.Errorf("invalid secret key length: want 64 bytes, got %d", len(secretKey))
	}
	account, err := types.AccountFromBytes(secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair: %w", err)
	}
	return &Signer{solana: s, account: account}, nil
}

func (s *Solana) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return 0, err
	}
	balance, err := s.client.GetBalance(ctx, strings.TrimSpace(address))
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// waitForConfirmation polls the signature status until the transaction reaches
// confirmed or finalized, fails on-chain, or the confirm timeout expires.
func (s *Solana) waitForConfirmation(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := s.client.GetSignatureStatus(ctx, signature)
		switch {
		case err != nil:
			lastErr = err
			s.logger.Debugw("Signature status lookup failed", "signature", signature, "error", err)
		case status == nil:
			// not yet seen by the node
		case status.Err != nil:
			return fmt.Errorf("transaction %s failed: %v", signature, status.Err)
		case isConfirmed(status.ConfirmationStatus):
			return nil
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("transaction %s not confirmed: %w (last error: %v)", signature, ctx.Err(), lastErr)
			}
			return fmt.Errorf("transaction %s not confirmed: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

func isConfirmed(c *rpc.Commitment) bool {
	if c == nil {
		return false
	}
	return *c == rpc.CommitmentConfirmed || *c == rpc.CommitmentFinalized
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
