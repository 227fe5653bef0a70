package minter

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/core-coin/vaultminter/internal/config"
	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/internal/vault"
	"github.com/core-coin/vaultminter/pkg/logger"
)

const releaseTimeout = 10 * time.Second

// Minter runs the collection preparation, token minting and vault refund jobs.
// It holds no state between jobs; the repository is the source of truth.
type Minter struct {
	logger *logger.Logger
	config *config.Config

	repo      models.Repository
	ledger    models.LedgerService
	decrypter models.KeyDecrypter
	funds     *vault.FundManager
	alerts    models.AlertService
}

// NewMinter creates a new Minter instance
func NewMinter(
	repo models.Repository,
	ledger models.LedgerService,
	decrypter models.KeyDecrypter,
	funds *vault.FundManager,
	alerts models.AlertService,
	logger *logger.Logger,
	config *config.Config,
) models.MinterI {
	return &Minter{
		repo:      repo,
		ledger:    ledger,
		decrypter: decrypter,
		funds:     funds,
		alerts:    alerts,
		logger:    logger,
		config:    config,
	}
}

// Reconcile refunds the surplus of the vault to the campaign organizer.
func (m *Minter) Reconcile(ctx context.Context, vaultID string) (*models.RefundResult, error) {
	log := m.logger.With("vault", vaultID)
	defer log.Measure("reconcile")()

	v, err := m.repo.GetVault(ctx, vaultID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Vault not found, skipping reconcile")
		return &models.RefundResult{SkipReason: "vault not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	if v.QRSession == nil {
		log.Warn("Vault has no session, skipping reconcile")
		return &models.RefundResult{SkipReason: "vault has no session"}, nil
	}
	// a vault that can never be refunded needs no key
	if reason := vault.SkipReason(v.QRSession, v.QRSession.Campaign); reason != "" {
		log.Infow("No refund sent", "reason", reason)
		return &models.RefundResult{SkipReason: reason}, nil
	}

	signer, err := m.signerFor(ctx, v)
	if err != nil {
		return nil, err
	}
	models.ReportProgress(ctx, 50)

	res, err := m.funds.Reconcile(ctx, signer, v.QRSession, v.QRSession.Campaign)
	if err != nil {
		return nil, err
	}
	if res.SkipReason != "" {
		log.Infow("No refund sent", "reason", res.SkipReason)
	}
	models.ReportProgress(ctx, 100)
	return res, nil
}

// MarkMintFailed flags a claim that could not be minted. Claims that are no
// longer PENDING are left untouched.
func (m *Minter) MarkMintFailed(ctx context.Context, claimID string) error {
	if err := m.repo.MarkClaimFailed(ctx, claimID); err != nil {
		return err
	}
	m.logger.Warnw("Claim marked as failed", "claim", claimID)
	return nil
}

// signerFor decrypts the vault key and binds it to a ledger signer.
func (m *Minter) signerFor(ctx context.Context, v *models.Vault) (models.LedgerSigner, error) {
	key, err := m.decrypter.Decrypt(ctx, v.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt vault key: %w", err)
	}
	signer, err := m.ledger.NewSigner(key)
	if err != nil {
		return nil, fmt.Errorf("invalid vault key: %w", err)
	}
	if v.Address != "" && signer.Address() != v.Address {
		return nil, fmt.Errorf("vault key does not match vault address %s", v.Address)
	}
	return signer, nil
}

// alert notifies operators without letting a broken channel affect the job.
func (m *Minter) alert(ctx context.Context, alert *models.Alert) {
	if m.alerts == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorw("Alert delivery panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	m.alerts.SendAlert(ctx, alert)
}
