package vault

import (
	"context"
	"fmt"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/lamports"
	"github.com/core-coin/vaultminter/pkg/logger"
	"github.com/core-coin/vaultminter/pkg/validation"
)

const (
	SkipNoOrganizerWallet = "organizer wallet not set"
	SkipNoMaxClaims       = "session max claims not set"
	SkipNothingToRefund   = "balance does not exceed reserve"
)

// FundManager keeps enough lamports in a vault to pay for the remaining
// transfers and returns the rest to the campaign organizer.
type FundManager struct {
	logger *logger.Logger
	ledger models.LedgerService

	perTransferCost uint64
	buffer          uint64
}

func NewFundManager(ledger models.LedgerService, perTransferCost, buffer uint64, logger *logger.Logger) *FundManager {
	return &FundManager{
		logger:          logger,
		ledger:          ledger,
		perTransferCost: perTransferCost,
		buffer:          buffer,
	}
}

// Reserved returns maxClaims*perTransferCost + buffer, in lamports.
func (m *FundManager) Reserved(maxClaims int) uint64 {
	if maxClaims < 0 {
		maxClaims = 0
	}
	return uint64(maxClaims)*m.perTransferCost + m.buffer
}

// SkipReason reports why a vault with this session and campaign can never be
// refunded, or "" when a refund may be due. It needs no signer.
func SkipReason(session *models.QRSession, campaign *models.Campaign) string {
	if campaign == nil || campaign.Organizer == nil || campaign.Organizer.Wallet == nil || *campaign.Organizer.Wallet == "" {
		return SkipNoOrganizerWallet
	}
	if session == nil || session.MaxClaims == nil || *session.MaxClaims <= 0 {
		return SkipNoMaxClaims
	}
	return ""
}

// Reconcile transfers balance-reserved from the vault to the organizer wallet
// when the balance exceeds the reserve. It returns what was moved; a skipped
// refund is not an error.
func (m *FundManager) Reconcile(ctx context.Context, signer models.LedgerSigner, session *models.QRSession, campaign *models.Campaign) (*models.RefundResult, error) {
	result := &models.RefundResult{}
	if reason := SkipReason(session, campaign); reason != "" {
		result.SkipReason = reason
		return result, nil
	}

	organizerWallet, err := validation.ValidateAndNormalizeAddress(*campaign.Organizer.Wallet)
	if err != nil {
		return nil, fmt.Errorf("invalid organizer wallet: %w", err)
	}

	result.Reserved = m.Reserved(*session.MaxClaims)

	balance, err := m.ledger.GetBalance(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get vault balance: %w", err)
	}
	result.Balance = balance

	if balance <= result.Reserved {
		result.SkipReason = SkipNothingToRefund
		m.logger.Debugw("Vault holds no surplus",
			"vault", signer.Address(),
			"balance", lamports.FormatSOL(balance),
			"reserved", lamports.FormatSOL(result.Reserved),
		)
		return result, nil
	}

	refund := balance - result.Reserved
	sig, err := signer.Transfer(ctx, organizerWallet, refund)
	if err != nil {
		return nil, fmt.Errorf("failed to refund vault surplus: %w", err)
	}
	result.Refunded = refund
	result.Signature = sig

	m.logger.Infow("Vault surplus refunded to organizer",
		"vault", signer.Address(),
		"organizer", organizerWallet,
		"refunded_sol", lamports.FormatSOL(refund),
		"signature", sig,
	)
	return result, nil
}
