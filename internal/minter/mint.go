package minter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
	"github.com/core-coin/vaultminter/pkg/validation"
)

// Mint creates the claim's token under the session collection, owned by the
// claim wallet, and records it. Only the job that moves the claim from PENDING
// to MINTING reaches the ledger.
func (m *Minter) Mint(ctx context.Context, claimID string) error {
	log := m.logger.With("claim", claimID)
	defer log.Measure("mint")()

	claim, err := m.repo.GetClaim(ctx, claimID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Claim not found, skipping mint")
		return nil
	}
	if err != nil {
		return err
	}
	if claim.Status != models.ClaimStatusPending {
		log.Infow("Claim is not pending, skipping mint", "status", claim.Status)
		return nil
	}

	session := claim.QRSession
	switch {
	case session == nil:
		log.Warn("Claim has no session, skipping mint")
		return nil
	case session.Vault == nil:
		log.Warnw("Session has no vault, skipping mint", "session", session.ID)
		return nil
	case !session.HasCollection():
		log.Warnw("Session collection not prepared, skipping mint", "session", session.ID)
		return nil
	case session.Campaign == nil:
		log.Warnw("Session has no campaign, skipping mint", "session", session.ID)
		return nil
	case strings.TrimSpace(session.Campaign.TokenURI) == "" ||
		strings.TrimSpace(session.Campaign.Name) == "" ||
		strings.TrimSpace(session.Campaign.TokenSymbol) == "":
		log.Warnw("Campaign token metadata incomplete, skipping mint", "campaign", session.Campaign.ID)
		return nil
	case claim.Wallet == nil || *claim.Wallet == "":
		log.Warn("Claim has no recipient wallet, skipping mint")
		return nil
	}
	recipient, err := validation.ValidateAndNormalizeAddress(*claim.Wallet)
	if err != nil {
		log.Warnw("Claim recipient wallet is invalid, skipping mint", "wallet", *claim.Wallet, "error", err)
		return nil
	}
	campaign := session.Campaign
	log = log.With("session", session.ID, "recipient", recipient)
	models.ReportProgress(ctx, 10)

	acquired, err := m.repo.AcquireClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if !acquired {
		log.Info("Claim taken by another job, skipping mint")
		return nil
	}
	models.ReportProgress(ctx, 20)

	signer, err := m.signerFor(ctx, session.Vault)
	if err != nil {
		m.release(ctx, log, claimID)
		return err
	}
	models.ReportProgress(ctx, 30)

	stop := log.Measure("mint.create_token")
	mintAddress, err := signer.CreateToken(ctx, &models.TokenParams{
		Name:                 campaign.Name,
		Symbol:               campaign.TokenSymbol,
		URI:                  campaign.TokenURI,
		SellerFeeBasisPoints: 0,
		IsMutable:            false,
		IsCollection:         false,
		Collection:           *session.Collection,
		Owner:                recipient,
	})
	stop()
	if err != nil {
		m.release(ctx, log, claimID)
		return fmt.Errorf("failed to mint token: %w", err)
	}
	models.ReportProgress(ctx, 80)

	token := &models.Token{
		MintAddress: mintAddress,
		MetadataURI: metadataURI(campaign),
		CampaignID:  campaign.ID,
		QRSessionID: session.ID,
	}
	stop = log.Measure("mint.store_token")
	err = m.repo.CompleteClaim(ctx, claimID, token)
	stop()
	if err != nil {
		log.Errorw("Token minted but not recorded", "mint", mintAddress, "error", err)
		m.alert(ctx, &models.Alert{
			Title:       "Token minted but not recorded",
			Kind:        string(models.JobKindMint),
			Subject:     claimID,
			MintAddress: mintAddress,
			Error:       err.Error(),
		})
		return fmt.Errorf("token %s minted but not recorded: %w", mintAddress, err)
	}

	log.Infow("Token minted", "mint", mintAddress, "token", token.ID)
	models.ReportProgress(ctx, 100)
	return nil
}

// release hands a claim back to PENDING so a retry can mint it.
func (m *Minter) release(ctx context.Context, log *logger.Logger, claimID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := m.repo.ReleaseClaim(ctx, claimID); err != nil {
		log.Errorw("Failed to release claim", "error", err)
	}
}

func metadataURI(c *models.Campaign) string {
	if c.MetadataURI != nil && *c.MetadataURI != "" {
		return *c.MetadataURI
	}
	return c.TokenURI
}
