package minter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/core-coin/vaultminter/internal/models"
)

// Prepare creates the collection token for the vault's session and stores its
// address. Missing records and an already prepared session are skipped.
func (m *Minter) Prepare(ctx context.Context, vaultID string) error {
	log := m.logger.With("vault", vaultID)
	defer log.Measure("prepare")()

	v, err := m.repo.GetVault(ctx, vaultID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Vault not found, skipping prepare")
		return nil
	}
	if err != nil {
		return err
	}

	session := v.QRSession
	if session == nil {
		log.Warn("Vault has no session, skipping prepare")
		return nil
	}
	log = log.With("session", session.ID)
	if session.HasCollection() {
		log.Infow("Session already has a collection, skipping prepare", "collection", *session.Collection)
		return nil
	}

	campaign := session.Campaign
	if campaign == nil || strings.TrimSpace(campaign.TokenURI) == "" || strings.TrimSpace(campaign.Name) == "" || strings.TrimSpace(campaign.TokenSymbol) == "" {
		log.Warn("Campaign is missing token fields, skipping prepare")
		return nil
	}
	models.ReportProgress(ctx, 10)

	signer, err := m.signerFor(ctx, v)
	if err != nil {
		return err
	}
	models.ReportProgress(ctx, 30)

	stop := log.Measure("prepare.create_collection")
	collection, err := signer.CreateToken(ctx, &models.TokenParams{
		Name:                 campaign.Name + " Collection",
		Symbol:               campaign.TokenSymbol,
		URI:                  campaign.TokenURI,
		SellerFeeBasisPoints: 0,
		IsMutable:            false,
		IsCollection:         true,
	})
	stop()
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	models.ReportProgress(ctx, 70)

	stop = log.Measure("prepare.store_collection")
	err = m.repo.SetSessionCollection(ctx, session.ID, collection)
	stop()
	if errors.Is(err, models.ErrCollectionAlreadySet) {
		// another prepare job stored its collection first; ours is orphaned
		log.Warnw("Session collection was set concurrently", "orphan_collection", collection)
		m.alert(ctx, &models.Alert{
			Title:       "Orphaned collection token",
			Kind:        string(models.JobKindPrepare),
			Subject:     session.ID,
			MintAddress: collection,
		})
		return nil
	}
	if err != nil {
		log.Errorw("Collection created but not stored", "collection", collection, "error", err)
		m.alert(ctx, &models.Alert{
			Title:       "Collection created but not stored",
			Kind:        string(models.JobKindPrepare),
			Subject:     session.ID,
			MintAddress: collection,
			Error:       err.Error(),
		})
		return fmt.Errorf("collection %s created but not stored: %w", collection, err)
	}
	log.Infow("Collection prepared", "collection", collection)
	models.ReportProgress(ctx, 90)

	if m.config != nil && m.config.RefundAfterPrepare {
		session.Collection = &collection
		res, err := m.funds.Reconcile(ctx, signer, session, campaign)
		if err != nil {
			log.Errorw("Refund after prepare failed", "error", err)
		} else if res.SkipReason != "" {
			log.Debugw("No refund after prepare", "reason", res.SkipReason)
		}
	}

	models.ReportProgress(ctx, 100)
	return nil
}
