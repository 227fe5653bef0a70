package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func setupRepo(t *testing.T) *PostgresDB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	repo, err := NewRepository(db, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// seed creates organizer -> campaign -> session -> vault and one pending claim.
func seed(t *testing.T, repo *PostgresDB) (*models.Vault, *models.Claim) {
	t.Helper()
	organizer := &models.Organizer{ID: "org-1", Wallet: strPtr("7v91N7iZ9mNicL8WfG6cgSCKyRXydQjLh6UYBWwm6y1Q")}
	campaign := &models.Campaign{
		ID:          "camp-1",
		Name:        "Summit",
		TokenSymbol: "SMT",
		TokenURI:    "https://arweave.net/meta.json",
		MetadataURI: strPtr("https://arweave.net/meta.json"),
		OrganizerID: organizer.ID,
	}
	session := &models.QRSession{ID: "sess-1", MaxClaims: intPtr(3), CampaignID: campaign.ID}
	vault := &models.Vault{ID: "vault-1", Address: "VaultAddr111", PrivateKey: "cipher", QRSessionID: session.ID}
	claim := &models.Claim{
		ID:          "claim-1",
		Status:      models.ClaimStatusPending,
		Wallet:      strPtr("RecipientAddr111"),
		QRSessionID: strPtr(session.ID),
	}

	for _, rec := range []interface{}{organizer, campaign, session, vault, claim} {
		require.NoError(t, repo.Conn.Create(rec).Error)
	}
	return vault, claim
}

func TestGetVaultPreloadsSessionCampaignOrganizer(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)

	vault, err := repo.GetVault(context.Background(), "vault-1")
	require.NoError(t, err)
	require.NotNil(t, vault.QRSession)
	require.NotNil(t, vault.QRSession.Campaign)
	require.NotNil(t, vault.QRSession.Campaign.Organizer)
	assert.Equal(t, 3, *vault.QRSession.MaxClaims)
	assert.Equal(t, "Summit", vault.QRSession.Campaign.Name)
	assert.Equal(t, "7v91N7iZ9mNicL8WfG6cgSCKyRXydQjLh6UYBWwm6y1Q", *vault.QRSession.Campaign.Organizer.Wallet)
}

func TestGetVaultNotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.GetVault(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetClaimPreloadsVault(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)

	claim, err := repo.GetClaim(context.Background(), "claim-1")
	require.NoError(t, err)
	require.NotNil(t, claim.QRSession)
	require.NotNil(t, claim.QRSession.Vault)
	require.NotNil(t, claim.QRSession.Campaign)
	assert.Equal(t, "vault-1", claim.QRSession.Vault.ID)
	assert.Equal(t, "camp-1", claim.QRSession.Campaign.ID)

	_, err = repo.GetClaim(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetSessionCollectionOnlyOnce(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SetSessionCollection(ctx, "sess-1", "Coll111"))

	err := repo.SetSessionCollection(ctx, "sess-1", "Coll222")
	assert.ErrorIs(t, err, models.ErrCollectionAlreadySet)

	err = repo.SetSessionCollection(ctx, "missing", "Coll333")
	assert.ErrorIs(t, err, models.ErrNotFound)

	vault, err := repo.GetVault(ctx, "vault-1")
	require.NoError(t, err)
	assert.Equal(t, "Coll111", *vault.QRSession.Collection)
}

func TestAcquireAndReleaseClaim(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	ok, err := repo.AcquireClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.False(t, ok, "a minting claim cannot be acquired twice")

	require.NoError(t, repo.ReleaseClaim(ctx, "claim-1"))
	claim, err := repo.GetClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
}

func TestAcquireClaimConcurrent(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.AcquireClaim(ctx, "claim-1")
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCompleteClaimLinksToken(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	ok, err := repo.AcquireClaim(ctx, "claim-1")
	require.NoError(t, err)
	require.True(t, ok)

	token := &models.Token{MintAddress: "Mint111", MetadataURI: "https://arweave.net/meta.json", CampaignID: "camp-1", QRSessionID: "sess-1"}
	require.NoError(t, repo.CompleteClaim(ctx, "claim-1", token))
	assert.NotEmpty(t, token.ID)

	claim, err := repo.GetClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, claim.Status)
	require.NotNil(t, claim.MintAddress)
	assert.Equal(t, "Mint111", *claim.MintAddress)
	require.NotNil(t, claim.TokenID)
	assert.Equal(t, token.ID, *claim.TokenID)
}

func TestCompleteClaimRollsBackTokenWhenClaimNotMinting(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	token := &models.Token{MintAddress: "Mint111", CampaignID: "camp-1", QRSessionID: "sess-1"}
	err := repo.CompleteClaim(ctx, "claim-1", token)
	require.Error(t, err)

	var count int64
	require.NoError(t, repo.Conn.Model(&models.Token{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMarkClaimFailedOnlyFromPending(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)
	ctx := context.Background()

	ok, err := repo.AcquireClaim(ctx, "claim-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.MarkClaimFailed(ctx, "claim-1"))
	claim, err := repo.GetClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusMinting, claim.Status)

	require.NoError(t, repo.ReleaseClaim(ctx, "claim-1"))
	require.NoError(t, repo.MarkClaimFailed(ctx, "claim-1"))
	claim, err = repo.GetClaim(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusFailed, claim.Status)
}
