package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

var _ models.Repository = (*PostgresDB)(nil)

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	repo, err := NewRepository(db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return repo, nil
}

// NewRepository wraps an open gorm connection and migrates the schema.
func NewRepository(db *gorm.DB, logger *logger.Logger) (*PostgresDB, error) {
	if err := db.AutoMigrate(
		&models.Organizer{},
		&models.Campaign{},
		&models.QRSession{},
		&models.Vault{},
		&models.Token{},
		&models.Claim{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (db *PostgresDB) GetVault(ctx context.Context, id string) (*models.Vault, error) {
	var vault models.Vault
	err := db.Conn.WithContext(ctx).
		Preload("QRSession.Campaign.Organizer").
		Where("id = ?", id).
		First(&vault).Error
	if err != nil {
		return nil, notFound(err, "vault", id)
	}

	return &vault, nil
}

func (db *PostgresDB) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	err := db.Conn.WithContext(ctx).
		Preload("QRSession.Vault").
		Preload("QRSession.Campaign.Organizer").
		Where("id = ?", id).
		First(&claim).Error
	if err != nil {
		return nil, notFound(err, "claim", id)
	}

	return &claim, nil
}

func (db *PostgresDB) SetSessionCollection(ctx context.Context, sessionID, collection string) error {
	res := db.Conn.WithContext(ctx).
		Model(&models.QRSession{}).
		Where("id = ? AND (collection IS NULL OR collection = '')", sessionID).
		Update("collection", collection)
	if res.Error != nil {
		return fmt.Errorf("failed to set session collection: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Conn.WithContext(ctx).Model(&models.QRSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("qr session %s: %w", sessionID, models.ErrNotFound)
	}
	return fmt.Errorf("qr session %s: %w", sessionID, models.ErrCollectionAlreadySet)
}

func (db *PostgresDB) AcquireClaim(ctx context.Context, claimID string) (bool, error) {
	res := db.Conn.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ? AND status = ?", claimID, models.ClaimStatusPending).
		Update("status", models.ClaimStatusMinting)
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire claim: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (db *PostgresDB) ReleaseClaim(ctx context.Context, claimID string) error {
	err := db.Conn.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ? AND status = ?", claimID, models.ClaimStatusMinting).
		Update("status", models.ClaimStatusPending).Error
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

func (db *PostgresDB) CompleteClaim(ctx context.Context, claimID string, token *models.Token) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	err := db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(token).Error; err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}

		res := tx.Model(&models.Claim{}).
			Where("id = ? AND status = ?", claimID, models.ClaimStatusMinting).
			Updates(map[string]interface{}{
				"mint_address": token.MintAddress,
				"token_id":     token.ID,
				"status":       models.ClaimStatusClaimed,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update claim: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("claim %s is not in %s state", claimID, models.ClaimStatusMinting)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Debugw("Claim completed", "claim", claimID, "token", token.ID, "mint", token.MintAddress)
	return nil
}

func (db *PostgresDB) MarkClaimFailed(ctx context.Context, claimID string) error {
	err := db.Conn.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ? AND status = ?", claimID, models.ClaimStatusPending).
		Update("status", models.ClaimStatusFailed).Error
	if err != nil {
		return fmt.Errorf("failed to mark claim failed: %w", err)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
