package models

import (
	"context"
	"errors"
)

// ErrNotFound is returned by the Repository when a requested record is absent.
var ErrNotFound = errors.New("record not found")

// Repository is the persistent store the job pipeline reads and updates.
type Repository interface {
	// GetVault loads a vault with QRSession -> Campaign -> Organizer.
	GetVault(ctx context.Context, id string) (*Vault, error)
	// GetClaim loads a claim with QRSession -> Vault and QRSession -> Campaign -> Organizer.
	GetClaim(ctx context.Context, id string) (*Claim, error)

	// SetSessionCollection writes the collection address. It fails with
	// ErrCollectionAlreadySet when the session already has one.
	SetSessionCollection(ctx context.Context, sessionID, collection string) error

	// AcquireClaim moves a claim from PENDING to MINTING. It reports false when
	// the claim was not PENDING, in which case another job owns it.
	AcquireClaim(ctx context.Context, claimID string) (bool, error)
	// ReleaseClaim moves a claim from MINTING back to PENDING.
	ReleaseClaim(ctx context.Context, claimID string) error
	// CompleteClaim creates the token row and links it to the claim as CLAIMED
	// in a single transaction.
	CompleteClaim(ctx context.Context, claimID string, token *Token) error
	// MarkClaimFailed moves a PENDING claim to FAILED.
	MarkClaimFailed(ctx context.Context, claimID string) error

	Ping(ctx context.Context) error
}

// ErrCollectionAlreadySet is returned when a session already has a collection.
var ErrCollectionAlreadySet = errors.New("session collection already set")
