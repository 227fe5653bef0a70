package models

import (
	"context"
	"encoding/json"
)

type JobKind string

const (
	JobKindPrepare   JobKind = "prepare"
	JobKindMint      JobKind = "mint"
	JobKindReconcile JobKind = "reconcile"
)

// Job is one unit of queued work. Payload holds the kind-specific body.
type Job struct {
	ID      string          `json:"id"`
	Kind    JobKind         `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	// Attempt starts at 1 and grows with every retry.
	Attempt int `json:"attempt"`
}

// PreparePayload is the body of a prepare job.
type PreparePayload struct {
	VaultID string `json:"vaultId"`
}

// MintPayload is the body of a mint job.
type MintPayload struct {
	ClaimID string `json:"claimId"`
}

// ReconcilePayload is the body of a reconcile job.
type ReconcilePayload struct {
	VaultID string `json:"vaultId"`
}

// RefundResult describes the outcome of a vault reconciliation.
type RefundResult struct {
	Balance  uint64 `json:"balance"`
	Reserved uint64 `json:"reserved"`
	Refunded uint64 `json:"refunded"`
	// Signature of the refund transfer, empty when nothing was moved.
	Signature string `json:"signature,omitempty"`
	// SkipReason explains why no transfer happened.
	SkipReason string `json:"skip_reason,omitempty"`
}

// MinterI is the job-facing side of the minting service.
type MinterI interface {
	// Prepare creates the collection token for the vault's session.
	Prepare(ctx context.Context, vaultID string) error
	// Mint creates the claim's token under the session collection.
	Mint(ctx context.Context, claimID string) error
	// Reconcile refunds the vault's surplus to the organizer.
	Reconcile(ctx context.Context, vaultID string) (*RefundResult, error)
	// MarkMintFailed flags a claim whose mint job ran out of retries.
	MarkMintFailed(ctx context.Context, claimID string) error
}

type progressKey struct{}

// WithProgress attaches a progress reporter to ctx.
func WithProgress(ctx context.Context, report func(progress int)) context.Context {
	return context.WithValue(ctx, progressKey{}, report)
}

// ReportProgress forwards progress (0-100) to the reporter attached to ctx, if any.
func ReportProgress(ctx context.Context, progress int) {
	if report, ok := ctx.Value(progressKey{}).(func(int)); ok && report != nil {
		report(progress)
	}
}
