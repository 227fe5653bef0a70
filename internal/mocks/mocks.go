// Package mocks holds testify mocks of the models service interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/core-coin/vaultminter/internal/models"
)

// LedgerService is a mock for models.LedgerService.
type LedgerService struct {
	mock.Mock
}

func (m *LedgerService) NewSigner(secretKey []byte) (models.LedgerSigner, error) {
	args := m.Called(secretKey)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	return ret.(models.LedgerSigner), args.Error(1)
}

func (m *LedgerService) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

// LedgerSigner is a mock for models.LedgerSigner.
type LedgerSigner struct {
	mock.Mock
	Addr string
}

func (m *LedgerSigner) Address() string {
	return m.Addr
}

func (m *LedgerSigner) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	args := m.Called(ctx, to, lamports)
	return args.String(0), args.Error(1)
}

func (m *LedgerSigner) CreateToken(ctx context.Context, params *models.TokenParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

// KeyDecrypter is a mock for models.KeyDecrypter.
type KeyDecrypter struct {
	mock.Mock
}

func (m *KeyDecrypter) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	return ret.([]byte), args.Error(1)
}

// AlertService is a mock for models.AlertService.
type AlertService struct {
	mock.Mock
}

func (m *AlertService) SendAlert(ctx context.Context, alert *models.Alert) {
	m.Called(ctx, alert)
}

// Minter is a mock for models.MinterI.
type Minter struct {
	mock.Mock
}

func (m *Minter) Prepare(ctx context.Context, vaultID string) error {
	args := m.Called(ctx, vaultID)
	return args.Error(0)
}

func (m *Minter) Mint(ctx context.Context, claimID string) error {
	args := m.Called(ctx, claimID)
	return args.Error(0)
}

func (m *Minter) Reconcile(ctx context.Context, vaultID string) (*models.RefundResult, error) {
	args := m.Called(ctx, vaultID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	return ret.(*models.RefundResult), args.Error(1)
}

func (m *Minter) MarkMintFailed(ctx context.Context, claimID string) error {
	args := m.Called(ctx, claimID)
	return args.Error(0)
}
