package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/core-coin/vaultminter/internal/models"
)

const masterKeySize = 32

// VaultCipher decrypts vault secret keys sealed with AES-256-GCM.
// Ciphertexts are base64(nonce || sealed box).
type VaultCipher struct {
	aead cipher.AEAD
}

var _ models.KeyDecrypter = (*VaultCipher)(nil)

func NewVaultCipher(masterKey []byte) (*VaultCipher, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", masterKeySize, len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &VaultCipher{aead: aead}, nil
}

// Decrypt returns the 64-byte ed25519 secret key. The plaintext may be the raw
// key or a solana-keygen style JSON byte array.
func (c *VaultCipher) Decrypt(_ context.Context, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) <= nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt vault key: %w", err)
	}
	return decodeSecretKey(plain)
}

func decodeSecretKey(plain []byte) ([]byte, error) {
	if len(plain) == ed25519.PrivateKeySize {
		return plain, nil
	}

	var ints []int
	if err := json.Unmarshal(plain, &ints); err != nil {
		return nil, fmt.Errorf("unexpected secret key length %d", len(plain))
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected secret key length: got %d, want %d", len(ints), ed25519.PrivateKeySize)
	}
	key := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("secret key byte out of range at %d: %d", i, v)
		}
		key[i] = byte(v)
	}
	return key, nil
}

// SecretFetcher returns the payload of a secret version.
type SecretFetcher func(ctx context.Context, name string) ([]byte, error)

// AccessSecret reads a Secret Manager secret version such as
// "projects/<project>/secrets/<secret>/versions/latest".
func AccessSecret(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return resp.GetPayload().GetData(), nil
}

// LoadMasterKey resolves the hex master key, preferring the inline value and
// falling back to the named secret.
func LoadMasterKey(ctx context.Context, hexKey, secretName string, fetch SecretFetcher) ([]byte, error) {
	if hexKey == "" {
		if secretName == "" {
			return nil, fmt.Errorf("no master key configured")
		}
		if fetch == nil {
			fetch = AccessSecret
		}
		data, err := fetch(ctx, secretName)
		if err != nil {
			return nil, err
		}
		hexKey = string(data)
	}

	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("invalid master key format: %w", err)
	}
	if len(key) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", masterKeySize, len(key))
	}
	return key, nil
}
