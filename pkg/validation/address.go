package validation

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ValidateAddress validates a Solana base58 public key
func ValidateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if _, err := solana.PublicKeyFromBase58(strings.TrimSpace(addr)); err != nil {
		return fmt.Errorf("invalid base58 address: %w", err)
	}

	return nil
}

// NormalizeAddress trims surrounding whitespace from an address
func NormalizeAddress(addr string) string {
	return strings.TrimSpace(addr)
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}
