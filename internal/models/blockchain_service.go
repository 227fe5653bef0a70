package models

import "context"

// LedgerService represents a service that interacts with the Solana network.
type LedgerService interface {
	// NewSigner binds a raw 64-byte ed25519 secret key to a client able to
	// sign transfers and token creations.
	NewSigner(secretKey []byte) (LedgerSigner, error)
	// GetBalance returns the balance of address in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// LedgerSigner is a ledger client bound to one signing identity and to the
// metadata uploader.
type LedgerSigner interface {
	Address() string
	// Transfer sends lamports to the given address and returns the signature
	// once the transaction is confirmed.
	Transfer(ctx context.Context, to string, lamports uint64) (string, error)
	// CreateToken mints a new NFT and returns its mint address once the
	// transaction is confirmed.
	CreateToken(ctx context.Context, params *TokenParams) (string, error)
}

// TokenParams describes an NFT to create.
type TokenParams struct {
	Name   string
	Symbol string
	// URI of the metadata JSON. When empty, Metadata is uploaded first and the
	// resulting URI is used instead.
	URI      string
	Metadata []byte

	SellerFeeBasisPoints uint16
	IsMutable            bool
	IsCollection         bool
	// Collection is the parent collection mint. Empty for collections.
	Collection string
	// Owner receives the token. Defaults to the signer.
	Owner string
}

// MetadataUploader stores metadata JSON off-chain and returns its URI.
type MetadataUploader interface {
	UploadMetadata(ctx context.Context, data []byte) (string, error)
}

// KeyDecrypter turns an encrypted vault key into raw secret key bytes.
type KeyDecrypter interface {
	Decrypt(ctx context.Context, ciphertext string) ([]byte, error)
}
