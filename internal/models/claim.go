package models

import "time"

type ClaimStatus string

const (
	ClaimStatusPending ClaimStatus = "PENDING"
	// ClaimStatusMinting marks a claim whose token is being created. Only the
	// job that moved the claim out of PENDING may mint it.
	ClaimStatusMinting ClaimStatus = "MINTING"
	ClaimStatusClaimed ClaimStatus = "CLAIMED"
	ClaimStatusFailed  ClaimStatus = "FAILED"
)

// Claim is one recipient's right to receive a token.
type Claim struct {
	// ID is the unique identifier for the claim.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Status is the claim's position in PENDING -> MINTING -> CLAIMED.
	Status ClaimStatus `json:"status" gorm:"column:status;index;not null"`
	// Wallet is the recipient's base58 address.
	Wallet *string `json:"wallet" gorm:"column:wallet"`
	// MintAddress is the address of the minted token once claimed.
	MintAddress *string `json:"mint_address" gorm:"column:mint_address"`
	// QRSessionID is the foreign key to the QRSession.
	QRSessionID *string    `json:"qr_session_id" gorm:"column:qr_session_id;index"`
	QRSession   *QRSession `json:"qr_session,omitempty" gorm:"foreignKey:QRSessionID"`
	// TokenID links the Token row created for this claim.
	TokenID *string `json:"token_id" gorm:"column:token_id;uniqueIndex"`
	Token   *Token  `json:"token,omitempty" gorm:"foreignKey:TokenID"`
	// UpdatedAt is maintained by gorm.
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Claim) TableName() string {
	return "claims"
}

// Token is one minted NFT.
type Token struct {
	// ID is the unique identifier for the token row.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// MintAddress is the on-chain mint address.
	MintAddress string `json:"mint_address" gorm:"column:mint_address;unique;not null"`
	// MetadataURI is the campaign metadata URI at mint time.
	MetadataURI string `json:"metadata_uri" gorm:"column:metadata_uri"`
	// CampaignID is the campaign the token was minted for.
	CampaignID string `json:"campaign_id" gorm:"column:campaign_id;index"`
	// QRSessionID is the session the token was minted under.
	QRSessionID string `json:"qr_session_id" gorm:"column:qr_session_id;index"`
	// CreatedAt is maintained by gorm.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Token) TableName() string {
	return "tokens"
}
