package models

// Organizer owns campaigns. Its wallet is only used as a refund destination.
type Organizer struct {
	// ID is the unique identifier for the organizer.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Wallet is the base58 address that receives vault refunds. Optional.
	Wallet *string `json:"wallet" gorm:"column:wallet"`
}

func (Organizer) TableName() string {
	return "organizers"
}

// Campaign describes the token every claim of its sessions receives.
type Campaign struct {
	// ID is the unique identifier for the campaign.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Name is the on-chain token name.
	Name string `json:"name" gorm:"column:name"`
	// TokenSymbol is the on-chain token symbol.
	TokenSymbol string `json:"token_symbol" gorm:"column:token_symbol"`
	// TokenURI is the off-chain metadata JSON referenced by minted tokens.
	TokenURI string `json:"token_uri" gorm:"column:token_uri"`
	// MetadataURI is recorded on every Token row created for this campaign.
	MetadataURI *string `json:"metadata_uri" gorm:"column:metadata_uri"`
	// OrganizerID is the foreign key to the Organizer.
	OrganizerID string     `json:"organizer_id" gorm:"column:organizer_id;index"`
	Organizer   *Organizer `json:"organizer,omitempty" gorm:"foreignKey:OrganizerID"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// QRSession is one funded minting campaign instance.
type QRSession struct {
	// ID is the unique identifier for the session.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// MaxClaims caps the number of claims the vault has to pay for.
	MaxClaims *int `json:"max_claims" gorm:"column:max_claims"`
	// Collection is the collection token address, set once by the preparer.
	Collection *string `json:"collection" gorm:"column:collection"`
	// CampaignID is the foreign key to the Campaign.
	CampaignID string    `json:"campaign_id" gorm:"column:campaign_id;index"`
	Campaign   *Campaign `json:"campaign,omitempty" gorm:"foreignKey:CampaignID"`
	// Vault is the custodial wallet funding this session, if any.
	Vault *Vault `json:"vault,omitempty" gorm:"foreignKey:QRSessionID"`
}

func (QRSession) TableName() string {
	return "qr_sessions"
}

// HasCollection reports whether the collection token was already created.
func (s *QRSession) HasCollection() bool {
	return s != nil && s.Collection != nil && *s.Collection != ""
}

// Vault is a custodial keypair that pays for a session's on-chain operations.
type Vault struct {
	// ID is the unique identifier for the vault.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Address is the vault's base58 public key.
	Address string `json:"address" gorm:"column:address;unique;not null"`
	// PrivateKey is the encrypted secret key. It is never logged or serialized.
	PrivateKey string `json:"-" gorm:"column:private_key;not null"`
	// QRSessionID is the foreign key to the owning QRSession.
	QRSessionID string     `json:"qr_session_id" gorm:"column:qr_session_id;uniqueIndex"`
	QRSession   *QRSession `json:"qr_session,omitempty" gorm:"foreignKey:QRSessionID"`
}

func (Vault) TableName() string {
	return "vaults"
}
