package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/validation"
)

// Signer pays for and signs transactions with a single vault keypair.
type Signer struct {
	solana  *Solana
	account types.Account
}

var _ models.LedgerSigner = (*Signer)(nil)

func (s *Signer) Address() string {
	return s.account.PublicKey.ToBase58()
}

// Transfer moves lamports from the signer to the given address and waits for
// confirmation.
func (s *Signer) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	to, err := validation.ValidateAndNormalizeAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	if lamports == 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	instruction := system.Transfer(system.TransferParam{
		From:   s.account.PublicKey,
		To:     common.PublicKeyFromString(to),
		Amount: lamports,
	})

	sig, err := s.send(ctx, []types.Account{s.account}, instruction)
	if err != nil {
		return "", fmt.Errorf("failed to send transfer: %w", err)
	}
	s.solana.logger.Infow("Transfer submitted", "from", maskShort(s.Address()), "to", maskShort(to), "lamports", lamports, "signature", sig)

	if err := s.solana.waitForConfirmation(ctx, sig); err != nil {
		return "", err
	}
	return sig, nil
}

// CreateToken mints a single NFT with a master edition, owned by params.Owner
// (or the signer), and returns the mint address once confirmed.
func (s *Signer) CreateToken(ctx context.Context, params *models.TokenParams) (string, error) {
	if params == nil {
		return "", fmt.Errorf("token params are required")
	}
	if strings.TrimSpace(params.Name) == "" || strings.TrimSpace(params.Symbol) == "" {
		return "", fmt.Errorf("token name and symbol are required")
	}

	uri, err := s.resolveURI(ctx, params)
	if err != nil {
		return "", err
	}

	payer := s.account.PublicKey
	owner := payer
	if params.Owner != "" {
		addr, err := validation.ValidateAndNormalizeAddress(params.Owner)
		if err != nil {
			return "", fmt.Errorf("invalid owner: %w", err)
		}
		owner = common.PublicKeyFromString(addr)
	}

	var (
		collection        *token_metadata.Collection
		collectionDetails *token_metadata.CollectionDetails
	)
	if params.IsCollection {
		// a sized collection starts empty; Metaplex counts verified members
		collectionDetails = &token_metadata.CollectionDetails{V1: token_metadata.CollectionDetailsV1{Size: 0}}
	} else if params.Collection != "" {
		addr, err := validation.ValidateAndNormalizeAddress(params.Collection)
		if err != nil {
			return "", fmt.Errorf("invalid collection: %w", err)
		}
		// TODO: verify collection membership with a follow-up VerifyCollection instruction signed by the collection authority.
		collection = &token_metadata.Collection{Verified: false, Key: common.PublicKeyFromString(addr)}
	}

	mint := types.NewAccount()

	ata, _, err := common.FindAssociatedTokenAddress(owner, mint.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive token account: %w", err)
	}
	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive metadata account: %w", err)
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive master edition: %w", err)
	}

	mintRent, err := s.solana.client.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return "", fmt.Errorf("failed to get mint rent: %w", err)
	}

	maxSupply := uint64(0)
	instructions := []types.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     payer,
			New:      mint.PublicKey,
			Owner:    common.TokenProgramID,
			Lamports: mintRent,
			Space:    token.MintAccountSize,
		}),
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   0,
			Mint:       mint.PublicKey,
			MintAuth:   payer,
			FreezeAuth: &payer,
		}),
		token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
			Metadata:                metadataPubkey,
			Mint:                    mint.PublicKey,
			MintAuthority:           payer,
			UpdateAuthority:         payer,
			Payer:                   payer,
			UpdateAuthorityIsSigner: true,
			IsMutable:               params.IsMutable,
			Data: token_metadata.DataV2{
				Name:                 params.Name,
				Symbol:               params.Symbol,
				Uri:                  uri,
				SellerFeeBasisPoints: params.SellerFeeBasisPoints,
				Creators: &[]token_metadata.Creator{
					{Address: payer, Verified: true, Share: 100},
				},
				Collection: collection,
			},
			CollectionDetails: collectionDetails,
		}),
		associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
			Funder:                 payer,
			Owner:                  owner,
			Mint:                   mint.PublicKey,
			AssociatedTokenAccount: ata,
		}),
		token.MintTo(token.MintToParam{
			Mint:   mint.PublicKey,
			To:     ata,
			Auth:   payer,
			Amount: 1,
		}),
		token_metadata.CreateMasterEditionV3(token_metadata.CreateMasterEditionParam{
			Edition:         masterEditionPubkey,
			Mint:            mint.PublicKey,
			UpdateAuthority: payer,
			MintAuthority:   payer,
			Metadata:        metadataPubkey,
			Payer:           payer,
			MaxSupply:       &maxSupply,
		}),
	}

	sig, err := s.send(ctx, []types.Account{mint, s.account}, instructions...)
	if err != nil {
		return "", fmt.Errorf("failed to send mint transaction: %w", err)
	}
	mintAddress := mint.PublicKey.ToBase58()
	s.solana.logger.Infow("Token mint submitted",
		"mint", mintAddress,
		"owner", maskShort(owner.ToBase58()),
		"collection", params.IsCollection,
		"signature", sig,
	)

	if err := s.solana.waitForConfirmation(ctx, sig); err != nil {
		return "", fmt.Errorf("mint %s: %w", mintAddress, err)
	}
	return mintAddress, nil
}

func (s *Signer) resolveURI(ctx context.Context, params *models.TokenParams) (string, error) {
	if uri := strings.TrimSpace(params.URI); uri != "" {
		return uri, nil
	}
	if len(params.Metadata) == 0 {
		return "", fmt.Errorf("token metadata URI or metadata body is required")
	}
	if s.solana.uploader == nil {
		return "", fmt.Errorf("no metadata uploader configured")
	}
	uri, err := s.solana.uploader.UploadMetadata(ctx, params.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}
	return uri, nil
}

func (s *Signer) send(ctx context.Context, signers []types.Account, instructions ...types.Instruction) (string, error) {
	recent, err := s.solana.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: signers,
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        s.account.PublicKey,
			RecentBlockhash: recent.Blockhash,
			Instructions:    instructions,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	return s.solana.client.SendTransaction(ctx, tx)
}
