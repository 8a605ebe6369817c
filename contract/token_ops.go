package contract

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"horseregistry/anchor"
	"horseregistry/model"
	"horseregistry/registry"
)

// --- Lifecycle & token transitions ---

// Initialize writes the registry settings and grants DEFAULT_ADMIN_ROLE to
// admin, or to the caller when admin is empty. Empty policy and schema
// version select the defaults. It succeeds once per channel.
func (s *HorseRegistryContract) Initialize(ctx contractapi.TransactionContextInterface, admin, metadataPolicy, schemaVersion string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("Initialize: %w", err)
	}
	logger.Infof("Chaincode Call: Initialize by '%s' (MSP '%s')", actor.id, actor.mspID)
	_, err = newCore(ctx).Initialize(actor.id, model.RegistrySettings{
		Admin:          admin,
		MetadataPolicy: model.MetadataPolicy(metadataPolicy),
		SchemaVersion:  schemaVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("Initialize: %w", err)
	}
	return txRef(ctx, 0, true), nil
}

// CreateToken binds externalID to a new token owned by owner. The hashes are
// 0x-hex keccak-256 fingerprints computed off-chain from the canonical
// record; the record itself never reaches the ledger.
func (s *HorseRegistryContract) CreateToken(ctx contractapi.TransactionContextInterface, owner, externalID, contentHash, secretFieldHash, metadataURI string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateToken: %w", err)
	}
	logger.Infof("Chaincode Call: CreateToken for external id '%s' by '%s'", externalID, actor.id)
	content, err := parseDigest(contentHash, "contentHash")
	if err != nil {
		return nil, fmt.Errorf("CreateToken: %w", err)
	}
	secret, err := parseDigest(secretFieldHash, "secretFieldHash")
	if err != nil {
		return nil, fmt.Errorf("CreateToken: %w", err)
	}
	token, err := newCore(ctx).Create(actor.id, registry.CreateRequest{
		Owner:           owner,
		ExternalID:      externalID,
		ContentHash:     content,
		SecretFieldHash: secret,
		MetadataURI:     metadataURI,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateToken: %w", err)
	}
	return txRef(ctx, token.TokenID, true), nil
}

func (s *HorseRegistryContract) UpdateMetadataURI(ctx contractapi.TransactionContextInterface, tokenID uint64, metadataURI string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("UpdateMetadataURI: %w", err)
	}
	logger.Infof("Chaincode Call: UpdateMetadataURI of token %d by '%s'", tokenID, actor.id)
	if _, err := newCore(ctx).UpdateMetadataURI(actor.id, tokenID, metadataURI); err != nil {
		return nil, fmt.Errorf("UpdateMetadataURI: %w", err)
	}
	return txRef(ctx, tokenID, true), nil
}

// TransferToken moves a token from the calling owner to another account.
func (s *HorseRegistryContract) TransferToken(ctx contractapi.TransactionContextInterface, tokenID uint64, to string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("TransferToken: %w", err)
	}
	logger.Infof("Chaincode Call: TransferToken %d from '%s' to '%s'", tokenID, actor.id, to)
	if _, err := newCore(ctx).Transfer(actor.id, tokenID, to); err != nil {
		return nil, fmt.Errorf("TransferToken: %w", err)
	}
	return txRef(ctx, tokenID, true), nil
}

func parseDigest(s, field string) (anchor.Digest, error) {
	d, err := anchor.ParseDigest(s)
	if err != nil {
		return anchor.Digest{}, fmt.Errorf("%w: %s: %w", registry.ErrInvalidInput, field, err)
	}
	return d, nil
}
