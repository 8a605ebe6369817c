package contract

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"horseregistry/model"
	"horseregistry/registry"
)

// --- Query operations ---

func (s *HorseRegistryContract) TokenOf(ctx contractapi.TransactionContextInterface, externalID string) (uint64, error) {
	logger.Debugf("Chaincode Call: TokenOf '%s'", externalID)
	return newCore(ctx).TokenOf(externalID)
}

func (s *HorseRegistryContract) GetToken(ctx contractapi.TransactionContextInterface, tokenID uint64) (*model.Token, error) {
	logger.Debugf("Chaincode Call: GetToken %d", tokenID)
	return newCore(ctx).Token(tokenID)
}

// GetTokenDetails returns a token with the history of its world state key.
// A history that cannot be read is logged and returned empty.
func (s *HorseRegistryContract) GetTokenDetails(ctx contractapi.TransactionContextInterface, tokenID uint64) (*model.TokenDetails, error) {
	logger.Debugf("Chaincode Call: GetTokenDetails %d", tokenID)
	token, err := newCore(ctx).Token(tokenID)
	if err != nil {
		return nil, fmt.Errorf("GetTokenDetails: %w", err)
	}
	return &model.TokenDetails{Token: token, History: s.tokenHistory(ctx, tokenID)}, nil
}

func (s *HorseRegistryContract) tokenHistory(ctx contractapi.TransactionContextInterface, tokenID uint64) []model.HistoryEntry {
	entries := []model.HistoryEntry{}
	key, err := registry.TokenKey(ctx.GetStub(), tokenID)
	if err != nil {
		logger.Warningf("GetTokenDetails: Failed to create key for token %d: %v. Details returned without history.", tokenID, err)
		return entries
	}
	historyIter, err := ctx.GetStub().GetHistoryForKey(key)
	if err != nil || historyIter == nil {
		logger.Warningf("GetTokenDetails: Failed to get history for token %d: %v. Details returned without history.", tokenID, err)
		return entries
	}
	defer historyIter.Close()

	for historyIter.HasNext() {
		item, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetTokenDetails: Error iterating history for token %d: %v. Skipping entry.", tokenID, iterErr)
			continue
		}
		entry := model.HistoryEntry{
			TxID:     item.TxId,
			IsDelete: item.IsDelete,
			Value:    string(item.Value),
		}
		if item.Timestamp != nil {
			entry.Timestamp = item.Timestamp.AsTime()
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *HorseRegistryContract) OwnerOf(ctx contractapi.TransactionContextInterface, tokenID uint64) (string, error) {
	return newCore(ctx).OwnerOf(tokenID)
}

func (s *HorseRegistryContract) TokenURI(ctx contractapi.TransactionContextInterface, tokenID uint64) (string, error) {
	return newCore(ctx).TokenURI(tokenID)
}

func (s *HorseRegistryContract) BalanceOf(ctx contractapi.TransactionContextInterface, owner string) (uint64, error) {
	return newCore(ctx).BalanceOf(owner)
}

func (s *HorseRegistryContract) TotalSupply(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return newCore(ctx).TotalSupply()
}

// Verify recomputes the fingerprint of the JSON document and compares it
// with the one anchored for tokenID. Anyone may call it.
func (s *HorseRegistryContract) Verify(ctx contractapi.TransactionContextInterface, tokenID uint64, document string) (*model.VerifyResult, error) {
	logger.Debugf("Chaincode Call: Verify token %d", tokenID)
	res, err := newCore(ctx).VerifyDocument(tokenID, []byte(document))
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	return res, nil
}

// VerifySecretField checks sensitive field values alone, e.g. a microchip
// number, against the anchored secretFieldHash.
func (s *HorseRegistryContract) VerifySecretField(ctx contractapi.TransactionContextInterface, tokenID uint64, values []string) (*model.VerifyResult, error) {
	res, err := newCore(ctx).VerifySecretField(tokenID, values...)
	if err != nil {
		return nil, fmt.Errorf("VerifySecretField: %w", err)
	}
	return res, nil
}

func (s *HorseRegistryContract) GetSettings(ctx contractapi.TransactionContextInterface) (*model.RegistrySettings, error) {
	return newCore(ctx).Settings()
}
