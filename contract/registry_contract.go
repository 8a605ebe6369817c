package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"

	"horseregistry/model"
	"horseregistry/registry"
)

var logger = flogging.MustGetLogger("horseregistry.contract")

// HorseRegistryContract exposes the horse registry as chaincode. Accounts
// are Fabric client ids; the caller of every transaction is taken from the
// client identity, never from arguments.
// @contract:HorseRegistryContract
type HorseRegistryContract struct {
	contractapi.Contract
}

// actorInfo holds the details of the transaction invoker.
type actorInfo struct {
	id    string
	mspID string
}

// Instantiate is called during chaincode instantiation.
func (s *HorseRegistryContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("HorseRegistryContract Instantiated/Upgraded")
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

func getActorInfo(ci cid.ClientIdentity) (*actorInfo, error) {
	if ci == nil {
		return nil, errors.New("client identity is nil from context")
	}
	id, err := ci.GetID()
	if err != nil {
		return nil, fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return nil, errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		logger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	mspID, err := ci.GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{id: id, mspID: mspID}, nil
}

func (s *HorseRegistryContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	return getActorInfo(ctx.GetClientIdentity())
}

func newCore(ctx contractapi.TransactionContextInterface) *registry.Core {
	return registry.NewCore(ctx.GetStub())
}

func txRef(ctx contractapi.TransactionContextInterface, tokenID uint64, changed bool) *model.TxRef {
	return &model.TxRef{TxID: ctx.GetStub().GetTxID(), TokenID: tokenID, Changed: changed}
}

func roleNames(roles []registry.Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name())
	}
	return names
}

// GetCallerIdentity returns the invoker's client id, MSP and held roles.
func (s *HorseRegistryContract) GetCallerIdentity(ctx contractapi.TransactionContextInterface) (*model.CallerIdentity, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	held, err := newCore(ctx).Roles.RolesOf(actor.id)
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	return &model.CallerIdentity{ID: actor.id, MSPID: actor.mspID, Roles: roleNames(held)}, nil
}
