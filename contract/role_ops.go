package contract

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"horseregistry/model"
	"horseregistry/registry"
)

// --- Role & pause management (delegating to registry.RoleLedger / PauseGate) ---

func (s *HorseRegistryContract) HasRole(ctx contractapi.TransactionContextInterface, role, account string) (bool, error) {
	logger.Debugf("Chaincode Call: HasRole '%s' for '%s'", role, account)
	r, err := registry.ParseRole(role)
	if err != nil {
		return false, fmt.Errorf("HasRole: %w", err)
	}
	return newCore(ctx).Roles.HasRole(r, account)
}

// GetRoleAdmin returns the 0x-hex id of the role administering role.
func (s *HorseRegistryContract) GetRoleAdmin(ctx contractapi.TransactionContextInterface, role string) (string, error) {
	r, err := registry.ParseRole(role)
	if err != nil {
		return "", fmt.Errorf("GetRoleAdmin: %w", err)
	}
	admin, err := newCore(ctx).Roles.RoleAdmin(r)
	if err != nil {
		return "", fmt.Errorf("GetRoleAdmin: %w", err)
	}
	return admin.Hex(), nil
}

func (s *HorseRegistryContract) GetRoleInfo(ctx contractapi.TransactionContextInterface, role string) (*model.RoleInfo, error) {
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("GetRoleInfo: %w", err)
	}
	return newCore(ctx).Roles.Info(r)
}

// GetAllRoles describes every enumerated role.
func (s *HorseRegistryContract) GetAllRoles(ctx contractapi.TransactionContextInterface) ([]model.RoleInfo, error) {
	roles := newCore(ctx).Roles
	infos := []model.RoleInfo{}
	for _, r := range registry.Roles {
		info, err := roles.Info(r)
		if err != nil {
			return nil, fmt.Errorf("GetAllRoles: %w", err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

func (s *HorseRegistryContract) GetRolesOf(ctx contractapi.TransactionContextInterface, account string) (*model.AccountRoles, error) {
	held, err := newCore(ctx).Roles.RolesOf(account)
	if err != nil {
		return nil, fmt.Errorf("GetRolesOf: %w", err)
	}
	return &model.AccountRoles{Account: account, Roles: roleNames(held)}, nil
}

func (s *HorseRegistryContract) GrantRole(ctx contractapi.TransactionContextInterface, role, account string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GrantRole: %w", err)
	}
	logger.Infof("Chaincode Call: GrantRole '%s' to '%s' by '%s'", role, account, actor.id)
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("GrantRole: %w", err)
	}
	changed, err := newCore(ctx).Roles.GrantRole(actor.id, r, account)
	if err != nil {
		return nil, fmt.Errorf("GrantRole: %w", err)
	}
	return txRef(ctx, 0, changed), nil
}

func (s *HorseRegistryContract) RevokeRole(ctx contractapi.TransactionContextInterface, role, account string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("RevokeRole: %w", err)
	}
	logger.Infof("Chaincode Call: RevokeRole '%s' from '%s' by '%s'", role, account, actor.id)
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("RevokeRole: %w", err)
	}
	changed, err := newCore(ctx).Roles.RevokeRole(actor.id, r, account)
	if err != nil {
		return nil, fmt.Errorf("RevokeRole: %w", err)
	}
	return txRef(ctx, 0, changed), nil
}

// RenounceRole drops one of the caller's own roles.
func (s *HorseRegistryContract) RenounceRole(ctx contractapi.TransactionContextInterface, role string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("RenounceRole: %w", err)
	}
	logger.Infof("Chaincode Call: RenounceRole '%s' by '%s'", role, actor.id)
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("RenounceRole: %w", err)
	}
	changed, err := newCore(ctx).Roles.RenounceRole(actor.id, r)
	if err != nil {
		return nil, fmt.Errorf("RenounceRole: %w", err)
	}
	return txRef(ctx, 0, changed), nil
}

func (s *HorseRegistryContract) SetRoleAdmin(ctx contractapi.TransactionContextInterface, role, adminRole string) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("SetRoleAdmin: %w", err)
	}
	logger.Infof("Chaincode Call: SetRoleAdmin of '%s' to '%s' by '%s'", role, adminRole, actor.id)
	r, err := registry.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("SetRoleAdmin: %w", err)
	}
	admin, err := registry.ParseRole(adminRole)
	if err != nil {
		return nil, fmt.Errorf("SetRoleAdmin: %w", err)
	}
	if _, err := newCore(ctx).Roles.SetRoleAdmin(actor.id, r, admin); err != nil {
		return nil, fmt.Errorf("SetRoleAdmin: %w", err)
	}
	return txRef(ctx, 0, true), nil
}

func (s *HorseRegistryContract) Pause(ctx contractapi.TransactionContextInterface) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("Pause: %w", err)
	}
	if _, err := newCore(ctx).Pause.Pause(actor.id); err != nil {
		return nil, fmt.Errorf("Pause: %w", err)
	}
	return txRef(ctx, 0, true), nil
}

func (s *HorseRegistryContract) Unpause(ctx contractapi.TransactionContextInterface) (*model.TxRef, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("Unpause: %w", err)
	}
	if _, err := newCore(ctx).Pause.Unpause(actor.id); err != nil {
		return nil, fmt.Errorf("Unpause: %w", err)
	}
	return txRef(ctx, 0, true), nil
}

func (s *HorseRegistryContract) IsPaused(ctx contractapi.TransactionContextInterface) (bool, error) {
	return newCore(ctx).Pause.Paused()
}

// GetPauseState returns who last paused or unpaused the registry and when.
func (s *HorseRegistryContract) GetPauseState(ctx contractapi.TransactionContextInterface) (*model.PauseState, error) {
	return newCore(ctx).Pause.State()
}
