package registry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"horseregistry/anchor"
	"horseregistry/model"
)

// Role is a 32-byte role id: keccak-256 of the role name, except the
// default admin role which is all zeros.
type Role [anchor.DigestSize]byte

// Enumerated roles.
var (
	DefaultAdminRole = Role{}
	RegistrarRole    = roleFromName("REGISTRAR_ROLE")
	PauserRole       = roleFromName("PAUSER_ROLE")
)

// Roles is the closed enumeration of roles, in a fixed order.
var Roles = []Role{DefaultAdminRole, RegistrarRole, PauserRole}

var roleNames = map[Role]string{
	DefaultAdminRole: "DEFAULT_ADMIN_ROLE",
	RegistrarRole:    "REGISTRAR_ROLE",
	PauserRole:       "PAUSER_ROLE",
}

func roleFromName(name string) Role {
	return Role(anchor.FingerprintString(name))
}

// Name returns the enumerated name, or the hex id for an unknown role.
func (r Role) Name() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return r.Hex()
}

// Hex returns the 0x-prefixed role id.
func (r Role) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

func (r Role) String() string {
	return r.Name()
}

// ParseRole accepts an enumerated role by name ("REGISTRAR_ROLE",
// "registrar", "admin") or by its hex id.
func ParseRole(s string) (Role, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return Role{}, fmt.Errorf("%w: role cannot be empty", ErrInvalidInput)
	}
	if d, err := anchor.ParseDigest(input); err == nil {
		r := Role(d)
		if _, ok := roleNames[r]; !ok {
			return Role{}, fmt.Errorf("%w: unknown role id %s", ErrInvalidInput, r.Hex())
		}
		return r, nil
	}
	name := strings.ToUpper(input)
	switch name {
	case "ADMIN", "DEFAULT_ADMIN":
		return DefaultAdminRole, nil
	}
	if !strings.HasSuffix(name, "_ROLE") {
		name += "_ROLE"
	}
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("%w: unknown role '%s'. Valid roles are: %v", ErrInvalidInput, s, RoleNames())
}

// RoleNames lists the enumerated role names in enumeration order.
func RoleNames() []string {
	names := make([]string, 0, len(Roles))
	for _, r := range Roles {
		names = append(names, r.Name())
	}
	return names
}

// RoleLedger keeps role membership and the admin role of every role.
type RoleLedger struct {
	state State
}

// NewRoleLedger binds a RoleLedger to the state of one transaction.
func NewRoleLedger(state State) *RoleLedger {
	return &RoleLedger{state: state}
}

func (rl *RoleLedger) memberKey(role Role, account string) (string, error) {
	return rl.state.CreateCompositeKey(roleMemberObjectType, []string{role.Hex(), account})
}

func (rl *RoleLedger) adminKey(role Role) (string, error) {
	return rl.state.CreateCompositeKey(roleAdminObjectType, []string{role.Hex()})
}

func (rl *RoleLedger) countKey(role Role) (string, error) {
	return rl.state.CreateCompositeKey(roleCountObjectType, []string{role.Hex()})
}

// HasRole reports whether account holds role. Errors come only from the store.
func (rl *RoleLedger) HasRole(role Role, account string) (bool, error) {
	if account == "" {
		return false, nil
	}
	key, err := rl.memberKey(role, account)
	if err != nil {
		return false, fmt.Errorf("failed to create role member key: %w", err)
	}
	b, err := rl.state.GetState(key)
	if err != nil {
		return false, fmt.Errorf("failed to read membership of %s: %w", role, err)
	}
	return b != nil, nil
}

// RoleAdmin returns the role whose holders may grant and revoke role.
func (rl *RoleLedger) RoleAdmin(role Role) (Role, error) {
	if role == DefaultAdminRole {
		return DefaultAdminRole, nil
	}
	key, err := rl.adminKey(role)
	if err != nil {
		return Role{}, fmt.Errorf("failed to create role admin key: %w", err)
	}
	b, err := rl.state.GetState(key)
	if err != nil {
		return Role{}, fmt.Errorf("failed to read admin role of %s: %w", role, err)
	}
	if b == nil {
		return DefaultAdminRole, nil
	}
	d, err := anchor.ParseDigest(string(b))
	if err != nil {
		return Role{}, fmt.Errorf("corrupt admin role of %s: %w", role, err)
	}
	return Role(d), nil
}

// MemberCount returns how many accounts hold role.
func (rl *RoleLedger) MemberCount(role Role) (int, error) {
	key, err := rl.countKey(role)
	if err != nil {
		return 0, fmt.Errorf("failed to create role count key: %w", err)
	}
	n, err := getCounter(rl.state, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read member count of %s: %w", role, err)
	}
	return int(n), nil
}

// RolesOf lists the enumerated roles account holds.
func (rl *RoleLedger) RolesOf(account string) ([]Role, error) {
	held := []Role{}
	for _, r := range Roles {
		has, err := rl.HasRole(r, account)
		if err != nil {
			return nil, err
		}
		if has {
			held = append(held, r)
		}
	}
	return held, nil
}

// Info describes role for queries.
func (rl *RoleLedger) Info(role Role) (*model.RoleInfo, error) {
	admin, err := rl.RoleAdmin(role)
	if err != nil {
		return nil, err
	}
	count, err := rl.MemberCount(role)
	if err != nil {
		return nil, err
	}
	return &model.RoleInfo{
		Name:        role.Name(),
		ID:          role.Hex(),
		AdminRole:   admin.Name(),
		AdminRoleID: admin.Hex(),
		MemberCount: count,
	}, nil
}

// Require fails with ErrUnauthorized unless account holds role.
func (rl *RoleLedger) Require(role Role, account string) error {
	has, err := rl.HasRole(role, account)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: account '%s' is missing role %s", ErrUnauthorized, account, role)
	}
	logger.Debugf("Role check passed for role '%s' for account '%s'.", role, account)
	return nil
}

// GrantRole gives role to account. The caller must hold the admin role of
// role. Granting a role that is already held changes nothing, emits nothing
// and reports false.
func (rl *RoleLedger) GrantRole(caller string, role Role, account string) (bool, error) {
	if err := validateAccount(account, "account"); err != nil {
		return false, err
	}
	admin, err := rl.RoleAdmin(role)
	if err != nil {
		return false, err
	}
	if err := rl.Require(admin, caller); err != nil {
		return false, err
	}
	has, err := rl.HasRole(role, account)
	if err != nil {
		return false, err
	}
	if has {
		logger.Infof("Role '%s' already granted to '%s'. No action needed.", role, account)
		return false, nil
	}
	if err := rl.grant(role, account, caller); err != nil {
		return false, err
	}
	if err := emit(rl.state, model.EventRoleGranted, model.RoleEvent{
		Role: role.Hex(), Name: role.Name(), Account: account, Sender: caller,
	}); err != nil {
		return false, err
	}
	logger.Infof("Role '%s' granted to '%s' by '%s'.", role, account, caller)
	return true, nil
}

// RevokeRole removes role from account under the same gate as GrantRole.
func (rl *RoleLedger) RevokeRole(caller string, role Role, account string) (bool, error) {
	if err := validateAccount(account, "account"); err != nil {
		return false, err
	}
	admin, err := rl.RoleAdmin(role)
	if err != nil {
		return false, err
	}
	if err := rl.Require(admin, caller); err != nil {
		return false, err
	}
	return rl.revoke(caller, role, account)
}

// RenounceRole removes the caller's own membership. No admin check applies.
func (rl *RoleLedger) RenounceRole(caller string, role Role) (bool, error) {
	if err := validateAccount(caller, "caller"); err != nil {
		return false, err
	}
	return rl.revoke(caller, role, caller)
}

// SetRoleAdmin makes newAdmin the admin role of role. Only DEFAULT_ADMIN_ROLE
// holders may do this, and the admin of DEFAULT_ADMIN_ROLE itself is fixed.
// It returns the role as it stands after the change.
func (rl *RoleLedger) SetRoleAdmin(caller string, role, newAdmin Role) (*model.RoleInfo, error) {
	if err := rl.Require(DefaultAdminRole, caller); err != nil {
		return nil, err
	}
	if role == DefaultAdminRole {
		return nil, fmt.Errorf("%w: the admin role of %s cannot be reassigned", ErrInvalidInput, DefaultAdminRole)
	}
	previous, err := rl.RoleAdmin(role)
	if err != nil {
		return nil, err
	}
	count, err := rl.MemberCount(role)
	if err != nil {
		return nil, err
	}
	key, err := rl.adminKey(role)
	if err != nil {
		return nil, fmt.Errorf("failed to create role admin key: %w", err)
	}
	if err := rl.state.PutState(key, []byte(newAdmin.Hex())); err != nil {
		return nil, fmt.Errorf("failed to save admin role of %s: %w", role, err)
	}
	if err := emit(rl.state, model.EventRoleAdminChanged, model.RoleAdminChangedEvent{
		Role: role.Hex(), PreviousAdminRole: previous.Hex(), NewAdminRole: newAdmin.Hex(), Sender: caller,
	}); err != nil {
		return nil, err
	}
	logger.Infof("Admin role of '%s' changed from '%s' to '%s' by '%s'.", role, previous, newAdmin, caller)
	return &model.RoleInfo{
		Name:        role.Name(),
		ID:          role.Hex(),
		AdminRole:   newAdmin.Name(),
		AdminRoleID: newAdmin.Hex(),
		MemberCount: count,
	}, nil
}

// grant writes a membership without any gate or event. Callers check both.
func (rl *RoleLedger) grant(role Role, account, sender string) error {
	now, err := txTimestamp(rl.state)
	if err != nil {
		return err
	}
	key, err := rl.memberKey(role, account)
	if err != nil {
		return fmt.Errorf("failed to create role member key: %w", err)
	}
	count, err := rl.MemberCount(role)
	if err != nil {
		return err
	}
	countKey, err := rl.countKey(role)
	if err != nil {
		return fmt.Errorf("failed to create role count key: %w", err)
	}
	membership := model.RoleMembership{
		ObjectType: roleMemberObjectType,
		Role:       role.Hex(),
		Account:    account,
		GrantedBy:  sender,
		GrantedAt:  now,
		TxID:       rl.state.GetTxID(),
	}
	if err := putJSON(rl.state, key, membership); err != nil {
		return fmt.Errorf("failed to save membership of %s for '%s': %w", role, account, err)
	}
	if err := putCounter(rl.state, countKey, uint64(count)+1); err != nil {
		return fmt.Errorf("failed to save member count of %s: %w", role, err)
	}
	return nil
}

func (rl *RoleLedger) revoke(sender string, role Role, account string) (bool, error) {
	has, err := rl.HasRole(role, account)
	if err != nil {
		return false, err
	}
	if !has {
		logger.Infof("Role '%s' not held by '%s'. No action taken for removal.", role, account)
		return false, nil
	}
	key, err := rl.memberKey(role, account)
	if err != nil {
		return false, fmt.Errorf("failed to create role member key: %w", err)
	}
	count, err := rl.MemberCount(role)
	if err != nil {
		return false, err
	}
	countKey, err := rl.countKey(role)
	if err != nil {
		return false, fmt.Errorf("failed to create role count key: %w", err)
	}
	remaining := 0
	if count > 0 {
		remaining = count - 1
	}
	if err := rl.state.DelState(key); err != nil {
		return false, fmt.Errorf("failed to delete membership of %s for '%s': %w", role, account, err)
	}
	if err := putCounter(rl.state, countKey, uint64(remaining)); err != nil {
		return false, fmt.Errorf("failed to save member count of %s: %w", role, err)
	}
	if err := emit(rl.state, model.EventRoleRevoked, model.RoleEvent{
		Role: role.Hex(), Name: role.Name(), Account: account, Sender: sender,
	}); err != nil {
		return false, err
	}
	if role == DefaultAdminRole && remaining == 0 {
		logger.Warningf("Last holder of %s removed by '%s'. Role administration is permanently locked.", DefaultAdminRole, sender)
	}
	logger.Infof("Role '%s' removed from '%s' by '%s'.", role, account, sender)
	return true, nil
}
