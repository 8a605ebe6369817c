package model

import "time"

// RoleInfo describes one enumerated role.
type RoleInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`          // 0x-hex role id
	AdminRole   string `json:"adminRole"`   // Name of the role that administers this one
	AdminRoleID string `json:"adminRoleId"` // 0x-hex id of the admin role
	MemberCount int    `json:"memberCount"`
}

// RoleMembership is stored for every (role, account) pair that is granted.
type RoleMembership struct {
	ObjectType string    `json:"objectType"` // "RoleMember"
	Role       string    `json:"role"`       // 0x-hex role id
	Account    string    `json:"account"`
	GrantedBy  string    `json:"grantedBy"`
	GrantedAt  time.Time `json:"grantedAt"`
	TxID       string    `json:"txId"`
}

// AccountRoles lists the roles an account currently holds.
type AccountRoles struct {
	Account string   `json:"account"`
	Roles   []string `json:"roles"`
}

// PauseState is the persisted state of the circuit breaker.
type PauseState struct {
	ObjectType string    `json:"objectType"` // "PauseState"
	Paused     bool      `json:"paused"`
	UpdatedBy  string    `json:"updatedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MetadataPolicy selects who may update a token's metadata URI.
type MetadataPolicy string

const (
	PolicyRegistrar        MetadataPolicy = "registrar"          // Only REGISTRAR_ROLE holders
	PolicyOwner            MetadataPolicy = "owner"              // Only the token owner
	PolicyRegistrarOrOwner MetadataPolicy = "registrar-or-owner" // Either of the above
)

// Valid reports whether p is one of the known policies.
func (p MetadataPolicy) Valid() bool {
	switch p {
	case PolicyRegistrar, PolicyOwner, PolicyRegistrarOrOwner:
		return true
	}
	return false
}

// RegistrySettings is written once by Initialize.
type RegistrySettings struct {
	ObjectType      string         `json:"objectType"` // "RegistrySettings"
	Admin           string         `json:"admin"`      // Initial DEFAULT_ADMIN_ROLE holder
	MetadataPolicy  MetadataPolicy `json:"metadataPolicy"`
	SchemaVersion   string         `json:"schemaVersion"`
	InitializedAt   time.Time      `json:"initializedAt"`
	InitializedTxID string         `json:"initializedTxId"`
}

// CallerIdentity is what the registry knows about the invoking client.
type CallerIdentity struct {
	ID    string   `json:"id"`
	MSPID string   `json:"mspId,omitempty"`
	Roles []string `json:"roles"`
}
