package model

// Event names. Every committed transition emits exactly one of these.
const (
	EventRoleGranted      = "RoleGranted"
	EventRoleRevoked      = "RoleRevoked"
	EventRoleAdminChanged = "RoleAdminChanged"
	EventPaused           = "Paused"
	EventUnpaused         = "Unpaused"
	EventTokenCreated     = "TokenCreated"
	EventMetadataUpdate   = "MetadataUpdate"
	EventTransfer         = "Transfer"
	EventInitialized      = "Initialized"
)

// RoleEvent is the payload of RoleGranted and RoleRevoked.
type RoleEvent struct {
	Role    string `json:"role"`    // 0x-hex role id
	Name    string `json:"name"`    // Role name
	Account string `json:"account"` // Account whose membership changed
	Sender  string `json:"sender"`  // Caller that made the change
}

// RoleAdminChangedEvent is the payload of RoleAdminChanged.
type RoleAdminChangedEvent struct {
	Role              string `json:"role"`
	PreviousAdminRole string `json:"previousAdminRole"`
	NewAdminRole      string `json:"newAdminRole"`
	Sender            string `json:"sender"`
}

// PauseEvent is the payload of Paused and Unpaused.
type PauseEvent struct {
	Account string `json:"account"`
}

// TokenCreatedEvent is the payload of TokenCreated.
type TokenCreatedEvent struct {
	TokenID         uint64 `json:"tokenId"`
	ExternalID      string `json:"externalId"`
	ContentHash     string `json:"contentHash"`
	SecretFieldHash string `json:"secretFieldHash"`
	MetadataURI     string `json:"metadataUri"`
	Owner           string `json:"owner"`
	Registrar       string `json:"registrar"`
}

// MetadataUpdateEvent is the payload of MetadataUpdate.
type MetadataUpdateEvent struct {
	TokenID uint64 `json:"tokenId"`
	OldURI  string `json:"oldUri"`
	NewURI  string `json:"newUri"`
	Sender  string `json:"sender"`
}

// TransferEvent is the payload of Transfer.
type TransferEvent struct {
	TokenID uint64 `json:"tokenId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// InitializedEvent is the payload of Initialized.
type InitializedEvent struct {
	Admin          string         `json:"admin"`
	MetadataPolicy MetadataPolicy `json:"metadataPolicy"`
	SchemaVersion  string         `json:"schemaVersion"`
}
