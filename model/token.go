package model

import "time"

// Token is the ledger-native record bound to one external horse record.
type Token struct {
	ObjectType      string    `json:"objectType"`      // "Token"
	TokenID         uint64    `json:"tokenId"`         // Sequential id, starts at 1, never reused
	ExternalID      string    `json:"externalId"`      // Primary key of the off-ledger record
	ContentHash     string    `json:"contentHash"`     // 0x-hex fingerprint of the canonical record
	SecretFieldHash string    `json:"secretFieldHash"` // 0x-hex fingerprint of the sensitive fields
	Schema          string    `json:"schema"`          // Anchor schema version in force at creation
	MetadataURI     string    `json:"metadataUri"`
	Owner           string    `json:"owner"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
	CreatedTxID     string    `json:"createdTxId"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
}

// ExternalIDMapping records which token an external id was bound to.
type ExternalIDMapping struct {
	ObjectType string `json:"objectType"` // "ExternalID"
	ExternalID string `json:"externalId"`
	TokenID    uint64 `json:"tokenId"`
}

// HistoryEntry represents one historical state of a token.
type HistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	Value     string    `json:"value"` // Raw JSON value of the token at that time
}

// TokenDetails is a token together with its key history.
type TokenDetails struct {
	Token   *Token         `json:"token"`
	History []HistoryEntry `json:"history"`
}

// TxRef is the durable reference returned by mutating chaincode calls.
type TxRef struct {
	TxID    string `json:"txId"`
	TokenID uint64 `json:"tokenId,omitempty"`
	Changed bool   `json:"changed"` // False when an idempotent call found nothing to do
}

// VerifyResult reports the outcome of recomputing a fingerprint.
type VerifyResult struct {
	TokenID  uint64 `json:"tokenId"`
	Match    bool   `json:"match"`
	Computed string `json:"computed"` // 0x-hex fingerprint derived from the supplied data
	Stored   string `json:"stored"`   // 0x-hex fingerprint anchored on the ledger
}
