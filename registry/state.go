package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperledger/fabric/common/flogging"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var logger = flogging.MustGetLogger("horseregistry.registry")

// State is the slice of a chaincode stub the registry reads and writes
// through. shim.ChaincodeStubInterface satisfies it, and so does a local
// ledger transaction.
type State interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
	CreateCompositeKey(objectType string, attributes []string) (string, error)
	SetEvent(name string, payload []byte) error
	GetTxID() string
	GetTxTimestamp() (*timestamppb.Timestamp, error)
}

// Object types for composite keys.
const (
	roleMemberObjectType = "RoleMember"       // Attributes: role id, account. Value: model.RoleMembership
	roleAdminObjectType  = "RoleAdmin"        // Attributes: role id. Value: admin role id (hex)
	roleCountObjectType  = "RoleMemberCount"  // Attributes: role id. Value: decimal count
	pauseObjectType      = "PauseState"       // No attributes. Value: model.PauseState
	tokenObjectType      = "Token"            // Attributes: zero-padded token id. Value: model.Token
	externalIDObjectType = "ExternalID"       // Attributes: external id. Value: model.ExternalIDMapping
	tokenCounterType     = "TokenCounter"     // No attributes. Value: decimal last token id
	ownerBalanceType     = "OwnerBalance"     // Attributes: owner. Value: decimal token count
	settingsObjectType   = "RegistrySettings" // No attributes. Value: model.RegistrySettings
)

// TokenKey returns the world state key of a token, for callers that need
// its key history.
func TokenKey(state State, tokenID uint64) (string, error) {
	return state.CreateCompositeKey(tokenObjectType, []string{tokenIDAttribute(tokenID)})
}

func tokenIDAttribute(tokenID uint64) string {
	return fmt.Sprintf("%020d", tokenID)
}

func txTimestamp(state State) (time.Time, error) {
	ts, err := state.GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime().UTC(), nil
}

// getJSON loads key into v and reports whether it was present.
func getJSON(state State, key string, v any) (bool, error) {
	b, err := state.GetState(key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal state at %q: %w", key, err)
	}
	return true, nil
}

func putJSON(state State, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return state.PutState(key, b)
}

func getCounter(state State, key string) (uint64, error) {
	b, err := state.GetState(key)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter at %q: %w", key, err)
	}
	return n, nil
}

func putCounter(state State, key string, n uint64) error {
	return state.PutState(key, []byte(strconv.FormatUint(n, 10)))
}

// emit publishes the single event of the current transaction. A failure
// fails the transaction.
func emit(state State, name string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	if err := state.SetEvent(name, b); err != nil {
		return fmt.Errorf("failed to emit %s event: %w", name, err)
	}
	logger.Debugf("Event '%s' emitted in tx %s", name, state.GetTxID())
	return nil
}
