package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ErrReadOnly is returned by the write methods of a query view.
var ErrReadOnly = errors.New("ledger: read-only view")

// Tx is the state handle of one transition function. Reads observe the
// state committed before the transaction started, writes are buffered and
// become visible together at commit, the same model a Fabric endorsement
// follows. At most one event is kept; a later SetEvent replaces it.
type Tx struct {
	store     Store
	id        string
	creator   string
	timestamp time.Time
	readOnly  bool
	writes    map[string][]byte
	event     *Event
}

func newTx(store Store, id, creator string, ts time.Time, readOnly bool) *Tx {
	return &Tx{
		store:     store,
		id:        id,
		creator:   creator,
		timestamp: ts,
		readOnly:  readOnly,
		writes:    make(map[string][]byte),
	}
}

func stateKey(key string) []byte {
	return append(STState.Bytes(), key...)
}

// GetState returns the committed value of key, or nil when it is absent.
func (t *Tx) GetState(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key must not be an empty string")
	}
	v, err := t.store.Get(stateKey(key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state for %q: %w", key, err)
	}
	return v, nil
}

// PutState buffers a write of key.
func (t *Tx) PutState(key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if key == "" {
		return errors.New("key must not be an empty string")
	}
	if value == nil {
		value = []byte{}
	}
	t.writes[key] = bytes.Clone(value)
	return nil
}

// DelState buffers a deletion of key.
func (t *Tx) DelState(key string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if key == "" {
		return errors.New("key must not be an empty string")
	}
	t.writes[key] = nil
	return nil
}

// CreateCompositeKey builds keys the same way the chaincode shim does.
func (t *Tx) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	return shim.CreateCompositeKey(objectType, attributes)
}

// SetEvent records the event of the transaction. The payload must be JSON.
func (t *Tx) SetEvent(name string, payload []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if name == "" {
		return errors.New("event name can not be empty string")
	}
	if !json.Valid(payload) {
		return fmt.Errorf("payload of event %s is not valid JSON", name)
	}
	t.event = &Event{Name: name, Payload: json.RawMessage(bytes.Clone(payload))}
	return nil
}

// GetTxID returns the transaction id, empty for a query view.
func (t *Tx) GetTxID() string {
	return t.id
}

// GetTxTimestamp returns the time the transaction was started.
func (t *Tx) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(t.timestamp), nil
}

// Creator returns the account that submitted the transaction.
func (t *Tx) Creator() string {
	return t.creator
}

func (t *Tx) changeSet() map[string][]byte {
	changes := make(map[string][]byte, len(t.writes)+3)
	for k, v := range t.writes {
		changes[string(stateKey(k))] = v
	}
	return changes
}
