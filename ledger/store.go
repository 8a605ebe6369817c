package ledger

import (
	"errors"
	"fmt"
)

// KeyPrefix is a constant byte added as a prefix for each key stored.
type KeyPrefix uint8

// KeyPrefix constants.
const (
	// STState holds world state entries written by transactions.
	STState KeyPrefix = 0x70
	// IXReceipt maps a big-endian sequence number to its receipt.
	IXReceipt KeyPrefix = 0x72
	// IXTxID maps a transaction id to its sequence number.
	IXTxID KeyPrefix = 0x74
	// SYSHeight holds the sequence number of the last commit.
	SYSHeight KeyPrefix = 0xc0
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

// SeekRange represents options for Store.Seek operation.
type SeekRange struct {
	// Prefix denotes the Seek's lookup key. Empty Prefix means seeking
	// through all keys in the DB.
	Prefix []byte
	// Backwards denotes whether Seek should return keys in descending order.
	Backwards bool
}

// Store is the KV backend of a Ledger.
type Store interface {
	Get([]byte) ([]byte, error)
	// PutChangeSet applies every entry atomically; a nil value deletes the key.
	PutChangeSet(puts map[string][]byte) error
	// Seek calls f for every key with the range prefix, sorted by key, until
	// f returns false. Key and value slices are only valid during the call.
	Seek(rng SeekRange, f func(k, v []byte) bool)
	Close() error
}

// DBConfiguration describes configuration for the store. Supported types:
// leveldb, boltdb and inmemory (nothing survives a restart).
type DBConfiguration struct {
	Type           string         `yaml:"Type"`
	LevelDBOptions LevelDBOptions `yaml:"LevelDBOptions"`
	BoltDBOptions  BoltDBOptions  `yaml:"BoltDBOptions"`
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case "leveldb":
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case "inmemory", "":
		store = NewMemoryStore()
	case "boltdb":
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
