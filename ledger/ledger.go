package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("horseregistry.ledger")

// ErrReceiptNotFound is returned for an unknown transaction id.
var ErrReceiptNotFound = errors.New("receipt not found")

// ErrLedgerClosed is returned by every operation on a closed Ledger.
var ErrLedgerClosed = errors.New("ledger is closed")

// Event is the single event a committed transaction emitted.
type Event struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Receipt is the durable record of one committed transaction.
type Receipt struct {
	TxID      string    `json:"txId"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Creator   string    `json:"creator"`
	Writes    int       `json:"writes"`
	Event     *Event    `json:"event,omitempty"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the clock transactions are stamped with.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithErrorClassifier sets the function that labels rejected transactions
// in the rejected_transactions_total metric.
func WithErrorClassifier(classify func(error) string) Option {
	return func(l *Ledger) { l.classify = classify }
}

// Ledger is a local, totally ordered commit log over a Store. Transition
// functions run one at a time; each one either commits all of its writes,
// its receipt and the new height in a single store batch, or nothing.
type Ledger struct {
	store    Store
	slot     chan struct{}
	mu       sync.RWMutex // commit vs. Query
	height   uint64
	closed   bool
	now      func() time.Time
	classify func(error) string
}

// Open loads the ledger height from store.
func Open(store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		slot:     make(chan struct{}, 1),
		now:      time.Now,
		classify: func(error) string { return "error" },
	}
	for _, o := range opts {
		o(l)
	}
	h, err := store.Get(SYSHeight.Bytes())
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger height: %w", err)
	case len(h) != 8:
		return nil, fmt.Errorf("corrupt ledger height record of %d bytes", len(h))
	default:
		l.height = binary.BigEndian.Uint64(h)
	}
	updateHeightMetric(l.height)
	logger.Infof("Ledger opened at height %d", l.height)
	return l, nil
}

// Height returns the sequence number of the last commit.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// Submit runs fn as the next transaction. It waits for the transactions
// ahead of it, or until ctx is done. An error from fn commits nothing and is
// returned as is.
func (l *Ledger) Submit(ctx context.Context, creator string, fn func(tx *Tx) error) (*Receipt, error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.slot }()
	if l.closed {
		return nil, ErrLedgerClosed
	}

	// height only changes while the slot is held
	seq := l.height + 1
	tx := newTx(l.store, newTxID(creator, seq), creator, l.now().UTC(), false)
	if err := fn(tx); err != nil {
		reason := l.classify(err)
		rejectedTransactions.WithLabelValues(reason).Inc()
		logger.Debugf("Transaction %s from '%s' rejected (%s): %v", tx.id, creator, reason, err)
		return nil, err
	}

	receipt := &Receipt{
		TxID:      tx.id,
		Seq:       seq,
		Timestamp: tx.timestamp,
		Creator:   creator,
		Writes:    len(tx.writes),
		Event:     tx.event,
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt of %s: %w", tx.id, err)
	}
	seqBytes := encodeSeq(seq)
	changes := tx.changeSet()
	changes[string(receiptKey(seq))] = data
	changes[string(txIDKey(tx.id))] = seqBytes
	changes[string(SYSHeight.Bytes())] = seqBytes

	l.mu.Lock()
	err = l.store.PutChangeSet(changes)
	if err == nil {
		l.height = seq
	}
	l.mu.Unlock()
	if err != nil {
		rejectedTransactions.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("failed to commit transaction %s: %w", tx.id, err)
	}

	committedTransactions.Inc()
	updateHeightMetric(seq)
	eventName := ""
	if receipt.Event != nil {
		eventName = receipt.Event.Name
	}
	logger.Infof("Committed tx %s (seq %d, %d writes, event '%s') from '%s'", tx.id, seq, receipt.Writes, eventName, creator)
	return receipt, nil
}

// Query runs fn against the committed state. Queries run concurrently with
// each other and never observe a half-applied commit.
func (l *Ledger) Query(fn func(tx *Tx) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLedgerClosed
	}
	return fn(newTx(l.store, "", "", l.now().UTC(), true))
}

// Receipt returns the receipt of a committed transaction.
func (l *Ledger) Receipt(txID string) (*Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}
	seqBytes, err := l.store.Get(txIDKey(txID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, txID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction %s: %w", txID, err)
	}
	if len(seqBytes) != 8 {
		return nil, fmt.Errorf("corrupt index entry for transaction %s", txID)
	}
	data, err := l.store.Get(receiptKey(binary.BigEndian.Uint64(seqBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt of %s: %w", txID, err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt of %s: %w", txID, err)
	}
	return &r, nil
}

// Receipts lists committed receipts in commit order, or newest first when
// newestFirst is set. A limit of zero or less lists all of them.
func (l *Ledger) Receipts(limit int, newestFirst bool) ([]Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}
	receipts := []Receipt{}
	var decodeErr error
	l.store.Seek(SeekRange{Prefix: IXReceipt.Bytes(), Backwards: newestFirst}, func(k, v []byte) bool {
		var r Receipt
		if err := json.Unmarshal(v, &r); err != nil {
			decodeErr = fmt.Errorf("failed to unmarshal receipt at %x: %w", k, err)
			return false
		}
		receipts = append(receipts, r)
		return limit <= 0 || len(receipts) < limit
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return receipts, nil
}

// Close closes the underlying store. It waits for a running Submit. Closing
// twice is a no-op.
func (l *Ledger) Close() error {
	l.slot <- struct{}{}
	defer func() { <-l.slot }()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.store.Close()
}

func encodeSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func receiptKey(seq uint64) []byte {
	return append(IXReceipt.Bytes(), encodeSeq(seq)...)
}

func txIDKey(txID string) []byte {
	return append(IXTxID.Bytes(), txID...)
}

// newTxID derives a Fabric-style transaction id: the hex sha256 of a random
// nonce and the creator.
func newTxID(creator string, seq uint64) string {
	nonce := uuid.New()
	h := sha256.New()
	h.Write(nonce[:])
	h.Write([]byte(creator))
	h.Write(encodeSeq(seq))
	return hex.EncodeToString(h.Sum(nil))
}
