// Package ledger hosts every contract's state in one transactional key-value store.
// A public operation runs inside Update: all nested contract calls share the same
// transaction and either commit together or are discarded together.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/elys-network/yieldvault/internal/logger"
)

var (
	ErrNotFound      = errors.New("ledger: key not found")
	ErrNoTransaction = errors.New("ledger: no transaction in context")
	ErrReadOnly      = errors.New("ledger: transaction is read-only")
	ErrClosed        = errors.New("ledger: database closed")
)

var sequenceKey = []byte("ledger/sequence")

var ledgerLogger = logger.GetForComponent("ledger")

type txnKey struct{}

// DB is the host ledger database.
type DB struct {
	mu     sync.Mutex
	db     *leveldb.DB
	closed bool
}

// Open opens (or creates) a persistent ledger at path.
func Open(path string) (*DB, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger path required")
	}
	db, err := leveldb.OpenFile(trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", trimmed, err)
	}
	ledgerLogger.Info().Str("path", trimmed).Msg("Ledger opened")
	return &DB{db: db}, nil
}

// OpenMemory opens a ledger backed by in-memory storage.
func OpenMemory() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory ledger: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Sequence returns the sequence number of the last closed ledger.
func (d *DB) Sequence() (uint32, error) {
	v, err := d.db.Get(sequenceKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger sequence: %w", err)
	}
	return decodeSequence(v)
}

// Update runs fn in a read-write transaction that closes one ledger on success.
// If ctx already carries a writable transaction, fn joins it instead.
func (d *DB) Update(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if t, ok := ctx.Value(txnKey{}).(*Txn); ok {
		if t.readOnly {
			return ErrReadOnly
		}
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	seq, err := d.Sequence()
	if err != nil {
		return err
	}
	tr, err := d.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("open ledger transaction: %w", err)
	}
	t := &Txn{tr: tr, seq: seq + 1}

	defer func() {
		if p := recover(); p != nil {
			tr.Discard()
			panic(p) // Re-panic after discard
		} else if err != nil {
			tr.Discard()
		}
	}()

	if err = fn(context.WithValue(ctx, txnKey{}, t)); err != nil {
		return err
	}
	if err = tr.Put(sequenceKey, encodeSequence(t.seq), nil); err != nil {
		return fmt.Errorf("write ledger sequence: %w", err)
	}
	if err = tr.Commit(); err != nil {
		return fmt.Errorf("commit ledger %d: %w", t.seq, err)
	}

	ledgerLogger.Debug().Uint32("sequence", t.seq).Msg("Ledger closed")
	for _, hook := range t.onCommit {
		hook()
	}
	return nil
}

// View runs fn against a snapshot of the last closed ledger. Writes fail with ErrReadOnly.
func (d *DB) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txnKey{}).(*Txn); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := d.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}
	defer snap.Release()

	seq := uint32(0)
	if v, err := snap.Get(sequenceKey, nil); err == nil {
		if seq, err = decodeSequence(v); err != nil {
			return err
		}
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("read ledger sequence: %w", err)
	}
	return fn(context.WithValue(ctx, txnKey{}, &Txn{snap: snap, seq: seq, readOnly: true}))
}

// Ping verifies the store answers reads.
func (d *DB) Ping() error {
	_, err := d.Sequence()
	return err
}

// Txn is the transaction carried by a context inside Update or View.
type Txn struct {
	tr       *leveldb.Transaction
	snap     *leveldb.Snapshot
	seq      uint32
	readOnly bool
	onCommit []func()
}

// FromContext returns the transaction carried by ctx.
func FromContext(ctx context.Context) (*Txn, error) {
	t, ok := ctx.Value(txnKey{}).(*Txn)
	if !ok || t == nil {
		return nil, ErrNoTransaction
	}
	return t, nil
}

// Sequence is the ledger sequence this transaction runs at.
func (t *Txn) Sequence() uint32 { return t.seq }

// WriteSequence is the ledger a write made now would land in: the ledger being
// built inside Update, the next one inside View.
func (t *Txn) WriteSequence() uint32 {
	if t.readOnly {
		return t.seq + 1
	}
	return t.seq
}

// ReadOnly reports whether writes are rejected.
func (t *Txn) ReadOnly() bool { return t.readOnly }

// Get returns the value stored at key or ErrNotFound.
func (t *Txn) Get(key []byte) ([]byte, error) {
	var (
		v   []byte
		err error
	)
	if t.tr != nil {
		v, err = t.tr.Get(key, nil)
	} else {
		v, err = t.snap.Get(key, nil)
	}
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger get %q: %w", key, err)
	}
	return v, nil
}

// Has reports whether key exists.
func (t *Txn) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Put stores value at key.
func (t *Txn) Put(key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if err := t.tr.Put(key, value, nil); err != nil {
		return fmt.Errorf("ledger put %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (t *Txn) Delete(key []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if err := t.tr.Delete(key, nil); err != nil {
		return fmt.Errorf("ledger delete %q: %w", key, err)
	}
	return nil
}

// OnCommit registers fn to run after the transaction commits. Discarded
// transactions never run their hooks. Read-only transactions drop them.
func (t *Txn) OnCommit(fn func()) {
	if t.readOnly {
		return
	}
	t.onCommit = append(t.onCommit, fn)
}

// GetJSON decodes the JSON value at key into v. found is false when the key is absent.
func GetJSON(ctx context.Context, key []byte, v any) (found bool, err error) {
	t, err := FromContext(ctx)
	if err != nil {
		return false, err
	}
	raw, err := t.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode ledger value %q: %w", key, err)
	}
	return true, nil
}

// PutJSON stores v at key as JSON.
func PutJSON(ctx context.Context, key []byte, v any) error {
	t, err := FromContext(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ledger value %q: %w", key, err)
	}
	return t.Put(key, raw)
}

// Key joins parts with '/' to build a storage key.
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

func encodeSequence(seq uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, seq)
	return buf
}

func decodeSequence(v []byte) (uint32, error) {
	if len(v) != 4 {
		return 0, fmt.Errorf("ledger sequence has %d bytes", len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}
