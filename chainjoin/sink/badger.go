package sink

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// Badger persists every binding into a BadgerDB directory, keyed by its
// emission sequence so a scan returns results in discovery order.
type Badger struct {
	db    *badger.DB
	batch *badger.WriteBatch
	seq   uint64
}

// OpenBadger opens (or creates) a result store at path. Existing results
// are kept and new ones are appended after them.
func OpenBadger(path string) (*Badger, error) {
	db, err := openDB(path, false)
	if err != nil {
		return nil, err
	}

	b := &Badger{db: db}
	b.seq, err = lastSequence(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	b.batch = db.NewWriteBatch()
	return b, nil
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ReadOnly = readOnly
	opts.DetectConflicts = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

func lastSequence(db *badger.DB) (uint64, error) {
	var seq uint64
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if it.Valid() {
			seq = binary.BigEndian.Uint64(it.Item().Key())
		}
		return nil
	})
	return seq, err
}

// Emit queues b for writing
func (b *Badger) Emit(binding chainjoin.Binding) error {
	b.seq++
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, b.seq)
	if err := b.batch.Set(key, EncodeBinding(binding)); err != nil {
		return fmt.Errorf("failed to store result %d: %w", b.seq, err)
	}
	return nil
}

// Flush commits queued results
func (b *Badger) Flush() error {
	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("failed to flush results: %w", err)
	}
	b.batch = b.db.NewWriteBatch()
	return nil
}

// Count returns the number of results stored so far, including queued ones
func (b *Badger) Count() uint64 {
	return b.seq
}

// Close flushes and closes the store
func (b *Badger) Close() error {
	if err := b.Flush(); err != nil {
		b.batch.Cancel()
		b.db.Close()
		return err
	}
	b.batch.Cancel()
	return b.db.Close()
}

// ReadBadger returns every binding stored at path in emission order
func ReadBadger(path string) ([]chainjoin.Binding, error) {
	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var out []chainjoin.Binding
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 1000
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				binding, err := DecodeBinding(val)
				if err != nil {
					return fmt.Errorf("result %d: %w", binary.BigEndian.Uint64(item.Key()), err)
				}
				out = append(out, binding)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// EncodeBinding serialises a binding as a uvarint tuple count followed by,
// per tuple, a uvarint width and zig-zag varint values.
func EncodeBinding(b chainjoin.Binding) []byte {
	buf := make([]byte, 0, 16*len(b))
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	for _, t := range b {
		buf = binary.AppendUvarint(buf, uint64(len(t)))
		for _, v := range t {
			buf = binary.AppendVarint(buf, v)
		}
	}
	return buf
}

// DecodeBinding reverses EncodeBinding
func DecodeBinding(data []byte) (chainjoin.Binding, error) {
	pos := 0
	next := func() (uint64, error) {
		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("corrupt binding at byte %d", pos)
		}
		pos += n
		return v, nil
	}

	count, err := next()
	if err != nil {
		return nil, err
	}
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("corrupt binding: %d tuples in %d bytes", count, len(data))
	}

	b := make(chainjoin.Binding, count)
	for i := range b {
		width, err := next()
		if err != nil {
			return nil, err
		}
		if width > uint64(len(data)-pos) {
			return nil, fmt.Errorf("corrupt binding: width %d exceeds remaining %d bytes", width, len(data)-pos)
		}
		t := make(chainjoin.Tuple, width)
		for j := range t {
			v, n := binary.Varint(data[pos:])
			if n <= 0 {
				return nil, fmt.Errorf("corrupt binding at byte %d", pos)
			}
			pos += n
			t[j] = v
		}
		b[i] = t
	}
	if pos != len(data) {
		return nil, fmt.Errorf("corrupt binding: %d trailing bytes", len(data)-pos)
	}
	return b, nil
}
