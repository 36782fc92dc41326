package offline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the queue in an embedded badger database, for devices
// built without cgo. Records live under q/<queue>/<seq>; the last seq of
// each queue under n/<queue>.
type BadgerStore struct {
	db *badger.DB
}

type badgerValue struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// OpenBadgerStore opens the store at dir; an empty dir keeps it in memory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger queue: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func recordPrefix(queueID string) []byte { return []byte("q/" + queueID + "/") }

func recordKey(queueID string, seq int64) []byte {
	key := recordPrefix(queueID)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seq))
	return append(key, buf[:]...)
}

func counterKey(queueID string) []byte { return []byte("n/" + queueID) }

func (s *BadgerStore) Append(ctx context.Context, queueID string, payload []byte, at time.Time) (*PendingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := json.Marshal(badgerValue{Payload: payload, CreatedAt: at.UTC()})
	if err != nil {
		return nil, err
	}

	var seq int64
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(counterKey(queueID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				seq = int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return err
			}
		}
		seq++

		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(seq))
		if err := txn.Set(counterKey(queueID), buf[:]); err != nil {
			return err
		}
		return txn.Set(recordKey(queueID, seq), value)
	})
	if err != nil {
		return nil, fmt.Errorf("append to %s: %w", queueID, err)
	}
	return &PendingRecord{QueueID: queueID, Seq: seq, Payload: append([]byte(nil), payload...), CreatedAt: at.UTC()}, nil
}

func (s *BadgerStore) List(ctx context.Context, queueID string) ([]PendingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []PendingRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(queueID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			seq := int64(binary.BigEndian.Uint64(key[len(prefix):]))

			var v badgerValue
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("pending record %s/%d: %w", queueID, seq, err)
			}
			out = append(out, PendingRecord{QueueID: queueID, Seq: seq, Payload: v.Payload, CreatedAt: v.CreatedAt})
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Count(ctx context.Context, queueID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := recordPrefix(queueID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *BadgerStore) Remove(ctx context.Context, queueID string, upTo int64) error {
	records, err := s.List(ctx, queueID)
	if err != nil {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range records {
		if r.Seq > upTo {
			break
		}
		if err := wb.Delete(recordKey(queueID, r.Seq)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Close() error { return s.db.Close() }
