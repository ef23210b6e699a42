package eventlog

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"example.com/clocksim/internal/types"
	"go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// Store mirrors recorded events into bbolt, keyed by sequence number.
// It is read back only by the inspection API, never by the runtime.
type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *Store) Put(rec types.Record) error {
	bs, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		return b.Put(seqKey(rec.Seq), bs)
	})
}

// Range calls fn for every record with sequence >= from, in order.
func (s *Store) Range(from uint64, fn func(seq uint64, raw []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b == nil {
			return errors.New("bucket not found")
		}
		c := b.Cursor()
		for k, v := c.Seek(seqKey(from)); k != nil; k, v = c.Next() {
			if err := fn(binary.BigEndian.Uint64(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// LastSeq returns the highest stored sequence, or 0 when empty.
func (s *Store) LastSeq() (uint64, error) {
	var last uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b == nil {
			return errors.New("bucket not found")
		}
		if k, _ := b.Cursor().Last(); k != nil {
			last = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return last, err
}

// List decodes up to limit records starting at from. limit <= 0 means all.
func (s *Store) List(from uint64, limit int) ([]types.Record, error) {
	out := []types.Record{}
	errStop := errors.New("stop")
	err := s.Range(from, func(_ uint64, raw []byte) error {
		if limit > 0 && len(out) >= limit {
			return errStop
		}
		var rec types.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	return out, err
}
