package ledger

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/layer-3/wallet2fa/core"
)

var authBucket = []byte("authentications")

// BoltLedger is a file-backed ledger. Records live in one nested bucket per
// address, keyed by timestamp then id, so a reverse cursor walk yields newest first.
type BoltLedger struct {
	db *bolt.DB
}

// NewBoltLedger opens (or creates) the ledger file at path
func NewBoltLedger(path string) (*BoltLedger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt ledger<%s>", path)
	}
	return &BoltLedger{db: db}, nil
}

func (l *BoltLedger) Close() error {
	return l.db.Close()
}

func (l *BoltLedger) Append(ctx context.Context, record *core.AuthenticationRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encoding authentication record")
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(authBucket)
		if err != nil {
			return errors.Wrap(err, "creating ledger bucket")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(record.Address))
		if err != nil {
			return errors.Wrapf(err, "creating bucket for address<%s>", record.Address)
		}
		return bucket.Put(recordKey(record), value)
	})
}

func (l *BoltLedger) QueryRecent(ctx context.Context, address string, limit int) ([]*core.AuthenticationRecord, error) {
	records := make([]*core.AuthenticationRecord, 0, limit)

	err := l.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(authBucket)
		if root == nil {
			return nil
		}
		bucket := root.Bucket([]byte(address))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(records) < limit; k, v = cursor.Prev() {
			var record core.AuthenticationRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return errors.Wrapf(err, "decoding record<%x>", k)
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (l *BoltLedger) Count(ctx context.Context, address string) (int, error) {
	var n int
	err := l.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(authBucket)
		if root == nil {
			return nil
		}
		if bucket := root.Bucket([]byte(address)); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func recordKey(record *core.AuthenticationRecord) []byte {
	key := make([]byte, 8, 8+len(record.ID))
	binary.BigEndian.PutUint64(key, uint64(record.Timestamp.UnixNano()))
	return append(key, record.ID...)
}
