package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultBucket holds the session keys in a BoltStore.
const DefaultBucket = "session"

type boltRecord struct {
	Value             string
	ExpiresAtUnixNano int64
}

// BoltStore persists entries in a bbolt file so a session survives process
// restarts. Each call runs in a single bbolt transaction.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

// NewBoltStore opens (or creates) the database at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	store := &BoltStore{db: db, bucket: []byte(DefaultBucket)}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(store.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", DefaultBucket, err)
	}

	return store, nil
}

func encodeRecord(rec boltRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readRecord decodes raw and reports whether it is still live.
func readRecord(raw []byte, now time.Time) (string, bool, error) {
	if raw == nil {
		return "", false, nil
	}

	var rec boltRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return "", false, err
	}

	if rec.ExpiresAtUnixNano != 0 && now.UnixNano() > rec.ExpiresAtUnixNano {
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (s *BoltStore) checkOpen() error {
	if s.db == nil {
		return ErrClosed
	}
	return nil
}

// Get implements Store.Get.
func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := s.GetMany(ctx, key)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// GetMany implements Store.GetMany. Expired records are treated as absent.
func (s *BoltStore) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	now := time.Now()

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		for _, key := range keys {
			value, ok, err := readRecord(b.Get([]byte(key)), now)
			if err != nil {
				return fmt.Errorf("failed to decode key %s: %w", key, err)
			}
			if ok {
				out[key] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// SetMany implements Store.SetMany.
func (s *BoltStore) SetMany(_ context.Context, entries map[string]string, ttl time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}

	encoded := make(map[string][]byte, len(entries))
	for key, value := range entries {
		raw, err := encodeRecord(boltRecord{Value: value, ExpiresAtUnixNano: expires})
		if err != nil {
			return fmt.Errorf("failed to encode key %s: %w", key, err)
		}
		encoded[key] = raw
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", s.bucket)
		}
		for key, raw := range encoded {
			if err := b.Put([]byte(key), raw); err != nil {
				return fmt.Errorf("failed to put key %s: %w", key, err)
			}
		}
		return nil
	})
}

// DeleteMany implements Store.DeleteMany.
func (s *BoltStore) DeleteMany(_ context.Context, keys ...string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", key, err)
			}
		}
		return nil
	})
}

// PurgeExpired removes expired records and returns how many were deleted.
func (s *BoltStore) PurgeExpired(_ context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	removed := 0
	now := time.Now()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}

		var expired [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if _, ok, err := readRecord(v, now); err == nil && !ok {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})

	return removed, err
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil
	}
	return err
}

var _ Store = (*BoltStore)(nil)
