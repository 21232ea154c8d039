// Package trackercache persists tracker responses in a bbolt file so repeated
// runs against the same project skip the network.
package trackercache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "tracker"

// DefaultTTL is how long cached responses stay valid.
const DefaultTTL = 24 * time.Hour

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("tracker cache is closed")

// envelope is the stored JSON document before compression.
type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Store is a TTL-bounded key-value cache of JSON payloads.
type Store struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens or creates the cache file at path.
func Open(path string, ttl time.Duration, opts ...StoreOption) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open tracker cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))

		return err
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("create bucket: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Store{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close closes the cache file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the fresh entry at key into out. It reports false for a
// missing or expired entry.
func (s *Store) Get(key string, out any) (bool, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}

		if data := bucket.Get([]byte(key)); data != nil {
			raw = bytes.Clone(data)
		}

		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return false, ErrClosed
	}

	if err != nil || raw == nil {
		return false, err
	}

	plain, err := decompress(raw)
	if err != nil {
		return false, fmt.Errorf("decompress %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	if s.now().Sub(env.StoredAt) > s.ttl {
		return false, nil
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, fmt.Errorf("decode %s payload: %w", key, err)
	}

	return true, nil
}

// Put stores v at key.
func (s *Store) Put(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", key, err)
	}

	plain, err := json.Marshal(envelope{StoredAt: s.now(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	compressed, err := compress(plain)
	if err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), compressed)
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}

	return err
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
