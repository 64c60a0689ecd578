// Package kv implements a durable key to JSON value store on top of a
// write-ahead log. The full log is replayed at open to rebuild the latest
// value per key; every Set appends a record fsynced to disk.
package kv

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walPrefix           = "log_"
)

// Store is a WAL-backed key-value store with latest-write-wins semantics.
type Store struct {
	mu     sync.RWMutex
	wal    *gowal.Wal
	latest map[string][]byte
}

// Open replays the log under dir and returns a ready store.
func Open(dir string) (*Store, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           walPrefix,
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init kv WAL")
	}

	latest := make(map[string][]byte)
	for msg := range wal.Iterator() {
		value := make([]byte, len(msg.Value))
		copy(value, msg.Value)
		latest[msg.Key] = value
	}

	return &Store{wal: wal, latest: latest}, nil
}

// Get unmarshals the latest value for key into out. The boolean reports
// whether the key exists.
func (s *Store) Get(key string, out any) (bool, error) {
	if s == nil || s.wal == nil {
		return false, errors.New("kv store is not initialized")
	}

	s.mu.RLock()
	payload, ok := s.latest[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, errors.Wrapf(err, "decode value for key %s", key)
	}
	return true, nil
}

// Set marshals value and appends it to the log under key.
func (s *Store) Set(key string, value any) error {
	if s == nil || s.wal == nil {
		return errors.New("kv store is not initialized")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode value for key %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, payload); err != nil {
		return errors.Wrapf(err, "append key %s", key)
	}
	s.latest[key] = payload
	return nil
}

// Has reports whether a value exists for key.
func (s *Store) Has(key string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.latest[key]
	return ok
}

// Keys returns all keys currently holding a value, in no particular order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.latest))
	for k := range s.latest {
		keys = append(keys, k)
	}
	return keys
}

// Close closes the underlying log.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
