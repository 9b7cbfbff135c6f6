package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"

	"receiptcsv/internal/domain"
)

// MemoryStore keeps sessions JSON-encoded in a freecache ring buffer.
// Entries expire after ttl; the oldest entries are evicted when the cache is full.
type MemoryStore struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates a MemoryStore of sizeBytes capacity. A single session
// may use at most 1/1024 of that capacity.
func NewMemoryStore(sizeBytes int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: freecache.NewCache(sizeBytes),
		ttl:   ttl,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	data, err := s.cache.Get([]byte(id))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := s.cache.Set([]byte(sess.ID), data, int(s.ttl.Seconds())); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) || errors.Is(err, freecache.ErrLargeKey) {
			return domain.ErrSessionTooLarge
		}
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Del([]byte(id))
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int64 {
	return s.cache.EntryCount()
}
