package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// memoryStore implements DocumentStore with mutex-guarded maps.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	logger      *zap.Logger
	closed      bool
}

// NewMemoryStore creates an in-process document store.
func NewMemoryStore(logger *zap.Logger) DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		logger:      logger,
	}
}

func (s *memoryStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (s *memoryStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	docs := s.collection(collection)
	existing, ok := docs[id]
	if !ok || !merge {
		docs[id] = normalizeFields(fields)
		return nil
	}
	for k, v := range fields {
		existing[k] = normalizeValue(v)
	}
	return nil
}

func (s *memoryStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	docs := s.collection(collection)
	if _, ok := docs[id]; ok {
		return ErrAlreadyExists
	}
	docs[id] = normalizeFields(fields)
	return nil
}

func (s *memoryStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	current := int64(0)
	if v, exists := doc[field]; exists {
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("store: field %q is not numeric", field)
		}
		current = n
	}
	doc[field] = current + delta
	return nil
}

func (s *memoryStore) AppendToSet(ctx context.Context, collection, id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	var members []string
	switch v := doc[field].(type) {
	case nil:
	case []string:
		members = v
	default:
		return fmt.Errorf("store: field %q is not a set", field)
	}
	if slices.Contains(members, value) {
		return nil
	}
	doc[field] = append(slices.Clone(members), value)
	return nil
}

func (s *memoryStore) ListDocuments(ctx context.Context, collection string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	docs := s.collections[collection]
	out := make([]*Document, 0, len(docs))
	for id, fields := range docs {
		out = append(out, &Document{ID: id, Fields: copyFields(fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// collection returns the document map for name, creating it. Caller holds mu.
func (s *memoryStore) collection(name string) map[string]map[string]interface{} {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]map[string]interface{})
		s.collections[name] = docs
	}
	return docs
}

func normalizeFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if set, ok := v.([]string); ok {
			out[k] = slices.Clone(set)
			continue
		}
		out[k] = v
	}
	return out
}
