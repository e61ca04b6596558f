package services

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"planethero/internal/cache"
	"planethero/internal/events"
	"planethero/internal/models"
	"planethero/internal/store"

	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// failingStore fails the named operations and delegates the rest
type failingStore struct {
	store.DocumentStore
	fail    map[string]error
	appends int64
}

func (f *failingStore) GetDocument(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := f.fail["get"]; err != nil {
		return nil, err
	}
	return f.DocumentStore.GetDocument(ctx, collection, id)
}

func (f *failingStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	if err := f.fail["set"]; err != nil {
		return err
	}
	return f.DocumentStore.SetDocument(ctx, collection, id, fields, merge)
}

func (f *failingStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := f.fail["create"]; err != nil {
		return err
	}
	return f.DocumentStore.CreateDocument(ctx, collection, id, fields)
}

func (f *failingStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) error {
	if err := f.fail["increment"]; err != nil {
		return err
	}
	return f.DocumentStore.IncrementField(ctx, collection, id, field, delta)
}

func (f *failingStore) AppendToSet(ctx context.Context, collection, id, field, value string) error {
	atomic.AddInt64(&f.appends, 1)
	if err := f.fail["append"]; err != nil {
		return err
	}
	return f.DocumentStore.AppendToSet(ctx, collection, id, field, value)
}

func (f *failingStore) ListDocuments(ctx context.Context, collection string) ([]*store.Document, error) {
	if err := f.fail["list"]; err != nil {
		return nil, err
	}
	return f.DocumentStore.ListDocuments(ctx, collection)
}

// staleStore hides every badge from reads, as if each read raced a
// concurrent award
type staleStore struct {
	store.DocumentStore
}

func (s *staleStore) GetDocument(ctx context.Context, collection, id string) (*store.Document, error) {
	doc, err := s.DocumentStore.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	delete(doc.Fields, models.FieldBadges)
	return doc, nil
}

type testEnv struct {
	store      *failingStore
	base       store.DocumentStore
	profiles   *ProfileRepository
	binding    *SessionBinding
	completion *CompletionHandler
	bus        events.EventBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := store.NewMemoryStore(nil)
	fs := &failingStore{DocumentStore: base, fail: map[string]error{}}
	c := cache.NewMemoryCache(cache.DefaultConfig(), nil)
	t.Cleanup(func() { _ = c.Close() })

	bus := events.NewEventBus(nil, nil)
	profiles := NewProfileRepository(fs, c, time.Minute, "test:", nil)

	return &testEnv{
		store:      fs,
		base:       base,
		profiles:   profiles,
		binding:    NewSessionBinding(fs, profiles, bus, nil),
		completion: NewCompletionHandler(fs, profiles, bus, NewFactPicker(rand.NewSource(7)), nil),
		bus:        bus,
	}
}

func (e *testEnv) signIn(t *testing.T, subjectID string) *models.Profile {
	t.Helper()
	res, err := e.binding.Bind(context.Background(), &models.Identity{
		SubjectID:   subjectID,
		Email:       subjectID + "@school.org",
		DisplayName: "Student " + subjectID,
	})
	require.NoError(t, err)
	return res.Profile
}

func (e *testEnv) stored(t *testing.T, subjectID string) *models.Profile {
	t.Helper()
	p, err := e.profiles.Load(context.Background(), subjectID)
	require.NoError(t, err)
	return p
}

// countEvents counts published events by type
func countEvents(t *testing.T, bus events.EventBus) func(eventType string) int64 {
	t.Helper()
	counts := map[string]*int64{
		events.EventGameCompleted:  new(int64),
		events.EventBadgeAwarded:   new(int64),
		events.EventProfileCreated: new(int64),
	}
	for eventType, n := range counts {
		n := n
		require.NoError(t, bus.Subscribe(eventType, events.NewEventHandlerFunc("count-"+eventType, func(ctx context.Context, e events.Event) error {
			atomic.AddInt64(n, 1)
			return nil
		})))
	}
	return func(eventType string) int64 {
		return atomic.LoadInt64(counts[eventType])
	}
}
