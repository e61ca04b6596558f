package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"planethero/internal/config"
	"planethero/internal/database"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// backends returns every store reachable from this environment. Redis and
// postgres are only exercised when TEST_REDIS_URL / TEST_DATABASE_URL are set.
func backends(t *testing.T) map[string]DocumentStore {
	t.Helper()
	ctx := context.Background()
	out := map[string]DocumentStore{
		"memory": NewMemoryStore(zap.NewNop()),
	}

	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		s, err := NewRedisStore(ctx, RedisConfig{URL: url, ConnectTimeout: 5 * time.Second}, zap.NewNop())
		require.NoError(t, err)
		out["redis"] = s
	}

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		cfg := config.DatabaseConfig{
			URL:            url,
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrationsPath: "../../migrations",
			AutoMigrate:    true,
		}
		manager, err := database.Open(ctx, cfg, "test", 5*time.Second, zap.NewNop())
		require.NoError(t, err)
		out["postgres"] = NewPostgresStore(manager, zap.NewNop())
	}

	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

// collectionName isolates each test run in shared backends.
func collectionName(t *testing.T) string {
	return "test_" + uuid.Must(uuid.NewV4()).String()
}

func TestDocumentStore_Conformance(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				_, err := s.GetDocument(ctx, collectionName(t), "nobody")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("create then get", func(t *testing.T) {
				coll := collectionName(t)
				created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{
					"name":        "Ada",
					"totalPoints": 0,
					"badges":      []string{},
					"level":       1,
					"createdAt":   created,
				}))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, "u1", doc.ID)
				assert.Equal(t, "Ada", doc.String("name"))
				assert.Equal(t, int64(0), doc.Int("totalPoints"))
				assert.Equal(t, int64(1), doc.Int("level"))
				assert.Empty(t, doc.Strings("badges"))
				assert.True(t, created.Equal(doc.Time("createdAt")))
			})

			t.Run("create existing", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"totalPoints": 5}))
				err := s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"totalPoints": 0})
				assert.ErrorIs(t, err, ErrAlreadyExists)

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, int64(5), doc.Int("totalPoints"))
			})

			t.Run("merge keeps other fields", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{
					"role":        "student",
					"totalPoints": 40,
					"badges":      []string{"water_saver"},
				}))
				require.NoError(t, s.SetDocument(ctx, coll, "u1", map[string]interface{}{"lastActive": "later"}, true))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, "later", doc.String("lastActive"))
				assert.Equal(t, "student", doc.String("role"))
				assert.Equal(t, int64(40), doc.Int("totalPoints"))
				assert.Equal(t, []string{"water_saver"}, doc.Strings("badges"))
			})

			t.Run("merge creates missing", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.SetDocument(ctx, coll, "u1", map[string]interface{}{"lastActive": "now"}, true))
				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, "now", doc.String("lastActive"))
			})

			t.Run("replace drops fields", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{
					"name":   "Ada",
					"badges": []string{"green_thumb"},
				}))
				require.NoError(t, s.SetDocument(ctx, coll, "u1", map[string]interface{}{"name": "Grace"}, false))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, "Grace", doc.String("name"))
				assert.False(t, doc.Has("badges"))
			})

			t.Run("increment", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"totalPoints": 10}))
				require.NoError(t, s.IncrementField(ctx, coll, "u1", "totalPoints", 15))
				require.NoError(t, s.IncrementField(ctx, coll, "u1", "streak", 2))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, int64(25), doc.Int("totalPoints"))
				assert.Equal(t, int64(2), doc.Int("streak"))
			})

			t.Run("increment missing document", func(t *testing.T) {
				err := s.IncrementField(ctx, collectionName(t), "ghost", "totalPoints", 1)
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("append has set semantics", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"badges": []string{}}))
				require.NoError(t, s.AppendToSet(ctx, coll, "u1", "badges", "waste_warrior"))
				require.NoError(t, s.AppendToSet(ctx, coll, "u1", "badges", "waste_warrior"))
				require.NoError(t, s.AppendToSet(ctx, coll, "u1", "badges", "green_thumb"))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, []string{"green_thumb", "waste_warrior"}, doc.Strings("badges"))
			})

			t.Run("append to absent field", func(t *testing.T) {
				coll := collectionName(t)
				require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"name": "Ada"}))
				require.NoError(t, s.AppendToSet(ctx, coll, "u1", "badges", "water_saver"))

				doc, err := s.GetDocument(ctx, coll, "u1")
				require.NoError(t, err)
				assert.Equal(t, []string{"water_saver"}, doc.Strings("badges"))
			})

			t.Run("append missing document", func(t *testing.T) {
				err := s.AppendToSet(ctx, collectionName(t), "ghost", "badges", "water_saver")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("list sorted by id", func(t *testing.T) {
				coll := collectionName(t)
				for _, id := range []string{"c", "a", "b"} {
					require.NoError(t, s.CreateDocument(ctx, coll, id, map[string]interface{}{"name": id}))
				}
				docs, err := s.ListDocuments(ctx, coll)
				require.NoError(t, err)
				require.Len(t, docs, 3)
				assert.Equal(t, "a", docs[0].ID)
				assert.Equal(t, "b", docs[1].ID)
				assert.Equal(t, "c", docs[2].ID)
			})

			t.Run("ping", func(t *testing.T) {
				assert.NoError(t, s.Ping(ctx))
			})
		})
	}
}

func TestDocumentStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	const writers = 50

	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			coll := collectionName(t)
			require.NoError(t, s.CreateDocument(ctx, coll, "u1", map[string]interface{}{
				"totalPoints": 0,
				"badges":      []string{},
			}))

			var g errgroup.Group
			for i := 0; i < writers; i++ {
				i := i
				g.Go(func() error {
					if err := s.IncrementField(ctx, coll, "u1", "totalPoints", int64(i)); err != nil {
						return err
					}
					return s.AppendToSet(ctx, coll, "u1", "badges", fmt.Sprintf("b%d", i%3))
				})
			}
			require.NoError(t, g.Wait())

			doc, err := s.GetDocument(ctx, coll, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(writers*(writers-1)/2), doc.Int("totalPoints"))
			assert.Equal(t, []string{"b0", "b1", "b2"}, doc.Strings("badges"))
		})
	}
}

func TestDocumentStore_CreateRace(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			coll := collectionName(t)
			results := make([]error, 20)

			var g errgroup.Group
			for i := range results {
				i := i
				g.Go(func() error {
					results[i] = s.CreateDocument(ctx, coll, "u1", map[string]interface{}{"n": i})
					return nil
				})
			}
			require.NoError(t, g.Wait())

			created := 0
			for _, err := range results {
				if err == nil {
					created++
					continue
				}
				assert.ErrorIs(t, err, ErrAlreadyExists)
			}
			assert.Equal(t, 1, created)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.Close())

	_, err := s.GetDocument(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, s.IncrementField(ctx, "users", "u1", "totalPoints", 1), ErrClosed)
}

func TestMemoryStore_TypeMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.CreateDocument(ctx, "users", "u1", map[string]interface{}{
		"name":   "Ada",
		"badges": "not-a-set",
	}))

	assert.Error(t, s.IncrementField(ctx, "users", "u1", "name", 1))
	assert.Error(t, s.AppendToSet(ctx, "users", "u1", "badges", "x"))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.CreateDocument(ctx, "users", "u1", map[string]interface{}{"badges": []string{"a"}}))

	doc, err := s.GetDocument(ctx, "users", "u1")
	require.NoError(t, err)
	doc.Fields["badges"].([]string)[0] = "mutated"
	doc.Fields["name"] = "mutated"

	again, err := s.GetDocument(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Strings("badges"))
	assert.False(t, again.Has("name"))
}

func TestDocumentAccessors(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := &Document{ID: "u1", Fields: map[string]interface{}{
		"i64":   int64(7),
		"f64":   float64(8),
		"frac":  1.5,
		"str":   "9",
		"set":   []interface{}{"b", "a", 3},
		"when":  ts.Format(time.RFC3339Nano),
		"bogus": "not a time",
	}}

	assert.Equal(t, int64(7), doc.Int("i64"))
	assert.Equal(t, int64(8), doc.Int("f64"))
	assert.Equal(t, int64(0), doc.Int("frac"))
	assert.Equal(t, int64(9), doc.Int("str"))
	assert.Equal(t, int64(0), doc.Int("missing"))
	assert.Equal(t, []string{"a", "b"}, doc.Strings("set"))
	assert.True(t, ts.Equal(doc.Time("when")))
	assert.True(t, doc.Time("bogus").IsZero())
	assert.Equal(t, "7", doc.String("i64"))

	var nilDoc *Document
	assert.False(t, nilDoc.Has("x"))
	assert.Zero(t, nilDoc.Int("x"))
}

func TestDecodeDocumentJSON(t *testing.T) {
	fields, err := decodeDocumentJSON([]byte(`{"totalPoints": 60, "ratio": 0.5, "badges": ["waste_warrior"], "mixed": [1, "a"]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(60), fields["totalPoints"])
	assert.Equal(t, 0.5, fields["ratio"])
	assert.Equal(t, []string{"waste_warrior"}, fields["badges"])
	assert.IsType(t, []interface{}{}, fields["mixed"])
}

func TestSplitFields(t *testing.T) {
	scalars, sets, err := splitFields(map[string]interface{}{
		"name":   "Ada",
		"level":  1,
		"badges": []string{"a"},
	})
	require.NoError(t, err)
	assert.Equal(t, `"Ada"`, scalars["name"])
	assert.Equal(t, "1", scalars["level"])
	assert.Equal(t, []string{"a"}, sets["badges"])

	_, _, err = splitFields(map[string]interface{}{"__doc": "x"})
	assert.Error(t, err)
}
