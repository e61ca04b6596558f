package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// REDIS DOCUMENT STORE
// ===============================
//
// Layout for document {collection}/{id}:
//   {collection}:{id}                hash of JSON-encoded scalar fields
//   {collection}:{id}:sets           set of the names of set-valued fields
//   {collection}:{id}:set:{field}    one Redis SET per set-valued field
//   {collection}:ids                 ids of every document in the collection
//
// The id is wrapped in a hash tag so all keys of a document share a slot.

const (
	redisMarkerField = "__doc"
	redisTxAttempts  = 5
)

// incrementScript bumps a hash field only when the document exists.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// appendScript adds a member to a set field only when the document exists.
// SADD gives the set-union semantics.
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[2])
return 1
`)

// RedisConfig holds connection settings for the redis store.
type RedisConfig struct {
	URL            string
	Password       string
	DB             int
	PoolSize       int
	ConnectTimeout time.Duration
}

type redisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redis, retrying with backoff until ConnectTimeout.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (DocumentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var options *redis.Options
	if cfg.URL != "" {
		var err error
		options, err = redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
	} else {
		options = &redis.Options{
			Addr:     "localhost:6379",
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if cfg.PoolSize > 0 {
		options.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(options)
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	err := connectWithRetry(ctx, "redis", timeout, logger, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("Redis document store initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)
	return &redisStore{client: client, logger: logger}, nil
}

func docKey(collection, id string) string {
	return collection + ":{" + id + "}"
}

func setsKey(collection, id string) string {
	return docKey(collection, id) + ":sets"
}

func setKey(collection, id, field string) string {
	return docKey(collection, id) + ":set:" + field
}

func idsKey(collection string) string {
	return collection + ":ids"
}

func (s *redisStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var (
		hashCmd *redis.MapStringStringCmd
		setsCmd *redis.StringSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, docKey(collection, id))
		setsCmd = pipe.SMembers(ctx, setsKey(collection, id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis get document: %w", err)
	}

	hash := hashCmd.Val()
	if len(hash) == 0 {
		return nil, ErrNotFound
	}

	fields := make(map[string]interface{}, len(hash))
	for k, raw := range hash {
		if strings.HasPrefix(k, "__") {
			continue
		}
		v, err := decodeJSONValue(raw)
		if err != nil {
			return nil, fmt.Errorf("redis decode field %q: %w", k, err)
		}
		fields[k] = v
	}

	setNames := setsCmd.Val()
	if len(setNames) > 0 {
		memberCmds := make(map[string]*redis.StringSliceCmd, len(setNames))
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, name := range setNames {
				memberCmds[name] = pipe.SMembers(ctx, setKey(collection, id, name))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("redis get set fields: %w", err)
		}
		for name, cmd := range memberCmds {
			members := cmd.Val()
			sort.Strings(members)
			if members == nil {
				members = []string{}
			}
			fields[name] = members
		}
	}

	return &Document{ID: id, Fields: fields}, nil
}

func (s *redisStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	scalars, sets, err := splitFields(fields)
	if err != nil {
		return err
	}

	if merge {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeFields(ctx, pipe, collection, id, scalars, sets)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis merge document: %w", err)
		}
		return nil
	}

	// Replacing drops set fields the new document does not carry, so the
	// current set names are read under WATCH.
	watched := setsKey(collection, id)
	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			oldSets, err := tx.SMembers(ctx, watched).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, docKey(collection, id), watched)
				for _, name := range oldSets {
					pipe.Del(ctx, setKey(collection, id, name))
				}
				s.writeFields(ctx, pipe, collection, id, scalars, sets)
				return nil
			})
			return err
		}, watched)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis set document: %w", err)
	}
	return nil
}

func (s *redisStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	scalars, sets, err := splitFields(fields)
	if err != nil {
		return err
	}

	key := docKey(collection, id)
	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrAlreadyExists
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.writeFields(ctx, pipe, collection, id, scalars, sets)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, redis.TxFailedErr):
		return ErrAlreadyExists
	default:
		return fmt.Errorf("redis create document: %w", err)
	}
}

func (s *redisStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) error {
	ok, err := incrementScript.Run(ctx, s.client, []string{docKey(collection, id)}, field, delta).Int64()
	if err != nil {
		return fmt.Errorf("redis increment %q: %w", field, err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *redisStore) AppendToSet(ctx context.Context, collection, id, field, value string) error {
	keys := []string{
		docKey(collection, id),
		setsKey(collection, id),
		setKey(collection, id, field),
	}
	ok, err := appendScript.Run(ctx, s.client, keys, field, value).Int64()
	if err != nil {
		return fmt.Errorf("redis append to %q: %w", field, err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *redisStore) ListDocuments(ctx context.Context, collection string) ([]*Document, error) {
	ids, err := s.client.SMembers(ctx, idsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list documents: %w", err)
	}
	sort.Strings(ids)

	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// writeFields queues the writes of one document onto pipe.
func (s *redisStore) writeFields(ctx context.Context, pipe redis.Pipeliner, collection, id string, scalars map[string]string, sets map[string][]string) {
	values := make([]interface{}, 0, 2+2*len(scalars))
	values = append(values, redisMarkerField, "1")
	for k, v := range scalars {
		values = append(values, k, v)
	}
	pipe.HSet(ctx, docKey(collection, id), values...)

	for name, members := range sets {
		pipe.SAdd(ctx, setsKey(collection, id), name)
		pipe.Del(ctx, setKey(collection, id, name))
		if len(members) > 0 {
			args := make([]interface{}, len(members))
			for i, m := range members {
				args[i] = m
			}
			pipe.SAdd(ctx, setKey(collection, id, name), args...)
		}
	}
	pipe.SAdd(ctx, idsKey(collection), id)
}

// splitFields separates set-valued fields from JSON-encoded scalars.
func splitFields(fields map[string]interface{}) (map[string]string, map[string][]string, error) {
	scalars := make(map[string]string, len(fields))
	sets := make(map[string][]string)
	for k, v := range fields {
		if strings.HasPrefix(k, "__") {
			return nil, nil, fmt.Errorf("store: field name %q is reserved", k)
		}
		if members, ok := v.([]string); ok {
			sets[k] = members
			continue
		}
		raw, err := json.Marshal(normalizeValue(v))
		if err != nil {
			return nil, nil, fmt.Errorf("store: encode field %q: %w", k, err)
		}
		scalars[k] = string(raw)
	}
	return scalars, sets, nil
}
