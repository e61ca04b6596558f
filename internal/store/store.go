// Package store defines the document store that holds user profiles and
// provides memory, redis and postgres implementations of it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"planethero/internal/database"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrAlreadyExists is returned by CreateDocument when the id is taken.
	ErrAlreadyExists = errors.New("store: document already exists")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// DocumentStore is a key-value document store keyed by collection and id.
//
// IncrementField and AppendToSet are atomic with respect to concurrent
// callers. AppendToSet has set semantics: appending a value that is already
// present leaves the field unchanged.
type DocumentStore interface {
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error
	CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error
	IncrementField(ctx context.Context, collection, id, field string, delta int64) error
	AppendToSet(ctx context.Context, collection, id, field, value string) error
	ListDocuments(ctx context.Context, collection string) ([]*Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// MetricsReporter is implemented by backends that track query metrics.
type MetricsReporter interface {
	QueryMetrics() *database.MetricsSnapshot
}

// Document is a snapshot of a stored document.
type Document struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Has reports whether the field is present.
func (d *Document) Has(field string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Fields[field]
	return ok
}

// String returns a string field, or "" when absent.
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	switch v := d.Fields[field].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an integer field. Backends hand back int64, float64 or
// json.Number depending on their native encoding; all are accepted.
func (d *Document) Int(field string) int64 {
	if d == nil {
		return 0
	}
	n, _ := toInt64(d.Fields[field])
	return n
}

// Strings returns a set or list field as a sorted slice.
func (d *Document) Strings(field string) []string {
	if d == nil {
		return nil
	}
	var out []string
	switch v := d.Fields[field].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Time returns a timestamp field. Strings are parsed as RFC 3339.
func (d *Document) Time(field string) time.Time {
	if d == nil {
		return time.Time{}
	}
	switch v := d.Fields[field].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// normalizeValue converts field values into the JSON-friendly shapes every
// backend can round-trip: timestamps become RFC 3339 strings in UTC and
// string sets become []string.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case []string:
		return append([]string{}, t...)
	}
	return v
}

// decodeJSONValue decodes a JSON scalar keeping integers exact.
func decodeJSONValue(raw string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return v, nil
}

// connectWithRetry runs connect with exponential backoff until it succeeds,
// maxElapsed passes or ctx is done.
func connectWithRetry(ctx context.Context, name string, maxElapsed time.Duration, logger *zap.Logger, connect func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = maxElapsed

	err := backoff.RetryNotify(
		connect,
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			logger.Warn("Store connection attempt failed",
				zap.String("provider", name),
				zap.Error(err),
				zap.Duration("retry_in", d))
		},
	)
	if err != nil {
		return fmt.Errorf("connect %s store: %w", name, err)
	}
	return nil
}
