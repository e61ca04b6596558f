package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DispatchesToTypeAndPatternHandlers(t *testing.T) {
	bus := NewEventBus(nil, nil)
	ctx := context.Background()
	now := time.Now()

	var got []string
	require.NoError(t, bus.Subscribe(EventGameCompleted, NewEventHandlerFunc("exact", func(ctx context.Context, e Event) error {
		got = append(got, "exact:"+e.GetEventType())
		return nil
	})))
	require.NoError(t, bus.SubscribePattern("game.*", NewEventHandlerFunc("pattern", func(ctx context.Context, e Event) error {
		got = append(got, "pattern:"+e.GetEventType())
		return nil
	})))

	require.NoError(t, bus.Publish(ctx, NewGameCompletedEvent("u1", "waste_sorting", 60, now)))
	require.NoError(t, bus.Publish(ctx, NewBadgeAwardedEvent("u1", "waste_warrior", "waste_sorting", now)))

	assert.Equal(t, []string{"exact:game.completed", "pattern:game.completed"}, got)

	stats := bus.Stats()
	assert.Equal(t, int64(2), stats.EventsPublished)
	assert.Equal(t, int64(2), stats.EventsProcessed)
	assert.Equal(t, 2, stats.HandlersCount)
}

func TestPublish_HandlerErrorsAndPanics(t *testing.T) {
	bus := NewEventBus(nil, nil)
	ctx := context.Background()

	require.NoError(t, bus.Subscribe(EventBadgeAwarded, NewEventHandlerFunc("fails", func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})))
	require.NoError(t, bus.Subscribe(EventBadgeAwarded, NewEventHandlerFunc("panics", func(ctx context.Context, e Event) error {
		panic("bad handler")
	})))

	err := bus.Publish(ctx, NewBadgeAwardedEvent("u1", "green_thumb", "plant_tree", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 out of 2")
	assert.Equal(t, int64(1), bus.Stats().EventsFailed)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil, nil)
	calls := 0
	h := NewEventHandlerFunc("counter", func(ctx context.Context, e Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.Subscribe(EventProfileCreated, h))
	require.NoError(t, bus.Unsubscribe(EventProfileCreated, h))
	assert.Error(t, bus.Unsubscribe(EventProfileCreated, h))

	require.NoError(t, bus.Publish(context.Background(), NewProfileCreatedEvent("u1", "a@b.c", "Ada", "student", time.Now())))
	assert.Zero(t, calls)
}

func TestPublishAsync_ProcessedByWorkers(t *testing.T) {
	bus := NewEventBus(&EventBusConfig{BufferSize: 10, WorkerCount: 2, HandlerTimeout: time.Second}, nil)
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	var wg sync.WaitGroup
	wg.Add(3)
	require.NoError(t, bus.Subscribe(EventUserSignedIn, NewEventHandlerFunc("async", func(ctx context.Context, e Event) error {
		wg.Done()
		return nil
	})))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.PublishAsync(ctx, NewUserSignedInEvent("u1", i == 0, time.Now())))
	}
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))

	assert.Error(t, bus.Health())
	assert.Error(t, bus.PublishAsync(ctx, NewUserSignedOutEvent("u1", time.Now())))
}

func TestPublishAsync_QueueFull(t *testing.T) {
	bus := NewEventBus(&EventBusConfig{BufferSize: 1, WorkerCount: 0}, nil)
	ctx := context.Background()

	require.NoError(t, bus.PublishAsync(ctx, NewUserSignedOutEvent("u1", time.Now())))
	err := bus.PublishAsync(ctx, NewUserSignedOutEvent("u1", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
	assert.Error(t, bus.Health())
}

func TestTypedEventHandler(t *testing.T) {
	var badge string
	h := NewTypedEventHandler("typed", func(ctx context.Context, e *BadgeAwardedEvent) error {
		badge = e.Badge
		return nil
	})

	require.NoError(t, h.Handle(context.Background(), NewBadgeAwardedEvent("u1", "water_saver", "water_saver", time.Now())))
	assert.Equal(t, "water_saver", badge)

	assert.Error(t, h.Handle(context.Background(), NewUserSignedOutEvent("u1", time.Now())))
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("game.completed", "*"))
	assert.True(t, matchesPattern("game.completed", "game.*"))
	assert.False(t, matchesPattern("badge.awarded", "game.*"))
	assert.True(t, matchesPattern("badge.awarded", "badge.awarded"))
}

func TestEventConstructors(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	e := NewGameCompletedEvent("u1", "plant_tree", 120, at)

	assert.Equal(t, EventGameCompleted, e.GetEventType())
	assert.Equal(t, "u1", e.GetSubjectID())
	assert.Equal(t, at, e.GetTimestamp())
	assert.NotEqual(t, e.GetEventID(), NewGameCompletedEvent("u1", "plant_tree", 120, at).GetEventID())
}
