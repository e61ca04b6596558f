package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"planethero/internal/cache"
	"planethero/internal/config"
	"planethero/internal/events"
	"planethero/internal/games"
	"planethero/internal/store"

	"go.uber.org/zap"
)

// ServiceCollection wires the domain services over shared infrastructure
type ServiceCollection struct {
	// Core Services
	Profiles    *ProfileRepository
	ProfileView *ProfileService
	Binding     *SessionBinding
	Completion  *CompletionHandler
	Analytics   *Analytics
	Games       *games.Runner
	Facts       *FactPicker

	// Infrastructure Components
	Store    store.DocumentStore
	Cache    cache.Cache
	EventBus events.EventBus
	Logger   *zap.Logger
	Config   *config.Config

	subscriptions []subscription
	sweepInterval time.Duration
	startTime     time.Time
	shutdown      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	started       bool
	mu            sync.Mutex
}

type subscription struct {
	eventType string
	handler   events.EventHandler
}

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       string                   `json:"uptime"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of an individual dependency
type ServiceStatus struct {
	Name         string `json:"name"`
	Status       string `json:"status"` // healthy, unhealthy
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// NewServiceCollection creates the service collection
func NewServiceCollection(
	st store.DocumentStore,
	c cache.Cache,
	bus events.EventBus,
	cfg *config.Config,
	logger *zap.Logger,
) (*ServiceCollection, error) {
	if st == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if bus == nil {
		bus = events.NewEventBus(events.DefaultEventBusConfig(), logger)
	}

	ttl := cfg.Cache.DefaultTTL
	prefix := cfg.Cache.KeyPrefix

	sc := &ServiceCollection{
		Store:         st,
		Cache:         c,
		EventBus:      bus,
		Logger:        logger,
		Config:        cfg,
		sweepInterval: time.Minute,
		startTime:     time.Now(),
		shutdown:      make(chan struct{}),
	}

	sc.Profiles = NewProfileRepository(st, c, ttl, prefix, logger.Named("profiles")).WithEvents(bus)
	sc.ProfileView = NewProfileService(sc.Profiles, logger.Named("profiles"))
	sc.Binding = NewSessionBinding(st, sc.Profiles, bus, logger.Named("binding"))
	sc.Facts = NewFactPicker(nil)
	sc.Completion = NewCompletionHandler(st, sc.Profiles, bus, sc.Facts, logger.Named("completion"))
	sc.Analytics = NewAnalytics(sc.Profiles, c, ttl, prefix, logger.Named("analytics"))
	sc.Games = games.NewRunner(cfg.Games.SessionMaxAge, logger.Named("games"))

	if err := sc.subscribeHandlers(); err != nil {
		return nil, fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	logger.Info("Service collection initialized")
	return sc, nil
}

// subscribeHandlers registers the in-process event consumers
func (sc *ServiceCollection) subscribeHandlers() error {
	audit := events.NewEventHandlerFunc("audit-log", func(ctx context.Context, e events.Event) error {
		sc.Logger.Info("Domain event",
			zap.String("event_type", e.GetEventType()),
			zap.String("event_id", e.GetEventID()),
			zap.String("subject_id", e.GetSubjectID()))
		return nil
	})
	if err := sc.EventBus.SubscribePattern("*", audit); err != nil {
		return err
	}

	invalidate := events.NewEventHandlerFunc("analytics-invalidate", func(ctx context.Context, e events.Event) error {
		sc.Analytics.Invalidate(ctx)
		return nil
	})
	for _, eventType := range []string{events.EventGameCompleted, events.EventBadgeAwarded, events.EventProfileCreated} {
		if err := sc.subscribe(eventType, invalidate); err != nil {
			return err
		}
	}

	roleChanged := events.NewTypedEventHandler("analytics-role-changed", func(ctx context.Context, e *events.RoleChangedEvent) error {
		sc.Logger.Info("Profile role changed",
			zap.String("subject_id", e.GetSubjectID()),
			zap.String("role", e.Role))
		sc.Analytics.Invalidate(ctx)
		return nil
	})
	return sc.subscribe(events.EventRoleChanged, roleChanged)
}

func (sc *ServiceCollection) subscribe(eventType string, handler events.EventHandler) error {
	if err := sc.EventBus.Subscribe(eventType, handler); err != nil {
		return err
	}
	sc.subscriptions = append(sc.subscriptions, subscription{eventType: eventType, handler: handler})
	return nil
}

// unsubscribeHandlers removes the consumers registered by subscribeHandlers
func (sc *ServiceCollection) unsubscribeHandlers() error {
	var errs []error
	for _, s := range sc.subscriptions {
		if err := sc.EventBus.Unsubscribe(s.eventType, s.handler); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s from %s: %w", s.handler.GetHandlerID(), s.eventType, err))
		}
	}
	sc.subscriptions = nil
	return errors.Join(errs...)
}

// ===============================
// LIFECYCLE
// ===============================

// Start starts the event workers and the expired game sweeper
func (sc *ServiceCollection) Start(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.started {
		return nil
	}
	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	sc.wg.Add(1)
	go sc.sweepGames()

	sc.started = true
	sc.Logger.Info("Service collection started")
	return nil
}

func (sc *ServiceCollection) sweepGames() {
	defer sc.wg.Done()
	ticker := time.NewTicker(sc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.shutdown:
			return
		case <-ticker.C:
			if n := sc.Games.Sweep(); n > 0 {
				sc.Logger.Debug("Expired game sessions swept", zap.Int("count", n))
			}
		}
	}
}

// Shutdown stops background work. The store and cache are owned by the caller.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	sc.Logger.Info("Shutting down service collection")
	sc.stopOnce.Do(func() { close(sc.shutdown) })

	var errs []error

	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("shutdown timeout exceeded"))
	}

	sc.mu.Lock()
	started := sc.started
	sc.started = false
	if err := sc.unsubscribeHandlers(); err != nil {
		errs = append(errs, err)
	}
	sc.mu.Unlock()
	if started {
		if err := sc.EventBus.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("event bus stop: %w", err))
		}
	}

	if len(errs) > 0 {
		sc.Logger.Error("Errors occurred during shutdown", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}
	sc.Logger.Info("Service collection shutdown completed")
	return nil
}

// ===============================
// HEALTH
// ===============================

// HealthCheck pings the store, the cache and the event bus
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Dependencies: make(map[string]ServiceStatus),
		Uptime:       time.Since(sc.startTime).Round(time.Second).String(),
	}

	checks := map[string]func(context.Context) error{
		"store":  sc.Store.Ping,
		"events": func(context.Context) error { return sc.EventBus.Health() },
	}
	if sc.Cache != nil {
		checks["cache"] = sc.Cache.Health
	}

	for name, check := range checks {
		status := checkDependency(ctx, name, check)
		health.Dependencies[name] = status
		if status.Status != "healthy" {
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", name, status.Error))
		}
	}

	switch {
	case health.Dependencies["store"].Status != "healthy":
		health.Status = "unhealthy"
	case len(health.Issues) > 0:
		health.Status = "degraded"
	}
	return health
}

func checkDependency(ctx context.Context, name string, check func(context.Context) error) ServiceStatus {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := ServiceStatus{Name: name, Status: "healthy"}
	if err := check(checkCtx); err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	status.ResponseTime = time.Since(start).String()
	return status
}
