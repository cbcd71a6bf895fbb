package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/events"
)

// DefaultActivityLimit is how many events the feed keeps per workflow.
const DefaultActivityLimit = 200

type workflowEvent interface {
	eventbus.Event
	Workflow() string
}

// Activity consumes the event bus and keeps the most recent events of each workflow.
type Activity struct {
	logger *slog.Logger
	limit  int

	mu    sync.RWMutex
	feeds map[string][]eventbus.Event
}

func NewActivity(logger *slog.Logger, limit int) *Activity {
	if logger == nil {
		logger = slog.Default()
	}

	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	return &Activity{
		logger: logger.With("module", "activity"),
		limit:  limit,
		feeds:  make(map[string][]eventbus.Event),
	}
}

// Start registers a handler for every canvas event type and begins consuming. Consumption stops
// when ctx is cancelled.
func (a *Activity) Start(ctx context.Context, subscriber eventbus.EventSubscriber) error {
	for _, eventType := range events.Types() {
		if err := subscriber.Handle(eventType, a.Record); err != nil {
			return err
		}
	}

	if err := subscriber.Subscribe(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	a.logger.InfoContext(ctx, "Activity feed subscribed", "topic", events.Topic)

	return nil
}

// Record appends one decoded event to its workflow feed. A deleted workflow loses its feed.
func (a *Activity) Record(ctx context.Context, event any) error {
	e, ok := event.(workflowEvent)
	if !ok {
		a.logger.WarnContext(ctx, "Ignoring event without workflow", "event", event)

		return nil
	}

	id := e.Workflow()

	a.mu.Lock()
	defer a.mu.Unlock()

	if e.GetType() == events.WorkflowDeletedEvent {
		delete(a.feeds, id)

		return nil
	}

	feed := append(a.feeds[id], e)
	if len(feed) > a.limit {
		feed = slices.Clone(feed[len(feed)-a.limit:])
	}

	a.feeds[id] = feed

	return nil
}

// Recent returns the feed of a workflow, oldest first.
func (a *Activity) Recent(workflowID string) []eventbus.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	feed := slices.Clone(a.feeds[workflowID])
	if feed == nil {
		feed = []eventbus.Event{}
	}

	return feed
}
