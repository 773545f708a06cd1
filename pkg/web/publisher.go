package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/eventbus"
	"github.com/dukex/runnr/pkg/events"
)

const DefaultPublishQueueSize = 256

// ChangePublisher forwards editor changes to the event bus, where autosave
// and other consumers pick them up. Changes are queued and published in
// order by a single goroutine, so an edit never waits on the bus.
type ChangePublisher struct {
	publisher eventbus.EventPublisher
	slotKey   string
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan eventbus.Event
	done   chan struct{}
}

func NewChangePublisher(publisher eventbus.EventPublisher, slotKey string, logger *slog.Logger) *ChangePublisher {
	p := &ChangePublisher{
		publisher: publisher,
		slotKey:   slotKey,
		logger:    logger,
		queue:     make(chan eventbus.Event, DefaultPublishQueueSize),
		done:      make(chan struct{}),
	}

	go p.run()

	return p
}

func (p *ChangePublisher) SlotKey() string {
	return p.slotKey
}

// OnChange is an editor.Listener. It only enqueues; when the queue is full
// the oldest queued change is dropped, since consumers only need the
// newest snapshot.
func (p *ChangePublisher) OnChange(change editor.Change) {
	var event eventbus.Event

	if change.Op == editor.OpReset {
		event = &events.WorkflowReset{
			BaseEvent: events.NewBaseEvent(events.WorkflowResetEvent, p.slotKey),
			Sequence:  change.Sequence,
			Workflow:  change.Workflow,
		}
	} else {
		event = &events.WorkflowChanged{
			BaseEvent:     events.NewBaseEvent(events.WorkflowChangedEvent, p.slotKey),
			Op:            string(change.Op),
			Sequence:      change.Sequence,
			Workflow:      change.Workflow,
			HistoryIndex:  change.HistoryIndex,
			HistoryLength: change.HistoryLength,
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for {
		select {
		case p.queue <- event:
			return
		default:
		}

		select {
		case dropped := <-p.queue:
			p.logger.Warn("Publish queue full, dropping change", "event_type", dropped.GetType())
		default:
		}
	}
}

func (p *ChangePublisher) run() {
	defer close(p.done)

	for event := range p.queue {
		if err := p.publisher.Publish(context.Background(), p.slotKey, event); err != nil {
			p.logger.Error("Failed to publish editor change", "event_type", event.GetType(), "error", err)
		}
	}
}

// StorageCleared announces that the persisted slot was removed while the
// editor was at the given sequence.
func (p *ChangePublisher) StorageCleared(ctx context.Context, sequence uint64) error {
	event := &events.StorageCleared{
		BaseEvent: events.NewBaseEvent(events.StorageClearedEvent, p.slotKey),
		Sequence:  sequence,
	}

	return p.publisher.Publish(ctx, p.slotKey, event)
}

// Close stops accepting changes and waits until the queued ones are
// published or ctx is done.
func (p *ChangePublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
