// Package autosave persists the edited workflow off the mutation path.
//
// Editor events schedule a save; bursts of edits collapse into one write
// of the latest snapshot once the editor has been quiet for the
// configured delay. Save failures are logged and never reach the editor.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/runnr/pkg/eventbus"
	"github.com/dukex/runnr/pkg/events"
	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/persistence"
)

const (
	DefaultDelay = 500 * time.Millisecond

	saveTimeout = 10 * time.Second
)

type Option func(*Saver)

func WithDelay(delay time.Duration) Option {
	return func(s *Saver) {
		if delay > 0 {
			s.delay = delay
		}
	}
}

// Saver writes the newest snapshot it has seen. Snapshots are ordered by
// the editor sequence, so events that arrive out of order never replace a
// newer one.
type Saver struct {
	slot   persistence.Slot
	logger *slog.Logger
	delay  time.Duration

	mu         sync.Mutex
	pending    *models.Workflow
	pendingSeq uint64
	latest     uint64
	timer      *time.Timer

	// writing is held for the whole of a slot write.
	writing sync.Mutex
}

func New(slot persistence.Slot, logger *slog.Logger, opts ...Option) *Saver {
	s := &Saver{
		slot:   slot,
		logger: logger,
		delay:  DefaultDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register subscribes the saver to editor events on the bus. It must be
// called before the bus Subscribe.
func (s *Saver) Register(bus eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowChangedEvent: s.handleChanged,
		events.WorkflowResetEvent:   s.handleReset,
		events.StorageClearedEvent:  s.handleCleared,
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	return nil
}

func (s *Saver) handleChanged(ctx context.Context, event interface{}) error {
	changed, ok := event.(*events.WorkflowChanged)
	if !ok || changed.Workflow == nil {
		return nil
	}

	if !s.Schedule(changed.Sequence, changed.Workflow) {
		s.logger.DebugContext(ctx, "Ignoring stale change", "sequence", changed.Sequence, "op", changed.Op)
	}

	return nil
}

func (s *Saver) handleReset(_ context.Context, event interface{}) error {
	reset, ok := event.(*events.WorkflowReset)
	if !ok || reset.Workflow == nil {
		return nil
	}

	s.Schedule(reset.Sequence, reset.Workflow)

	return nil
}

func (s *Saver) handleCleared(_ context.Context, event interface{}) error {
	cleared, ok := event.(*events.StorageCleared)
	if !ok {
		return nil
	}

	s.Cancel(cleared.Sequence)

	return nil
}

// Schedule makes the snapshot pending and restarts the quiet period. It
// returns false, and changes nothing, when a snapshot with the same or a
// higher sequence was already scheduled or cancelled.
func (s *Saver) Schedule(sequence uint64, workflow *models.Workflow) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sequence <= s.latest {
		return false
	}

	s.latest = sequence
	s.pending = workflow
	s.pendingSeq = sequence

	if s.timer != nil {
		s.timer.Stop()
	}

	s.timer = time.AfterFunc(s.delay, s.save)

	return true
}

// Cancel drops the pending snapshot if its sequence is at most through and
// ignores later deliveries of such snapshots. It returns once any write
// already in progress has finished, so the slot can be cleared safely.
func (s *Saver) Cancel(through uint64) {
	s.mu.Lock()

	if s.pending != nil && s.pendingSeq <= through {
		s.stop()
		s.pending = nil
	}

	s.latest = max(s.latest, through)
	s.mu.Unlock()

	s.writing.Lock()
	defer s.writing.Unlock()
}

// Flush saves the pending snapshot immediately, if there is one.
func (s *Saver) Flush(ctx context.Context) error {
	s.writing.Lock()
	defer s.writing.Unlock()

	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()

		return nil
	}

	s.stop()
	workflow := s.pending
	s.pending = nil
	s.mu.Unlock()

	return s.slot.Save(ctx, workflow)
}

func (s *Saver) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.Flush(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to autosave workflow", "error", err)

		return
	}

	s.logger.DebugContext(ctx, "Workflow autosaved")
}

func (s *Saver) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
