// Package events defines the notifications published when the edited
// workflow changes.
package events

import (
	"time"

	"github.com/dukex/runnr/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every editor event.
const Topic = "runnr.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowChangedEvent EventType = "workflow.changed"
	WorkflowResetEvent   EventType = "workflow.reset"
	StorageClearedEvent  EventType = "workflow.storage.cleared"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SlotKey   string         `json:"slot_key"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, slotKey string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SlotKey:   slotKey,
	}
}

// WorkflowChanged is published after every applied edit, undo and redo.
type WorkflowChanged struct {
	BaseEvent

	Op            string           `json:"op"`
	Sequence      uint64           `json:"sequence"`
	Workflow      *models.Workflow `json:"workflow"`
	HistoryIndex  int              `json:"history_index"`
	HistoryLength int              `json:"history_length"`
}

func (e WorkflowChanged) GetType() EventType {
	return WorkflowChangedEvent
}

// WorkflowReset is published when the editor starts over with an empty workflow.
type WorkflowReset struct {
	BaseEvent

	Sequence uint64           `json:"sequence"`
	Workflow *models.Workflow `json:"workflow"`
}

func (e WorkflowReset) GetType() EventType {
	return WorkflowResetEvent
}

// StorageCleared is published after the persisted slot is deleted.
// Sequence is the editor sequence at the time of the clear; snapshots up
// to it must not be written back.
type StorageCleared struct {
	BaseEvent

	Sequence uint64 `json:"sequence"`
}

func (e StorageCleared) GetType() EventType {
	return StorageClearedEvent
}
