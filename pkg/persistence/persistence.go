// Package persistence stores the edited workflow in a single named slot.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/runnr/pkg/models"
)

// DefaultSlotKey names the slot used when none is configured.
const DefaultSlotKey = "runnr-workflow"

// recordVersion is bumped when the stored envelope changes shape.
const recordVersion = 1

// Slot holds the last saved workflow. Load returns ErrSlotEmpty when
// nothing has been saved or the slot was cleared.
type Slot interface {
	Load(ctx context.Context) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Record is the stored envelope around a workflow.
type Record struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Workflow *models.Workflow `json:"workflow"`
}

// Encode wraps the workflow in a Record and marshals it.
func Encode(workflow *models.Workflow) ([]byte, error) {
	if workflow == nil {
		return nil, ErrNilWorkflow
	}

	data, err := json.Marshal(Record{
		Version:  recordVersion,
		SavedAt:  time.Now().UTC(),
		Workflow: workflow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	return data, nil
}

// Decode reads a stored Record. A record without a workflow is treated as empty.
func Decode(data []byte) (*models.Workflow, error) {
	var record Record

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}

	if record.Version > recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, record.Version)
	}

	if record.Workflow == nil {
		return nil, ErrSlotEmpty
	}

	return record.Workflow, nil
}
