// Package models defines the workflow entity graph edited by runnr: a
// workflow with its triggers, jobs and steps.
//
// The types are plain values. Cross references (needs, step uniqueness,
// uses/run exclusivity) are representable in any state and are checked by
// the validation package, never here.
package models

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultWorkflowName = "Untitled Workflow"
	DefaultRunner       = "ubuntu-latest"
	DefaultBranch       = "main"
)

// Workflow is the root pipeline definition.
//
// Empty strings mean absent. For collections nil means absent and an empty
// non-nil value means explicitly empty; both are pruned when serialized.
type Workflow struct {
	Name        string      `json:"name,omitempty"`
	On          *OrderedMap `json:"on,omitempty"`
	Permissions any         `json:"permissions,omitempty"`
	Env         *OrderedMap `json:"env,omitempty"`
	Jobs        Jobs        `json:"jobs"`
	Concurrency any         `json:"concurrency,omitempty"`

	// Extensions carries top-level keys the model does not interpret
	// (run-name, defaults, ...) in the order they were authored.
	Extensions *OrderedMap `json:"extensions,omitempty"`
}

// NewEmptyWorkflow returns the workflow a fresh session starts with.
func NewEmptyWorkflow() *Workflow {
	return &Workflow{
		Name: DefaultWorkflowName,
		On: OrderedMapOf("push", OrderedMapOf(
			"branches", []any{DefaultBranch},
		)),
		Jobs: Jobs{},
	}
}

// Job returns the first job with the given id, or nil.
func (w *Workflow) Job(id string) *Job {
	if i := w.JobIndex(id); i >= 0 {
		return w.Jobs[i]
	}

	return nil
}

// JobIndex returns the position of the first job with the given id, or -1.
func (w *Workflow) JobIndex(id string) int {
	if w == nil {
		return -1
	}

	for i, job := range w.Jobs {
		if job != nil && job.ID == id {
			return i
		}
	}

	return -1
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := &Workflow{
		Name:        w.Name,
		On:          w.On.Clone(),
		Permissions: CloneValue(w.Permissions),
		Env:         w.Env.Clone(),
		Concurrency: CloneValue(w.Concurrency),
		Extensions:  w.Extensions.Clone(),
	}

	if w.Jobs != nil {
		c.Jobs = make(Jobs, len(w.Jobs))
		for i, job := range w.Jobs {
			c.Jobs[i] = job.Clone()
		}
	}

	return c
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	type plain Workflow

	aux := struct {
		*plain

		Permissions json.RawMessage `json:"permissions,omitempty"`
		Concurrency json.RawMessage `json:"concurrency,omitempty"`
	}{plain: (*plain)(w)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error

	if w.Permissions, err = decodeRaw(aux.Permissions); err != nil {
		return fmt.Errorf("failed to decode permissions: %w", err)
	}

	if w.Concurrency, err = decodeRaw(aux.Concurrency); err != nil {
		return fmt.Errorf("failed to decode concurrency: %w", err)
	}

	return nil
}

func decodeRaw(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	return DecodeJSONValue(raw)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
