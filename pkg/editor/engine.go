// Package editor holds the single editable workflow and its undo history.
//
// Every mutation builds a new snapshot from the current one, sharing the
// branches it does not touch, and appends it to history. Snapshots handed
// out to listeners and readers are shared and must be treated as read-only.
package editor

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dukex/runnr/pkg/models"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Op names the operation that produced a change.
type Op string

const (
	OpReset         Op = "reset"
	OpSetWorkflow   Op = "set_workflow"
	OpAddJob        Op = "add_job"
	OpUpdateJob     Op = "update_job"
	OpDeleteJob     Op = "delete_job"
	OpAddStep       Op = "add_step"
	OpUpdateStep    Op = "update_step"
	OpDeleteStep    Op = "delete_step"
	OpUpdateTrigger Op = "update_trigger"
	OpUndo          Op = "undo"
	OpRedo          Op = "redo"
)

// Change describes the state right after an applied operation. Sequence
// increases by one with every applied operation, including undo, redo and
// reset, so consumers can order changes delivered out of order.
type Change struct {
	Op            Op
	Sequence      uint64
	Workflow      *models.Workflow
	HistoryIndex  int
	HistoryLength int
	CanUndo       bool
	CanRedo       bool
}

// Listener is called after each applied operation, outside the engine
// lock. It must not block and must not call back into the engine
// synchronously.
type Listener func(Change)

// State is a consistent read of the editor.
type State struct {
	Workflow      *models.Workflow    `json:"workflow"`
	Selection     models.SelectedNode `json:"selection"`
	CanUndo       bool                `json:"can_undo"`
	CanRedo       bool                `json:"can_redo"`
	HistoryIndex  int                 `json:"history_index"`
	HistoryLength int                 `json:"history_length"`
	Sequence      uint64              `json:"sequence"`
}

// HistoryEntry is one snapshot with the JSON merge patch that produced it
// from the previous entry.
type HistoryEntry struct {
	Index    int              `json:"index"`
	Current  bool             `json:"current"`
	Workflow *models.Workflow `json:"workflow"`
	Diff     json.RawMessage  `json:"diff,omitempty"`
}

type Option func(*Engine)

// WithHistoryLimit bounds the number of snapshots kept.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		e.limit = limit
	}
}

// WithInitialWorkflow seeds the engine, for example from a saved slot.
func WithInitialWorkflow(workflow *models.Workflow) Option {
	return func(e *Engine) {
		e.initial = workflow
	}
}

func WithListener(listener Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, listener)
	}
}

// Engine is the only writer of the workflow. All methods are safe for
// concurrent use and are applied in call order.
type Engine struct {
	mu        sync.Mutex
	history   *History
	selection models.SelectedNode
	listeners []Listener
	limit     int
	initial   *models.Workflow
	sequence  uint64
}

func New(opts ...Option) *Engine {
	e := &Engine{limit: DefaultHistoryLimit}

	for _, opt := range opts {
		opt(e)
	}

	initial := models.NewEmptyWorkflow()
	if e.initial != nil {
		initial = prepare(e.initial)
	}

	e.initial = nil
	e.history = NewHistory(e.limit, initial)

	return e
}

// Subscribe registers a listener for subsequent changes.
func (e *Engine) Subscribe(listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, listener)
}

// Workflow returns a deep copy of the current workflow.
func (e *Engine) Workflow() *models.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.Current().Clone()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Workflow:      e.history.Current(),
		Selection:     e.selection,
		CanUndo:       e.history.CanUndo(),
		CanRedo:       e.history.CanRedo(),
		HistoryIndex:  e.history.Index(),
		HistoryLength: e.history.Len(),
		Sequence:      e.sequence,
	}
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.CanUndo()
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.CanRedo()
}

// History returns every snapshot with the merge patch from its predecessor.
func (e *Engine) History() ([]HistoryEntry, error) {
	e.mu.Lock()
	snapshots := e.history.Entries()
	current := e.history.Index()
	e.mu.Unlock()

	entries := make([]HistoryEntry, len(snapshots))

	var previous []byte

	for i, snapshot := range snapshots {
		doc, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history entry %d: %w", i, err)
		}

		entries[i] = HistoryEntry{Index: i, Current: i == current, Workflow: snapshot}

		if previous != nil {
			diff, err := jsonpatch.CreateMergePatch(previous, doc)
			if err != nil {
				return nil, fmt.Errorf("failed to diff history entry %d: %w", i, err)
			}

			entries[i].Diff = diff
		}

		previous = doc
	}

	return entries, nil
}

func (e *Engine) SelectedNode() models.SelectedNode {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.selection
}

// SetSelectedNode replaces the selection. Selection is not recorded in history.
func (e *Engine) SetSelectedNode(node models.SelectedNode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = node
}

// Reset starts over with an empty workflow, a single history entry and no selection.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.history = NewHistory(e.limit, models.NewEmptyWorkflow())
	e.selection = models.SelectedNode{}
	change, listeners := e.change(OpReset), e.listeners
	e.mu.Unlock()

	notify(listeners, change)
}

// SetWorkflow replaces the whole workflow as one history entry. A nil
// workflow is replaced by an empty one.
func (e *Engine) SetWorkflow(workflow *models.Workflow) {
	next := models.NewEmptyWorkflow()
	if workflow != nil {
		next = prepare(workflow)
	}

	_, _ = e.apply(OpSetWorkflow, func(*models.Workflow) (*models.Workflow, error) {
		return next, nil
	})
}

// AddJob appends the job, or replaces the job with the same id in place.
// It returns false when the job or its id is empty.
func (e *Engine) AddJob(job *models.Job) bool {
	if job == nil || job.ID == "" {
		return false
	}

	added := job.Clone()
	added.AssignStepIDs()

	ok, _ := e.apply(OpAddJob, func(current *models.Workflow) (*models.Workflow, error) {
		next := shallow(current)

		if i := current.JobIndex(added.ID); i >= 0 {
			next.Jobs[i] = added
		} else {
			next.Jobs = append(next.Jobs, added)
		}

		return next, nil
	})

	return ok
}

// UpdateJob merges the patch into the job. It returns false without a
// history entry when the job does not exist.
func (e *Engine) UpdateJob(jobID string, patch *models.OrderedMap) (bool, error) {
	return e.apply(OpUpdateJob, func(current *models.Workflow) (*models.Workflow, error) {
		i := current.JobIndex(jobID)
		if i < 0 {
			return nil, nil
		}

		patched, err := patchJob(current.Jobs[i], patch)
		if err != nil {
			return nil, err
		}

		next := shallow(current)
		next.Jobs[i] = patched

		return next, nil
	})
}

// DeleteJob removes the job and strips its id from the needs of the
// remaining jobs in the same history entry. A selection pointing at the
// job is cleared.
func (e *Engine) DeleteJob(jobID string) bool {
	ok, _ := e.apply(OpDeleteJob, func(current *models.Workflow) (*models.Workflow, error) {
		if current.JobIndex(jobID) < 0 {
			return nil, nil
		}

		next := shallow(current)
		next.Jobs = make(models.Jobs, 0, len(current.Jobs)-1)

		for _, job := range current.Jobs {
			if job != nil && job.ID == jobID {
				continue
			}

			if job != nil && slices.Contains(job.Needs, jobID) {
				copied := *job
				copied.Needs = slices.DeleteFunc(slices.Clone(job.Needs), func(need string) bool {
					return need == jobID
				})

				if len(copied.Needs) == 0 {
					copied.Needs = nil
				}

				job = &copied
			}

			next.Jobs = append(next.Jobs, job)
		}

		if e.selection.JobID == jobID {
			e.selection = models.SelectedNode{}
		}

		return next, nil
	})

	return ok
}

// AddStep appends the step to the job, synthesizing an id when it has
// none. It returns false when the job does not exist.
func (e *Engine) AddStep(jobID string, step *models.Step) bool {
	if step == nil {
		return false
	}

	ok, _ := e.apply(OpAddStep, func(current *models.Workflow) (*models.Workflow, error) {
		i := current.JobIndex(jobID)
		if i < 0 {
			return nil, nil
		}

		job := *current.Jobs[i]
		added := step.Clone()

		if added.ID == "" {
			added.ID = models.NextStepID(&job)
		}

		job.Steps = append(slices.Clone(job.Steps), added)

		next := shallow(current)
		next.Jobs[i] = &job

		return next, nil
	})

	return ok
}

// UpdateStep merges the patch into the step. Setting uses clears run and
// setting run clears uses and with, in the same entry.
func (e *Engine) UpdateStep(jobID, stepID string, patch *models.OrderedMap) (bool, error) {
	return e.apply(OpUpdateStep, func(current *models.Workflow) (*models.Workflow, error) {
		i := current.JobIndex(jobID)
		if i < 0 {
			return nil, nil
		}

		j := current.Jobs[i].StepIndex(stepID)
		if j < 0 {
			return nil, nil
		}

		patched, err := patchStep(current.Jobs[i].Steps[j], patch)
		if err != nil {
			return nil, err
		}

		job := *current.Jobs[i]
		job.Steps = slices.Clone(job.Steps)
		job.Steps[j] = patched

		next := shallow(current)
		next.Jobs[i] = &job

		return next, nil
	})
}

// DeleteStep removes the step from the job. A selection pointing at the
// step is cleared.
func (e *Engine) DeleteStep(jobID, stepID string) bool {
	ok, _ := e.apply(OpDeleteStep, func(current *models.Workflow) (*models.Workflow, error) {
		i := current.JobIndex(jobID)
		if i < 0 {
			return nil, nil
		}

		j := current.Jobs[i].StepIndex(stepID)
		if j < 0 {
			return nil, nil
		}

		job := *current.Jobs[i]
		job.Steps = slices.Delete(slices.Clone(job.Steps), j, j+1)

		next := shallow(current)
		next.Jobs[i] = &job

		if e.selection.JobID == jobID && e.selection.StepID == stepID {
			e.selection = models.SelectedNode{}
		}

		return next, nil
	})

	return ok
}

// UpdateTrigger replaces the trigger map.
func (e *Engine) UpdateTrigger(on *models.OrderedMap) {
	trigger := on.Clone()
	if trigger == nil {
		trigger = models.NewOrderedMap()
	}

	_, _ = e.apply(OpUpdateTrigger, func(current *models.Workflow) (*models.Workflow, error) {
		next := shallow(current)
		next.On = trigger

		return next, nil
	})
}

// Undo moves back one entry. It returns false at the oldest entry.
func (e *Engine) Undo() bool {
	return e.move(OpUndo, (*History).Undo)
}

// Redo moves forward one entry. It returns false at the newest entry.
func (e *Engine) Redo() bool {
	return e.move(OpRedo, (*History).Redo)
}

func (e *Engine) move(op Op, step func(*History) (*models.Workflow, bool)) bool {
	e.mu.Lock()

	if _, ok := step(e.history); !ok {
		e.mu.Unlock()

		return false
	}

	change, listeners := e.change(op), e.listeners
	e.mu.Unlock()

	notify(listeners, change)

	return true
}

// apply runs fn against the current snapshot under the lock. A nil
// snapshot from fn means nothing changed.
func (e *Engine) apply(op Op, fn func(current *models.Workflow) (*models.Workflow, error)) (bool, error) {
	e.mu.Lock()

	next, err := fn(e.history.Current())
	if err != nil || next == nil {
		e.mu.Unlock()

		return false, err
	}

	e.history.Append(next)
	change, listeners := e.change(op), e.listeners
	e.mu.Unlock()

	notify(listeners, change)

	return true, nil
}

// change must be called under the lock, once per applied operation.
func (e *Engine) change(op Op) Change {
	e.sequence++

	return Change{
		Op:            op,
		Sequence:      e.sequence,
		Workflow:      e.history.Current(),
		HistoryIndex:  e.history.Index(),
		HistoryLength: e.history.Len(),
		CanUndo:       e.history.CanUndo(),
		CanRedo:       e.history.CanRedo(),
	}
}

func notify(listeners []Listener, change Change) {
	for _, listener := range listeners {
		listener(change)
	}
}

// shallow copies the workflow struct and its job list. Jobs themselves
// are shared until replaced.
func shallow(w *models.Workflow) *models.Workflow {
	next := *w
	next.Jobs = slices.Clone(w.Jobs)

	return &next
}

// prepare deep-copies an external workflow and gives every step an id.
func prepare(w *models.Workflow) *models.Workflow {
	c := w.Clone()

	for _, job := range c.Jobs {
		if job != nil {
			job.AssignStepIDs()
		}
	}

	return c
}
