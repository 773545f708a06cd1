package editor

import (
	"github.com/dukex/runnr/pkg/models"
)

// DefaultHistoryLimit is the number of snapshots kept when no limit is configured.
const DefaultHistoryLimit = 50

// History is a bounded linear list of workflow snapshots with a cursor.
// The cursor always points at a valid entry. History is not safe for
// concurrent use; the Engine serializes access to it.
type History struct {
	entries []*models.Workflow
	index   int
	limit   int
}

// NewHistory returns a history holding only the initial snapshot.
func NewHistory(limit int, initial *models.Workflow) *History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}

	return &History{
		entries: []*models.Workflow{initial},
		limit:   limit,
	}
}

// Append drops any redo entries, pushes the snapshot and evicts the oldest
// entries beyond the limit.
func (h *History) Append(workflow *models.Workflow) {
	h.entries = append(h.entries[:h.index+1:h.index+1], workflow)

	if overflow := len(h.entries) - h.limit; overflow > 0 {
		h.entries = append([]*models.Workflow(nil), h.entries[overflow:]...)
	}

	h.index = len(h.entries) - 1
}

func (h *History) Undo() (*models.Workflow, bool) {
	if !h.CanUndo() {
		return h.Current(), false
	}

	h.index--

	return h.Current(), true
}

func (h *History) Redo() (*models.Workflow, bool) {
	if !h.CanRedo() {
		return h.Current(), false
	}

	h.index++

	return h.Current(), true
}

func (h *History) Current() *models.Workflow {
	return h.entries[h.index]
}

func (h *History) CanUndo() bool {
	return h.index > 0
}

func (h *History) CanRedo() bool {
	return h.index < len(h.entries)-1
}

func (h *History) Index() int {
	return h.index
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns the snapshots oldest first. The snapshots are shared and
// must not be modified.
func (h *History) Entries() []*models.Workflow {
	return append([]*models.Workflow(nil), h.entries...)
}
