package models

import (
	"strconv"
)

// Step is a single action invocation (Uses) or shell command (Run) within a job.
// Exactly one of Uses and Run is expected; the model does not enforce it.
type Step struct {
	ID               string      `json:"id"`
	Name             string      `json:"name,omitempty"`
	Uses             string      `json:"uses,omitempty"`
	With             *OrderedMap `json:"with,omitempty"`
	Run              string      `json:"run,omitempty"`
	Shell            string      `json:"shell,omitempty"`
	Env              *OrderedMap `json:"env,omitempty"`
	If               string      `json:"if,omitempty"`
	ContinueOnError  *bool       `json:"continue-on-error,omitempty"`
	TimeoutMinutes   *int        `json:"timeout-minutes,omitempty"`
	WorkingDirectory string      `json:"working-directory,omitempty"`
	Extensions       *OrderedMap `json:"extensions,omitempty"`
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	c := *s
	c.With = s.With.Clone()
	c.Env = s.Env.Clone()
	c.ContinueOnError = clonePtr(s.ContinueOnError)
	c.TimeoutMinutes = clonePtr(s.TimeoutMinutes)
	c.Extensions = s.Extensions.Clone()

	return &c
}

// StepID returns a deterministic step id for the step at the 1-based
// position of a job: "<job>-step-<position>". When that id is already in
// taken, a numeric suffix is appended until it is free. The returned id is
// added to taken.
func StepID(jobID string, position int, taken map[string]bool) string {
	base := jobID + "-step-" + strconv.Itoa(position)
	id := base

	for n := 2; taken[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}

	taken[id] = true

	return id
}

// NextStepID returns an id for a step appended to job.
func NextStepID(job *Job) string {
	taken := make(map[string]bool, len(job.Steps))
	for _, step := range job.Steps {
		if step != nil {
			taken[step.ID] = true
		}
	}

	return StepID(job.ID, len(job.Steps)+1, taken)
}

// AssignStepIDs gives every step of the job a unique id in place. The first
// occurrence of an explicit id is kept; missing and repeated ids are
// replaced using StepID with the step's position.
func (j *Job) AssignStepIDs() {
	taken := make(map[string]bool, len(j.Steps))
	keep := make([]bool, len(j.Steps))

	for i, step := range j.Steps {
		if step != nil && step.ID != "" && !taken[step.ID] {
			taken[step.ID] = true
			keep[i] = true
		}
	}

	for i, step := range j.Steps {
		if step != nil && !keep[i] {
			step.ID = StepID(j.ID, i+1, taken)
		}
	}
}
