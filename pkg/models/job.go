package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Job is a unit of work bound to a runner.
type Job struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	RunsOn          string      `json:"runs-on,omitempty"`
	Needs           []string    `json:"needs,omitempty"`
	If              string      `json:"if,omitempty"`
	Env             *OrderedMap `json:"env,omitempty"`
	Outputs         *OrderedMap `json:"outputs,omitempty"`
	TimeoutMinutes  *int        `json:"timeout-minutes,omitempty"`
	ContinueOnError *bool       `json:"continue-on-error,omitempty"`
	Steps           []*Step     `json:"steps"`

	// Extensions holds pass-through keys such as strategy, container and
	// services, plus typed keys whose authored value does not fit the
	// typed field (runs-on as a label list, timeout-minutes as an expression).
	Extensions *OrderedMap `json:"extensions,omitempty"`
}

// HasRunner reports whether a runner is specified in any form.
func (j *Job) HasRunner() bool {
	return j.RunsOn != "" || j.Extensions.Has("runs-on")
}

// Step returns the first step with the given id, or nil.
func (j *Job) Step(id string) *Step {
	if i := j.StepIndex(id); i >= 0 {
		return j.Steps[i]
	}

	return nil
}

// StepIndex returns the position of the first step with the given id, or -1.
func (j *Job) StepIndex(id string) int {
	if j == nil {
		return -1
	}

	for i, step := range j.Steps {
		if step != nil && step.ID == id {
			return i
		}
	}

	return -1
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}

	c := *j
	c.Needs = cloneStrings(j.Needs)
	c.Env = j.Env.Clone()
	c.Outputs = j.Outputs.Clone()
	c.TimeoutMinutes = clonePtr(j.TimeoutMinutes)
	c.ContinueOnError = clonePtr(j.ContinueOnError)
	c.Extensions = j.Extensions.Clone()

	if j.Steps != nil {
		c.Steps = make([]*Step, len(j.Steps))
		for i, step := range j.Steps {
			c.Steps[i] = step.Clone()
		}
	}

	return &c
}

// Jobs is the ordered job list of a workflow. It encodes as a JSON object
// keyed by job id, the same shape the pipeline format uses.
//
// A slice rather than a map keeps authoring order and lets a duplicate id
// exist long enough for the validator to report it.
type Jobs []*Job

func (js Jobs) MarshalJSON() ([]byte, error) {
	if js == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	written := 0

	for _, job := range js {
		if job == nil {
			continue
		}

		if written > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(job.ID)
		if err != nil {
			return nil, err
		}

		body, err := json.Marshal(job)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job %q: %w", job.ID, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)

		written++
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by job id. The key wins over any
// id carried inside the job body.
func (js *Jobs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*js = nil

		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("jobs: %w", ErrNotAnObject)
	}

	jobs := make(Jobs, 0)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		id, _ := keyTok.(string)

		var job Job
		if err := dec.Decode(&job); err != nil {
			return fmt.Errorf("failed to decode job %q: %w", id, err)
		}

		job.ID = id
		jobs = append(jobs, &job)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*js = jobs

	return nil
}

// IDs returns the job ids in order.
func (js Jobs) IDs() []string {
	ids := make([]string, 0, len(js))
	for _, job := range js {
		if job != nil {
			ids = append(ids, job.ID)
		}
	}

	return ids
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}

	c := make([]string, len(s))
	copy(c, s)

	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
