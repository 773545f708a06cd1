// Package codec converts workflows to and from the YAML pipeline format.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/runnr/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	indent = 2

	// FallbackTrigger replaces an empty trigger map on output.
	FallbackTrigger = "workflow_dispatch"
)

var (
	workflowKeys = []string{"name", "on", "permissions", "env", "jobs", "concurrency"}
	jobKeys      = []string{"name", "runs-on", "needs", "if", "env", "outputs", "timeout-minutes", "continue-on-error", "steps"}
	stepKeys     = []string{
		"id", "name", "uses", "with", "run", "shell", "env", "if",
		"continue-on-error", "timeout-minutes", "working-directory",
	}
)

// ErrNilWorkflow is returned when serializing a nil workflow.
var ErrNilWorkflow = errors.New("workflow is nil")

// Serialize renders the workflow as a YAML pipeline document.
//
// Empty values are pruned, an empty trigger map becomes a manual dispatch
// trigger and the jobs key is omitted when there are no jobs. Keys keep the
// order they were authored in and lines are never wrapped.
func Serialize(workflow *models.Workflow) (string, error) {
	if workflow == nil {
		return "", ErrNilWorkflow
	}

	doc := Document(workflow)

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)

	root := toNode(doc)

	// The trigger key is read as a string by pipeline runners and is
	// conventionally written bare.
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "on" {
			root.Content[i].Style = 0
		}
	}

	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to encode workflow: %w", err)
	}

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode workflow: %w", err)
	}

	return buf.String(), nil
}

// SafeSerialize is Serialize for live previews: any failure, including a
// panic, yields a comment-only placeholder document instead.
func SafeSerialize(workflow *models.Workflow) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = Placeholder(fmt.Errorf("%v", r))
		}
	}()

	text, err := Serialize(workflow)
	if err != nil {
		return Placeholder(err)
	}

	return text
}

// Placeholder returns the comment-only document shown when serialization fails.
func Placeholder(err error) string {
	var b strings.Builder

	b.WriteString("# Error generating YAML\n")

	for _, line := range strings.Split(err.Error(), "\n") {
		b.WriteString("# ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// Document builds the pruned, ordered document tree that Serialize encodes.
func Document(workflow *models.Workflow) *models.OrderedMap {
	f := newFields(workflow.Extensions, workflowKeys)

	f.put("name", workflow.Name, workflow.Name != "")

	on := pruneTriggers(workflow.On)
	if on.Len() == 0 {
		on.Set(FallbackTrigger, models.NewOrderedMap())
	}

	f.doc.Set("on", on)

	f.put("permissions", workflow.Permissions, workflow.Permissions != nil)
	f.put("env", workflow.Env, workflow.Env != nil)

	if jobs := jobsDocument(workflow.Jobs); jobs.Len() > 0 {
		f.doc.Set("jobs", jobs)
	}

	f.put("concurrency", workflow.Concurrency, workflow.Concurrency != nil)
	f.rest()

	return f.doc
}

func jobsDocument(jobs models.Jobs) *models.OrderedMap {
	out := models.NewOrderedMap()

	for _, job := range jobs {
		if job == nil || out.Has(job.ID) {
			continue
		}

		out.Set(job.ID, jobDocument(job))
	}

	return out
}

func jobDocument(job *models.Job) *models.OrderedMap {
	f := newFields(job.Extensions, jobKeys)

	f.put("name", job.Name, job.Name != "")
	f.put("runs-on", job.RunsOn, job.RunsOn != "")
	f.put("needs", job.Needs, job.Needs != nil)
	f.put("if", job.If, job.If != "")
	f.put("env", job.Env, job.Env != nil)
	f.put("outputs", job.Outputs, job.Outputs != nil)
	f.put("timeout-minutes", deref(job.TimeoutMinutes), job.TimeoutMinutes != nil)
	f.put("continue-on-error", deref(job.ContinueOnError), job.ContinueOnError != nil)
	f.rest()

	steps := make([]any, 0, len(job.Steps))
	for _, step := range job.Steps {
		if step != nil {
			steps = append(steps, stepDocument(step))
		}
	}

	if len(steps) > 0 {
		f.doc.Set("steps", steps)
	}

	return f.doc
}

func stepDocument(step *models.Step) *models.OrderedMap {
	f := newFields(step.Extensions, stepKeys)

	f.put("id", step.ID, step.ID != "")
	f.put("name", step.Name, step.Name != "")
	f.put("uses", step.Uses, step.Uses != "")
	f.put("with", step.With, step.With != nil)
	f.put("run", step.Run, step.Run != "")
	f.put("shell", step.Shell, step.Shell != "")
	f.put("env", step.Env, step.Env != nil)
	f.put("if", step.If, step.If != "")
	f.put("continue-on-error", deref(step.ContinueOnError), step.ContinueOnError != nil)
	f.put("timeout-minutes", deref(step.TimeoutMinutes), step.TimeoutMinutes != nil)
	f.put("working-directory", step.WorkingDirectory, step.WorkingDirectory != "")
	f.rest()

	return f.doc
}

// fields assembles one pruned mapping: typed fields at their canonical
// position, falling back to an extension entry of the same key, then the
// remaining extension entries in authored order.
type fields struct {
	doc       *models.OrderedMap
	ext       *models.OrderedMap
	canonical map[string]bool
}

func newFields(ext *models.OrderedMap, keys []string) *fields {
	canonical := make(map[string]bool, len(keys))
	for _, k := range keys {
		canonical[k] = true
	}

	return &fields{doc: models.NewOrderedMap(), ext: ext, canonical: canonical}
}

func (f *fields) put(key string, value any, present bool) {
	if !present {
		value, present = f.ext.Get(key)
	}

	if !present {
		return
	}

	if pruned, ok := Prune(value); ok {
		f.doc.Set(key, pruned)
	}
}

func (f *fields) rest() {
	f.ext.Range(func(key string, value any) bool {
		if f.canonical[key] || f.doc.Has(key) {
			return true
		}

		if pruned, ok := Prune(value); ok {
			f.doc.Set(key, pruned)
		}

		return true
	})
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}

	return *p
}
