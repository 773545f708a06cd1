// Package templates holds the built-in starter workflows.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/dukex/runnr/pkg/codec"
	"github.com/dukex/runnr/pkg/models"
)

var ErrTemplateNotFound = errors.New("template not found")

//go:embed catalog/*.yml
var catalogFS embed.FS

// Template is a named starter workflow.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Workflow    *models.Workflow `json:"workflow"`
}

type entry struct {
	id          string
	name        string
	description string
	category    string
}

var entries = []entry{
	{id: "node-ci", name: "Node.js CI", description: "Build and test a Node.js application", category: "CI"},
	{id: "python-ci", name: "Python CI", description: "Build and test a Python application", category: "CI"},
	{id: "docker-build", name: "Docker Build", description: "Build and push a Docker image", category: "Deploy"},
	{id: "node-build-deploy", name: "Node.js Build & Deploy", description: "Build, test, and deploy a Node.js application", category: "CI/CD"},
}

var loadCatalog = sync.OnceValues(func() ([]Template, error) {
	out := make([]Template, 0, len(entries))

	for _, e := range entries {
		data, err := catalogFS.ReadFile("catalog/" + e.id + codec.Extension)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", e.id, err)
		}

		workflow, err := codec.Deserialize(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", e.id, err)
		}

		out = append(out, Template{
			ID:          e.id,
			Name:        e.name,
			Description: e.description,
			Category:    e.category,
			Workflow:    workflow,
		})
	}

	return out, nil
})

// All returns every template in catalogue order. Each call returns fresh
// copies, so callers may modify the workflows.
func All() ([]Template, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	out := make([]Template, len(catalog))
	for i, t := range catalog {
		out[i] = t.clone()
	}

	return out, nil
}

func ByID(id string) (Template, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return Template{}, err
	}

	for _, t := range catalog {
		if t.ID == id {
			return t.clone(), nil
		}
	}

	return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

func ByCategory(category string) ([]Template, error) {
	all, err := All()
	if err != nil {
		return nil, err
	}

	out := make([]Template, 0, len(all))

	for _, t := range all {
		if t.Category == category {
			out = append(out, t)
		}
	}

	return out, nil
}

// Categories returns the distinct categories in the order they first appear.
func Categories() []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))

	for _, e := range entries {
		if !seen[e.category] {
			seen[e.category] = true
			out = append(out, e.category)
		}
	}

	return out
}

// Instantiate returns a copy of the template workflow with freshly
// generated step ids. Job ids are kept so that needs references stay valid.
func (t Template) Instantiate() *models.Workflow {
	workflow := t.Workflow.Clone()
	if workflow == nil {
		return models.NewEmptyWorkflow()
	}

	for _, job := range workflow.Jobs {
		if job == nil {
			continue
		}

		for _, step := range job.Steps {
			if step != nil {
				step.ID = ""
			}
		}

		job.AssignStepIDs()
	}

	return workflow
}

// WorkflowSetter is satisfied by the editor engine.
type WorkflowSetter interface {
	SetWorkflow(workflow *models.Workflow)
}

// Apply loads the template into the editor as a single history entry and
// returns the workflow that was set.
func Apply(editor WorkflowSetter, id string) (*models.Workflow, error) {
	t, err := ByID(id)
	if err != nil {
		return nil, err
	}

	workflow := t.Instantiate()
	editor.SetWorkflow(workflow)

	return workflow, nil
}

func (t Template) clone() Template {
	t.Workflow = t.Workflow.Clone()

	return t
}
