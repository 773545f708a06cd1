// Package testutil provides workflow builders for tests.
package testutil

import (
	"github.com/dukex/runnr/pkg/models"
)

// CreateTestWorkflow creates a workflow with one runnable job that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		Name: "CI",
		On: models.OrderedMapOf(
			"push", models.OrderedMapOf("branches", []any{models.DefaultBranch}),
		),
		Jobs: models.Jobs{CreateTestJob("build")},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// CreateTestJob creates a job that checks out the repository and runs one command.
func CreateTestJob(id string, overrides ...func(*models.Job)) *models.Job {
	job := &models.Job{
		ID:     id,
		Name:   id,
		RunsOn: models.DefaultRunner,
		Steps: []*models.Step{
			CreateTestStep(id + "-checkout"),
			CreateTestStep(id+"-run", WithRun("make "+id)),
		},
	}

	for _, override := range overrides {
		override(job)
	}

	return job
}

// CreateTestStep creates a checkout step.
func CreateTestStep(id string, overrides ...func(*models.Step)) *models.Step {
	step := &models.Step{
		ID:   id,
		Uses: "actions/checkout@v4",
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithName sets the workflow name.
func WithName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// WithTriggers replaces the trigger map with the given key/value pairs.
func WithTriggers(pairs ...any) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.On = models.OrderedMapOf(pairs...)
	}
}

// WithEnv sets workflow-level environment variables from key/value pairs.
func WithEnv(pairs ...any) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Env = models.OrderedMapOf(pairs...)
	}
}

// WithJobs replaces the job list.
func WithJobs(jobs ...*models.Job) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Jobs = models.Jobs(jobs)
	}
}

// WithNeeds sets the job dependencies.
func WithNeeds(needs ...string) func(*models.Job) {
	return func(j *models.Job) {
		j.Needs = needs
	}
}

// WithSteps replaces the job steps.
func WithSteps(steps ...*models.Step) func(*models.Job) {
	return func(j *models.Job) {
		j.Steps = steps
	}
}

// WithRun turns the step into a named shell command.
func WithRun(command string) func(*models.Step) {
	return func(s *models.Step) {
		s.Uses = ""
		s.Name = "Run"
		s.Run = command
	}
}
