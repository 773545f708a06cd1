package editor_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildJob() *models.Job {
	return &models.Job{
		ID:     "build",
		Name:   "Build",
		RunsOn: "ubuntu-latest",
		Steps: []*models.Step{
			{ID: "checkout", Uses: "actions/checkout@v4"},
			{ID: "test", Name: "Test", Run: "npm test"},
		},
	}
}

func setupEngine(t *testing.T, opts ...editor.Option) *editor.Engine {
	t.Helper()

	e := editor.New(opts...)
	require.True(t, e.AddJob(buildJob()))
	require.True(t, e.AddJob(&models.Job{
		ID:     "deploy",
		RunsOn: "ubuntu-latest",
		Needs:  []string{"build"},
		Steps:  []*models.Step{{ID: "ship", Run: "make deploy"}},
	}))

	return e
}

func TestNew_StartsWithEmptyWorkflow(t *testing.T) {
	t.Parallel()

	e := editor.New()

	state := e.State()
	assert.Equal(t, models.NewEmptyWorkflow(), state.Workflow)
	assert.False(t, state.CanUndo)
	assert.False(t, state.CanRedo)
	assert.Equal(t, 0, state.HistoryIndex)
	assert.Equal(t, 1, state.HistoryLength)
	assert.True(t, state.Selection.IsZero())
}

func TestNew_WithInitialWorkflowAssignsStepIDs(t *testing.T) {
	t.Parallel()

	initial := &models.Workflow{
		Name: "Seeded",
		On:   models.OrderedMapOf("push", models.NewOrderedMap()),
		Jobs: models.Jobs{{ID: "lint", Steps: []*models.Step{{Run: "make lint"}}}},
	}

	e := editor.New(editor.WithInitialWorkflow(initial))

	w := e.Workflow()
	assert.Equal(t, "Seeded", w.Name)
	assert.Equal(t, "lint-step-1", w.Job("lint").Steps[0].ID)
	assert.Empty(t, initial.Jobs[0].Steps[0].ID)
	assert.False(t, e.CanUndo())
}

func TestHistory_IsBounded(t *testing.T) {
	t.Parallel()

	e := editor.New()

	for i := range 51 {
		require.True(t, e.AddJob(&models.Job{ID: fmt.Sprintf("job-%02d", i), RunsOn: "ubuntu-latest"}))
	}

	state := e.State()
	assert.Equal(t, editor.DefaultHistoryLimit, state.HistoryLength)
	assert.Equal(t, editor.DefaultHistoryLimit-1, state.HistoryIndex)
	assert.Len(t, state.Workflow.Jobs, 51)
	assert.Equal(t, "job-50", state.Workflow.Jobs[50].ID)

	undone := 0
	for e.Undo() {
		undone++
	}

	assert.Equal(t, editor.DefaultHistoryLimit-1, undone)
	assert.Len(t, e.Workflow().Jobs, 2)
}

func TestHistory_CustomLimit(t *testing.T) {
	t.Parallel()

	e := editor.New(editor.WithHistoryLimit(3))

	for i := range 5 {
		e.AddJob(&models.Job{ID: fmt.Sprintf("j%d", i)})
	}

	assert.Equal(t, 3, e.State().HistoryLength)
}

func TestUndoRedo_Inverse(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	before := e.Workflow()

	ok, err := e.UpdateJob("build", models.OrderedMapOf("name", "Compile"))
	require.NoError(t, err)
	require.True(t, ok)

	after := e.Workflow()
	assert.Equal(t, "Compile", after.Job("build").Name)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Workflow())
	assert.True(t, e.CanRedo())

	require.True(t, e.Redo())
	assert.Equal(t, after, e.Workflow())
	assert.False(t, e.CanRedo())
}

func TestUndoRedo_NoOpAtEnds(t *testing.T) {
	t.Parallel()

	e := editor.New()

	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
}

func TestRedo_InvalidatedByNewMutation(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	require.True(t, e.Undo())
	require.True(t, e.CanRedo())

	e.UpdateTrigger(models.OrderedMapOf("pull_request", models.NewOrderedMap()))

	assert.False(t, e.CanRedo())
	assert.False(t, e.Redo())
	assert.Nil(t, e.Workflow().Job("deploy"))
}

func TestDeleteJob_CascadesInOneEntry(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	e.SetSelectedNode(models.SelectedNode{Type: models.NodeTypeJob, JobID: "build"})
	length := e.State().HistoryLength

	require.True(t, e.DeleteJob("build"))

	w := e.Workflow()
	assert.Nil(t, w.Job("build"))
	assert.Nil(t, w.Job("deploy").Needs)
	assert.Equal(t, length+1, e.State().HistoryLength)
	assert.True(t, e.SelectedNode().IsZero())

	require.True(t, e.Undo())

	w = e.Workflow()
	assert.NotNil(t, w.Job("build"))
	assert.Equal(t, []string{"build"}, w.Job("deploy").Needs)
}

func TestDeleteJob_KeepsUnrelatedSelection(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	selection := models.SelectedNode{Type: models.NodeTypeStep, JobID: "deploy", StepID: "ship"}
	e.SetSelectedNode(selection)

	require.True(t, e.DeleteJob("build"))
	assert.Equal(t, selection, e.SelectedNode())
}

func TestDeleteStep(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	e.SetSelectedNode(models.SelectedNode{Type: models.NodeTypeStep, JobID: "build", StepID: "test"})

	require.True(t, e.DeleteStep("build", "test"))

	steps := e.Workflow().Job("build").Steps
	require.Len(t, steps, 1)
	assert.Equal(t, "checkout", steps[0].ID)
	assert.True(t, e.SelectedNode().IsZero())
}

func TestMutations_MissingEntitiesAreNoOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(e *editor.Engine) bool
	}{
		{name: "update job", mutate: func(e *editor.Engine) bool {
			ok, _ := e.UpdateJob("ghost", models.OrderedMapOf("name", "x"))

			return ok
		}},
		{name: "delete job", mutate: func(e *editor.Engine) bool { return e.DeleteJob("ghost") }},
		{name: "add step to missing job", mutate: func(e *editor.Engine) bool {
			return e.AddStep("ghost", &models.Step{Run: "x"})
		}},
		{name: "update missing step", mutate: func(e *editor.Engine) bool {
			ok, _ := e.UpdateStep("build", "ghost", models.OrderedMapOf("run", "x"))

			return ok
		}},
		{name: "delete missing step", mutate: func(e *editor.Engine) bool { return e.DeleteStep("build", "ghost") }},
		{name: "add job without id", mutate: func(e *editor.Engine) bool { return e.AddJob(&models.Job{Name: "x"}) }},
		{name: "add nil job", mutate: func(e *editor.Engine) bool { return e.AddJob(nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := setupEngine(t)
			before := e.State()

			assert.False(t, tt.mutate(e))
			assert.Equal(t, before, e.State())
		})
	}
}

func TestUpdateStep_UsesAndRunAreDisjoint(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	ok, err := e.UpdateStep("build", "test", models.OrderedMapOf("uses", "actions/setup-node@v4", "with", models.OrderedMapOf("node-version", "20")))
	require.NoError(t, err)
	require.True(t, ok)

	step := e.Workflow().Job("build").Step("test")
	assert.Equal(t, "actions/setup-node@v4", step.Uses)
	assert.Empty(t, step.Run)
	assert.Equal(t, "Test", step.Name)

	ok, err = e.UpdateStep("build", "test", models.OrderedMapOf("run", "npm ci"))
	require.NoError(t, err)
	require.True(t, ok)

	step = e.Workflow().Job("build").Step("test")
	assert.Equal(t, "npm ci", step.Run)
	assert.Empty(t, step.Uses)
	assert.Nil(t, step.With)

	ok, err = e.UpdateStep("build", "test", models.OrderedMapOf("run", "echo", "uses", "actions/cache@v4"))
	require.NoError(t, err)
	require.True(t, ok)

	step = e.Workflow().Job("build").Step("test")
	assert.Equal(t, "actions/cache@v4", step.Uses)
	assert.Empty(t, step.Run)
}

func TestUpdateJob_PatchSemantics(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	ok, err := e.UpdateJob("deploy", models.OrderedMapOf(
		"id", "renamed",
		"name", "Deploy",
		"needs", nil,
		"timeout-minutes", 10,
		"environment", "production",
	))
	require.NoError(t, err)
	require.True(t, ok)

	deploy := e.Workflow().Job("deploy")
	require.NotNil(t, deploy)
	assert.Equal(t, "Deploy", deploy.Name)
	assert.Nil(t, deploy.Needs)
	assert.Equal(t, 10, *deploy.TimeoutMinutes)
	assert.Equal(t, []string{"environment"}, deploy.Extensions.Keys())
	assert.Equal(t, "ship", deploy.Steps[0].ID)

	ok, err = e.UpdateJob("deploy", models.OrderedMapOf("needs", "build", "environment", nil))
	require.NoError(t, err)
	require.True(t, ok)

	deploy = e.Workflow().Job("deploy")
	assert.Equal(t, []string{"build"}, deploy.Needs)
	assert.Nil(t, deploy.Extensions)
}

func TestUpdateJob_InvalidPatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch *models.OrderedMap
	}{
		{"extensions not an object", models.OrderedMapOf("extensions", "matrix")},
		{"needs not a list of ids", models.OrderedMapOf("needs", 5)},
		{"steps not a list", models.OrderedMapOf("steps", "npm test")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := setupEngine(t)
			before := e.State()

			ok, err := e.UpdateJob("build", tt.patch)
			require.ErrorIs(t, err, editor.ErrInvalidPatch)
			assert.False(t, ok)
			assert.Equal(t, before, e.State())
		})
	}
}

func TestUpdateJob_UntypedValuesGoToExtensions(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	ok, err := e.UpdateJob("build", models.OrderedMapOf(
		"runs-on", []any{"self-hosted", "linux"},
		"timeout-minutes", "${{ inputs.timeout }}",
	))
	require.NoError(t, err)
	require.True(t, ok)

	build := e.Workflow().Job("build")
	assert.Empty(t, build.RunsOn)
	assert.Nil(t, build.TimeoutMinutes)
	assert.Equal(t, []string{"runs-on", "timeout-minutes"}, build.Extensions.Keys())

	labels, _ := build.Extensions.Get("runs-on")
	assert.Equal(t, []any{"self-hosted", "linux"}, labels)

	timeout, _ := build.Extensions.Get("timeout-minutes")
	assert.Equal(t, "${{ inputs.timeout }}", timeout)
	assert.True(t, build.HasRunner())
}

func TestUpdateJob_TypedValueReplacesExtension(t *testing.T) {
	t.Parallel()

	job := buildJob()
	job.RunsOn = ""
	job.Extensions = models.OrderedMapOf("runs-on", []any{"self-hosted", "linux"})

	e := editor.New()
	require.True(t, e.AddJob(job))

	ok, err := e.UpdateJob("build", models.OrderedMapOf("runs-on", "ubuntu-latest"))
	require.NoError(t, err)
	require.True(t, ok)

	build := e.Workflow().Job("build")
	assert.Equal(t, "ubuntu-latest", build.RunsOn)
	assert.Nil(t, build.Extensions)

	ok, err = e.UpdateJob("build", models.OrderedMapOf("runs-on", nil))
	require.NoError(t, err)
	require.True(t, ok)

	build = e.Workflow().Job("build")
	assert.Empty(t, build.RunsOn)
	assert.Nil(t, build.Extensions)
	assert.False(t, build.HasRunner())
}

func TestAddJob_ReplacesExistingID(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	require.True(t, e.AddJob(&models.Job{ID: "build", RunsOn: "macos-latest", Steps: []*models.Step{{Run: "make"}}}))

	w := e.Workflow()
	assert.Equal(t, []string{"build", "deploy"}, w.Jobs.IDs())
	assert.Equal(t, "macos-latest", w.Job("build").RunsOn)
	assert.Equal(t, "build-step-1", w.Job("build").Steps[0].ID)
}

func TestAddStep_SynthesizesID(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	require.True(t, e.AddStep("build", &models.Step{Name: "Lint", Run: "make lint"}))
	require.True(t, e.AddStep("build", &models.Step{ID: "custom", Run: "make vet"}))

	steps := e.Workflow().Job("build").Steps
	require.Len(t, steps, 4)
	assert.Equal(t, "build-step-3", steps[2].ID)
	assert.Equal(t, "custom", steps[3].ID)
}

func TestSnapshots_AreIsolated(t *testing.T) {
	t.Parallel()

	job := buildJob()
	e := editor.New()
	require.True(t, e.AddJob(job))

	job.Name = "changed by caller"
	job.Steps[0].Uses = "changed"

	w := e.Workflow()
	w.Job("build").Name = "changed by reader"

	assert.Equal(t, "Build", e.Workflow().Job("build").Name)
	assert.Equal(t, "actions/checkout@v4", e.Workflow().Job("build").Steps[0].Uses)
}

func TestSnapshots_ShareUntouchedBranches(t *testing.T) {
	t.Parallel()

	var snapshots []*models.Workflow

	e := setupEngine(t, editor.WithListener(func(c editor.Change) {
		snapshots = append(snapshots, c.Workflow)
	}))

	ok, err := e.UpdateJob("deploy", models.OrderedMapOf("name", "Deploy"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, snapshots, 3)

	previous, latest := snapshots[1], snapshots[2]
	assert.Same(t, previous.Jobs[0], latest.Jobs[0])
	assert.NotSame(t, previous.Jobs[1], latest.Jobs[1])
	assert.Empty(t, previous.Jobs[1].Name)
}

func TestListeners_ReceiveChanges(t *testing.T) {
	t.Parallel()

	var changes []editor.Change

	e := editor.New(editor.WithListener(func(c editor.Change) {
		changes = append(changes, c)
	}))

	e.AddJob(buildJob())
	e.DeleteJob("ghost")
	e.Undo()
	e.Redo()
	e.Reset()

	require.Len(t, changes, 4)
	assert.Equal(t, editor.OpAddJob, changes[0].Op)
	assert.True(t, changes[0].CanUndo)
	assert.Equal(t, editor.OpUndo, changes[1].Op)
	assert.True(t, changes[1].CanRedo)
	assert.Equal(t, editor.OpRedo, changes[2].Op)
	assert.Equal(t, editor.OpReset, changes[3].Op)
	assert.Equal(t, 1, changes[3].HistoryLength)
}

func TestReset(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	e.SetSelectedNode(models.SelectedNode{Type: models.NodeTypeTrigger})

	e.Reset()

	state := e.State()
	assert.Equal(t, models.NewEmptyWorkflow(), state.Workflow)
	assert.Equal(t, 1, state.HistoryLength)
	assert.False(t, state.CanUndo)
	assert.True(t, state.Selection.IsZero())
}

func TestSetWorkflow_IsOneEntry(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)
	length := e.State().HistoryLength

	e.SetWorkflow(&models.Workflow{Name: "Imported", On: models.OrderedMapOf("push", nil)})

	assert.Equal(t, length+1, e.State().HistoryLength)
	assert.Equal(t, "Imported", e.Workflow().Name)

	e.SetWorkflow(nil)
	assert.Equal(t, models.NewEmptyWorkflow(), e.Workflow())
}

func TestHistory_Diffs(t *testing.T) {
	t.Parallel()

	e := setupEngine(t)

	ok, err := e.UpdateJob("build", models.OrderedMapOf("name", "Compile"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.Undo())

	entries, err := e.History()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Nil(t, entries[0].Diff)
	assert.True(t, entries[2].Current)
	assert.False(t, entries[3].Current)
	assert.JSONEq(t, `{"jobs":{"build":{"name":"Compile"}}}`, string(entries[3].Diff))
}

func TestEngine_ConcurrentMutations(t *testing.T) {
	t.Parallel()

	e := editor.New(editor.WithHistoryLimit(200))

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			e.AddJob(&models.Job{ID: fmt.Sprintf("job-%d", i), RunsOn: "ubuntu-latest"})
			_ = e.State()
		}()
	}

	wg.Wait()

	assert.Len(t, e.Workflow().Jobs, 20)
	assert.Equal(t, 21, e.State().HistoryLength)
}
