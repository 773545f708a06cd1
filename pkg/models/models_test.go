package models_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/runnr/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMap_KeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	m := models.NewOrderedMap()
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())

	v, ok := m.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeta":4,"alpha":2,"mid":3}`, string(data))
	assert.Equal(t, `{"zeta":4,"alpha":2,"mid":3}`, string(data))
}

func TestOrderedMap_Delete(t *testing.T) {
	t.Parallel()

	m := models.OrderedMapOf("a", 1, "b", 2, "c", 3)
	m.Delete("b")
	m.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Has("b"))

	m.Delete("a")
	m.Delete("c")
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, models.NewOrderedMap(), m)
}

func TestOrderedMap_NilIsEmpty(t *testing.T) {
	t.Parallel()

	var m *models.OrderedMap

	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	assert.False(t, m.Has("x"))
	assert.Nil(t, m.Clone())
}

func TestOrderedMap_UnmarshalJSONPreservesNestedOrder(t *testing.T) {
	t.Parallel()

	var m models.OrderedMap

	err := json.Unmarshal([]byte(`{"b":{"y":1,"x":2.5},"a":[true,null,"s"]}`), &m)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, m.Keys())

	nested, _ := m.Get("b")
	require.IsType(t, &models.OrderedMap{}, nested)
	assert.Equal(t, []string{"y", "x"}, nested.(*models.OrderedMap).Keys())

	y, _ := nested.(*models.OrderedMap).Get("y")
	assert.Equal(t, 1, y)

	x, _ := nested.(*models.OrderedMap).Get("x")
	assert.InDelta(t, 2.5, x, 0.0001)

	list, _ := m.Get("a")
	assert.Equal(t, []any{true, nil, "s"}, list)
}

func TestOrderedMap_UnmarshalJSONRejectsNonObject(t *testing.T) {
	t.Parallel()

	var m models.OrderedMap

	err := json.Unmarshal([]byte(`[1,2]`), &m)
	require.ErrorIs(t, err, models.ErrNotAnObject)
}

func TestOrderedMap_CloneIsDeep(t *testing.T) {
	t.Parallel()

	inner := models.OrderedMapOf("branches", []any{"main"})
	m := models.OrderedMapOf("push", inner)

	c := m.Clone()
	assert.Equal(t, m, c)

	inner.Set("tags", []any{"v*"})

	clonedInner, _ := c.Get("push")
	assert.False(t, clonedInner.(*models.OrderedMap).Has("tags"))
}

func TestNewEmptyWorkflow(t *testing.T) {
	t.Parallel()

	w := models.NewEmptyWorkflow()

	assert.Equal(t, "Untitled Workflow", w.Name)
	assert.Equal(t, []string{"push"}, w.On.Keys())
	assert.NotNil(t, w.Jobs)
	assert.Empty(t, w.Jobs)

	push, _ := w.On.Get("push")
	branches, _ := push.(*models.OrderedMap).Get("branches")
	assert.Equal(t, []any{"main"}, branches)
}

func TestWorkflow_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	input := `{
		"name": "CI",
		"on": {"pull_request": {}, "push": {"branches": ["main"]}},
		"permissions": {"contents": "read"},
		"jobs": {
			"test": {"id": "ignored", "runs-on": "ubuntu-latest", "steps": [{"id": "s1", "run": "go test ./..."}]},
			"build": {"id": "build", "runs-on": "ubuntu-latest", "needs": ["test"], "steps": []}
		},
		"concurrency": "ci-${{ github.ref }}"
	}`

	var w models.Workflow
	require.NoError(t, json.Unmarshal([]byte(input), &w))

	assert.Equal(t, "CI", w.Name)
	assert.Equal(t, []string{"pull_request", "push"}, w.On.Keys())
	assert.Equal(t, []string{"test", "build"}, w.Jobs.IDs())
	assert.Equal(t, "test", w.Jobs[0].ID)
	assert.Equal(t, []string{"test"}, w.Jobs[1].Needs)
	assert.Equal(t, "ci-${{ github.ref }}", w.Concurrency)
	require.IsType(t, &models.OrderedMap{}, w.Permissions)

	data, err := json.Marshal(&w)
	require.NoError(t, err)

	var again models.Workflow
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, w, again)
}

func TestWorkflow_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	w := &models.Workflow{
		Name: "CI",
		On:   models.OrderedMapOf("push", models.NewOrderedMap()),
		Jobs: models.Jobs{
			{ID: "build", RunsOn: "ubuntu-latest", Needs: []string{"lint"}, TimeoutMinutes: models.Ptr(10), Steps: []*models.Step{{ID: "s1", Run: "make"}}},
		},
	}

	c := w.Clone()
	require.Equal(t, w, c)

	c.Jobs[0].Needs[0] = "changed"
	c.Jobs[0].Steps[0].Run = "changed"
	*c.Jobs[0].TimeoutMinutes = 20

	assert.Equal(t, "lint", w.Jobs[0].Needs[0])
	assert.Equal(t, "make", w.Jobs[0].Steps[0].Run)
	assert.Equal(t, 10, *w.Jobs[0].TimeoutMinutes)
}

func TestWorkflow_JobLookup(t *testing.T) {
	t.Parallel()

	w := &models.Workflow{Jobs: models.Jobs{{ID: "a"}, {ID: "b", Steps: []*models.Step{{ID: "x"}, {ID: "y"}}}}}

	assert.Equal(t, 1, w.JobIndex("b"))
	assert.Equal(t, -1, w.JobIndex("c"))
	assert.Nil(t, w.Job("c"))
	assert.Equal(t, 1, w.Job("b").StepIndex("y"))
	assert.Nil(t, w.Job("b").Step("z"))
}

func TestJob_HasRunner(t *testing.T) {
	t.Parallel()

	assert.True(t, (&models.Job{RunsOn: "ubuntu-latest"}).HasRunner())
	assert.True(t, (&models.Job{Extensions: models.OrderedMapOf("runs-on", []any{"self-hosted", "linux"})}).HasRunner())
	assert.False(t, (&models.Job{}).HasRunner())
}

func TestStepID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		taken    []string
		position int
		expected string
	}{
		{name: "free", position: 1, expected: "build-step-1"},
		{name: "collision", taken: []string{"build-step-2"}, position: 2, expected: "build-step-2-2"},
		{name: "double collision", taken: []string{"build-step-3", "build-step-3-2"}, position: 3, expected: "build-step-3-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			taken := map[string]bool{}
			for _, id := range tt.taken {
				taken[id] = true
			}

			assert.Equal(t, tt.expected, models.StepID("build", tt.position, taken))
			assert.True(t, taken[tt.expected])
		})
	}
}

func TestNextStepID(t *testing.T) {
	t.Parallel()

	job := &models.Job{ID: "build", Steps: []*models.Step{{ID: "checkout"}, {ID: "build-step-3"}}}

	assert.Equal(t, "build-step-3-2", models.NextStepID(job))
	assert.Equal(t, "deploy-step-1", models.NextStepID(&models.Job{ID: "deploy"}))
}
