package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/runnr/pkg/codec"
	"github.com/dukex/runnr/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

const nodeDocument = `name: Node.js CI
on:
  push:
    branches: [main]
jobs:
  build:
    name: Build
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Test
        run: npm test
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := app.Run(t.Context(), append([]string{"runnr"}, args...))

	return out.String(), err
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workflow.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRender_PrintsCanonicalForm(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "render", writeWorkflow(t, nodeDocument))
	require.NoError(t, err)

	workflow, err := codec.Deserialize(nodeDocument)
	require.NoError(t, err)

	expected, err := codec.Serialize(workflow)
	require.NoError(t, err)

	assert.Equal(t, expected, out)
}

func TestRender_ParseError(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "render", writeWorkflow(t, "jobs: ["))
	require.Error(t, err)
	assert.True(t, codec.IsParseError(err))
}

func TestCommands_MissingFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"render", "validate", "export"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := runCLI(t, name)
			require.ErrorIs(t, err, errMissingFile)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		document     string
		expectedExit bool
		contains     []string
	}{
		{
			name:     "valid workflow",
			document: nodeDocument,
			contains: []string{"ok: 0 warning(s)"},
		},
		{
			name:         "workflow without jobs",
			document:     "on: push\njobs: {}\n",
			expectedExit: true,
			contains: []string{
				"error: Workflow must have at least one job",
				"warning: Workflow has no name",
			},
		},
		{
			name: "step without command",
			document: `name: Broken
on: push
jobs:
  build:
    name: Build
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Empty
`,
			expectedExit: true,
			contains:     []string{`error: Job "build", step 2 must have either "uses" or "run" [build, step 2]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := runCLI(t, "validate", writeWorkflow(t, tt.document))

			if tt.expectedExit {
				var exitErr cli.ExitCoder
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, 1, exitErr.ExitCode())
			} else {
				require.NoError(t, err)
			}

			for _, expected := range tt.contains {
				assert.Contains(t, out, expected)
			}
		})
	}
}

func TestExport_WritesNamedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	out, err := runCLI(t, "export", "--out", dir, writeWorkflow(t, nodeDocument))
	require.NoError(t, err)

	path := filepath.Join(dir, codec.Filename("Node.js CI"))
	assert.Equal(t, path, strings.TrimSpace(out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Node.js CI")
	assert.Contains(t, string(data), "run: npm test")
}

func TestTemplates_List(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "templates", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "CATEGORY")

	all, err := templates.All()
	require.NoError(t, err)

	for _, tmpl := range all {
		assert.Contains(t, out, tmpl.ID)
	}
}

func TestTemplates_ListByCategory(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "templates", "list", "--category", "Deploy")
	require.NoError(t, err)

	assert.Contains(t, out, "docker-build")
	assert.NotContains(t, out, "python-ci")
}

func TestTemplates_Show(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "templates", "show", "node-ci")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Node.js CI")
	assert.Contains(t, out, "actions/setup-node@v4")

	_, err = runCLI(t, "templates", "show", "rust-ci")
	require.ErrorIs(t, err, templates.ErrTemplateNotFound)

	_, err = runCLI(t, "templates", "show")
	require.ErrorIs(t, err, errMissingTemplateID)
}
