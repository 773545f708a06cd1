package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dukex/runnr/pkg/models"
)

// validateCycles reports each group of jobs whose needs form a cycle.
// Self-dependencies are reported per job and do not count here.
func validateCycles(c *collector, jobs models.Jobs) {
	g := graph.New(graph.StringHash, graph.Directed())
	order := make(map[string]int, len(jobs))

	for _, job := range jobs {
		if job == nil {
			continue
		}

		if _, ok := order[job.ID]; ok {
			continue
		}

		order[job.ID] = len(order)
		_ = g.AddVertex(job.ID)
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}

		for _, need := range job.Needs {
			if _, ok := order[need]; !ok || need == job.ID {
				continue
			}

			// duplicate needs entries yield ErrEdgeAlreadyExists
			_ = g.AddEdge(need, job.ID)
		}
	}

	components, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return
	}

	cycles := make([][]string, 0)

	for _, component := range components {
		if len(component) < 2 {
			continue
		}

		slices.SortFunc(component, func(a, b string) int { return order[a] - order[b] })
		cycles = append(cycles, component)
	}

	slices.SortFunc(cycles, func(a, b []string) int { return order[a[0]] - order[b[0]] })

	for _, cycle := range cycles {
		quoted := make([]string, len(cycle))
		for i, id := range cycle {
			quoted[i] = fmt.Sprintf("%q", id)
		}

		c.addError(cycle[0], -1, fmt.Sprintf("Jobs %s form a dependency cycle", strings.Join(quoted, ", ")))
	}
}
