package codec

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dukex/runnr/pkg/models"
	"gopkg.in/yaml.v3"
)

// ParseError reports why a document could not be turned into a workflow.
// Its message is meant to be shown to the user as is.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError

	return errors.As(err, &parseErr)
}

// Deserialize parses a YAML pipeline document into a workflow.
//
// Missing runners default to ubuntu-latest, steps without a usable id get
// one derived from the job id and their position, and entries that are not
// mappings are skipped. When a step has both uses and run, uses wins.
// Unknown keys are kept verbatim in the extension maps.
func Deserialize(text string) (*models.Workflow, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, &ParseError{Message: "Invalid YAML: " + err.Error()}
	}

	w := &walker{}

	value, err := w.fromNode(&root, 0)
	if err != nil {
		return nil, &ParseError{Message: "Invalid YAML: " + err.Error()}
	}

	doc, ok := value.(*models.OrderedMap)
	if !ok || doc.Len() == 0 {
		return nil, &ParseError{Message: "Workflow must be a YAML object"}
	}

	if !doc.Has("on") {
		return nil, &ParseError{Message: "Workflow must have an 'on' trigger"}
	}

	return workflowFromDocument(doc), nil
}

func workflowFromDocument(doc *models.OrderedMap) *models.Workflow {
	workflow := &models.Workflow{}
	ext := models.NewOrderedMap()

	doc.Range(func(key string, value any) bool {
		switch key {
		case "name":
			if s, ok := scalarString(value); ok {
				workflow.Name = s
			} else {
				ext.Set(key, value)
			}
		case "on":
			workflow.On = normalizeTriggers(value)
		case "permissions":
			workflow.Permissions = value
		case "env":
			if m, ok := value.(*models.OrderedMap); ok {
				workflow.Env = m
			} else {
				ext.Set(key, value)
			}
		case "jobs":
			workflow.Jobs = jobsFromDocument(value)
		case "concurrency":
			workflow.Concurrency = value
		default:
			ext.Set(key, value)
		}

		return true
	})

	if workflow.Jobs == nil {
		workflow.Jobs = models.Jobs{}
	}

	if ext.Len() > 0 {
		workflow.Extensions = ext
	}

	return workflow
}

// normalizeTriggers accepts the three shapes of `on`: an event name, a list
// of event names or a map of event filters. Events without filters map to an
// empty filter object.
func normalizeTriggers(value any) *models.OrderedMap {
	on := models.NewOrderedMap()

	switch val := value.(type) {
	case string:
		on.Set(val, models.NewOrderedMap())
	case []any:
		for _, item := range val {
			if event, ok := scalarString(item); ok {
				on.Set(event, models.NewOrderedMap())
			}
		}
	case *models.OrderedMap:
		val.Range(func(event string, filters any) bool {
			if filters == nil {
				filters = models.NewOrderedMap()
			}

			on.Set(event, filters)

			return true
		})
	}

	return on
}

func jobsFromDocument(value any) models.Jobs {
	m, ok := value.(*models.OrderedMap)
	if !ok {
		return models.Jobs{}
	}

	jobs := make(models.Jobs, 0, m.Len())

	m.Range(func(id string, body any) bool {
		if jobDoc, ok := body.(*models.OrderedMap); ok {
			jobs = append(jobs, jobFromDocument(id, jobDoc))
		}

		return true
	})

	return jobs
}

func jobFromDocument(id string, doc *models.OrderedMap) *models.Job {
	job := &models.Job{ID: id, Steps: []*models.Step{}}
	ext := models.NewOrderedMap()

	doc.Range(func(key string, value any) bool {
		switch key {
		case "name":
			setString(&job.Name, ext, key, value)
		case "runs-on":
			setString(&job.RunsOn, ext, key, value)
		case "needs":
			job.Needs = stringList(value)
		case "if":
			setString(&job.If, ext, key, value)
		case "env":
			setMap(&job.Env, ext, key, value)
		case "outputs":
			setMap(&job.Outputs, ext, key, value)
		case "timeout-minutes":
			setInt(&job.TimeoutMinutes, ext, key, value)
		case "continue-on-error":
			setBool(&job.ContinueOnError, ext, key, value)
		case "steps":
			job.Steps = stepsFromDocument(id, value)
		default:
			ext.Set(key, value)
		}

		return true
	})

	if job.RunsOn == "" && !ext.Has("runs-on") {
		job.RunsOn = models.DefaultRunner
	}

	if ext.Len() > 0 {
		job.Extensions = ext
	}

	return job
}

func stepsFromDocument(jobID string, value any) []*models.Step {
	list, ok := value.([]any)
	if !ok {
		return []*models.Step{}
	}

	docs := make([]*models.OrderedMap, len(list))
	taken := make(map[string]bool, len(list))
	explicit := make([]string, len(list))

	for i, item := range list {
		doc, ok := item.(*models.OrderedMap)
		if !ok {
			continue
		}

		docs[i] = doc

		raw, _ := doc.Get("id")
		if id, ok := scalarString(raw); ok && id != "" && !taken[id] {
			taken[id] = true
			explicit[i] = id
		}
	}

	steps := make([]*models.Step, 0, len(list))

	for i, doc := range docs {
		if doc == nil {
			continue
		}

		id := explicit[i]
		if id == "" {
			id = models.StepID(jobID, i+1, taken)
		}

		steps = append(steps, stepFromDocument(id, doc))
	}

	return steps
}

func stepFromDocument(id string, doc *models.OrderedMap) *models.Step {
	step := &models.Step{ID: id}
	ext := models.NewOrderedMap()

	doc.Range(func(key string, value any) bool {
		switch key {
		case "id":
		case "name":
			setString(&step.Name, ext, key, value)
		case "uses":
			setString(&step.Uses, ext, key, value)
		case "with":
			setMap(&step.With, ext, key, value)
		case "run":
			setString(&step.Run, ext, key, value)
		case "shell":
			setString(&step.Shell, ext, key, value)
		case "env":
			setMap(&step.Env, ext, key, value)
		case "if":
			setString(&step.If, ext, key, value)
		case "continue-on-error":
			setBool(&step.ContinueOnError, ext, key, value)
		case "timeout-minutes":
			setInt(&step.TimeoutMinutes, ext, key, value)
		case "working-directory":
			setString(&step.WorkingDirectory, ext, key, value)
		default:
			ext.Set(key, value)
		}

		return true
	})

	if step.Uses != "" && step.Run != "" {
		step.Run = ""
	}

	if ext.Len() > 0 {
		step.Extensions = ext
	}

	return step
}

func setString(dst *string, ext *models.OrderedMap, key string, value any) {
	if value == nil {
		return
	}

	if s, ok := scalarString(value); ok {
		*dst = s

		return
	}

	ext.Set(key, value)
}

func setMap(dst **models.OrderedMap, ext *models.OrderedMap, key string, value any) {
	switch val := value.(type) {
	case nil:
	case *models.OrderedMap:
		*dst = val
	default:
		ext.Set(key, value)
	}
}

func setInt(dst **int, ext *models.OrderedMap, key string, value any) {
	switch val := value.(type) {
	case nil:
	case int:
		*dst = &val
	default:
		ext.Set(key, value)
	}
}

func setBool(dst **bool, ext *models.OrderedMap, key string, value any) {
	switch val := value.(type) {
	case nil:
	case bool:
		*dst = &val
	default:
		ext.Set(key, value)
	}
}

// scalarString renders scalar values as strings; collections are rejected.
func scalarString(value any) (string, bool) {
	switch val := value.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return formatFloat(val), true
	default:
		return "", false
	}
}

func stringList(value any) []string {
	switch val := value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}

		return out
	default:
		if s, ok := scalarString(val); ok {
			return []string{s}
		}

		return nil
	}
}
