package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/runnr/pkg/models"
	"github.com/google/cel-go/cel"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

const checkoutAction = "actions/checkout"

// Validator runs the workflow rules. It is safe for concurrent use.
type Validator struct {
	schema     *gojsonschema.Schema
	cronParser cron.Parser
	env        *cel.Env
}

var (
	defaultValidator     *Validator
	defaultValidatorErr  error
	defaultValidatorOnce sync.Once
)

// New builds a Validator, compiling the embedded trigger schema and the
// expression environment.
func New() (*Validator, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	return &Validator{
		schema:     schema,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		env:        env,
	}, nil
}

// Validate checks the workflow with a shared default Validator.
func Validate(workflow *models.Workflow) Result {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = New()
	})

	if defaultValidatorErr != nil {
		panic(fmt.Errorf("failed to initialize validator: %w", defaultValidatorErr))
	}

	return defaultValidator.Validate(workflow)
}

// Validate checks the workflow and returns every issue found. It never
// modifies the workflow and runs in time linear in the number of steps.
func (v *Validator) Validate(workflow *models.Workflow) Result {
	c := &collector{}

	if workflow == nil {
		c.addError("", -1, "Workflow must have at least one trigger (on)")
		c.addError("", -1, "Workflow must have at least one job")

		return c.result()
	}

	v.validateWorkflow(c, workflow)

	known := make(map[string]bool, len(workflow.Jobs))
	for _, job := range workflow.Jobs {
		if job != nil {
			known[job.ID] = true
		}
	}

	seen := make(map[string]bool, len(workflow.Jobs))

	for _, job := range workflow.Jobs {
		if job == nil {
			continue
		}

		if seen[job.ID] {
			c.addError(job.ID, -1, fmt.Sprintf("Duplicate job id %q", job.ID))
		}

		seen[job.ID] = true

		v.validateJob(c, job, known)
	}

	validateCycles(c, workflow.Jobs)

	return c.result()
}

func (v *Validator) validateWorkflow(c *collector, workflow *models.Workflow) {
	if workflow.On.Len() == 0 {
		c.addError("", -1, "Workflow must have at least one trigger (on)")
	}

	v.validateSchema(c, workflow)
	v.validateSchedules(c, workflow.On)

	if len(workflow.Jobs) == 0 {
		c.addError("", -1, "Workflow must have at least one job")
	}

	if strings.TrimSpace(workflow.Name) == "" {
		c.addWarning("", -1, "Workflow has no name")
	}
}

func (v *Validator) validateJob(c *collector, job *models.Job, known map[string]bool) {
	if !job.HasRunner() {
		c.addError(job.ID, -1, fmt.Sprintf("Job %q must specify a runner (runs-on)", job.ID))
	}

	for _, need := range job.Needs {
		switch {
		case need == job.ID:
			c.addError(job.ID, -1, fmt.Sprintf("Job %q cannot depend on itself", job.ID))
		case !known[need]:
			c.addError(job.ID, -1, fmt.Sprintf("Job %q needs %q which does not exist", job.ID, need))
		}
	}

	if len(job.Steps) == 0 {
		c.addError(job.ID, -1, fmt.Sprintf("Job %q must have at least one step", job.ID))
	}

	if strings.TrimSpace(job.Name) == "" {
		c.addWarning(job.ID, -1, fmt.Sprintf("Job %q has no name", job.ID))
	}

	if job.If != "" {
		if msg := v.checkExpression(job.If); msg != "" {
			c.addWarning(job.ID, -1, fmt.Sprintf("Job %q if expression is not valid: %s", job.ID, msg))
		}
	}

	if first := firstStep(job.Steps); first != nil && !isCheckout(first.Uses) {
		c.addWarning(job.ID, -1, fmt.Sprintf("Job %q should start with a checkout step (%s)", job.ID, checkoutAction))
	}

	stepIDs := make(map[string]bool, len(job.Steps))

	for i, step := range job.Steps {
		if step == nil {
			continue
		}

		if step.ID != "" {
			if stepIDs[step.ID] {
				c.addError(job.ID, i, fmt.Sprintf("Job %q, step %d has duplicate id %q", job.ID, i+1, step.ID))
			}

			stepIDs[step.ID] = true
		}

		v.validateStep(c, job.ID, i, step)
	}
}

func (v *Validator) validateStep(c *collector, jobID string, index int, step *models.Step) {
	position := index + 1

	switch {
	case step.Uses == "" && step.Run == "":
		c.addError(jobID, index, fmt.Sprintf("Job %q, step %d must have either \"uses\" or \"run\"", jobID, position))
	case step.Uses != "" && step.Run != "":
		c.addWarning(jobID, index, fmt.Sprintf("Job %q, step %d has both \"uses\" and \"run\"; \"uses\" takes precedence", jobID, position))
	}

	if step.Run != "" && strings.TrimSpace(step.Name) == "" {
		c.addWarning(jobID, index, fmt.Sprintf("Job %q, step %d runs a command but has no name", jobID, position))
	}

	if step.Uses != "" && !isPinned(step.Uses) {
		c.addWarning(jobID, index, fmt.Sprintf("Job %q, step %d uses %q without a version (@ref)", jobID, position, step.Uses))
	}

	if step.If != "" {
		if msg := v.checkExpression(step.If); msg != "" {
			c.addWarning(jobID, index, fmt.Sprintf("Job %q, step %d if expression is not valid: %s", jobID, position, msg))
		}
	}
}

func (v *Validator) validateSchedules(c *collector, on *models.OrderedMap) {
	raw, ok := on.Get("schedule")
	if !ok {
		return
	}

	entries, ok := raw.([]any)
	if !ok {
		return
	}

	for _, entry := range entries {
		m, ok := entry.(*models.OrderedMap)
		if !ok {
			continue
		}

		value, _ := m.Get("cron")

		expr, ok := value.(string)
		if !ok {
			continue
		}

		if _, err := v.cronParser.Parse(expr); err != nil {
			c.addError("", -1, fmt.Sprintf("Schedule trigger has invalid cron expression %q: %v", expr, err))
		}
	}
}

func firstStep(steps []*models.Step) *models.Step {
	for _, step := range steps {
		if step != nil {
			return step
		}
	}

	return nil
}

func isCheckout(uses string) bool {
	return uses == checkoutAction || strings.HasPrefix(uses, checkoutAction+"@")
}

// isPinned reports whether an action reference names a version. Local
// actions and docker images are exempt.
func isPinned(uses string) bool {
	if strings.HasPrefix(uses, "./") || strings.HasPrefix(uses, "docker://") {
		return true
	}

	at := strings.LastIndex(uses, "@")

	return at > 0 && at < len(uses)-1
}
