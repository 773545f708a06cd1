package validation

import (
	_ "embed"
	"fmt"

	"github.com/dukex/runnr/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/workflow.schema.json
var workflowSchema []byte

func loadSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(workflowSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	return schema, nil
}

// validateSchema checks the shape of the trigger and permission blocks.
// Unknown events and job bodies are left alone.
func (v *Validator) validateSchema(c *collector, workflow *models.Workflow) {
	doc := models.NewOrderedMap()

	if workflow.On.Len() > 0 {
		doc.Set("on", workflow.On)
	}

	if workflow.Permissions != nil {
		doc.Set("permissions", workflow.Permissions)
	}

	if doc.Len() == 0 {
		return
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		c.addError("", -1, fmt.Sprintf("Workflow could not be checked against the trigger schema: %v", err))

		return
	}

	for _, resultErr := range result.Errors() {
		c.addError("", -1, fmt.Sprintf("Invalid value at %q: %s", resultErr.Field(), resultErr.Description()))
	}
}
