package web

import (
	"regexp"

	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/templates"
	"github.com/dukex/runnr/pkg/validation"
	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// NewValidator returns the request validator used by the handlers. It
// knows the "identifier" tag for job ids.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})

	return v
}

// DocumentRequest carries a YAML pipeline document. Clients may also send
// the document as the raw request body.
type DocumentRequest struct {
	YAML string `json:"yaml" validate:"required"`
}

type TriggerRequest struct {
	On *models.OrderedMap `json:"on" validate:"required"`
}

type jobIDRule struct {
	ID string `validate:"omitempty,max=100,identifier"`
}

// ParseResponse is the viewer-mode result of parsing a document.
type ParseResponse struct {
	Workflow   *models.Workflow  `json:"workflow"`
	YAML       string            `json:"yaml"`
	Validation validation.Result `json:"validation"`
}

type TemplatesResponse struct {
	Templates  []templates.Template `json:"templates"`
	Categories []string             `json:"categories"`
}
