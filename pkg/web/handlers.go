// Package web exposes the workflow editor over a REST API.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/runnr/pkg/codec"
	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/otelhelper"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/templates"
	"github.com/dukex/runnr/pkg/validation"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errInvalidJSON = errors.New("invalid JSON format")

type APIHandlers struct {
	editor    *editor.Engine
	slot      persistence.Slot
	changes   *ChangePublisher
	saves     PendingSaves
	validator *validator.Validate
	tracer    trace.Tracer
}

// PendingSaves is the autosave side of the storage slot.
type PendingSaves interface {
	// Cancel drops pending saves of snapshots up to the given editor
	// sequence and waits for a write in progress.
	Cancel(through uint64)
}

type HandlerOption func(*APIHandlers)

// WithPendingSaves lets ClearStorage stop autosave before the slot is cleared.
func WithPendingSaves(saves PendingSaves) HandlerOption {
	return func(h *APIHandlers) {
		h.saves = saves
	}
}

// NewAPIHandlers builds the handlers. changes may be nil when no event bus
// is configured; a nil tracer disables tracing.
func NewAPIHandlers(
	engine *editor.Engine,
	slot persistence.Slot,
	changes *ChangePublisher,
	validator *validator.Validate,
	tracer trace.Tracer,
	opts ...HandlerOption,
) *APIHandlers {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	h := &APIHandlers{
		editor:    engine,
		slot:      slot,
		changes:   changes,
		validator: validator,
		tracer:    tracer,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// nolint:spancheck // callers end the span
func (h *APIHandlers) startSpan(c fiber.Ctx, op editor.Op, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(otelhelper.OpKey, string(op)))

	return otelhelper.StartSpan(c.Context(), h.tracer, "editor."+string(op), attrs...)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	return c.JSON(h.editor.State())
}

func (h *APIHandlers) SetWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	_, span := h.startSpan(c, editor.OpSetWorkflow, attribute.String(otelhelper.WorkflowNameKey, workflow.Name))
	defer span.End()

	h.editor.SetWorkflow(&workflow)

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) ResetWorkflow(c fiber.Ctx) error {
	_, span := h.startSpan(c, editor.OpReset)
	defer span.End()

	h.editor.Reset()

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) Undo(c fiber.Ctx) error {
	_, span := h.startSpan(c, editor.OpUndo)
	defer span.End()

	if !h.editor.Undo() {
		return conflict(c, "Nothing to undo")
	}

	state := h.editor.State()
	span.SetAttributes(attribute.Int(otelhelper.HistoryIndexKey, state.HistoryIndex))

	return c.JSON(state)
}

func (h *APIHandlers) Redo(c fiber.Ctx) error {
	_, span := h.startSpan(c, editor.OpRedo)
	defer span.End()

	if !h.editor.Redo() {
		return conflict(c, "Nothing to redo")
	}

	state := h.editor.State()
	span.SetAttributes(attribute.Int(otelhelper.HistoryIndexKey, state.HistoryIndex))

	return c.JSON(state)
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	entries, err := h.editor.History()
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries":  entries,
		"index":    h.editor.State().HistoryIndex,
		"can_undo": h.editor.CanUndo(),
		"can_redo": h.editor.CanRedo(),
	})
}

func (h *APIHandlers) UpdateTrigger(c fiber.Ctx) error {
	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	_, span := h.startSpan(c, editor.OpUpdateTrigger)
	defer span.End()

	h.editor.UpdateTrigger(req.On)

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) SetSelection(c fiber.Ctx) error {
	var node models.SelectedNode
	if err := c.Bind().JSON(&node); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(node); err != nil {
		return badRequest(c, err.Error())
	}

	h.editor.SetSelectedNode(node)

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) AddJob(c fiber.Ctx) error {
	var job models.Job
	if err := c.Bind().JSON(&job); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(jobIDRule{ID: job.ID}); err != nil {
		return badRequest(c, "Job id must start with a letter or '_' and contain only alphanumeric characters, '-' or '_'")
	}

	if job.ID == "" {
		job.ID = newJobID()
	}

	if !job.HasRunner() {
		job.RunsOn = models.DefaultRunner
	}

	if job.Steps == nil {
		job.Steps = []*models.Step{}
	}

	_, span := h.startSpan(c, editor.OpAddJob, attribute.String(otelhelper.JobIDKey, job.ID))
	defer span.End()

	h.editor.AddJob(&job)

	return c.Status(fiber.StatusCreated).JSON(h.editor.State())
}

func (h *APIHandlers) UpdateJob(c fiber.Ctx) error {
	jobID := c.Params("jobId")

	var patch models.OrderedMap
	if err := c.Bind().JSON(&patch); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	_, span := h.startSpan(c, editor.OpUpdateJob, attribute.String(otelhelper.JobIDKey, jobID))
	defer span.End()

	applied, err := h.editor.UpdateJob(jobID, &patch)
	if err != nil {
		otelhelper.SetError(span, err)

		return mutationError(c, err)
	}

	if !applied {
		return notFound(c, "Job not found")
	}

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) DeleteJob(c fiber.Ctx) error {
	jobID := c.Params("jobId")

	_, span := h.startSpan(c, editor.OpDeleteJob, attribute.String(otelhelper.JobIDKey, jobID))
	defer span.End()

	if !h.editor.DeleteJob(jobID) {
		return notFound(c, "Job not found")
	}

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	jobID := c.Params("jobId")

	var step models.Step
	if err := c.Bind().JSON(&step); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	_, span := h.startSpan(c, editor.OpAddStep, attribute.String(otelhelper.JobIDKey, jobID))
	defer span.End()

	if !h.editor.AddStep(jobID, &step) {
		return notFound(c, "Job not found")
	}

	return c.Status(fiber.StatusCreated).JSON(h.editor.State())
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	jobID := c.Params("jobId")
	stepID := c.Params("stepId")

	var patch models.OrderedMap
	if err := c.Bind().JSON(&patch); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	_, span := h.startSpan(c, editor.OpUpdateStep,
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.String(otelhelper.StepIDKey, stepID),
	)
	defer span.End()

	applied, err := h.editor.UpdateStep(jobID, stepID, &patch)
	if err != nil {
		otelhelper.SetError(span, err)

		return mutationError(c, err)
	}

	if !applied {
		return notFound(c, "Step not found")
	}

	return c.JSON(h.editor.State())
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	jobID := c.Params("jobId")
	stepID := c.Params("stepId")

	_, span := h.startSpan(c, editor.OpDeleteStep,
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.String(otelhelper.StepIDKey, stepID),
	)
	defer span.End()

	if !h.editor.DeleteStep(jobID, stepID) {
		return notFound(c, "Step not found")
	}

	return c.JSON(h.editor.State())
}

// GetYAML renders the live preview. It always answers with a document;
// a workflow that cannot be rendered yields the placeholder comment.
func (h *APIHandlers) GetYAML(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/yaml; charset=utf-8")

	return c.SendString(codec.SafeSerialize(h.editor.Workflow()))
}

func (h *APIHandlers) GetValidation(c fiber.Ctx) error {
	return c.JSON(validation.Validate(h.editor.Workflow()))
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	workflow := h.editor.Workflow()

	text, err := codec.Serialize(workflow)
	if err != nil {
		return internalError(c, err)
	}

	c.Attachment(codec.Filename(workflow.Name))
	c.Set(fiber.HeaderContentType, "application/yaml; charset=utf-8")

	return c.SendString(text)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	text, err := h.documentBody(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := codec.Deserialize(text)
	if err != nil {
		return parseFailure(c, err)
	}

	_, span := h.startSpan(c, editor.OpSetWorkflow, attribute.String(otelhelper.WorkflowNameKey, workflow.Name))
	defer span.End()

	h.editor.SetWorkflow(workflow)

	return c.JSON(h.editor.State())
}

// ParseYAML is the read-only viewer: it parses and validates a document
// without touching the editor.
func (h *APIHandlers) ParseYAML(c fiber.Ctx) error {
	text, err := h.documentBody(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := codec.Deserialize(text)
	if err != nil {
		return parseFailure(c, err)
	}

	return c.JSON(ParseResponse{
		Workflow:   workflow,
		YAML:       codec.SafeSerialize(workflow),
		Validation: validation.Validate(workflow),
	})
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	var (
		list []templates.Template
		err  error
	)

	if category := c.Query("category"); category != "" {
		list, err = templates.ByCategory(category)
	} else {
		list, err = templates.All()
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(TemplatesResponse{
		Templates:  list,
		Categories: templates.Categories(),
	})
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	tmpl, err := templates.ByID(c.Params("id"))
	if err != nil {
		return templateError(c, err)
	}

	return c.JSON(tmpl)
}

func (h *APIHandlers) ApplyTemplate(c fiber.Ctx) error {
	id := c.Params("id")

	_, span := h.startSpan(c, editor.OpSetWorkflow, attribute.String(otelhelper.TemplateIDKey, id))
	defer span.End()

	if _, err := templates.Apply(h.editor, id); err != nil {
		return templateError(c, err)
	}

	return c.JSON(h.editor.State())
}

// ClearStorage removes the persisted workflow. The editor state is kept;
// autosave resumes with the next edit.
func (h *APIHandlers) ClearStorage(c fiber.Ctx) error {
	ctx, span := otelhelper.StartSpan(c.Context(), h.tracer, "storage.clear")
	defer span.End()

	sequence := h.editor.State().Sequence

	if h.saves != nil {
		h.saves.Cancel(sequence)
	}

	if err := h.slot.Clear(ctx); err != nil {
		otelhelper.SetError(span, err)

		return internalError(c, err)
	}

	if h.changes != nil {
		span.SetAttributes(attribute.String(otelhelper.SlotKeyKey, h.changes.SlotKey()))

		if err := h.changes.StorageCleared(ctx, sequence); err != nil {
			otelhelper.SetError(span, err)

			return internalError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storageCheck := "ok"
	status := "healthy"
	message := "runnr is healthy"
	httpStatus := http.StatusOK

	if err := h.slot.HealthCheck(c.Context()); err != nil {
		storageCheck = err.Error()
		status = "unhealthy"
		message = "runnr is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"storage": storageCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Ready is a readiness probe backed by the storage health check.
func (h *APIHandlers) Ready(c fiber.Ctx) bool {
	return h.slot.HealthCheck(c.Context()) == nil
}

// documentBody accepts either a DocumentRequest JSON body or the raw YAML text.
func (h *APIHandlers) documentBody(c fiber.Ctx) (string, error) {
	if !c.Is("json") {
		return string(c.Body()), nil
	}

	var req DocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return "", errInvalidJSON
	}

	if err := h.validator.Struct(req); err != nil {
		return "", err
	}

	return req.YAML, nil
}

func mutationError(c fiber.Ctx, err error) error {
	if errors.Is(err, editor.ErrInvalidPatch) {
		return badRequest(c, err.Error())
	}

	return internalError(c, err)
}

func parseFailure(c fiber.Ctx, err error) error {
	if codec.IsParseError(err) {
		return unprocessable(c, err.Error())
	}

	return internalError(c, err)
}

func templateError(c fiber.Ctx, err error) error {
	if errors.Is(err, templates.ErrTemplateNotFound) {
		return notFound(c, "Template not found")
	}

	return internalError(c, err)
}

func newJobID() string {
	return "job-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
