package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/dukex/runnr/pkg/models"
)

// ErrInvalidPatch is returned when a patch value does not fit the field it targets.
var ErrInvalidPatch = errors.New("invalid patch")

const extensionsKey = "extensions"

var (
	jobFields = fieldSet(
		"id", "name", "runs-on", "needs", "if", "env", "outputs",
		"timeout-minutes", "continue-on-error", "steps", extensionsKey,
	)
	stepFields = fieldSet(
		"id", "name", "uses", "with", "run", "shell", "env", "if",
		"continue-on-error", "timeout-minutes", "working-directory", extensionsKey,
	)
)

// strictFields are normalized rather than passed through, so a value of the
// wrong shape is rejected.
var strictFields = fieldSet("needs", "steps")

func fieldSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}

	return set
}

// patchJob returns a new job with the patch merged in. The id is kept.
func patchJob(job *models.Job, patch *models.OrderedMap) (*models.Job, error) {
	if needs, ok := patch.Get("needs"); ok {
		if s, ok := needs.(string); ok {
			patch = patch.Clone()
			patch.Set("needs", []any{s})
		}
	}

	var patched models.Job
	if err := merge(job, patch, jobFields, &patched); err != nil {
		return nil, err
	}

	patched.ID = job.ID
	if patched.Steps == nil && job.Steps != nil {
		patched.Steps = []*models.Step{}
	}

	patched.AssignStepIDs()

	return &patched, nil
}

// patchStep returns a new step with the patch merged in. A non-empty uses
// clears run, a non-empty run clears uses and with; uses wins when both
// are set.
func patchStep(step *models.Step, patch *models.OrderedMap) (*models.Step, error) {
	var patched models.Step
	if err := merge(step, patch, stepFields, &patched); err != nil {
		return nil, err
	}

	patched.ID = step.ID

	switch {
	case nonEmptyString(patch, "uses"):
		patched.Run = ""
	case nonEmptyString(patch, "run"):
		patched.Uses = ""
		patched.With = nil
	}

	return &patched, nil
}

func nonEmptyString(m *models.OrderedMap, key string) bool {
	v, _ := m.Get(key)
	s, ok := v.(string)

	return ok && s != ""
}

// merge encodes current to an ordered document, applies the patch and
// decodes the result into out. Keys outside fields, and values their typed
// field cannot hold, go to the extension map. A null value removes the key
// from both places.
func merge(current any, patch *models.OrderedMap, fields map[string]bool, out any) error {
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode entity: %w", err)
	}

	doc := models.NewOrderedMap()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}

	ext := models.NewOrderedMap()
	if raw, ok := doc.Get(extensionsKey); ok {
		if m, ok := raw.(*models.OrderedMap); ok {
			ext = m
		}
	}

	if raw, ok := patch.Get(extensionsKey); ok {
		switch m := raw.(type) {
		case nil:
			ext = models.NewOrderedMap()
		case *models.OrderedMap:
			ext = m.Clone()
		default:
			return fmt.Errorf("%w: extensions must be an object", ErrInvalidPatch)
		}
	}

	patch.Range(func(key string, value any) bool {
		if key == "id" || key == extensionsKey {
			return true
		}

		doc.Delete(key)
		ext.Delete(key)

		switch {
		case value == nil:
		case fields[key] && (strictFields[key] || fits(out, key, value)):
			doc.Set(key, models.CloneValue(value))
		default:
			ext.Set(key, models.CloneValue(value))
		}

		return true
	})

	if ext.Len() > 0 {
		doc.Set(extensionsKey, ext)
	} else {
		doc.Delete(extensionsKey)
	}

	data, err = json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	return nil
}

// fits reports whether value decodes into the typed field key of out.
func fits(out any, key string, value any) bool {
	data, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return false
	}

	probe := reflect.New(reflect.TypeOf(out).Elem()).Interface()

	return json.Unmarshal(data, probe) == nil
}
