package codec

import (
	"github.com/dukex/runnr/pkg/models"
)

// Prune returns v with nil values and empty collections removed, recursively.
// A collection that becomes empty once its children are pruned is removed
// too. Strings, including "", and false are kept. The second result reports
// whether anything is left.
func Prune(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case *models.OrderedMap:
		if val == nil {
			return nil, false
		}

		out := models.NewOrderedMap()

		val.Range(func(key string, child any) bool {
			if pruned, ok := Prune(child); ok {
				out.Set(key, pruned)
			}

			return true
		})

		if out.Len() == 0 {
			return nil, false
		}

		return out, true
	case []any:
		out := make([]any, 0, len(val))

		for _, item := range val {
			if pruned, ok := Prune(item); ok {
				out = append(out, pruned)
			}
		}

		if len(out) == 0 {
			return nil, false
		}

		return out, true
	case []string:
		if len(val) == 0 {
			return nil, false
		}

		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}

		return out, true
	default:
		return v, true
	}
}

// pruneTriggers prunes each event filter but keeps the event itself: an
// event whose filters prune away renders as an empty mapping. Events given
// as a list, such as schedule, have no empty mapping form and are dropped
// once the list prunes away.
func pruneTriggers(on *models.OrderedMap) *models.OrderedMap {
	out := models.NewOrderedMap()

	on.Range(func(event string, filters any) bool {
		pruned, ok := Prune(filters)

		switch {
		case ok:
			out.Set(event, pruned)
		case !isList(filters):
			out.Set(event, models.NewOrderedMap())
		}

		return true
	})

	return out
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	default:
		return false
	}
}
