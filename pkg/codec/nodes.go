package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dukex/runnr/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	// maxDepth bounds nesting when walking parsed documents.
	maxDepth = 256

	// maxNodes bounds the values produced from one document, which keeps
	// alias fan-out from exploding.
	maxNodes = 1_000_000
)

// toNode converts an opaque ordered value into a yaml node. Strings carry
// the !!str tag so the encoder quotes them only when a plain scalar would
// read back as another type.
func toNode(v any) *yaml.Node {
	switch val := v.(type) {
	case *models.OrderedMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		val.Range(func(key string, child any) bool {
			node.Content = append(node.Content, scalar("!!str", key), toNode(child))

			return true
		})

		return node
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			node.Content = append(node.Content, toNode(item))
		}

		return node
	case []string:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			node.Content = append(node.Content, scalar("!!str", item))
		}

		return node
	case nil:
		return scalar("!!null", "null")
	case string:
		return scalar("!!str", val)
	case bool:
		return scalar("!!bool", strconv.FormatBool(val))
	case int:
		return scalar("!!int", strconv.Itoa(val))
	case int64:
		return scalar("!!int", strconv.FormatInt(val, 10))
	case uint64:
		return scalar("!!int", strconv.FormatUint(val, 10))
	case float64:
		return scalar("!!float", formatFloat(val))
	default:
		node := &yaml.Node{}
		if err := node.Encode(val); err != nil {
			return scalar("!!str", fmt.Sprint(val))
		}

		return node
	}
}

// scalar builds a scalar node. Strings that a YAML 1.1 reader would take
// for a boolean are double quoted.
func scalar(tag, value string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}

	if tag == "!!str" && legacyBools[strings.ToLower(value)] {
		node.Style = yaml.DoubleQuotedStyle
	}

	return node
}

var legacyBools = map[string]bool{
	"y": true, "yes": true, "n": true, "no": true,
	"on": true, "off": true, "true": true, "false": true,
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}

// walker converts parsed yaml nodes into opaque ordered values, following
// aliases and merge keys.
type walker struct {
	visited int
}

func (w *walker) fromNode(node *yaml.Node, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("document nested deeper than %d levels", maxDepth)
	}

	w.visited++
	if w.visited > maxNodes {
		return nil, fmt.Errorf("document expands to more than %d values", maxNodes)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}

		return w.fromNode(node.Content[0], depth+1)
	case yaml.AliasNode:
		return w.fromNode(node.Alias, depth+1)
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return node.Value, nil //nolint:nilerr // unknown tags keep their text
		}

		return v, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))

		for _, child := range node.Content {
			v, err := w.fromNode(child, depth+1)
			if err != nil {
				return nil, err
			}

			list = append(list, v)
		}

		return list, nil
	case yaml.MappingNode:
		return w.mapping(node, depth)
	default:
		return nil, nil
	}
}

func (w *walker) mapping(node *yaml.Node, depth int) (*models.OrderedMap, error) {
	out := models.NewOrderedMap()

	var merges []*models.OrderedMap

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if key.Kind == yaml.ScalarNode && key.ShortTag() == "!!merge" {
			merged, err := w.mergeSources(value, depth)
			if err != nil {
				return nil, err
			}

			merges = append(merges, merged...)

			continue
		}

		if key.Kind != yaml.ScalarNode {
			continue
		}

		v, err := w.fromNode(value, depth+1)
		if err != nil {
			return nil, err
		}

		out.Set(key.Value, v)
	}

	for _, m := range merges {
		m.Range(func(k string, v any) bool {
			if !out.Has(k) {
				out.Set(k, v)
			}

			return true
		})
	}

	return out, nil
}

func (w *walker) mergeSources(node *yaml.Node, depth int) ([]*models.OrderedMap, error) {
	v, err := w.fromNode(node, depth+1)
	if err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case *models.OrderedMap:
		return []*models.OrderedMap{val}, nil
	case []any:
		out := make([]*models.OrderedMap, 0, len(val))
		for _, item := range val {
			if m, ok := item.(*models.OrderedMap); ok {
				out = append(out, m)
			}
		}

		return out, nil
	default:
		return nil, nil
	}
}
