package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

// ErrMissingFence is returned when fenced output is expected but the fence
// markers are missing or out of order.
var ErrMissingFence = errors.New("input does not contain valid fence markers")

// ParseError is a malformed-output error: the content could not be parsed
// as the configured format, even after the repair retry for JSON. It
// carries the failure position and a short context window around it.
type ParseError struct {
	Format  extraction.FormatType
	Line    int
	Column  int
	Offset  int64
	Context string
	// ControlCharOffsets are positions of disallowed control characters
	// found in the content (anything below 0x20 except \n, \r, \t).
	ControlCharOffsets []int
	Err                error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s content at line %d column %d (offset %d): %v",
		e.Format, e.Line, e.Column, e.Offset, e.Err)
	if e.Context != "" {
		msg += fmt.Sprintf("; context: %q", e.Context)
	}
	if len(e.ControlCharOffsets) > 0 {
		msg += fmt.Sprintf("; disallowed control characters at offsets %v", e.ControlCharOffsets)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaError is a structural contract breach in otherwise-parseable
// content. Unlike ParseError it is never suppressed.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "extraction schema violation: " + e.Reason
}

// OrderedMap is a string-keyed mapping that preserves key encounter order.
// Extraction ordering depends on the order keys appear in the model
// output, which plain Go maps would destroy.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set stores value under key. A repeated key keeps its original position.
func (m *OrderedMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in encounter order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of keys.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// ToMap converts to a plain map, recursing into nested OrderedMaps.
func (m *OrderedMap) ToMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plainValue(m.values[k])
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *OrderedMap:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

// ExtractAndParseContent locates the payload within raw model output and
// parses it. With fenced output expected, the payload sits between the
// first ```<format> marker and the last bare ``` after it; otherwise the
// whole input is the payload. JSON gets one tolerant-repair retry before
// failing; YAML has no repair path.
func (r *Resolver) ExtractAndParseContent(raw string) (any, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: input is empty", ErrMissingFence)
	}

	content := raw
	if r.fenceOutput {
		leftKey := "```" + string(r.format)
		left := strings.Index(raw, leftKey)
		right := strings.LastIndex(raw, "```")
		if left == -1 || right == -1 || left >= right {
			return nil, ErrMissingFence
		}
		content = strings.TrimSpace(raw[left+len(leftKey) : right])
	}

	if r.format == extraction.FormatYAML {
		return r.parseYAML(content)
	}
	return r.parseJSON(content)
}

func (r *Resolver) parseJSON(content string) (any, error) {
	parsed, err := decodeJSONDocument(content)
	if err == nil {
		return parsed, nil
	}

	// One repair attempt for the usual LLM damage: unquoted keys,
	// single-quoted strings, trailing commas, unbalanced brackets.
	if repaired, repairErr := jsonrepair.JSONRepair(content); repairErr == nil {
		if parsed, reErr := decodeJSONDocument(repaired); reErr == nil {
			r.log.Debug("parsed model output after JSON repair")
			return parsed, nil
		}
	}

	return nil, newParseError(extraction.FormatJSON, content, jsonErrorOffset(content, err), err)
}

func (r *Resolver) parseYAML(content string) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return nil, newParseError(extraction.FormatYAML, content, 0, err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	parsed, err := yamlNodeValue(node)
	if err != nil {
		return nil, newParseError(extraction.FormatYAML, content, 0, err)
	}
	return parsed, nil
}

// decodeJSONDocument decodes a full JSON document preserving mapping key
// order and integer-ness of numbers.
func decodeJSONDocument(content string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("extra data after document at offset %d", dec.InputOffset())
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			om := NewOrderedMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				om.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return nil, err
			}
			return om, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		return normalizeNumber(t)
	default:
		// string, bool, nil
		return t, nil
	}
}

// normalizeNumber keeps integers as ints so extraction indices survive
// decoding; everything else becomes float64.
func normalizeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// yamlNodeValue converts a yaml.Node tree into ordered values: mappings
// become OrderedMaps, sequences slices, scalars their natural Go type.
func yamlNodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return yamlNodeValue(node.Alias)
	case yaml.MappingNode:
		om := NewOrderedMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			var key string
			if err := keyNode.Decode(&key); err != nil {
				return nil, fmt.Errorf("mapping key at line %d is not a string: %w", keyNode.Line, err)
			}
			val, err := yamlNodeValue(valNode)
			if err != nil {
				return nil, err
			}
			om.Set(key, val)
		}
		return om, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			val, err := yamlNodeValue(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return nil, nil
		case "!!int":
			var i int
			if err := node.Decode(&i); err != nil {
				return nil, err
			}
			return i, nil
		case "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return nil, err
			}
			return f, nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		default:
			var s string
			if err := node.Decode(&s); err != nil {
				return nil, err
			}
			return s, nil
		}
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %v at line %d", node.Kind, node.Line)
	}
}

// jsonErrorOffset pulls the failure offset out of a JSON decoding error.
func jsonErrorOffset(content string, err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return int64(len(content))
	}
	return 0
}

const parseContextWindow = 30

func newParseError(format extraction.FormatType, content string, offset int64, err error) *ParseError {
	line, column := 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}

	lo := offset - parseContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := offset + parseContextWindow
	if hi > int64(len(content)) {
		hi = int64(len(content))
	}

	var controlChars []int
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			controlChars = append(controlChars, i)
		}
	}

	return &ParseError{
		Format:             format,
		Line:               line,
		Column:             column,
		Offset:             offset,
		Context:            content[lo:hi],
		ControlCharOffsets: controlChars,
		Err:                err,
	}
}
