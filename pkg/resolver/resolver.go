// Package resolver parses raw, possibly malformed model output into
// ordered extraction records. It handles fenced and bare JSON/YAML
// payloads, repairs common JSON damage once before giving up, validates
// the extractions schema, and orders records by the configured index-key
// convention.
package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

// ExtractionsKey is the required top-level key of the payload.
const ExtractionsKey = "extractions"

// Config holds resolver settings. Start from DefaultConfig: the zero value
// disables fencing and both suffix conventions.
type Config struct {
	// FenceOutput expects the payload inside ```json / ```yaml fences.
	FenceOutput bool
	// Format is the payload format. Empty defaults to JSON.
	Format extraction.FormatType
	// ExtractionIndexSuffix marks keys carrying a sibling extraction's
	// output order. Empty disables the convention.
	ExtractionIndexSuffix string
	// ExtractionAttributesSuffix marks keys carrying a sibling
	// extraction's attributes. Empty disables attribute collection.
	ExtractionAttributesSuffix string
}

// DefaultConfig returns the conventional resolver settings: fenced JSON
// with "_index" and "_attributes" suffixes.
func DefaultConfig() Config {
	return Config{
		FenceOutput:                true,
		Format:                     extraction.FormatJSON,
		ExtractionIndexSuffix:      "_index",
		ExtractionAttributesSuffix: "_attributes",
	}
}

// Resolver converts model output text into extraction records.
type Resolver struct {
	fenceOutput      bool
	format           extraction.FormatType
	indexSuffix      string
	attributesSuffix string
	log              *zap.Logger
}

// New creates a Resolver. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) *Resolver {
	format := cfg.Format
	if format == "" {
		format = extraction.FormatJSON
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		fenceOutput:      cfg.FenceOutput,
		format:           format,
		indexSuffix:      cfg.ExtractionIndexSuffix,
		attributesSuffix: cfg.ExtractionAttributesSuffix,
		log:              log,
	}
}

// Resolve parses raw model output into ordered, position-less extraction
// records. With suppressParseErrors, malformed output is logged and an
// empty result returned; schema violations always propagate.
func (r *Resolver) Resolve(raw string, suppressParseErrors bool) ([]*extraction.Extraction, error) {
	groups, err := r.StringToExtractionData(raw)
	if err != nil {
		var schemaErr *SchemaError
		if suppressParseErrors && !errors.As(err, &schemaErr) {
			r.log.Error("failed to parse model output, continuing with empty result",
				zap.Error(err), zap.Int("raw_len", len(raw)))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	return r.ExtractOrderedExtractions(groups)
}

// StringToExtractionData parses raw model output and validates the
// payload shape: a mapping with an "extractions" key holding a list of
// mappings whose values are strings, ints, floats, mappings, lists or
// null.
func (r *Resolver) StringToExtractionData(raw string) ([]*OrderedMap, error) {
	parsed, err := r.ExtractAndParseContent(raw)
	if err != nil {
		return nil, err
	}

	parsedMap, ok := parsed.(*OrderedMap)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("content must be a mapping with an %q key", ExtractionsKey)}
	}
	rawList, ok := parsedMap.Get(ExtractionsKey)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("content must contain an %q key", ExtractionsKey)}
	}
	list, ok := rawList.([]any)
	if !ok {
		return nil, &SchemaError{Reason: "the extractions must be a sequence (list) of mappings"}
	}

	groups := make([]*OrderedMap, 0, len(list))
	for _, item := range list {
		group, ok := item.(*OrderedMap)
		if !ok {
			return nil, &SchemaError{Reason: "each item in the sequence must be a mapping"}
		}
		for _, key := range group.Keys() {
			value, _ := group.Get(key)
			if !isAllowedValue(value) {
				return nil, &SchemaError{Reason: fmt.Sprintf(
					"value of key %q has disallowed type %T: values must be strings, integers, floats, mappings, lists or null",
					key, value)}
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func isAllowedValue(v any) bool {
	switch v.(type) {
	case string, int, float64, *OrderedMap, []any, nil:
		return true
	default:
		return false
	}
}

// valueToString renders a payload value as extraction text: strings pass
// through, scalars use their literal form, compounds their compact JSON
// encoding.
func valueToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(plainValue(v))
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
