// Package config provides engine options for textanchor with the usual
// layering: hardcoded defaults, then an optional YAML document, then
// TEXTANCHOR_-prefixed environment variables.
package config

import (
	"fmt"
)

// Options holds every tunable of the extraction engine.
type Options struct {
	// FenceOutput controls whether model output is expected inside
	// ```json / ```yaml fences.
	FenceOutput bool `koanf:"fence_output"`

	// Format is the payload format, "json" or "yaml".
	Format string `koanf:"format"`

	// ExtractionIndexSuffix marks keys that carry a sibling extraction's
	// output order. Empty disables the index convention: extractions are
	// then numbered in encounter order.
	ExtractionIndexSuffix string `koanf:"extraction_index_suffix"`

	// ExtractionAttributesSuffix marks keys that carry a sibling
	// extraction's attributes. Empty disables attribute collection.
	ExtractionAttributesSuffix string `koanf:"extraction_attributes_suffix"`

	// SuppressParseErrors logs malformed model output and continues with
	// an empty chunk result instead of failing the document. Schema
	// violations are never suppressed.
	SuppressParseErrors bool `koanf:"suppress_parse_errors"`

	// EnableFuzzyAlignment turns on the windowed fuzzy fallback for
	// extractions the exact phase could not anchor.
	EnableFuzzyAlignment bool `koanf:"enable_fuzzy_alignment"`

	// FuzzyAlignmentThreshold is the minimum token overlap ratio (0-1]
	// a fuzzy window must reach to be accepted.
	FuzzyAlignmentThreshold float64 `koanf:"fuzzy_alignment_threshold"`

	// AcceptMatchLesser accepts partial exact matches (extraction longer
	// than the matched span).
	AcceptMatchLesser bool `koanf:"accept_match_lesser"`

	// BatchLength is the number of chunk prompts per inference call.
	BatchLength int `koanf:"batch_length"`

	// ExtractionPasses is the number of sequential full sweeps; later
	// passes are merged first-pass-wins without overlaps.
	ExtractionPasses int `koanf:"extraction_passes"`

	// Logging configures the engine's logger.
	Logging LoggingOptions `koanf:"logging"`
}

// LoggingOptions configures the engine's zap logger.
type LoggingOptions struct {
	// Level is trace, debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		FenceOutput:                true,
		Format:                     "json",
		ExtractionIndexSuffix:      "_index",
		ExtractionAttributesSuffix: "_attributes",
		SuppressParseErrors:        false,
		EnableFuzzyAlignment:       true,
		FuzzyAlignmentThreshold:    0.75,
		AcceptMatchLesser:          true,
		BatchLength:                1,
		ExtractionPasses:           1,
		Logging: LoggingOptions{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the options for inconsistent values.
func (o *Options) Validate() error {
	if o.Format != "json" && o.Format != "yaml" {
		return fmt.Errorf("unsupported format %q (want json or yaml)", o.Format)
	}
	if o.FuzzyAlignmentThreshold <= 0 || o.FuzzyAlignmentThreshold > 1 {
		return fmt.Errorf("fuzzy_alignment_threshold %v out of range (0, 1]", o.FuzzyAlignmentThreshold)
	}
	if o.BatchLength < 1 {
		return fmt.Errorf("batch_length must be >= 1, got %d", o.BatchLength)
	}
	if o.ExtractionPasses < 1 {
		return fmt.Errorf("extraction_passes must be >= 1, got %d", o.ExtractionPasses)
	}
	if o.Logging.Format != "json" && o.Logging.Format != "console" {
		return fmt.Errorf("unsupported logging format %q (want json or console)", o.Logging.Format)
	}
	return nil
}
