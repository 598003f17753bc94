package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TEXTANCHOR_"

// Load builds Options from an optional YAML document and the environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (TEXTANCHOR_FORMAT, TEXTANCHOR_BATCH_LENGTH,
//     TEXTANCHOR_LOGGING_LEVEL, ...)
//  2. The yamlBytes document, if non-empty
//  3. DefaultOptions
//
// The engine has no config file path of its own; callers that keep
// options on disk read the file and pass the bytes here.
func Load(yamlBytes []byte) (Options, error) {
	k := koanf.New(".")

	if len(yamlBytes) > 0 {
		if err := k.Load(rawbytes.Provider(yamlBytes), yaml.Parser()); err != nil {
			return Options{}, fmt.Errorf("failed to load options yaml: %w", err)
		}
	}

	// TEXTANCHOR_LOGGING_LEVEL -> logging.level; everything else stays a
	// flat key with underscores (fence_output, batch_length, ...).
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if rest, ok := strings.CutPrefix(key, "logging_"); ok {
			return "logging." + rest
		}
		return key
	}), nil); err != nil {
		return Options{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	opts := DefaultOptions()
	if err := k.Unmarshal("", &opts); err != nil {
		return Options{}, fmt.Errorf("failed to unmarshal options: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("options validation failed: %w", err)
	}
	return opts, nil
}
