package schema

import (
	"fmt"
	"regexp"

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/logger"
)

// Describe converts a model configuration into a descriptor.
func Describe(m config.ModelConfig) Descriptor {
	d := Descriptor{
		Name:   m.Name,
		Aka:    m.Aka,
		Key:    append([]string(nil), m.Key...),
		Fields: make([]Field, len(m.Fields)),
	}
	for i, f := range m.Fields {
		d.Fields[i] = Field{
			Name:      f.Name,
			Aka:       f.Aka,
			Reference: f.Reference,
			Property:  f.Property,
			Type:      f.Type,
		}
	}
	return d
}

// FromConfig builds a registry holding every configured model. Computed
// accessors are attached by name through computed (model -> name -> accessor).
func FromConfig(cfg *config.Config, computed map[string]map[string]Computed, log *logger.Logger) (*Registry, error) {
	opts := Options{Log: log}

	if cfg.Engine.AliasPattern != "" {
		re, err := regexp.Compile(cfg.Engine.AliasPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid alias pattern: %w", err)
		}
		opts.AliasPattern = re
	}

	conv, ok := ConventionByName(cfg.Engine.Backrefs)
	if !ok {
		return nil, fmt.Errorf("unknown backrefs convention %q", cfg.Engine.Backrefs)
	}
	opts.Convention = conv

	reg := NewRegistry(opts)
	for _, m := range cfg.Models {
		d := Describe(m)
		d.Computed = computed[m.Name]
		if _, err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("failed to register model %s: %w", m.Name, err)
		}
	}

	if err := reg.Resolve(); err != nil {
		return nil, err
	}
	return reg, nil
}
