package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Source = DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "reader",
		Database: "ops",
	}
	cfg.Models = []ModelConfig{
		{
			Name:   "Site",
			Fields: []FieldConfig{{Name: "id"}, {Name: "name"}},
		},
		{
			Name: "Job",
			Fields: []FieldConfig{
				{Name: "id"},
				{Name: "site", Reference: "Site"},
			},
		},
	}
	return cfg
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(true); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestSourceSkippedWhenNotRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Source = DatabaseConfig{}

	if err := cfg.Validate(false); err != nil {
		t.Errorf("expected source to be ignored, got error: %v", err)
	}
	if err := cfg.Validate(true); err == nil {
		t.Error("expected error for empty source")
	}
}

func TestInvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Port = 70000

	err := cfg.Validate(true)
	if err == nil || !strings.Contains(err.Error(), "source.port") {
		t.Errorf("expected source.port error, got %v", err)
	}
}

func TestNoModels(t *testing.T) {
	cfg := validConfig()
	cfg.Models = nil

	err := cfg.Validate(false)
	if err == nil || !strings.Contains(err.Error(), "at least one model") {
		t.Errorf("expected models error, got %v", err)
	}
}

func TestModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Models[0].Name = "" },
			wantErr: "models[0].name",
		},
		{
			name:    "duplicate model",
			mutate:  func(c *Config) { c.Models[1].Name = "Site" },
			wantErr: "defined more than once",
		},
		{
			name: "duplicate field",
			mutate: func(c *Config) {
				c.Models[0].Fields = append(c.Models[0].Fields, FieldConfig{Name: "name"})
			},
			wantErr: "field \"name\" is defined more than once",
		},
		{
			name:    "unknown reference",
			mutate:  func(c *Config) { c.Models[1].Fields[1].Reference = "Region" },
			wantErr: "referenced model \"Region\" is not defined",
		},
		{
			name:    "undeclared key",
			mutate:  func(c *Config) { c.Models[0].Key = []string{"code"} },
			wantErr: "key field \"code\"",
		},
		{
			name:    "no fields",
			mutate:  func(c *Config) { c.Models[0].Fields = nil },
			wantErr: "at least one field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate(false)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReferenceByAka(t *testing.T) {
	cfg := validConfig()
	cfg.Models[0].Aka = "Place"
	cfg.Models[1].Fields[1].Reference = "Place"

	if err := cfg.Validate(false); err != nil {
		t.Errorf("expected aka reference to be valid, got %v", err)
	}
}

func TestEngineValidation(t *testing.T) {
	tests := []struct {
		name    string
		engine  EngineConfig
		wantErr string
	}{
		{name: "bad alias pattern", engine: EngineConfig{AliasPattern: "("}, wantErr: "engine.alias_pattern"},
		{name: "bad key order", engine: EngineConfig{KeyOrder: "random"}, wantErr: "engine.key_order"},
		{name: "bad backrefs", engine: EngineConfig{Backrefs: "camel"}, wantErr: "engine.backrefs"},
		{name: "negative similar limit", engine: EngineConfig{SimilarLimit: -1}, wantErr: "engine.similar_limit"},
		{name: "negative chunk size", engine: EngineConfig{ChunkSize: -1}, wantErr: "engine.chunk_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Engine = tt.engine

			err := cfg.Validate(false)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInvalidBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.BatchSize = 0

	err := cfg.Validate(false)
	if err == nil || !strings.Contains(err.Error(), "transport.batch_size") {
		t.Errorf("expected batch_size error, got %v", err)
	}
}

func TestMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Host = ""
	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "xml"

	err := cfg.Validate(true)
	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(validationErrs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(validationErrs), validationErrs)
	}
}
