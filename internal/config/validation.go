package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
// The source database is only checked when requireSource is set, since
// schema-only commands never connect.
func (c *Config) Validate(requireSource bool) error {
	var errors ValidationErrors

	if requireSource {
		if err := c.validateDatabase("source", &c.Source); err != nil {
			errors = append(errors, err...)
		}
	}

	if len(c.Models) == 0 {
		errors = append(errors, ValidationError{
			Field:   "models",
			Message: "at least one model must be defined",
		})
	}
	if err := c.validateModels(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateEngine(); err != nil {
		errors = append(errors, err...)
	}

	if c.Transport.BatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateModels() ValidationErrors {
	var errors ValidationErrors

	names := make(map[string]bool)
	for i := range c.Models {
		m := &c.Models[i]
		prefix := fmt.Sprintf("models[%d]", i)

		if m.Name == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: "name is required",
			})
			continue
		}
		if names[m.Name] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("model %q is defined more than once", m.Name),
			})
		}
		names[m.Name] = true
		if m.Aka != "" {
			names[m.Aka] = true
		}

		if len(m.Fields) == 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".fields",
				Message: "at least one field is required",
			})
		}

		fields := make(map[string]bool)
		for j, f := range m.Fields {
			fieldPrefix := fmt.Sprintf("%s.fields[%d]", prefix, j)
			if f.Name == "" {
				errors = append(errors, ValidationError{
					Field:   fieldPrefix + ".name",
					Message: "field name is required",
				})
				continue
			}
			if fields[f.Name] {
				errors = append(errors, ValidationError{
					Field:   fieldPrefix + ".name",
					Message: fmt.Sprintf("field %q is defined more than once", f.Name),
				})
			}
			fields[f.Name] = true
		}

		for _, k := range m.Key {
			if !fields[k] {
				errors = append(errors, ValidationError{
					Field:   prefix + ".key",
					Message: fmt.Sprintf("key field %q is not a declared field", k),
				})
			}
		}
	}

	// References are checked once every model name is known.
	for i, m := range c.Models {
		for j, f := range m.Fields {
			if f.Reference != "" && !names[f.Reference] {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("models[%d].fields[%d].reference", i, j),
					Message: fmt.Sprintf("referenced model %q is not defined", f.Reference),
				})
			}
		}
	}

	return errors
}

func (c *Config) validateEngine() ValidationErrors {
	var errors ValidationErrors

	if c.Engine.AliasPattern != "" {
		if _, err := regexp.Compile(c.Engine.AliasPattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "engine.alias_pattern",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	validOrders := map[string]bool{"declared": true, "sorted": true, "": true}
	if !validOrders[c.Engine.KeyOrder] {
		errors = append(errors, ValidationError{
			Field:   "engine.key_order",
			Message: "key_order must be 'declared' or 'sorted'",
		})
	}

	validBackrefs := map[string]bool{"name": true, "plural": true, "": true}
	if !validBackrefs[c.Engine.Backrefs] {
		errors = append(errors, ValidationError{
			Field:   "engine.backrefs",
			Message: "backrefs must be 'name' or 'plural'",
		})
	}

	if c.Engine.SimilarLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.similar_limit",
			Message: "similar_limit cannot be negative",
		})
	}

	if c.Engine.ChunkSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.chunk_size",
			Message: "chunk_size cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
