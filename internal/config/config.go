// Package config provides configuration structures and loading for gofetch.
package config

// Config represents the complete application configuration.
type Config struct {
	Source    DatabaseConfig  `yaml:"source" mapstructure:"source"`
	Models    []ModelConfig   `yaml:"models" mapstructure:"models"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ModelConfig describes one record schema.
type ModelConfig struct {
	Name   string        `yaml:"name" mapstructure:"name"`
	Aka    string        `yaml:"aka" mapstructure:"aka"`     // alternate name, derived from name when empty
	Table  string        `yaml:"table" mapstructure:"table"` // source table, defaults to name
	Key    []string      `yaml:"key" mapstructure:"key"`     // identity fields, defaults to ["id"]
	Fields []FieldConfig `yaml:"fields" mapstructure:"fields"`
}

// FieldConfig describes one field of a model.
type FieldConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Aka       string `yaml:"aka" mapstructure:"aka"`
	Reference string `yaml:"reference" mapstructure:"reference"` // referenced model name
	Property  string `yaml:"property" mapstructure:"property"`   // key on the referenced model, defaults to its identity
	Type      string `yaml:"type" mapstructure:"type"`
	Column    string `yaml:"column" mapstructure:"column"` // source column, defaults to name
}

// EngineConfig holds the named switches of the fetch engine.
type EngineConfig struct {
	ClassifyExtra bool   `yaml:"classify_extra" mapstructure:"classify_extra"`
	AliasPattern  string `yaml:"alias_pattern" mapstructure:"alias_pattern"` // regexp removed from model names to derive aka
	KeyOrder      string `yaml:"key_order" mapstructure:"key_order"`         // declared or sorted
	Backrefs      string `yaml:"backrefs" mapstructure:"backrefs"`           // name or plural
	SimilarLimit  int    `yaml:"similar_limit" mapstructure:"similar_limit"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// TransportConfig represents settings of the SQL transport.
type TransportConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Engine: DefaultEngineConfig(),
		Transport: TransportConfig{
			BatchSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultEngineConfig returns the engine switches used when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ClassifyExtra: false,
		KeyOrder:      "declared",
		Backrefs:      "name",
		SimilarLimit:  64,
		ChunkSize:     256 * 256,
	}
}

// GetModel returns the model configuration with the given name or aka.
func (c *Config) GetModel(name string) (*ModelConfig, bool) {
	for i := range c.Models {
		m := &c.Models[i]
		if m.Name == name || (m.Aka != "" && m.Aka == name) {
			return m, true
		}
	}
	return nil, false
}

// TableName returns the source table of the model.
func (m *ModelConfig) TableName() string {
	if m.Table != "" {
		return m.Table
	}
	return m.Name
}

// Columns maps field names to source columns.
func (m *ModelConfig) Columns() map[string]string {
	cols := make(map[string]string, len(m.Fields))
	for _, f := range m.Fields {
		col := f.Column
		if col == "" {
			col = f.Name
		}
		cols[f.Name] = col
	}
	return cols
}
