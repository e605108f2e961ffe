// Package config loads the optional fbsdump YAML configuration. Command
// line flags override anything set here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fbsdump/internal/meta"
	"fbsdump/internal/schema"
)

// Config mirrors the file layout:
//
//	builder:
//	  type: FlatBuffers.FlatBufferBuilder
//	  start_object: 0x1a2b30
//	  end_object: 0x1a2c10
//	namespace: Game.Data
//	interface: FlatBuffers.IFlatbufferObject
//	workers: 8
//	mode: strict
//	max_steps: 4096
//	max_func_bytes: 65536
//	strip_underscores: false
type Config struct {
	Builder          BuilderConfig `yaml:"builder"`
	Namespace        string        `yaml:"namespace"`
	Interface        string        `yaml:"interface"`
	Workers          int           `yaml:"workers"`
	Mode             string        `yaml:"mode"`
	MaxSteps         int           `yaml:"max_steps"`
	MaxFuncBytes     int           `yaml:"max_func_bytes"`
	StripUnderscores *bool         `yaml:"strip_underscores"`
}

// BuilderConfig names the builder type and optionally pins the primitive
// addresses when metadata lacks them.
type BuilderConfig struct {
	Type        string    `yaml:"type"`
	StartObject meta.Addr `yaml:"start_object"`
	EndObject   meta.Addr `yaml:"end_object"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	strip := true
	return &Config{
		Builder:          BuilderConfig{Type: meta.DefaultBuilderType},
		Interface:        meta.DefaultInterface,
		Mode:             schema.ModeBestEffort.String(),
		StripUnderscores: &strip,
	}
}

// Parse decodes a configuration document over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a configuration file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

func (c *Config) Validate() error {
	if _, err := schema.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers < 0 || c.MaxSteps < 0 || c.MaxFuncBytes < 0 {
		return fmt.Errorf("config: workers, max_steps and max_func_bytes must not be negative")
	}
	return nil
}

// Strip reports whether field names lose their underscores.
func (c *Config) Strip() bool {
	return c.StripUnderscores == nil || *c.StripUnderscores
}

// ResolveBuilder looks the builder primitives up in res, then applies the
// pinned addresses. Fully pinned addresses skip the lookup, so a builder
// type missing from metadata is not an error.
func (c *Config) ResolveBuilder(res meta.Resolver) (schema.Builder, error) {
	pinned := schema.Builder{StartObject: uint64(c.Builder.StartObject), EndObject: uint64(c.Builder.EndObject)}
	if pinned.StartObject != 0 && pinned.EndObject != 0 {
		return pinned, nil
	}
	b, err := meta.ResolveBuilder(res, c.Builder.Type)
	if err != nil {
		return schema.Builder{}, err
	}
	if pinned.StartObject != 0 {
		b.StartObject = pinned.StartObject
	}
	if pinned.EndObject != 0 {
		b.EndObject = pinned.EndObject
	}
	return b, nil
}
