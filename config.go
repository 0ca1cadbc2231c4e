package wirekit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvProfile = "WIREKIT_PROFILE"
	EnvConfig  = "WIREKIT_CONFIG"
)

// Config adjusts a graph from a file. Plugin types are named as
// reflect.Type.String() prints them, e.g. "*app.Engine" or "app.Store".
//
//	profile: economy
//	lifecycles:
//	  app.Engine: Singleton
//	defaults:
//	  app.Engine: v8
//	profiles:
//	  economy:
//	    app.Engine: v6
type Config struct {
	Profile    string                       `yaml:"profile"`
	Lifecycles map[string]string            `yaml:"lifecycles"`
	Defaults   map[string]string            `yaml:"defaults"`
	Profiles   map[string]map[string]string `yaml:"profiles"`

	source string
}

// LoadConfig decodes a YAML configuration.
func LoadConfig(r io.Reader) (*Config, error) {
	return decodeConfig(r, "reader")
}

// LoadConfigFile decodes the YAML configuration at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ConfigError{Source: path, Cause: err}
	}
	defer f.Close()

	return decodeConfig(f, path)
}

func decodeConfig(r io.Reader, source string) (*Config, error) {
	cfg := &Config{source: source}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ConfigError{Source: source, Cause: err}
	}

	for typeName, raw := range cfg.Lifecycles {
		var lt Lifetime
		if err := lt.UnmarshalText([]byte(raw)); err != nil {
			return nil, ConfigError{Source: source, Field: "lifecycles." + typeName, Cause: err}
		}
	}

	return cfg, nil
}

// ConfigFromEnv loads .env files (".env" when none are given; missing files
// are ignored), then reads the YAML file named by WIREKIT_CONFIG, if any,
// and the profile from WIREKIT_PROFILE, which overrides the file's.
func ConfigFromEnv(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, ConfigError{Source: file, Cause: err}
		}
	}

	cfg := &Config{source: "env"}
	if path := os.Getenv(EnvConfig); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if profile := os.Getenv(EnvProfile); profile != "" {
		cfg.Profile = profile
	}

	return cfg, nil
}

// ApplyConfig applies cfg to the graph. Every plugin type it names must
// already be registered.
func (g *PluginGraph) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	source := cfg.source
	if source == "" {
		source = "config"
	}

	for _, typeName := range sortedKeys(cfg.Lifecycles) {
		t, ok := g.lookupByName(typeName)
		if !ok {
			return ConfigError{Source: source, Field: "lifecycles." + typeName, Cause: fmt.Errorf("unknown plugin type %q", typeName)}
		}

		var lt Lifetime
		if err := lt.UnmarshalText([]byte(cfg.Lifecycles[typeName])); err != nil {
			return ConfigError{Source: source, Field: "lifecycles." + typeName, Cause: err}
		}
		if err := g.SetLifecycle(t, lt); err != nil {
			return ConfigError{Source: source, Field: "lifecycles." + typeName, Cause: err}
		}
	}

	for _, typeName := range sortedKeys(cfg.Defaults) {
		t, ok := g.lookupByName(typeName)
		if !ok {
			return ConfigError{Source: source, Field: "defaults." + typeName, Cause: fmt.Errorf("unknown plugin type %q", typeName)}
		}
		if err := g.SetDefaultName(t, cfg.Defaults[typeName]); err != nil {
			return ConfigError{Source: source, Field: "defaults." + typeName, Cause: err}
		}
	}

	for _, profile := range sortedKeys(cfg.Profiles) {
		mappings := cfg.Profiles[profile]
		for _, typeName := range sortedKeys(mappings) {
			field := "profiles." + profile + "." + typeName
			t, ok := g.lookupByName(typeName)
			if !ok {
				return ConfigError{Source: source, Field: field, Cause: fmt.Errorf("unknown plugin type %q", typeName)}
			}
			if err := g.AddProfile(profile, t, mappings[typeName]); err != nil {
				return ConfigError{Source: source, Field: field, Cause: err}
			}
		}
	}

	if cfg.Profile != "" {
		if err := g.SetActiveProfile(cfg.Profile); err != nil {
			return ConfigError{Source: source, Field: "profile", Cause: err}
		}
	}

	return nil
}

// WithConfig applies cfg to the graph being built.
func WithConfig(cfg *Config) Module {
	return func(g *PluginGraph) error {
		return g.ApplyConfig(cfg)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
