package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quillorm/quill/pkg/schema"
)

// Target is one generator entry: a language target and an output path.
type Target struct {
	Generator string `yaml:"generator"`
	Output    string `yaml:"output"`
}

// File is the on-disk shape of quill.yaml.
type File struct {
	Generators []Target `yaml:"generators"`
	Migrations string   `yaml:"migrations"`
	LogLevel   string   `yaml:"log_level"`
}

// Config holds all settings for codegen, migrate and the runtime client.
type Config struct {
	DSN        string
	Provider   string
	SchemaPath string
	Schema     *schema.Schema
	Generators []Target
	Migrations string
	LogLevel   string
}

var (
	envFuncRe   = regexp.MustCompile(`env\("([^"]+)"\)`)
	envInterpRe = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)
	quotedRe    = regexp.MustCompile(`^"([^"]*)"$`)
)

// Load reads the schema file for the datasource and the optional
// quill.yaml for generator targets, resolving env references in both.
func Load(schemaFile, configFile string) (*Config, error) {
	data, err := os.ReadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	sch, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	godotenv.Load()

	dsn, err := ResolveURL(sch.Datasource.URL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DSN:        dsn,
		Provider:   sch.Datasource.Provider,
		SchemaPath: schemaFile,
		Schema:     sch,
		Migrations: "migrations",
		LogLevel:   "info",
	}

	// generator blocks from the schema file come first; quill.yaml entries append
	for _, g := range sch.Generators {
		cfg.Generators = append(cfg.Generators, Target{Generator: g.Target, Output: Interpolate(g.Output)})
	}

	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			return cfg, nil
		}
		var file File
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		for _, t := range file.Generators {
			cfg.Generators = append(cfg.Generators, Target{Generator: t.Generator, Output: Interpolate(t.Output)})
		}
		if file.Migrations != "" {
			cfg.Migrations = Interpolate(file.Migrations)
		}
		if file.LogLevel != "" {
			cfg.LogLevel = file.LogLevel
		}
	}
	return cfg, nil
}

// ResolveURL resolves a datasource url expression: a quoted literal,
// an env("NAME") reference, or a literal containing ${env:NAME}.
func ResolveURL(raw string) (string, error) {
	if m := envFuncRe.FindStringSubmatch(raw); m != nil {
		dsn := os.Getenv(m[1])
		if dsn == "" {
			return "", fmt.Errorf("datasource env %s is not set", m[1])
		}
		return dsn, nil
	}
	if m := quotedRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	dsn := Interpolate(raw)
	if dsn == "" {
		return "", fmt.Errorf("datasource url is empty")
	}
	return dsn, nil
}

// Interpolate replaces each ${env:NAME} in s with the value of NAME.
func Interpolate(s string) string {
	return envInterpRe.ReplaceAllStringFunc(s, func(m string) string {
		name := envInterpRe.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}
