package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrorKind distinguishes the two ways loading a configuration document can
// fail, matching the ConfigError::Read / ConfigError::Parse taxonomy.
type ErrorKind int

const (
	// ErrorKindRead means the configuration file could not be opened or read.
	ErrorKindRead ErrorKind = iota
	// ErrorKindParse means the file was read but its contents were invalid.
	ErrorKindParse
)

// Error wraps a configuration load failure with the taxonomy the caller
// needs to decide how to report it. Both kinds are fatal at startup.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindRead:
		return fmt.Sprintf("config: could not read %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("config: could not parse %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Loader hydrates the runtime configuration, honoring a default -> file ->
// environment precedence, and tracks the snapshot generation counter used to
// invalidate the decision cache across reloads.
type Loader struct {
	envPrefix string
	path      string
	gen       atomic.Uint64
}

// NewLoader prepares a loader for the configuration document at path. path
// is the first positional command-line argument per spec §6.
func NewLoader(envPrefix, path string) *Loader {
	return &Loader{envPrefix: envPrefix, path: path}
}

// Load reads, parses, validates, and normalizes the configuration document,
// returning a ready-to-share Config. Every successful call bumps the internal
// generation counter, so two Config values produced by the same Loader never
// share a decision-cache key even if their contents are identical.
func (l *Loader) Load() (*Config, error) {
	defaults := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaults), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &Error{Kind: ErrorKindRead, Path: l.path, Err: err}
			}
			return nil, &Error{Kind: ErrorKindRead, Path: l.path, Err: err}
		}
		parser, err := parserForExtension(l.path)
		if err != nil {
			return nil, &Error{Kind: ErrorKindParse, Path: l.path, Err: err}
		}
		if err := k.Load(file.Provider(l.path), parser); err != nil {
			return nil, &Error{Kind: ErrorKindParse, Path: l.path, Err: err}
		}
	}

	if l.envPrefix != "" {
		// Environment variable names are case-insensitive in practice, but
		// koanf keys are camelCase; map each lowercased env key back onto the
		// key already known from the defaults or the file so it overrides it.
		known := make(map[string]string)
		for _, key := range k.Keys() {
			known[strings.ToLower(key)] = key
		}
		transform := func(s string) string {
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ToLower(key)
			if canonical, ok := known[key]; ok {
				return canonical
			}
			return key
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return nil, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &Error{Kind: ErrorKindParse, Path: l.path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: ErrorKindParse, Path: l.path, Err: err}
	}
	cfg.Normalize(l.gen.Add(1))
	return &cfg, nil
}

// parserForExtension picks the koanf parser matching the document's file
// extension. The declarative config format is deliberately not pinned to a
// single syntax: operators may write TOML (the original format), YAML, or
// JSON, and the loader dispatches on extension the way the teacher's rule
// loader dispatches between its supported formats.
func parserForExtension(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported configuration extension %q", filepath.Ext(path))
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap
// provider, mirroring the teacher's Loader.structToMap approach to layering
// defaults under file and environment values.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"thumbRootPath":  cfg.ThumbRootPath,
		"staticSitePath": cfg.StaticSitePath,
		"auditLogPath":   cfg.AuditLogPath,
		"logPath":        cfg.LogPath,
		"logLevel":       cfg.LogLevelText,
		"corsOrigin":     cfg.CORSOrigin,
		"listenAddress":  cfg.ListenAddress,
		"listenPort":     cfg.ListenPort,
		"metricsPort":    cfg.MetricsPort,
		"decisionCache": map[string]any{
			"backend":    cfg.DecisionCache.Backend,
			"ttlSeconds": cfg.DecisionCache.TTLSeconds,
			"redis": map[string]any{
				"address":  cfg.DecisionCache.Redis.Address,
				"username": cfg.DecisionCache.Redis.Username,
				"password": cfg.DecisionCache.Redis.Password,
				"db":       cfg.DecisionCache.Redis.DB,
			},
		},
	}
}
