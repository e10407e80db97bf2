// Package config loads QueryLens configuration from defaults, an optional
// querylens.yaml, QUERYLENS_-prefixed environment variables, and CLI flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// ConfigFileName is the primary config file name.
	ConfigFileName = "querylens.yaml"
	// ConfigFileNameAlt is the alternate config file name.
	ConfigFileNameAlt = "querylens.yml"

	envPrefix = "QUERYLENS_"
)

// EvaluatorConfig selects and parameterizes the embedded SQL evaluator.
type EvaluatorConfig struct {
	Engine string         `koanf:"engine"` // "sqlite" or "duckdb"
	Path   string         `koanf:"path"`   // database path, empty for in-memory
	Params map[string]any `koanf:"params"` // engine-specific options
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	StaticDir string `koanf:"static_dir"` // optional SPA directory served at /
}

// HistoryConfig holds query-history settings.
type HistoryConfig struct {
	Path     string `koanf:"path"`
	Disabled bool   `koanf:"disabled"`
}

// Config is the full application configuration.
type Config struct {
	DataDir     string          `koanf:"data_dir"`
	Watch       bool            `koanf:"watch"`
	Verbose     bool            `koanf:"verbose"`
	PreviewRows int             `koanf:"preview_rows"`
	Evaluator   EvaluatorConfig `koanf:"evaluator"`
	Server      ServerConfig    `koanf:"server"`
	History     HistoryConfig   `koanf:"history"`

	// FileUsed records which config file was loaded, if any.
	FileUsed string `koanf:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PreviewRows: 50,
		Evaluator:   EvaluatorConfig{Engine: "sqlite"},
		Server:      ServerConfig{Host: "127.0.0.1", Port: 8080},
		History:     HistoryConfig{Path: "querylens_history.db"},
	}
}

// flagKeys maps CLI flag names onto config keys. Flags not listed here map
// by replacing dashes with underscores.
var flagKeys = map[string]string{
	"engine":     "evaluator.engine",
	"db-path":    "evaluator.path",
	"host":       "server.host",
	"port":       "server.port",
	"static-dir": "server.static_dir",
	"history":    "history.path",
	"no-history": "history.disabled",
}

// Load builds the configuration. cfgFile forces a specific config file; when
// empty, querylens.yaml / querylens.yml in the working directory is used if
// present. flags may be nil; only flags the user changed take effect.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"data_dir":         def.DataDir,
		"watch":            def.Watch,
		"verbose":          def.Verbose,
		"preview_rows":     def.PreviewRows,
		"evaluator.engine": def.Evaluator.Engine,
		"evaluator.path":   def.Evaluator.Path,
		"server.host":      def.Server.Host,
		"server.port":      def.Server.Port,
		"history.path":     def.History.Path,
		"history.disabled": def.History.Disabled,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	fileUsed := findConfigFile(cfgFile)
	if fileUsed != "" {
		if err := k.Load(file.Provider(fileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", fileUsed, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}

	// QUERYLENS_VERBOSE -> verbose, QUERYLENS_SERVER__PORT -> server.port.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.FileUsed = fileUsed
	return &cfg, nil
}

// findConfigFile picks the config file: an explicit path wins, otherwise the
// conventional names in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
