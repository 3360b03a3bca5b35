package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CORTEX_INDEX_INDEX_CHECKED.
const EnvPrefix = "CORTEX_INDEX"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// envKeys are the scalar keys that can be overridden from the environment.
var envKeys = []string{
	"index.max_depth",
	"index.checked",
	"index.origin",
	"index.store_all_documentation",
	"index.system_symbols",
	"index.index_function_locals",
	"outputs.symbols",
	"outputs.refs",
	"outputs.relations",
	"outputs.include_graph",
	"frontend.warnings_as_errors",
	"frontend.max_include_depth",
	"storage.db_path",
	"concurrency",
	"watch.debounce_ms",
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CORTEX_INDEX_*)
// 2. Config file (.cortex/index.yml or .cortex/index.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("index")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, ".cortex"))

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("index.max_depth", defaults.Index.MaxDepth)
	v.SetDefault("index.checked", defaults.Index.Checked)
	v.SetDefault("index.origin", defaults.Index.Origin)
	v.SetDefault("index.store_all_documentation", defaults.Index.StoreAllDocumentation)
	v.SetDefault("index.system_symbols", defaults.Index.SystemSymbols)
	v.SetDefault("index.index_function_locals", defaults.Index.IndexFunctionLocals)

	v.SetDefault("outputs.symbols", defaults.Outputs.Symbols)
	v.SetDefault("outputs.refs", defaults.Outputs.Refs)
	v.SetDefault("outputs.relations", defaults.Outputs.Relations)
	v.SetDefault("outputs.include_graph", defaults.Outputs.IncludeGraph)

	v.SetDefault("frontend.include_dirs", defaults.Frontend.IncludeDirs)
	v.SetDefault("frontend.system_include_dirs", defaults.Frontend.SystemIncludeDirs)
	v.SetDefault("frontend.warnings_as_errors", defaults.Frontend.WarningsAsErrors)
	v.SetDefault("frontend.max_include_depth", defaults.Frontend.MaxIncludeDepth)

	v.SetDefault("paths.units", defaults.Paths.Units)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// LoadConfig loads configuration using the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
