package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/util"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfig is returned when no project config can be found.
	ErrNoConfig = errors.New("no assetc config found")
	// ErrInvalidConfig is returned when a config fails validation or
	// normalisation.
	ErrInvalidConfig = errors.New("invalid assetc config")
)

// DefaultReloadPort is the live-reload websocket port.
const DefaultReloadPort = 35729

type Config struct {
	Version        int                   `yaml:"version"`
	Sources        []string              `yaml:"sources,omitempty"`
	FileExtensions map[string][]string   `yaml:"fileExtensions,omitempty"`
	Workflows      map[string][][]string `yaml:"workflows,omitempty"`
	Compilers      map[string]string     `yaml:"compilers,omitempty"`
	Env            []string              `yaml:"env,omitempty"`
	Script         string                `yaml:"script,omitempty"`
	Server         ServerConfig          `yaml:"server,omitempty"`
	Build          []BuildConfig         `yaml:"build"`
	Logging        LoggingConfig         `yaml:"logging"`

	root string
	path string
}

type ServerConfig struct {
	Command    string            `yaml:"command,omitempty"`    // App server started by --serve
	Env        map[string]string `yaml:"env,omitempty"`        // Extra app server environment
	ReloadPort int               `yaml:"reloadPort,omitempty"` // Live-reload websocket port
}

type BuildConfig struct {
	Label       string        `yaml:"label,omitempty"`
	Input       StringList    `yaml:"input,omitempty"`
	Output      StringList    `yaml:"output,omitempty"`
	Type        string        `yaml:"type,omitempty"` // For generated builds
	Bundle      *bool         `yaml:"bundle,omitempty"`
	Boilerplate bool          `yaml:"boilerplate,omitempty"`
	Bootstrap   bool          `yaml:"bootstrap,omitempty"`
	AppServer   bool          `yaml:"appServer,omitempty"`
	WatchOnly   bool          `yaml:"watchOnly,omitempty"`
	Generate    *Generate     `yaml:"generate,omitempty"`
	Build       []BuildConfig `yaml:"build,omitempty"`
}

type LoggingConfig struct {
	Level string    `yaml:"level"`
	Sinks []LogSink `yaml:"sinks"`
}

type LogSink struct {
	Type      string `yaml:"type"`                 // "console" or "file"
	Filename  string `yaml:"filename,omitempty"`   // For file sink
	UseStderr bool   `yaml:"use_stderr,omitempty"` // For console sink
	Colorize  bool   `yaml:"colorize,omitempty"`   // For console sink
}

// StringList accepts either a scalar or a sequence of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*s = nil
			return nil
		}
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}

func (s StringList) MarshalYAML() (interface{}, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			ReloadPort: DefaultReloadPort,
		},
		Logging: LoggingConfig{
			Level: "info",
			Sinks: []LogSink{
				{
					Type:     "console",
					Colorize: true,
				},
			},
		},
	}
}

// Root returns the project directory the config was loaded from.
func (c *Config) Root() string {
	if c.root == "" {
		cwd, _ := os.Getwd()
		return cwd
	}
	return c.root
}

// Path returns the config file path, "" for in-memory configs.
func (c *Config) Path() string {
	return c.path
}

// SetRoot sets the project directory relative paths are resolved against.
func (c *Config) SetRoot(root string) {
	c.root = root
}

// Abs resolves path against the project root.
func (c *Config) Abs(path string) string {
	return util.MakeAbsolute(path, c.Root())
}

// SourceDirs returns the absolute source directories, defaulting to the
// project root.
func (c *Config) SourceDirs() []string {
	if len(c.Sources) == 0 {
		return []string{c.Root()}
	}
	dirs := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		dirs[i] = c.Abs(s)
	}
	return dirs
}

// EnvFiles returns the absolute .env paths, defaulting to <root>/.env.
func (c *Config) EnvFiles() []string {
	if len(c.Env) == 0 {
		return []string{filepath.Join(c.Root(), ".env")}
	}
	paths := make([]string, len(c.Env))
	for i, p := range c.Env {
		paths[i] = c.Abs(p)
	}
	return paths
}

// TypeExtensions returns the configured per-type source extensions.
func (c *Config) TypeExtensions() (map[src.FileType][]string, error) {
	out := make(map[src.FileType][]string, len(c.FileExtensions))
	for name, exts := range c.FileExtensions {
		typ, err := parseType(name)
		if err != nil {
			return nil, err
		}
		out[typ] = exts
	}
	return out, nil
}

// FileWorkflows returns file.DefaultWorkflows with configured overrides
// applied.
func (c *Config) FileWorkflows() (map[src.FileType]file.Workflow, error) {
	out := make(map[src.FileType]file.Workflow, len(file.DefaultWorkflows))
	for typ, w := range file.DefaultWorkflows {
		out[typ] = w
	}
	for name, stages := range c.Workflows {
		typ, err := parseType(name)
		if err != nil {
			return nil, err
		}
		w, err := file.ParseWorkflow(stages)
		if err != nil {
			return nil, fmt.Errorf("%w: workflow %s: %v", ErrInvalidConfig, name, err)
		}
		out[typ] = w
	}
	return out, nil
}

func parseType(name string) (src.FileType, error) {
	for _, typ := range src.FileTypes {
		if string(typ) == name {
			return typ, nil
		}
	}
	return "", fmt.Errorf("%w: unknown file type %q", ErrInvalidConfig, name)
}

// Find walks up from start to the nearest project config and loads it.
func Find(start string) (*Config, error) {
	_, path, err := util.FindProjectRoot(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConfig, err)
	}
	return Load(path)
}

// LoadConfig loads the config file found in projectRoot merged over the
// defaults.
func LoadConfig(projectRoot string) (*Config, error) {
	for _, name := range util.ConfigFilenames {
		path := filepath.Join(projectRoot, name)
		if !util.FileExists(path) {
			continue
		}
		if name == "package.json" && !hasPackageConfig(path) {
			continue
		}
		return Load(path)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoConfig, projectRoot)
}

// Load loads a config file merged over the defaults. The project root is the
// file's directory.
func Load(path string) (*Config, error) {
	override, err := LoadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg := MergeConfig(GetDefaultConfig(), override)
	cfg.path = path
	cfg.root = filepath.Dir(path)
	return cfg, nil
}

// LoadConfigFromFile loads and validates configuration from a specific file.
// package.json files are read from their "assetc" key.
func LoadConfigFromFile(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	doc := &node
	if filepath.Base(configFile) == "package.json" {
		doc = packageConfig(&node)
		if doc == nil {
			return nil, fmt.Errorf("%w: no \"assetc\" key in %s", ErrNoConfig, configFile)
		}
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}

	var config Config
	if err := doc.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func packageConfig(node *yaml.Node) *yaml.Node {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "assetc" {
			return node.Content[i+1]
		}
	}
	return nil
}

func hasPackageConfig(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return false
	}
	return packageConfig(&node) != nil
}

// SaveConfig writes config as YAML to path.
func SaveConfig(path string, config *Config) error {
	if err := util.EnsureFileDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeConfig merges override config into base config. Override values take precedence.
func MergeConfig(base, override *Config) *Config {
	if override == nil {
		return base
	}
	if base == nil {
		return override
	}

	result := *base

	if override.Version != 0 {
		result.Version = override.Version
	}
	if len(override.Sources) > 0 {
		result.Sources = override.Sources
	}
	result.FileExtensions = mergeMap(base.FileExtensions, override.FileExtensions)
	result.Workflows = mergeMap(base.Workflows, override.Workflows)
	result.Compilers = mergeMap(base.Compilers, override.Compilers)
	if len(override.Env) > 0 {
		result.Env = override.Env
	}
	if override.Script != "" {
		result.Script = override.Script
	}
	if len(override.Build) > 0 {
		result.Build = override.Build
	}

	if override.Server.Command != "" {
		result.Server.Command = override.Server.Command
	}
	if override.Server.ReloadPort != 0 {
		result.Server.ReloadPort = override.Server.ReloadPort
	}
	result.Server.Env = mergeMap(base.Server.Env, override.Server.Env)

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if len(override.Logging.Sinks) > 0 {
		result.Logging.Sinks = override.Logging.Sinks
	}

	if override.root != "" {
		result.root = override.root
		result.path = override.path
	}
	return &result
}

func mergeMap[V any](base, override map[string]V) map[string]V {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// InitializeLogger sets up the logger based on config
func InitializeLogger(config *Config, projectRoot string) error {
	level, err := logger.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var sinks []logger.Sink
	for _, sinkConfig := range config.Logging.Sinks {
		switch strings.ToLower(sinkConfig.Type) {
		case "console":
			sinks = append(sinks, logger.NewConsoleSink(sinkConfig.UseStderr, sinkConfig.Colorize))
		case "file":
			filename := sinkConfig.Filename
			if filename == "" {
				filename = "assetc.log"
			}
			filename = util.MakeAbsolute(filename, projectRoot)
			sink, err := logger.NewFileSink(filename)
			if err != nil {
				return fmt.Errorf("failed to create file sink: %w", err)
			}
			sinks = append(sinks, sink)
		default:
			return fmt.Errorf("unknown sink type: %s", sinkConfig.Type)
		}
	}

	logger.Initialize(sinks...)
	logger.SetLevel(level)
	return nil
}
