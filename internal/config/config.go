// internal/config/config.go
//
// This package handles configuration and the .diskpuri directory structure.
// Runs keep their saved schemas, pattern plugins, and journals under a
// .diskpuri/ folder in the working directory.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/averyk/diskpuri/internal/schema"
)

const (
	// Dir is the name of the directory created in the working directory.
	Dir = ".diskpuri"

	defaultWriter = "dd"
)

const defaultConfigYAML = `# diskpuri configuration
version: 1

# External writer invoked for every pass. Must read its input from stdin,
# accept of=/bs=/count= arguments, and report progress on stderr.
writer: dd

# Block size applied to passes that do not set their own.
default_block_size: 1M

# Seconds to wait for the writer to exit after a graceful termination
# request before it is killed.
terminate_wait_seconds: 5
`

// Settings models .diskpuri/config.yaml.
type Settings struct {
	Version              int    `yaml:"version"`
	Writer               string `yaml:"writer"`
	DefaultBlockSize     string `yaml:"default_block_size"`
	TerminateWaitSeconds int    `yaml:"terminate_wait_seconds"`
}

// Config holds the runtime configuration.
type Config struct {
	// WorkDir is the directory diskpuri was started from.
	WorkDir string

	// ProjectDir is WorkDir/.diskpuri.
	ProjectDir string

	Settings Settings
}

// InitDir creates the .diskpuri directory structure in the given directory.
//
// Structure created:
// .diskpuri/
// ├── logs/      <- run journals
// ├── schemas/   <- saved pass schemas (yaml)
// └── patterns/  <- custom pattern plugins (.go, yaegi-interpreted)
func InitDir(workDir string) error {
	root := filepath.Join(workDir, Dir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "schemas"),
		filepath.Join(root, "patterns"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureConfigFile(filepath.Join(root, "config.yaml"))
}

// New loads configuration for the given working directory, applying defaults
// when no config file exists yet.
func New(workDir string) (*Config, error) {
	cfg := &Config{
		WorkDir:    workDir,
		ProjectDir: filepath.Join(workDir, Dir),
		Settings:   defaultSettings(),
	}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the directory holding run journals.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ProjectDir, "logs")
}

// JournalPath returns the run journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "runs.log")
}

// SchemasDir returns the directory holding saved schemas.
func (c *Config) SchemasDir() string {
	return filepath.Join(c.ProjectDir, "schemas")
}

// PatternsDir returns the directory scanned for pattern plugins.
func (c *Config) PatternsDir() string {
	return filepath.Join(c.ProjectDir, "patterns")
}

// ConfigPath returns the on-disk location of the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ProjectDir, "config.yaml")
}

// WriterCommand returns the configured writer split into argv form.
func (c *Config) WriterCommand() []string {
	fields := strings.Fields(c.Settings.Writer)
	if len(fields) == 0 {
		return []string{defaultWriter}
	}
	return fields
}

func (c *Config) load() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed Settings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Settings = parsed
	return nil
}

func defaultSettings() Settings {
	return Settings{
		Version:              1,
		Writer:               defaultWriter,
		DefaultBlockSize:     schema.DefaultBlockSize,
		TerminateWaitSeconds: 5,
	}
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if strings.TrimSpace(s.Writer) == "" {
		s.Writer = defaultWriter
	}
	if strings.TrimSpace(s.DefaultBlockSize) == "" {
		s.DefaultBlockSize = schema.DefaultBlockSize
	}
	if s.TerminateWaitSeconds <= 0 {
		s.TerminateWaitSeconds = 5
	}
}

func (s *Settings) normalize() {
	s.Writer = strings.TrimSpace(s.Writer)
	s.DefaultBlockSize = strings.TrimSpace(s.DefaultBlockSize)
}

func (s Settings) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if _, err := schema.ParseSize(s.DefaultBlockSize); err != nil {
		return fmt.Errorf("default_block_size: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
