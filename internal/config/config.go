// Package config loads the shell configuration: defaults overlaid by an
// optional TOML file, then validated. Durations are exposed as methods so
// callers never convert milliseconds themselves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Validation errors.
var (
	// ErrInvalidValue indicates a configuration value out of range.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// EditorConfig configures live editing states.
type EditorConfig struct {
	// HistoryLimit bounds the undo stack depth per document.
	HistoryLimit int `toml:"history_limit"`

	// MaxLiveStates bounds how many tabs hold a live editing state.
	MaxLiveStates int `toml:"max_live_states"`
}

// RenderConfig configures diff computation and render scheduling.
type RenderConfig struct {
	// DebounceMS is the render debounce quiet period in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// ContextLines is the unchanged-line context around diff changes.
	ContextLines int `toml:"context_lines"`

	// LargeDocKB is the preview suppression threshold in KiB.
	LargeDocKB int `toml:"large_doc_kb"`

	// HighlightStyle is the chroma style for fenced code blocks.
	HighlightStyle string `toml:"highlight_style"`

	// MaxDiffCells bounds the LCS table as oldLines*newLines.
	MaxDiffCells int `toml:"max_diff_cells"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	// SaveDebounceMS is the session save quiet period in milliseconds.
	SaveDebounceMS int `toml:"save_debounce_ms"`

	// StateDir holds the session database and fallback file. Empty
	// resolves under the user config directory.
	StateDir string `toml:"state_dir"`
}

// ExtensionsConfig configures Lua hook scripts.
type ExtensionsConfig struct {
	// Enabled toggles loading of extension scripts.
	Enabled bool `toml:"enabled"`

	// Dir holds the *.lua scripts. Empty resolves to StateDir/scripts.
	Dir string `toml:"dir"`
}

// LoggingConfig configures the shell logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// File receives log output. Empty logs to stderr.
	File string `toml:"file"`
}

// Config is the complete shell configuration.
type Config struct {
	Editor     EditorConfig     `toml:"editor"`
	Render     RenderConfig     `toml:"render"`
	Session    SessionConfig    `toml:"session"`
	Extensions ExtensionsConfig `toml:"extensions"`
	Logging    LoggingConfig    `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			HistoryLimit:  200,
			MaxLiveStates: 5,
		},
		Render: RenderConfig{
			DebounceMS:     80,
			ContextLines:   3,
			LargeDocKB:     200,
			HighlightStyle: "monokai",
			MaxDiffCells:   10_000_000,
		},
		Session: SessionConfig{
			SaveDebounceMS: 2000,
		},
		Extensions: ExtensionsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// present but malformed or invalid file is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Editor.HistoryLimit < 1 {
		return fmt.Errorf("%w: editor.history_limit must be >= 1, got %d", ErrInvalidValue, c.Editor.HistoryLimit)
	}
	if c.Editor.MaxLiveStates < 1 {
		return fmt.Errorf("%w: editor.max_live_states must be >= 1, got %d", ErrInvalidValue, c.Editor.MaxLiveStates)
	}
	if c.Render.DebounceMS < 1 {
		return fmt.Errorf("%w: render.debounce_ms must be >= 1, got %d", ErrInvalidValue, c.Render.DebounceMS)
	}
	if c.Render.ContextLines < 0 {
		return fmt.Errorf("%w: render.context_lines must be >= 0, got %d", ErrInvalidValue, c.Render.ContextLines)
	}
	if c.Render.LargeDocKB < 1 {
		return fmt.Errorf("%w: render.large_doc_kb must be >= 1, got %d", ErrInvalidValue, c.Render.LargeDocKB)
	}
	if c.Render.MaxDiffCells < 1 {
		return fmt.Errorf("%w: render.max_diff_cells must be >= 1, got %d", ErrInvalidValue, c.Render.MaxDiffCells)
	}
	if c.Session.SaveDebounceMS < 1 {
		return fmt.Errorf("%w: session.save_debounce_ms must be >= 1, got %d", ErrInvalidValue, c.Session.SaveDebounceMS)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn, or error, got %q", ErrInvalidValue, c.Logging.Level)
	}
	return nil
}

// RenderDebounce returns the render debounce interval.
func (c *Config) RenderDebounce() time.Duration {
	return time.Duration(c.Render.DebounceMS) * time.Millisecond
}

// SaveDebounce returns the session save debounce interval.
func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.Session.SaveDebounceMS) * time.Millisecond
}

// LargeDocBytes returns the preview suppression threshold in bytes.
func (c *Config) LargeDocBytes() int {
	return c.Render.LargeDocKB * 1024
}

// ResolveStateDir returns the configured state directory, defaulting under
// the user config directory.
func (c *Config) ResolveStateDir() (string, error) {
	if c.Session.StateDir != "" {
		return c.Session.StateDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve state dir: %w", err)
	}
	return filepath.Join(base, "inkwell"), nil
}

// ScriptsDir returns the extension scripts directory for a state
// directory.
func (c *Config) ScriptsDir(stateDir string) string {
	if c.Extensions.Dir != "" {
		return c.Extensions.Dir
	}
	return filepath.Join(stateDir, "scripts")
}
