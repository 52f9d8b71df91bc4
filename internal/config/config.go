// Package config loads iotree settings from an optional HCL file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/agentic-research/iotree/internal/ctxlog"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "iotree.hcl"

// Config holds everything the CLI and the projection need.
type Config struct {
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`

	// FrameDeviceMarkers are module name substrings that identify enclosure
	// and frame devices. Those modules are addressed by their own name
	// instead of ParentModule:Address.
	FrameDeviceMarkers []string `hcl:"frame_device_markers,optional"`

	// Autosave writes the document after every accepted edit made through
	// the mount and MCP surfaces.
	Autosave bool `hcl:"autosave,optional"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		FrameDeviceMarkers: []string{"Cube", "K070"},
	}
}

// Load builds a Config. An empty path reads DefaultFile when present; an
// explicit path must exist.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
		logger.Debug("Loaded config file.", "path", path)
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	if diags := gohcl.DecodeBody(file.Body, nil, c); diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("IOTREE_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("IOTREE_LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("IOTREE_AUTOSAVE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("IOTREE_AUTOSAVE: %w", err)
		}
		c.Autosave = b
	}
	return nil
}

// Validate rejects unknown log levels and formats.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	for _, m := range c.FrameDeviceMarkers {
		if m == "" {
			return errors.New("frame_device_markers must not contain empty strings")
		}
	}
	return nil
}
