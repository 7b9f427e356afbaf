package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Defaults for the behavior knobs that the engine's own message formats drive.
const (
	// DefaultSkipMarker is the substring the engine embeds in its last-error
	// text when a fixture requested that the remaining tests be skipped.
	DefaultSkipMarker = "Skip tests:"
	// DefaultRetryKeywordPattern matches the engine's retry-wrapper keyword
	// ("Wait Until Keyword Succeeds"), whose internal retry chatter is
	// suppressed from the report.
	DefaultRetryKeywordPattern = `(?i)wait until keyword succeeds`
)

// Config is the full settings surface of the relay. Required values identify
// the Report Portal instance and the launch to report into; the rest tune
// launch metadata and reconciler behavior.
type Config struct {
	Endpoint   string `yaml:"endpoint"`
	Project    string `yaml:"project"`
	Token      string `yaml:"token"`
	LaunchName string `yaml:"launch"`

	LaunchDoc  string   `yaml:"launch_doc"`
	LaunchTags []string `yaml:"launch_tags"`

	// LaunchUUID, when set, is an externally created launch this process
	// reports into as a participant: it must neither create nor finish the
	// launch.
	LaunchUUID string `yaml:"launch_uuid"`
	// PoolURI is the shared coordinator address of a multi-process run. A
	// non-empty value without LaunchUUID is a configuration error.
	PoolURI string `yaml:"pool_uri"`

	// StackTraceDescription appends the raw error text to a failed test's
	// documentation.
	StackTraceDescription bool `yaml:"stack_trace_description"`

	SkipMarker          string `yaml:"skip_marker"`
	RetryKeywordPattern string `yaml:"retry_keyword_pattern"`

	// OutputDir is the engine's output directory, against which relative
	// screenshot paths in log messages are resolved.
	OutputDir string `yaml:"output_dir"`
}

// FromEnv builds a Config from the process environment.
//
// Required: RP_ENDPOINT, RP_UUID (API token), RP_LAUNCH, RP_PROJECT.
// Optional: RP_LAUNCH_DOC, RP_LAUNCH_TAGS (comma-separated), RP_LAUNCH_ID
// (externally created launch UUID), RP_POOL_URI, STACK_TRACE_DESCRIPTION
// ("1" to enable), OUTPUT_DIR.
func FromEnv() *Config {
	cfg := &Config{
		Endpoint:              os.Getenv("RP_ENDPOINT"),
		Project:               os.Getenv("RP_PROJECT"),
		Token:                 os.Getenv("RP_UUID"),
		LaunchName:            os.Getenv("RP_LAUNCH"),
		LaunchDoc:             os.Getenv("RP_LAUNCH_DOC"),
		LaunchUUID:            os.Getenv("RP_LAUNCH_ID"),
		PoolURI:               os.Getenv("RP_POOL_URI"),
		StackTraceDescription: os.Getenv("STACK_TRACE_DESCRIPTION") == "1",
		OutputDir:             os.Getenv("OUTPUT_DIR"),
	}
	if tags := os.Getenv("RP_LAUNCH_TAGS"); tags != "" {
		cfg.LaunchTags = SplitTags(tags)
	}
	cfg.ApplyDefaults()
	return cfg
}

// LoadInto overlays a YAML settings file onto cfg. Fields absent from the
// file keep their current values.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return nil
}

// ApplyDefaults fills the behavior knobs that have well-known defaults.
func (c *Config) ApplyDefaults() {
	if c.SkipMarker == "" {
		c.SkipMarker = DefaultSkipMarker
	}
	if c.RetryKeywordPattern == "" {
		c.RetryKeywordPattern = DefaultRetryKeywordPattern
	}
}

// Validate checks that every required setting is present and that the
// launch-ownership rules are satisfiable. The returned error names the
// offending setting.
func (c *Config) Validate() error {
	required := []struct {
		value, name string
	}{
		{c.Token, "RP_UUID"},
		{c.Endpoint, "RP_ENDPOINT"},
		{c.LaunchName, "RP_LAUNCH"},
		{c.Project, "RP_PROJECT"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing parameter %s: set the environment variable or config field", r.name)
		}
	}
	if c.PoolURI != "" && c.LaunchUUID == "" {
		return fmt.Errorf("pool mode is active (RP_POOL_URI) but no launch UUID was supplied: " +
			"a participant process must be given RP_LAUNCH_ID")
	}
	return nil
}

// SplitTags splits a comma-separated tag list, trimming whitespace and
// dropping empty entries.
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
