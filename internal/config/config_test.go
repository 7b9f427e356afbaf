package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validConfig() *Config {
	return &Config{
		Endpoint:   "http://rp.local:8080",
		Project:    "qa",
		Token:      "token-123",
		LaunchName: "nightly",
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.SkipMarker != DefaultSkipMarker {
		t.Errorf("SkipMarker default not applied, got %q", cfg.SkipMarker)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		strip func(*Config)
		want  string
	}{
		{"token", func(c *Config) { c.Token = "" }, "RP_UUID"},
		{"endpoint", func(c *Config) { c.Endpoint = "" }, "RP_ENDPOINT"},
		{"launch", func(c *Config) { c.LaunchName = "" }, "RP_LAUNCH"},
		{"project", func(c *Config) { c.Project = "" }, "RP_PROJECT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.strip(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error should name %s, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_PoolWithoutLaunchUUID(t *testing.T) {
	cfg := validConfig()
	cfg.PoolURI = "tcp://coordinator:8270"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for pool mode without launch UUID")
	}
	if !strings.Contains(err.Error(), "RP_LAUNCH_ID") {
		t.Errorf("error should mention RP_LAUNCH_ID, got: %v", err)
	}

	cfg.LaunchUUID = "abc-def"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with launch UUID: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RP_ENDPOINT", "http://rp.local:8080")
	t.Setenv("RP_PROJECT", "qa")
	t.Setenv("RP_UUID", "token-123")
	t.Setenv("RP_LAUNCH", "nightly")
	t.Setenv("RP_LAUNCH_TAGS", "smoke, regression ,")
	t.Setenv("STACK_TRACE_DESCRIPTION", "1")

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if diff := cmp.Diff([]string{"smoke", "regression"}, cfg.LaunchTags); diff != "" {
		t.Errorf("LaunchTags mismatch (-want +got):\n%s", diff)
	}
	if !cfg.StackTraceDescription {
		t.Error("StackTraceDescription should be true")
	}
}

func TestLoadInto_Overlay(t *testing.T) {
	cfg := validConfig()
	cfg.LaunchDoc = "from env"

	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := "launch: overridden\nlaunch_tags: [a, b]\nskip_marker: 'SKIP:'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadInto(path, cfg); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if cfg.LaunchName != "overridden" {
		t.Errorf("LaunchName = %q, want overridden", cfg.LaunchName)
	}
	if cfg.LaunchDoc != "from env" {
		t.Errorf("LaunchDoc should survive overlay, got %q", cfg.LaunchDoc)
	}
	if cfg.SkipMarker != "SKIP:" {
		t.Errorf("SkipMarker = %q, want SKIP:", cfg.SkipMarker)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cfg.LaunchTags); diff != "" {
		t.Errorf("LaunchTags mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitTags_Empty(t *testing.T) {
	if got := SplitTags(" , ,"); got != nil {
		t.Errorf("SplitTags of blanks = %v, want nil", got)
	}
}
