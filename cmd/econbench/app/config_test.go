package app

import "testing"

// TestConfig_UpdateFromFlags verifies flag values override loaded config.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{
		Verbose:  false,
		Format:   "table",
		LogLevel: "info",
	}

	config.UpdateFromFlags(true, false, true, "json", "debug")

	if !config.Verbose {
		t.Error("Verbose not updated from flags")
	}
	if config.Quiet {
		t.Error("Quiet should remain false")
	}
	if !config.NoColor {
		t.Error("NoColor not updated from flags")
	}
	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", config.LogLevel)
	}
}

// TestConfig_UpdateFromFlags_EmptyValuesKept verifies empty flag values do
// not clobber loaded config.
func TestConfig_UpdateFromFlags_EmptyValuesKept(t *testing.T) {
	config := &Config{
		Format:   "yaml",
		LogLevel: "warn",
	}

	config.UpdateFromFlags(false, false, false, "", "")

	if config.Format != "yaml" {
		t.Errorf("Format = %s, want yaml preserved", config.Format)
	}
	if config.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warn preserved", config.LogLevel)
	}
}

// TestLoadConfig verifies defaults are present after loading.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Project == "" {
		t.Error("Project default missing")
	}
	if config.Dataset == "" {
		t.Error("Dataset default missing")
	}
	if config.LogFormat == "" {
		t.Error("LogFormat default missing")
	}
	if config.LogOutput == "" {
		t.Error("LogOutput default missing")
	}
}
