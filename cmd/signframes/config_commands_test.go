package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signframes/internal/services"
	"signframes/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, cfg.Paths.OutputDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestInvalidConfigExitsWithConfigurationCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[dataset]\nkind = \"spreadsheet\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGNFRAMES_OUTPUT_DIR", t.TempDir())

	_, _, err := runCLI(t, []string{"status"}, path)
	if err == nil {
		t.Fatal("expected invalid dataset kind to fail")
	}
	if code := services.ExitCode(err); code != services.ExitConfiguration {
		t.Fatalf("expected exit code %d, got %d (%v)", services.ExitConfiguration, code, err)
	}
	if !strings.Contains(err.Error(), "dataset.kind") {
		t.Fatalf("expected dataset.kind in error, got %v", err)
	}
}
