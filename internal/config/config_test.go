package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("STEP_TIMEOUT", "")
	t.Setenv("POLITENESS_BASE_MS", "")

	cfg := Load()
	if cfg.LedgerBackend != "jsonfile" || cfg.LedgerPath != "./data/ledger.json" {
		t.Fatalf("unexpected ledger defaults %q %q", cfg.LedgerBackend, cfg.LedgerPath)
	}
	if cfg.StepTimeout != 15*time.Second || cfg.ItemTimeout != 3*time.Minute {
		t.Fatalf("unexpected timeouts %v %v", cfg.StepTimeout, cfg.ItemTimeout)
	}
	if cfg.PolitenessBaseMS != 800 || !cfg.BrowserHeadless {
		t.Fatalf("unexpected politeness/browser defaults %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("STEP_TIMEOUT", "2500")
	t.Setenv("CAPTURE_PRIMARY_WINDOW", "5s")
	t.Setenv("ITEM_TIMEOUT", "soon")
	t.Setenv("MAX_ITEMS", "25")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg := Load()
	if cfg.LedgerBackend != "redis" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.LedgerBackend)
	}
	if cfg.StepTimeout != 2500*time.Millisecond || cfg.CapturePrimaryWindow != 5*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.StepTimeout, cfg.CapturePrimaryWindow)
	}
	if cfg.ItemTimeout != 3*time.Minute {
		t.Fatalf("invalid duration must fall back, got %v", cfg.ItemTimeout)
	}
	if cfg.MaxItems != 25 || cfg.BrowserHeadless {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadAppliesDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.env")
	if err := os.WriteFile(path, []byte("PORTAL_USERNAME=from-file\nREDIS_PREFIX=file:\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("REDIS_PREFIX", "env:")
	t.Setenv("PORTAL_USERNAME", "")
	os.Unsetenv("PORTAL_USERNAME")

	cfg := Load()
	if cfg.PortalUsername != "from-file" {
		t.Fatalf("expected value from env file, got %q", cfg.PortalUsername)
	}
	if cfg.RedisPrefix != "env:" {
		t.Fatalf("process env must win over env file, got %q", cfg.RedisPrefix)
	}
}

func TestResolveAddressesPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "addresses.yaml")
	_ = os.WriteFile(yamlFile, []byte("- 513 MALAGA DRIVE\n- \"520 Novatan Rd S, Mobile, AL 36608\"\n"), 0o644)
	linesFile := filepath.Join(dir, "addresses.txt")
	_ = os.WriteFile(linesFile, []byte("1 Main St\n\n2 Main St\n"), 0o644)

	cfg := Config{Addresses: `["from env"]`}
	if got, _ := cfg.ResolveAddresses([]string{"cli 1"}); len(got) != 1 || got[0] != "cli 1" {
		t.Fatalf("cli args must win, got %v", got)
	}
	if got, _ := cfg.ResolveAddresses(nil); len(got) != 1 || got[0] != "from env" {
		t.Fatalf("env fallback, got %v", got)
	}

	cfg.AddressesFile = yamlFile
	if got, err := cfg.ResolveAddresses(nil); err != nil || len(got) != 2 || got[1] != "520 Novatan Rd S, Mobile, AL 36608" {
		t.Fatalf("yaml file, got %v %v", got, err)
	}
	cfg.AddressesFile = linesFile
	if got, err := cfg.ResolveAddresses(nil); err != nil || len(got) != 2 || got[1] != "2 Main St" {
		t.Fatalf("lines file, got %v %v", got, err)
	}
}
