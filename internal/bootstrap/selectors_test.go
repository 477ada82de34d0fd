package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/certificate-harvester/internal/infrastructure/locator"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/session"
)

func TestLoadSelectorsDefaultsWithoutFile(t *testing.T) {
	login, search, err := loadSelectors("")
	if err != nil {
		t.Fatalf("load selectors: %v", err)
	}
	if len(login.Password) != len(session.DefaultSelectors().Password) {
		t.Fatalf("expected default login selectors, got %+v", login)
	}
	if len(search.Candidates) != len(locator.DefaultSelectors().Candidates) {
		t.Fatalf("expected default search selectors, got %+v", search)
	}
}

func TestLoadSelectorsOverridesOnlyListedChains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	body := `
login:
  submit: ["#go"]
search:
  wizard_steps:
    - ["#start"]
    - ["#tab-address", "a:has-text(\"Address\")"]
  download: ["#cert-pdf"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write selectors: %v", err)
	}

	login, search, err := loadSelectors(path)
	if err != nil {
		t.Fatalf("load selectors: %v", err)
	}
	if len(login.Submit) != 1 || login.Submit[0] != "#go" {
		t.Fatalf("submit not overridden: %v", login.Submit)
	}
	if len(login.Username) != len(session.DefaultSelectors().Username) {
		t.Fatalf("username chain must keep defaults, got %v", login.Username)
	}
	if len(search.WizardSteps) != 2 || search.WizardSteps[1][0] != "#tab-address" {
		t.Fatalf("wizard steps not loaded: %v", search.WizardSteps)
	}
	if len(search.Download) != 1 || len(search.Candidates) == 0 {
		t.Fatalf("unexpected search selectors %+v", search)
	}
}

func TestLoadSelectorsRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	_ = os.WriteFile(path, []byte("login: [unclosed"), 0o644)

	if _, _, err := loadSelectors(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
