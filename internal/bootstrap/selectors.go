package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/certificate-harvester/internal/infrastructure/locator"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/session"
)

// selectorFile is the SELECTORS_FILE layout. Lists present in the file
// replace the built-in chain of the same name; absent lists keep it.
type selectorFile struct {
	Login  session.Selectors `yaml:"login"`
	Search locator.Selectors `yaml:"search"`
}

func loadSelectors(path string) (session.Selectors, locator.Selectors, error) {
	out := selectorFile{
		Login:  session.DefaultSelectors(),
		Search: locator.DefaultSelectors(),
	}
	if path == "" {
		return out.Login, out.Search, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return out.Login, out.Search, fmt.Errorf("read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out.Login, out.Search, fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	return out.Login, out.Search, nil
}
