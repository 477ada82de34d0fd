package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// ResolveAddresses picks the input batch: CLI arguments first, then
// ADDRESSES_FILE, then ADDRESSES.
func (c Config) ResolveAddresses(args []string) ([]string, error) {
	if len(args) > 0 {
		return domain.SplitAddressInput(strings.Join(args, "\n")), nil
	}
	if c.AddressesFile != "" {
		return ReadAddressesFile(c.AddressesFile)
	}
	return domain.SplitAddressInput(c.Addresses), nil
}

// ReadAddressesFile reads a YAML or JSON list of addresses, or one address
// per line.
func ReadAddressesFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read addresses file: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return domain.SplitAddressInput(strings.Join(list, "\n")), nil
	}
	return domain.SplitAddressInput(string(raw)), nil
}
