package locator

// Selectors describe the search and detail surfaces. Every list is an ordered
// fallback chain; the first visible match wins.
type Selectors struct {
	// WizardSteps are clicked in order before the search input exists.
	WizardSteps [][]string `yaml:"wizard_steps"`

	PlaceholderInputs []string `yaml:"placeholder_inputs"`
	RoleInputs        []string `yaml:"role_inputs"`
	StructuralInputs  []string `yaml:"structural_inputs"`
	GenericInputs     []string `yaml:"generic_inputs"`

	Candidates []string `yaml:"candidates"`
	EmptyState []string `yaml:"empty_state"`

	// DetailSteps are clicked after a candidate was chosen, in order.
	DetailSteps [][]string `yaml:"detail_steps"`
	DetailReady []string   `yaml:"detail_ready"`
	Download    []string   `yaml:"download"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		PlaceholderInputs: []string{
			`input[placeholder*="address" i]`,
			`input[placeholder*="search" i]`,
			`input[aria-label*="address" i]`,
		},
		RoleInputs: []string{
			`[role="searchbox"]`,
			`[role="combobox"] input`,
			`input[role="combobox"]`,
			`input[type="search"]`,
		},
		StructuralInputs: []string{
			`form input[type="text"]`,
			`main input[type="text"]`,
			`.search input`,
		},
		GenericInputs: []string{
			`input:not([type="hidden"]):not([type="password"]):not([disabled])`,
		},
		Candidates: []string{
			`[role="listbox"] [role="option"]`,
			`ul.autocomplete li`,
			`.search-results tbody tr`,
			`.search-results li`,
			`table tbody tr:has(td)`,
		},
		EmptyState: []string{
			`:text-is("No results")`,
			`:text-is("No records found")`,
			`:text-matches("^0 results", "i")`,
			`.empty-state`,
		},
		DetailSteps: [][]string{},
		DetailReady: []string{
			`:text("Expiration Date")`,
			`:text("FORTIFIED ID")`,
			`.certificate-detail`,
		},
		Download: []string{
			`a:has-text("Download Certificate")`,
			`button:has-text("Download Certificate")`,
			`a:has-text("Download")`,
			`button:has-text("Download")`,
			`a[href$=".pdf"]`,
			`button:has-text("Print")`,
		},
	}
}
