package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// AddressQuery is a human-entered address together with its ledger key.
type AddressQuery struct {
	Raw           string `json:"address"`
	NormalizedKey string `json:"normalized_key"`
}

func NewAddressQuery(raw string) AddressQuery {
	raw = strings.TrimSpace(raw)
	return AddressQuery{Raw: raw, NormalizedKey: NormalizeAddress(raw)}
}

var (
	hashUnitPattern = regexp.MustCompile(`#\s*[\p{L}\p{N}-]*`)

	unitMarkers = map[string]struct{}{
		"apt":       {},
		"apartment": {},
		"unit":      {},
		"suite":     {},
		"ste":       {},
		"rm":        {},
		"room":      {},
	}
)

// NormalizeAddress lower-cases the address, strips punctuation, removes unit
// markers together with their designator and collapses whitespace.
// The output never contains a marker token, so the function is idempotent.
func NormalizeAddress(raw string) string {
	s := strings.ToLower(raw)
	s = hashUnitPattern.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		if _, ok := unitMarkers[fields[i]]; ok {
			i++
			continue
		}
		out = append(out, fields[i])
	}
	return strings.Join(out, " ")
}

// SearchTokens is the tokenized form of a query used to match result candidates.
type SearchTokens struct {
	Number string
	Names  []string
}

// TokenizeQuery splits the street part of the query (everything before the
// first comma) into a leading numeric token and the following name tokens.
func TokenizeQuery(raw string) SearchTokens {
	street := raw
	if idx := strings.Index(street, ","); idx >= 0 {
		street = street[:idx]
	}
	fields := strings.Fields(NormalizeAddress(street))
	if len(fields) == 0 {
		return SearchTokens{}
	}

	tokens := SearchTokens{}
	if isNumeric(fields[0]) {
		tokens.Number = fields[0]
		fields = fields[1:]
	}
	tokens.Names = fields
	return tokens
}

func (t SearchTokens) Empty() bool {
	return t.Number == "" && len(t.Names) == 0
}

// Phrase is the full name phrase, e.g. "malaga drive".
func (t SearchTokens) Phrase() string {
	return strings.Join(t.Names, " ")
}

// ShortPhrase is the phrase made of the first two name tokens.
func (t SearchTokens) ShortPhrase() string {
	if len(t.Names) <= 2 {
		return t.Phrase()
	}
	return strings.Join(t.Names[:2], " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SplitAddressInput accepts a single address, a JSON array of addresses or a
// newline-delimited blob and returns the non-empty entries in input order.
func SplitAddressInput(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return compactAddresses(list)
		}
	}
	return compactAddresses(strings.Split(trimmed, "\n"))
}

func compactAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		item = strings.TrimSpace(strings.TrimSuffix(item, "\r"))
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
