package domain

import (
	"regexp"
	"strings"
)

// SelectionPolicy names the rule that picked a search candidate.
type SelectionPolicy string

const (
	PolicyTokenMatch      SelectionPolicy = "token_match"
	PolicyFirstFiltered   SelectionPolicy = "first_filtered"
	PolicyKeyboardConfirm SelectionPolicy = "keyboard_confirm"
)

// Selection is the outcome of choosing among enumerated candidates.
// Index is -1 for PolicyKeyboardConfirm.
type Selection struct {
	Index  int
	Policy SelectionPolicy
	Text   string
}

// SelectCandidate applies the selection order: a candidate containing the
// numeric token and the full name phrase, then one containing the numeric
// token and the first two name tokens, then the first candidate, and finally
// keyboard confirmation when nothing could be enumerated.
func SelectCandidate(tokens SearchTokens, candidates []string) Selection {
	if len(candidates) == 0 {
		return Selection{Index: -1, Policy: PolicyKeyboardConfirm}
	}

	if !tokens.Empty() {
		for _, phrase := range []string{tokens.Phrase(), tokens.ShortPhrase()} {
			for i, text := range candidates {
				if candidateMatches(text, tokens.Number, phrase) {
					return Selection{Index: i, Policy: PolicyTokenMatch, Text: text}
				}
			}
		}
	}

	return Selection{Index: 0, Policy: PolicyFirstFiltered, Text: candidates[0]}
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// candidateMatches reports whether text holds number and phrase as whole
// words, case-insensitively.
func candidateMatches(text, number, phrase string) bool {
	flat := " " + strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(text), " ")) + " "
	if number != "" && !strings.Contains(flat, " "+number+" ") {
		return false
	}
	if phrase != "" && !strings.Contains(flat, " "+phrase+" ") {
		return false
	}
	return number != "" || phrase != ""
}

// RecordHandle identifies the search result the locator opened.
type RecordHandle struct {
	Query         AddressQuery
	Candidate     string
	Policy        SelectionPolicy
	InputStrategy string
}
