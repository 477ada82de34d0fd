package certificate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

var (
	idLabels          = []string{"FORTIFIED ID", "Certificate Number", "Certificate No", "FH Number", "ID"}
	approvedLabels    = []string{"Approved At", "Approval Date", "Date Approved", "Approved On", "Approved"}
	expirationLabels  = []string{"Expiration Date", "Expires", "Expires On", "Expiry Date", "Valid Until"}
	addressLabels     = []string{"Building Address", "Property Address", "Site Address", "Address"}
	programLabels     = []string{"Program", "Program Type", "Program Name"}
	designationLabels = []string{"Designation", "Designation Level", "Level"}
)

const dateExpr = `(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{1,2}-\d{1,2})`

// DefaultRules is the field cascade tuned for the certificate detail page.
func DefaultRules() []Rule {
	labels := labelSet(idLabels, approvedLabels, expirationLabels, addressLabels, programLabels, designationLabels)
	text := func(max int) func(string) (string, bool) {
		return func(raw string) (string, bool) {
			value, ok := normalizeText(raw)
			if !ok || len(value) > max || labels[strings.ToLower(value)] {
				return "", false
			}
			return value, true
		}
	}

	return []Rule{
		{
			Field:  domain.FieldFHNumber,
			Labels: idLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)fortified\s*id\s*[:#-]?\s*([A-Z]{1,4}[- ]?\d{5,12})`),
				regexp.MustCompile(`(?i)certificate\s*(?:number|no\.?|#)\s*[:#-]?\s*([A-Z]{1,4}[- ]?\d{5,12})`),
				regexp.MustCompile(`(?i)fh\s*(?:number|no\.?|#)\s*[:#-]?\s*([A-Z]{0,4}[- ]?\d{5,12})`),
				regexp.MustCompile(`(?i)\b(FH[- ]?\d{6,12})\b`),
			},
			Normalize: normalizeID,
		},
		{
			Field:  domain.FieldApprovedAt,
			Labels: approvedLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)approved\s*(?:at|on)?\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)approval\s*date\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)date\s*approved\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)issued\s*(?:on|date)?\s*[:-]?\s*` + dateExpr),
			},
			Normalize: normalizeDate,
		},
		{
			Field:  domain.FieldExpirationDate,
			Labels: expirationLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)expiration\s*date\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)expir(?:es|y\s*date)\s*(?:on)?\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)valid\s*(?:until|through|thru)\s*[:-]?\s*` + dateExpr),
				regexp.MustCompile(`(?i)exp\.?\s*[:-]\s*` + dateExpr),
			},
			Normalize: normalizeDate,
		},
		{
			Field:  domain.FieldBuildingAddress,
			Labels: addressLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)building\s*address\s*[:-]?\s*([^\n]+)`),
				regexp.MustCompile(`(?i)(?:property|site)\s*address\s*[:-]?\s*([^\n]+)`),
				regexp.MustCompile(`(?i)\baddress\s*[:-]\s*([^\n]+)`),
			},
			Normalize: normalizeAddressValue(labels),
		},
		{
			Field:  domain.FieldProgram,
			Labels: programLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)program\s*(?:type|name)?\s*[:-]\s*([^\n]+)`),
				regexp.MustCompile(`(?im)^\s*program\s*(?:type|name)?\s*\n\s*([^\n]+)`),
				regexp.MustCompile(`(?i)(FORTIFIED\s+(?:Home|Roof|Commercial|Multifamily)(?:[ \t]*-[ \t]*[A-Za-z ]+)?)`),
			},
			Normalize: text(120),
		},
		{
			Field:  domain.FieldDesignation,
			Labels: designationLabels,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)designation\s*(?:level)?\s*[:-]\s*([^\n]+)`),
				regexp.MustCompile(`(?im)^\s*designation\s*(?:level)?\s*\n\s*([^\n]+)`),
				regexp.MustCompile(`(?i)\b(Roof|Silver|Gold)\s+designation\b`),
			},
			Normalize: text(60),
		},
	}
}

func labelSet(groups ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, group := range groups {
		for _, l := range group {
			out[strings.ToLower(l)] = true
		}
	}
	return out
}

func normalizeText(raw string) (string, bool) {
	value := strings.Join(strings.Fields(raw), " ")
	value = strings.Trim(value, ":-–| ")
	if value == "" || strings.EqualFold(value, "n/a") || value == "--" {
		return "", false
	}
	return value, true
}

var idPattern = regexp.MustCompile(`(?i)\b([A-Z]{1,4})[- ]?(\d{5,12})\b`)

// normalizeID accepts values like "FH25016154", "fh-25016154" or
// "FH 25016154" and returns the upper-case compact form.
func normalizeID(raw string) (string, bool) {
	m := idPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + m[2], true
}

var (
	slashDate = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	isoDate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
)

var longDateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "2 January 2006"}

// normalizeDate finds the first date in raw and renders it as MM/DD/YYYY.
func normalizeDate(raw string) (string, bool) {
	if m := isoDate.FindStringSubmatch(raw); m != nil {
		return formatDate(m[1], m[2], m[3])
	}
	if m := slashDate.FindStringSubmatch(raw); m != nil {
		return formatDate(m[3], m[1], m[2])
	}
	value, ok := normalizeText(raw)
	if !ok {
		return "", false
	}
	for _, layout := range longDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("01/02/2006"), true
		}
	}
	return "", false
}

func formatDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	if len(year) == 2 {
		y += 2000
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	if y < 1900 || y > 2199 {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", m, d, y), true
}

func normalizeAddressValue(labels map[string]bool) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		value, ok := normalizeText(raw)
		if !ok || len(value) > 200 || labels[strings.ToLower(value)] {
			return "", false
		}
		if !strings.ContainsAny(value, "0123456789") {
			return "", false
		}
		return value, true
	}
}
