// Package dates normalizes Brazilian Portuguese date text into ISO dates.
//
// Abbreviated forms like "17 OUT" carry no year. The correct year cannot be
// determined from the fragment alone (statements straddling December/January
// are genuinely ambiguous), so callers must supply a reference year; it is
// never silently guessed here.
package dates

import (
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var monthAbbr = map[string]int{
	"JAN": 1, "FEV": 2, "MAR": 3, "ABR": 4,
	"MAI": 5, "JUN": 6, "JUL": 7, "AGO": 8,
	"SET": 9, "OUT": 10, "NOV": 11, "DEZ": 12,
}

var monthFull = map[string]int{
	"janeiro": 1, "fevereiro": 2, "março": 3, "abril": 4,
	"maio": 5, "junho": 6, "julho": 7, "agosto": 8,
	"setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

var (
	numericRe = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	abbrRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(JAN|FEV|MAR|ABR|MAI|JUN|JUL|AGO|SET|OUT|NOV|DEZ)\b`)
	fullRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})\b`)

	yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

	emissionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:data de )?emiss[aã]o[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)emiss[aã]o(?:\s+e\s+envio)?[:\s]*(\d{1,2}\s+\w+(?:\s+\d{4})?)`),
		regexp.MustCompile(`(?i)emitid[ao] em[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
	}

	dueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:data de )?vencimento[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)(?:data de )?vencimento[:\s]*(\d{1,2}\s+\w+(?:\s+\d{4})?)`),
		regexp.MustCompile(`(?i)vence em[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)vence em[:\s]*(\d{1,2}\s+\w+(?:\s+\d{4})?)`),
		regexp.MustCompile(`(?i)pagar at[eé][:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
	}
)

// Normalize parses a single date fragment into YYYY-MM-DD form. Supported
// layouts: DD/MM/YYYY, DD-MM-YYYY, "17 OUT" (requires refYear > 0) and
// "17 de outubro de 2025". Returns ok=false on anything unparseable.
func Normalize(fragment string, refYear int) (string, bool) {
	if m := numericRe.FindStringSubmatch(fragment); m != nil {
		return buildDate(m[3], m[2], m[1])
	}

	if m := abbrRe.FindStringSubmatch(fragment); m != nil {
		if refYear <= 0 {
			return "", false
		}
		month := monthAbbr[strings.ToUpper(m[2])]
		return assembleDate(refYear, month, m[1])
	}

	if m := fullRe.FindStringSubmatch(fragment); m != nil {
		month, ok := monthFull[strings.ToLower(m[2])]
		if !ok {
			return "", false
		}
		year, err := strconv.Atoi(m[3])
		if err != nil {
			return "", false
		}
		return assembleDate(year, month, m[1])
	}

	return "", false
}

func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	return assembleDate(y, m, day)
}

func assembleDate(year, month int, day string) (string, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	if month < 1 || month > 12 || d < 1 || d > 31 || year < 1900 || year > 2100 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, d), true
}

type found struct {
	start    int
	fragment string
	iso      string
}

func scan(text string, refYear int) []found {
	var matches []found

	for _, re := range []*regexp.Regexp{numericRe, abbrRe, fullRe} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			fragment := text[loc[0]:loc[1]]
			if iso, ok := Normalize(fragment, refYear); ok {
				matches = append(matches, found{start: loc[0], fragment: fragment, iso: iso})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// All returns a restartable iterator over every date in the text in
// first-seen order, yielding (original fragment, normalized ISO date).
func All(text string, refYear int) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, m := range scan(text, refYear) {
			if !yield(m.fragment, m.iso) {
				return
			}
		}
	}
}

// ExtractAll collects every date in the text, in first-seen order.
func ExtractAll(text string, refYear int) [][2]string {
	var out [][2]string
	for fragment, iso := range All(text, refYear) {
		out = append(out, [2]string{fragment, iso})
	}
	return out
}

// InferYear guesses the document year from the most frequent four-digit year
// in the text. Returns 0 when the text carries no year at all. Callers decide
// whether to trust this over an explicit reference year.
func InferYear(text string) int {
	counts := make(map[string]int)
	var order []string

	for _, m := range yearRe.FindAllString(text, -1) {
		if counts[m] == 0 {
			order = append(order, m)
		}
		counts[m]++
	}

	best := ""
	for _, y := range order {
		if best == "" || counts[y] > counts[best] {
			best = y
		}
	}
	if best == "" {
		return 0
	}

	year, _ := strconv.Atoi(best)
	return year
}

// ExtractEmissionDate finds the emission date using Portuguese context
// markers, falling back to the first date in the text.
func ExtractEmissionDate(text string, refYear int) (string, bool) {
	if refYear <= 0 {
		refYear = InferYear(text)
	}

	for _, re := range emissionRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if iso, ok := Normalize(m[1], refYear); ok {
				return iso, true
			}
		}
	}

	all := ExtractAll(text, refYear)
	if len(all) == 0 {
		return "", false
	}
	return all[0][1], true
}

// ExtractDueDate finds the due date using Portuguese context markers,
// falling back to the last date in the text.
func ExtractDueDate(text string, refYear int) (string, bool) {
	if refYear <= 0 {
		refYear = InferYear(text)
	}

	for _, re := range dueRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if iso, ok := Normalize(m[1], refYear); ok {
				return iso, true
			}
		}
	}

	all := ExtractAll(text, refYear)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][1], true
}
