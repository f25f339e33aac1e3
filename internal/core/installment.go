package core

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxInstallments bounds what a description-embedded "x/y" token may claim.
const MaxInstallments = 60

var installmentToken = regexp.MustCompile(`(?i)\(?(?:\bparc(?:ela)?\.?\s*)?(\d{1,3})(?:\s*/\s*|\s+de\s+)(\d{1,3})\)?`)

// InstallmentToken is an "x/y" or "x de y" marker found in free text.
type InstallmentToken struct {
	Current int
	Total   int
	start   int
	end     int
}

// ParseInstallment reads a column value such as "09/10" or "1 de 12".
func ParseInstallment(s string) (InstallmentToken, bool) {
	for _, tok := range findTokens(s) {
		if tok.Current >= 1 && tok.Total >= 1 && tok.Current <= tok.Total {
			return tok, true
		}
	}
	return InstallmentToken{}, false
}

// FindDescriptionInstallment looks for the last plausible installment token in
// a description. Matches are rejected unless current <= total, total > 1 and
// total <= MaxInstallments, which filters out day/month pairs like "25/03".
func FindDescriptionInstallment(desc string) (InstallmentToken, bool) {
	tokens := findTokens(desc)
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if tok.Current >= 1 && tok.Current <= tok.Total && tok.Total > 1 && tok.Total <= MaxInstallments {
			return tok, true
		}
	}
	return InstallmentToken{}, false
}

// StripInstallmentToken removes the installment marker from a description so
// that all siblings of a group share the same text.
func StripInstallmentToken(desc string) string {
	tok, ok := FindDescriptionInstallment(desc)
	if !ok {
		return strings.TrimSpace(desc)
	}
	out := desc[:tok.start] + " " + desc[tok.end:]
	out = strings.Join(strings.Fields(out), " ")
	return strings.Trim(out, " -–")
}

func findTokens(s string) []InstallmentToken {
	var out []InstallmentToken
	for _, m := range installmentToken.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[0], m[1]
		// Reject matches glued to other digits or slashes, such as parts of a full date.
		if start > 0 && isDateChar(s[start-1]) {
			continue
		}
		if end < len(s) && isDateChar(s[end]) {
			continue
		}
		cur, err1 := strconv.Atoi(s[m[2]:m[3]])
		tot, err2 := strconv.Atoi(s[m[4]:m[5]])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, InstallmentToken{Current: cur, Total: tot, start: start, end: end})
	}
	return out
}

func isDateChar(c byte) bool {
	return c == '/' || (c >= '0' && c <= '9')
}
