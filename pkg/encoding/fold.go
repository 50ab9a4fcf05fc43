package encoding

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold normalizes free text coming back from the remote API so it can be
// compared against known phrases regardless of case or surrounding spaces.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(cases.Fold().String(s))
}

// ContainsAny reports whether the folded text contains any of the folded needles.
func ContainsAny(text string, needles ...string) bool {
	folded := Fold(text)
	if folded == "" {
		return false
	}
	for _, n := range needles {
		if n != "" && strings.Contains(folded, Fold(n)) {
			return true
		}
	}
	return false
}
