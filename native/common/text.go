package common

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormaliseSymbol folds a token symbol to its NFKC upper-case form so that
// full-width or compatibility variants address the same token.
func NormaliseSymbol(raw string) string {
	return strings.ToUpper(NormaliseText(raw))
}

// NormaliseText applies NFKC and trims surrounding whitespace.
func NormaliseText(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}
