package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// secretKeys never reach the log sink in clear text.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"secret":        {},
	"hmac_secret":   {},
	"password":      {},
	"dsn":           {},
}

// Sanitize rewrites a single attribute before it is encoded. Secrets are
// replaced outright and IBAN values keep only their country code and tail.
func Sanitize(attr slog.Attr) slog.Attr {
	key := strings.ToLower(strings.TrimSpace(attr.Key))
	if key == "iban" && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, MaskIBAN(attr.Value.String()))
	}
	if _, ok := secretKeys[key]; ok && attr.Value.String() != "" {
		return slog.String(attr.Key, RedactedValue)
	}
	return attr
}

// MaskIBAN keeps the country code and last four characters of an IBAN.
// Values already masked are returned unchanged.
func MaskIBAN(iban string) string {
	compact := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
	switch {
	case compact == "":
		return ""
	case len(compact) <= 6:
		return RedactedValue
	}
	return compact[:2] + strings.Repeat("*", len(compact)-6) + compact[len(compact)-4:]
}
