package logging

import (
	"log/slog"
	"strings"
)

const redactedTail = 4

// isSecretKey reports whether an attribute key names a credential. Only the
// last segment of a grouped key is considered.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	switch key {
	case "token", "credential", "authorization", "api_key", "apikey", "password", "secret":
		return true
	}
	return strings.HasSuffix(key, "_token") || strings.HasSuffix(key, "_api_key") || strings.HasSuffix(key, "_secret")
}

// redactValue masks all but the last few characters of a secret string.
func redactValue(v slog.Value) slog.Value {
	s := strings.TrimSpace(v.Resolve().String())
	if s == "" {
		return slog.StringValue("")
	}
	if len(s) <= redactedTail {
		return slog.StringValue(strings.Repeat("*", len(s)))
	}
	return slog.StringValue(strings.Repeat("*", len(s)-redactedTail) + s[len(s)-redactedTail:])
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindGroup && isSecretKey(attr.Key) {
		attr.Value = redactValue(attr.Value)
	}
	return attr
}
