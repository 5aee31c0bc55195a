package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

const redactorGroup = "log-redactor"

type RedactedKey struct {
	Key   string
	Value string
}

// use array to preserve order
var redactedLogValues = make([]RedactedKey, 0)
var redactedLogValuesMutex = &sync.Mutex{}

// Redact replaces every registered key found in a string attribute with its placeholder.
// Later registrations win over earlier ones. The handler's source attribute and
// non-string values are left alone.
func Redact(groups []string, a slog.Attr) slog.Attr {
	if slices.Contains(groups, redactorGroup) {
		return a
	}
	if a.Value.Kind() != slog.KindString || (len(groups) == 0 && a.Key == slog.SourceKey) {
		return a
	}
	redactedLogValuesMutex.Lock()
	reversed := slices.Clone(redactedLogValues)
	redactedLogValuesMutex.Unlock()
	slices.Reverse(reversed)
	for _, value := range reversed {
		if value.Key == "" {
			continue
		}
		if strings.Contains(a.Value.String(), value.Key) {
			a = slog.Attr{Key: a.Key, Value: slog.StringValue(strings.ReplaceAll(a.Value.String(), value.Key, value.Value))}
		}
	}
	return a
}

// RegisterRedactedLogValue adds key to the redaction list. The returned func removes it.
func RegisterRedactedLogValue(ctx context.Context, key string, value string) func() {
	slog.Default().WithGroup(redactorGroup).DebugContext(ctx, "registering redacted log value", "key", key, "value", value)

	redactedLogValuesMutex.Lock()
	defer redactedLogValuesMutex.Unlock()
	redactedLogValues = append(redactedLogValues, RedactedKey{Key: key, Value: value})

	return func() {
		redactedLogValuesMutex.Lock()
		defer redactedLogValuesMutex.Unlock()
		redactedLogValues = slices.DeleteFunc(redactedLogValues, func(v RedactedKey) bool {
			return v.Key == key
		})
	}
}
