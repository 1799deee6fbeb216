// Package errors labels failures for metrics and logs. The ingestion
// taxonomy (retryable, content, policy) covers errors the pipeline
// classified itself; Classify is the fallback for everything else, so
// dashboards can still split driver timeouts from parser faults.
package errors

import (
	stderrors "errors"
	"reflect"
	"strings"
)

// Classify derives a stable snake_case label from an error's innermost
// concrete type, e.g. "net_operror" or "pgconn_pgerror". Returns the empty
// string for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for {
		inner := stderrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return typeLabel(err)
}

func typeLabel(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	label := strings.NewReplacer("*", "", ".", "_").Replace(strings.ToLower(t.String()))
	if label == "" {
		return "unknown"
	}
	return label
}
