package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SonianW/MetaPrompter/internal/store"
)

var ErrNotFound = store.ErrNotFound

// ValidationError lists the rejected input fields with a reason for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
