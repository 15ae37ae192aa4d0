package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEstimateNotFound = errors.New("estimate not found")
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDuplicateID is returned by inserts that hit a primary key
	// collision on a client generated identifier.
	ErrDuplicateID = errors.New("duplicate identifier")
)

// ValidationError lists field problems found before a draft is admitted
// for submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}

	return "invalid draft: " + strings.Join(parts, "; ")
}
