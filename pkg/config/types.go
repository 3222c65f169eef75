package config

import (
	"fmt"
	"os"
	"strings"
)

// Violation is a single validation failure: the location inside the document,
// what the schema expected there, and what was actually found.
type Violation struct {
	// Path is the dotted path to the offending value; list indices are numeric segments.
	Path string `json:"path"`

	// Expected describes the constraint that was not met.
	Expected string `json:"expected"`

	// Actual is the value found at Path, nil when the field is missing or null.
	Actual any `json:"actual,omitempty"`

	// Null is set when the field is present with an explicit null value.
	Null bool `json:"null,omitempty"`
}

// String renders the violation as "path: expected (got actual)".
func (v Violation) String() string {
	path := v.Path
	if path == "" {
		path = "<root>"
	}
	actual := "<missing>"
	switch {
	case v.Actual != nil:
		actual = fmt.Sprintf("%v", v.Actual)
	case v.Null:
		actual = "null"
	}
	return fmt.Sprintf("%s: %s (got %s)", path, v.Expected, actual)
}

// Violations collects every failure found in one validation pass.
type Violations []Violation

// String lists every violation on its own line.
func (vs Violations) String() string {
	lines := make([]string, 0, len(vs))
	for _, v := range vs {
		lines = append(lines, "  - "+v.String())
	}
	return strings.Join(lines, "\n")
}

// Paths returns the violation paths in order.
func (vs Violations) Paths() []string {
	paths := make([]string, 0, len(vs))
	for _, v := range vs {
		paths = append(paths, v.Path)
	}
	return paths
}

// Has reports whether a violation exists at path.
func (vs Violations) Has(path string) bool {
	for _, v := range vs {
		if v.Path == path {
			return true
		}
	}
	return false
}

// Migration transforms a document of version N into a document of version N+1.
// Apply receives a private copy and must not perform I/O.
type Migration struct {
	Description string
	Apply       func(doc map[string]any) (map[string]any, error)
}

// Kind declares one configuration kind: its file, its schema history and the
// migrations between consecutive versions. T is the latest-version document type.
type Kind[T any] struct {
	// Name identifies the kind in logs, metrics and events.
	Name string

	// FileName is the well-known file name inside the configuration directory.
	FileName string

	// Schemas holds one schema per version, 0 through latest.
	Schemas *SchemaSet

	// Migrations[i] migrates version i to version i+1.
	Migrations []Migration

	// Template is appended as commented example lines when a default document is created.
	Template string

	// Perm is the file mode for written files. Zero means 0644.
	Perm os.FileMode
}

// Latest returns the current schema version of the kind.
func (k *Kind[T]) Latest() int {
	return k.Schemas.Latest()
}

// Check verifies the kind declaration is internally consistent.
func (k *Kind[T]) Check() error {
	if k.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	if k.FileName == "" {
		return fmt.Errorf("kind %s: file name is required", k.Name)
	}
	if k.Schemas == nil || k.Schemas.Len() == 0 {
		return fmt.Errorf("kind %s: at least one schema is required", k.Name)
	}
	if len(k.Migrations) != k.Schemas.Latest() {
		return fmt.Errorf("kind %s: %d schemas require %d migrations, got %d",
			k.Name, k.Schemas.Len(), k.Schemas.Latest(), len(k.Migrations))
	}
	for i, m := range k.Migrations {
		if m.Apply == nil {
			return fmt.Errorf("kind %s: migration v%d->v%d has no function", k.Name, i, i+1)
		}
	}
	return nil
}

func (k *Kind[T]) perm() os.FileMode {
	if k.Perm == 0 {
		return 0o644
	}
	return k.Perm
}

// LoadOptions selects the file to load and how to create it when absent.
type LoadOptions[T any] struct {
	// Dir is the directory holding the kind's file.
	Dir string

	// Path overrides Dir and the kind's file name.
	Path string

	// Default builds the document written when the file does not exist.
	// When nil, a missing file yields a nil handle and no file is created.
	Default func() (T, error)
}
