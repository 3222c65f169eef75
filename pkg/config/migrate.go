package config

import (
	"fmt"
	"math"
	"strings"
)

// VersionField is the document field carrying the schema version.
const VersionField = "version"

// DetectVersion reads the version field of a raw document. It accepts integers
// and integral floats in [0, latest]; anything else is a schema version error.
func DetectVersion(doc map[string]any, latest int) (int, error) {
	return detectVersion("", doc, latest)
}

func detectVersion(path string, doc map[string]any, latest int) (int, error) {
	found, ok := doc[VersionField]
	if !ok || found == nil {
		return 0, NewSchemaVersionError(path, nil, latest)
	}

	v, ok := asVersion(found)
	if !ok || v < 0 || v > latest {
		return 0, NewSchemaVersionError(path, found, latest)
	}
	return v, nil
}

func asVersion(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// stepFunc is notified after migration v->v+1 has been applied.
type stepFunc func(from int, m Migration)

// runChain validates doc at version from, then applies migrations one at a time,
// validating every intermediate document against the schema of its version,
// and finally validates the result against the latest schema.
// doc is never modified; each migration receives its own copy.
func runChain(path string, doc map[string]any, from int, schemas *SchemaSet, migrations []Migration, onStep stepFunc) (map[string]any, error) {
	latest := schemas.Latest()
	cur := doc

	for v := from; v < latest; v++ {
		if vs := schemas.Validate(v, cur); len(vs) > 0 {
			return nil, boundaryError(path, v, from, vs)
		}

		next, err := applyMigration(migrations[v], copyDocument(cur))
		if err != nil {
			return nil, NewMigrationValidationError(path, v+1, v, nil, err)
		}
		cur = next

		if onStep != nil {
			onStep(v, migrations[v])
		}
	}

	if vs := schemas.Validate(latest, cur); len(vs) > 0 {
		return nil, boundaryError(path, latest, from, vs)
	}
	return cur, nil
}

// boundaryError reports a document rejected by the schema of version v. When the
// document was produced by a migration the chain itself is defective.
func boundaryError(path string, v, from int, vs Violations) error {
	if v == from {
		return NewMigrationValidationError(path, v, -1, vs, nil)
	}
	return NewMigrationValidationError(path, v, v-1, vs, nil).AsInternal()
}

func applyMigration(m Migration, doc map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("migration panicked: %v", r)
		}
	}()

	out, err = m.Apply(doc)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("migration returned no document")
	}
	return normalize(out).(map[string]any), nil
}

// Rename builds a migration to version to that moves the value at oldPath to newPath.
func Rename(to int, oldPath, newPath string) Migration {
	return Migration{
		Description: fmt.Sprintf("rename %s to %s", oldPath, newPath),
		Apply: func(doc map[string]any) (map[string]any, error) {
			if value, ok := Get(doc, oldPath); ok {
				if err := Set(doc, newPath, value); err != nil {
					return nil, err
				}
				Delete(doc, oldPath)
			}
			doc[VersionField] = to
			return doc, nil
		},
	}
}

// Remove builds a migration to version to that deletes the value at path.
func Remove(to int, path string) Migration {
	return Migration{
		Description: fmt.Sprintf("remove %s", path),
		Apply: func(doc map[string]any) (map[string]any, error) {
			Delete(doc, path)
			doc[VersionField] = to
			return doc, nil
		},
	}
}

// AddDefault builds a migration to version to that sets path to value when it is absent.
func AddDefault(to int, path string, value any) Migration {
	return Migration{
		Description: fmt.Sprintf("default %s to %v", path, value),
		Apply: func(doc map[string]any) (map[string]any, error) {
			if _, ok := Get(doc, path); !ok {
				if err := Set(doc, path, deepCopy(value)); err != nil {
					return nil, err
				}
			}
			doc[VersionField] = to
			return doc, nil
		},
	}
}

// Set stores value at a dotted path, creating intermediate mappings.
func Set(doc map[string]any, path string, value any) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("invalid path %q", path)
	}

	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("invalid path %q: %s is not a mapping", path, part)
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Delete removes the value at a dotted path if present.
func Delete(doc map[string]any, path string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return
	}

	cur := doc
	for _, part := range parts[:len(parts)-1] {
		m, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = m
	}
	delete(cur, parts[len(parts)-1])
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
