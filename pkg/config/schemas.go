package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// DefinitionName is the CUE definition every version schema must declare.
const DefinitionName = "#Config"

// SchemaSet holds one compiled CUE schema per version of a configuration kind.
// Index i is the schema of version i; the last entry is the latest version.
type SchemaSet struct {
	mu      sync.Mutex
	ctx     *cue.Context
	sources []string
	schemas []cue.Value
}

// NewSchemaSet compiles the given CUE sources, one per version in ascending order.
// Each source must declare a #Config definition describing the whole document.
func NewSchemaSet(sources ...string) (*SchemaSet, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one schema is required")
	}

	ctx := cuecontext.New()
	ss := &SchemaSet{
		ctx:     ctx,
		sources: sources,
		schemas: make([]cue.Value, 0, len(sources)),
	}

	for i, src := range sources {
		val := ctx.CompileString(src, cue.Filename(fmt.Sprintf("v%d.cue", i)))
		if err := val.Err(); err != nil {
			return nil, fmt.Errorf("failed to compile schema v%d: %w", i, err)
		}

		def := val.LookupPath(cue.ParsePath(DefinitionName))
		if !def.Exists() {
			return nil, fmt.Errorf("schema v%d does not define %s", i, DefinitionName)
		}
		ss.schemas = append(ss.schemas, def)
	}

	return ss, nil
}

// MustSchemaSet is like NewSchemaSet but panics on error. It is meant for
// package-level kind declarations whose schemas are compiled into the binary.
func MustSchemaSet(sources ...string) *SchemaSet {
	ss, err := NewSchemaSet(sources...)
	if err != nil {
		panic(err)
	}
	return ss
}

// Len returns the number of schemas.
func (ss *SchemaSet) Len() int {
	return len(ss.schemas)
}

// Latest returns the latest version number.
func (ss *SchemaSet) Latest() int {
	return len(ss.schemas) - 1
}

// Source returns the CUE source of a version, or "" if it does not exist.
func (ss *SchemaSet) Source(version int) string {
	if version < 0 || version >= len(ss.sources) {
		return ""
	}
	return ss.sources[version]
}

// Validate checks doc against the schema of the given version and returns every
// violation found. A nil result means the document is valid.
func (ss *SchemaSet) Validate(version int, doc any) (violations Violations) {
	if version < 0 || version >= len(ss.schemas) {
		return Violations{{
			Path:     "version",
			Expected: fmt.Sprintf("a version between 0 and %d", ss.Latest()),
			Actual:   version,
		}}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			violations = Violations{{Expected: "a document the schema can evaluate", Actual: fmt.Sprint(r)}}
		}
	}()

	val := ss.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return Violations{{Expected: "an encodable document", Actual: err.Error()}}
	}

	unified := ss.schemas[version].Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toViolations(err, doc)
	}
	return nil
}

// toViolations flattens a CUE error list into violations. Several CUE errors at
// the same path (e.g. the arms of a failed disjunction) are merged into one.
func toViolations(err error, doc any) Violations {
	var out Violations
	index := make(map[string]int)

	for _, e := range errors.Errors(err) {
		segments := documentPath(e.Path())
		path := strings.Join(segments, ".")

		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if strings.Contains(msg, "errors in empty disjunction") {
			continue
		}

		if i, ok := index[path]; ok {
			if !strings.Contains(out[i].Expected, msg) {
				out[i].Expected += " or " + msg
			}
			continue
		}

		actual, found := lookup(doc, segments)
		index[path] = len(out)
		out = append(out, Violation{Path: path, Expected: msg, Actual: actual, Null: found && actual == nil})
	}

	if len(out) == 0 {
		out = append(out, Violation{Expected: err.Error()})
	}
	return out
}

// documentPath strips definition selectors and label quoting from a CUE error path.
func documentPath(selectors []string) []string {
	segments := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if strings.HasPrefix(sel, "#") {
			continue
		}
		if strings.HasPrefix(sel, `"`) {
			if unq, err := strconv.Unquote(sel); err == nil {
				sel = unq
			}
		}
		segments = append(segments, sel)
	}
	return segments
}

// lookup walks doc along path segments; numeric segments index lists.
func lookup(doc any, segments []string) (any, bool) {
	cur := doc
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
