package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/kinds"
)

// scope says which directory holds a kind's file.
type scope int

const (
	scopeProject scope = iota
	scopeUser
	// scopeDir kinds live next to their sources and are addressed with --dir.
	scopeDir
)

// loaded is a readonly load with the type parameter erased.
type loaded struct {
	path   string
	from   int
	latest int
	value  any
}

func (l *loaded) migrated() bool {
	return l.from < l.latest
}

// kindRef lets commands treat every configuration kind alike.
type kindRef struct {
	name   string
	scope  scope
	latest int
	path   func(dir string) (string, error)
	load   func(ctx context.Context, e *config.Engine, dir string) (*loaded, error)
}

func ref[T any](kind *config.Kind[T], sc scope) kindRef {
	return kindRef{
		name:   kind.Name,
		scope:  sc,
		latest: kind.Latest(),
		path: func(dir string) (string, error) {
			return config.ResolvePath(kind, config.LoadOptions[T]{Dir: dir})
		},
		load: func(ctx context.Context, e *config.Engine, dir string) (*loaded, error) {
			r, err := config.LoadReadonly(ctx, e, kind, config.LoadOptions[T]{Dir: dir})
			if err != nil || r == nil {
				return nil, err
			}
			return &loaded{
				path:   r.Path(),
				from:   r.MigratedFrom(),
				latest: kind.Latest(),
				value:  r.Config(),
			}, nil
		},
	}
}

var knownKinds = []kindRef{
	ref(kinds.Project(), scopeProject),
	ref(kinds.ProjectSecrets(), scopeProject),
	ref(kinds.App(), scopeProject),
	ref(kinds.UserSecrets(), scopeUser),
	ref(kinds.Service(), scopeDir),
	ref(kinds.Module(), scopeDir),
}

func kindNames() []string {
	names := make([]string, 0, len(knownKinds))
	for _, k := range knownKinds {
		names = append(names, k.name)
	}
	sort.Strings(names)
	return names
}

func lookupKind(name string) (kindRef, error) {
	for _, k := range knownKinds {
		if k.name == name {
			return k, nil
		}
	}
	return kindRef{}, fmt.Errorf("unknown kind %q (known: %s)", name, strings.Join(kindNames(), ", "))
}

// selectKinds resolves names; no names selects every project and user kind.
func selectKinds(names []string) ([]kindRef, error) {
	if len(names) == 0 {
		var selected []kindRef
		for _, k := range knownKinds {
			if k.scope != scopeDir {
				selected = append(selected, k)
			}
		}
		return selected, nil
	}
	selected := make([]kindRef, 0, len(names))
	for _, name := range names {
		k, err := lookupKind(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, k)
	}
	return selected, nil
}

// dirFor returns the directory holding k's file.
func (s *session) dirFor(k kindRef, dir string) string {
	switch k.scope {
	case scopeUser:
		return s.userDir
	case scopeDir:
		return dir
	default:
		return s.projectDir
	}
}
