package config

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
)

// DefaultStarlarkSteps bounds the work a scripted migration may do per document.
const DefaultStarlarkSteps = 1_000_000

// StarlarkMigration compiles a Starlark script defining migrate(doc) into a Migration.
// The function receives the document as a dict and must return the migrated dict.
// Scripts cannot print, load modules or run longer than DefaultStarlarkSteps.
func StarlarkMigration(description, script string) (Migration, error) {
	name := fmt.Sprintf("%s.star", description)
	globals, err := starlark.ExecFile(newThread(name), name, script, nil)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to compile migration script: %w", err)
	}
	globals.Freeze()

	fn, ok := globals["migrate"].(starlark.Callable)
	if !ok {
		return Migration{}, fmt.Errorf("migration script %s does not define migrate(doc)", name)
	}

	return Migration{
		Description: description,
		Apply: func(doc map[string]any) (map[string]any, error) {
			in, err := toStarlarkValue(doc)
			if err != nil {
				return nil, fmt.Errorf("failed to convert document: %w", err)
			}

			thread := newThread(name)
			thread.SetMaxExecutionSteps(DefaultStarlarkSteps)

			res, err := starlark.Call(thread, fn, starlark.Tuple{in}, nil)
			if err != nil {
				return nil, fmt.Errorf("migration script failed: %w", err)
			}

			out, err := fromStarlarkValue(res)
			if err != nil {
				return nil, fmt.Errorf("failed to convert migration result: %w", err)
			}
			m, ok := out.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("migrate(doc) returned %s, expected dict", res.Type())
			}
			return m, nil
		},
	}, nil
}

// MustStarlarkMigration is like StarlarkMigration but panics if the script does not compile.
func MustStarlarkMigration(description, script string) Migration {
	m, err := StarlarkMigration(description, script)
	if err != nil {
		panic(err)
	}
	return m
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, _ string) {},
	}
}

// toStarlarkValue converts a generic document value to a Starlark value.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value back to a generic document value.
// Integers that fit become int, matching what the YAML decoder produces.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		if i >= math.MinInt && i <= math.MaxInt {
			return int(i), nil
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
