package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name    string
		doc     map[string]any
		want    int
		wantErr bool
	}{
		{name: "zero", doc: map[string]any{"version": 0}, want: 0},
		{name: "latest", doc: map[string]any{"version": 2}, want: 2},
		{name: "integral float", doc: map[string]any{"version": 1.0}, want: 1},
		{name: "int64", doc: map[string]any{"version": int64(1)}, want: 1},
		{name: "missing", doc: map[string]any{"name": "x"}, wantErr: true},
		{name: "null", doc: map[string]any{"version": nil}, wantErr: true},
		{name: "string", doc: map[string]any{"version": "1"}, wantErr: true},
		{name: "negative", doc: map[string]any{"version": -1}, wantErr: true},
		{name: "fractional", doc: map[string]any{"version": 1.5}, wantErr: true},
		{name: "beyond latest", doc: map[string]any{"version": 3}, wantErr: true},
		{name: "far future", doc: map[string]any{"version": 999}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectVersion(tt.doc, 2)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsSchemaVersion(err))
				assert.ErrorIs(t, err, ErrSchemaVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectVersion_CarriesFoundValue(t *testing.T) {
	_, err := DetectVersion(map[string]any{"version": 999}, 2)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 999, ce.Found)
	assert.Contains(t, ce.Error(), "between 0 and 2")
}

func TestRunChain(t *testing.T) {
	kind := widgetKind()
	doc := map[string]any{"version": 0, "name": "w", "port": 9000}

	var applied []int
	out, err := runChain("", doc, 0, kind.Schemas, kind.Migrations, func(v int, _ Migration) {
		applied = append(applied, v)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, applied)
	assert.Equal(t, map[string]any{
		"version": 2,
		"name":    "w",
		"listen":  map[string]any{"port": 9000, "host": "localhost"},
	}, out)

	// Input must not be modified.
	assert.Equal(t, map[string]any{"version": 0, "name": "w", "port": 9000}, doc)
}

func TestRunChain_LatestRunsNoSteps(t *testing.T) {
	kind := widgetKind()
	doc := map[string]any{
		"version": 2,
		"name":    "w",
		"listen":  map[string]any{"port": 1, "host": "h"},
	}

	calls := 0
	out, err := runChain("", doc, 2, kind.Schemas, kind.Migrations, func(int, Migration) { calls++ })
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, doc, out)
}

func TestRunChain_BoundaryValidation(t *testing.T) {
	broken := Migration{
		Description: "produce an invalid port",
		Apply: func(doc map[string]any) (map[string]any, error) {
			delete(doc, "port")
			doc["listen"] = map[string]any{"port": "not-a-number"}
			doc["version"] = 1
			return doc, nil
		},
	}
	kind := widgetKind(broken, AddDefault(2, "listen.host", "localhost"))

	_, err := runChain("/tmp/w.yaml", map[string]any{"version": 0, "name": "w"}, 0, kind.Schemas, kind.Migrations, nil)
	require.Error(t, err)
	assert.True(t, IsMigrationValidation(err))
	assert.True(t, IsInternal(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Version)
	assert.Equal(t, 0, ce.Step)
	assert.Equal(t, "v0->v1", ce.Boundary())
	assert.True(t, ce.Violations.Has("listen.port"))
	assert.Contains(t, ce.Error(), "v0->v1")
}

func TestRunChain_InvalidSourceDocument(t *testing.T) {
	kind := widgetKind()

	_, err := runChain("", map[string]any{"version": 0, "name": 5}, 0, kind.Schemas, kind.Migrations, nil)
	require.Error(t, err)
	assert.True(t, IsMigrationValidation(err))
	assert.False(t, IsInternal(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, -1, ce.Step)
	assert.Equal(t, "v0", ce.Boundary())
	assert.True(t, ce.Violations.Has("name"))
}

func TestRunChain_StepError(t *testing.T) {
	stepErr := errors.New("cannot migrate")
	failing := Migration{
		Description: "always fails",
		Apply: func(map[string]any) (map[string]any, error) {
			return nil, stepErr
		},
	}
	kind := widgetKind(moveListenPort(), failing)

	_, err := runChain("", map[string]any{"version": 0, "name": "w"}, 0, kind.Schemas, kind.Migrations, nil)
	require.Error(t, err)
	assert.True(t, IsMigrationValidation(err))
	assert.ErrorIs(t, err, stepErr)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "v1->v2", ce.Boundary())
}

func TestRunChain_StepPanicAndNilResult(t *testing.T) {
	panics := Migration{Apply: func(map[string]any) (map[string]any, error) { panic("boom") }}
	nilResult := Migration{Apply: func(map[string]any) (map[string]any, error) { return nil, nil }}

	for _, m := range []Migration{panics, nilResult} {
		kind := widgetKind(m, AddDefault(2, "listen.host", "localhost"))
		_, err := runChain("", map[string]any{"version": 0, "name": "w"}, 0, kind.Schemas, kind.Migrations, nil)
		require.Error(t, err)
		assert.True(t, IsMigrationValidation(err))
	}
}

func TestMigrationHelpers(t *testing.T) {
	doc := map[string]any{
		"version": 0,
		"old":     map[string]any{"name": "x"},
		"gone":    true,
	}

	out, err := Rename(1, "old.name", "new.name").Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, out["version"])
	v, ok := Get(out, "new.name")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = Get(out, "old.name")
	assert.False(t, ok)

	out, err = Remove(2, "gone").Apply(out)
	require.NoError(t, err)
	assert.NotContains(t, out, "gone")

	out, err = AddDefault(3, "new.name", "y").Apply(out)
	require.NoError(t, err)
	v, _ = Get(out, "new.name")
	assert.Equal(t, "x", v, "existing values are kept")

	out, err = AddDefault(4, "extra.list", []any{"a"}).Apply(out)
	require.NoError(t, err)
	v, _ = Get(out, "extra.list")
	assert.Equal(t, []any{"a"}, v)
	assert.Equal(t, 4, out["version"])
}

func TestSet_RejectsNonMappingIntermediate(t *testing.T) {
	doc := map[string]any{"a": "scalar"}
	err := Set(doc, "a.b", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a mapping")
}

func TestKindCheck(t *testing.T) {
	k := widgetKind(moveListenPort())
	err := k.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require 2 migrations, got 1")

	k = widgetKind(moveListenPort(), Migration{Description: "empty"})
	require.Error(t, k.Check())

	require.NoError(t, widgetKind().Check())
}
