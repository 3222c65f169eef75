package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPlatform(t *testing.T, home, cwd string) {
	t.Helper()
	saved := platformDir
	platformDir.homeDir = func() (string, error) { return home, nil }
	platformDir.getwd = func() (string, error) { return cwd, nil }
	t.Cleanup(func() { platformDir = saved })
}

func TestResolveUserDir(t *testing.T) {
	home := t.TempDir()
	withPlatform(t, home, t.TempDir())

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvUserDir, "/from/env")
		got, err := ResolveUserDir("/from/flag")
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", got)
	})

	t.Run("env over home", func(t *testing.T) {
		t.Setenv(EnvUserDir, "/from/env")
		got, err := ResolveUserDir("")
		require.NoError(t, err)
		assert.Equal(t, "/from/env", got)
	})

	t.Run("home default", func(t *testing.T) {
		t.Setenv(EnvUserDir, "")
		got, err := ResolveUserDir("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, DirName), got)
	})
}

func TestResolveUserDir_HomeError(t *testing.T) {
	saved := platformDir
	platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Cleanup(func() { platformDir = saved })
	t.Setenv(EnvUserDir, "")

	_, err := ResolveUserDir("")
	require.Error(t, err)
}

func TestResolveProjectDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Run("flag names the project root", func(t *testing.T) {
		withPlatform(t, t.TempDir(), nested)
		got, err := ResolveProjectDir("/work/app")
		require.NoError(t, err)
		assert.Equal(t, "/work/app/"+DirName, got)
	})

	t.Run("flag may name the config dir itself", func(t *testing.T) {
		withPlatform(t, t.TempDir(), nested)
		got, err := ResolveProjectDir("/work/app/" + DirName)
		require.NoError(t, err)
		assert.Equal(t, "/work/app/"+DirName, got)
	})

	t.Run("env", func(t *testing.T) {
		withPlatform(t, t.TempDir(), nested)
		t.Setenv(EnvProjectDir, "/work/env")
		got, err := ResolveProjectDir("")
		require.NoError(t, err)
		assert.Equal(t, "/work/env/"+DirName, got)
	})

	t.Run("defaults to the working directory", func(t *testing.T) {
		withPlatform(t, t.TempDir(), nested)
		t.Setenv(EnvProjectDir, "")
		got, err := ResolveProjectDir("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(nested, DirName), got)
	})

	t.Run("finds the nearest parent project", func(t *testing.T) {
		withPlatform(t, t.TempDir(), nested)
		t.Setenv(EnvProjectDir, "")
		require.NoError(t, os.Mkdir(filepath.Join(root, DirName), 0o755))
		got, err := ResolveProjectDir("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, DirName), got)
	})
}

func TestFindProjectDir_IgnoresFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, DirName), nil, 0o644))
	_, ok := FindProjectDir(root)
	assert.False(t, ok)
}

func TestResolveJournalPath(t *testing.T) {
	got, err := ResolveJournalPath("", "/home/u/.vcfg")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.vcfg/"+JournalFileName, got)

	got, err = ResolveJournalPath("/tmp/j.db", "/home/u/.vcfg")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/j.db", got)
}
