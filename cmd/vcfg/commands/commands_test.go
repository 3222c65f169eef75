package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/kinds"
	"github.com/vcfg/vcfg/pkg/paths"
)

const appV1Doc = `version: 1
services:
  web:
    - peerId: p1
      serviceId: s1
      blueprintId: b1
keyPairName: deployer
timestamp: "2023-01-01T00:00:00Z"
relays: testnet
`

type testEnv struct {
	root       string
	projectDir string
	userDir    string
	journal    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))
	return &testEnv{
		root:       root,
		projectDir: filepath.Join(root, paths.DirName),
		userDir:    filepath.Join(base, "user"),
		journal:    filepath.Join(base, "journal.db"),
	}
}

func (te *testEnv) args(extra ...string) []string {
	args := []string{"--project-dir", te.root, "--user-dir", te.userDir, "--log-level", "error"}
	if te.journal != "" {
		args = append(args, "--journal", te.journal)
	}
	return append(args, extra...)
}

func (te *testEnv) runContext(ctx context.Context, out *syncBuffer, args ...string) error {
	s := newSession("test")
	cmd := newRootCommand(s, "test", "none", "today")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(te.args(args...))
	return s.run(ctx, cmd)
}

func (te *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	err := te.runContext(context.Background(), out, args...)
	return out.String(), err
}

func (te *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := te.run(t, args...)
	require.NoError(t, err, out)
	return out
}

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInit(t *testing.T) {
	te := newTestEnv(t)

	out := te.mustRun(t, "init")
	assert.Contains(t, out, "Created project")
	assert.Contains(t, out, "Created project-secrets")
	assert.Contains(t, out, "Created user-secrets")

	for _, path := range []string{
		filepath.Join(te.projectDir, kinds.ProjectFileName),
		filepath.Join(te.projectDir, kinds.SecretsFileName),
		filepath.Join(te.userDir, kinds.SecretsFileName),
	} {
		_, err := os.Stat(path)
		require.NoError(t, err, path)
	}
	info, err := os.Stat(filepath.Join(te.userDir, kinds.SecretsFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out = te.mustRun(t, "init")
	assert.Contains(t, out, "Found project")
	assert.NotContains(t, out, "Created")
}

func TestValidate(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "init")

	out := te.mustRun(t, "validate")
	assert.Contains(t, out, "project")
	assert.Regexp(t, `app\s+not found`, out)

	bad := "version: 3\nservices:\n  web:\n    default:\n      - peerId: p\n        serviceId: s\n        blueprintId: b\ntimestamp: t\n"
	require.NoError(t, os.WriteFile(filepath.Join(te.projectDir, kinds.AppFileName), []byte(bad), 0o644))

	out, err := te.run(t, "validate", "app")
	require.Error(t, err)
	assert.True(t, config.IsMigrationValidation(err))
	assert.Equal(t, ExitUser, ExitCode(err))
	assert.Contains(t, out, "services.web.default.0.keyPairName")
	assert.Contains(t, out, "at v3")

	_, err = te.run(t, "validate", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidate_ServiceManifestFromDir(t *testing.T) {
	te := newTestEnv(t)
	svcDir := filepath.Join(te.root, "services", "storage")
	require.NoError(t, os.MkdirAll(svcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svcDir, kinds.ServiceFileName),
		[]byte("version: 0\nname: storage\nmodules:\n  sqlite:\n    get: ./sqlite\n"), 0o644))

	out, err := te.run(t, "validate", "service", "--dir", svcDir)
	require.Error(t, err)
	assert.Contains(t, out, "modules.facade")
}

func TestMigrate(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "init")
	appPath := filepath.Join(te.projectDir, kinds.AppFileName)
	require.NoError(t, os.WriteFile(appPath, []byte(appV1Doc), 0o644))

	out, err := te.run(t, "migrate", "--check", "app")
	require.ErrorIs(t, err, ErrMigrationPending)
	assert.Contains(t, out, "v1 -> v3 pending")
	data, err := os.ReadFile(appPath)
	require.NoError(t, err)
	assert.Equal(t, appV1Doc, string(data), "--check must not write")

	out = te.mustRun(t, "migrate", "app")
	assert.Contains(t, out, "v1 -> v3")

	out = te.mustRun(t, "migrate", "--check", "app")
	assert.Contains(t, out, "up to date (v3)")

	out = te.mustRun(t, "show", "app")
	assert.Contains(t, out, "version: 3")
	assert.Contains(t, out, "keyPairName: deployer")
	assert.Contains(t, out, "relays: testnet")
}

func TestMigrate_CheckRejectsUnknownVersion(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, os.MkdirAll(te.projectDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(te.projectDir, kinds.AppFileName), []byte("version: 999\n"), 0o644))

	_, err := te.run(t, "migrate", "--check", "app")
	require.Error(t, err)
	assert.True(t, config.IsSchemaVersion(err))
}

func TestShow(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "init")

	out := te.mustRun(t, "show", "project")
	assert.Contains(t, out, "version: 0")

	_, err := te.run(t, "show", "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file at")
}

func TestKey(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "init")

	out := te.mustRun(t, "key", "new", "ci")
	assert.Contains(t, out, "Created key pair ci (SHA256:")

	out = te.mustRun(t, "key", "list")
	assert.Regexp(t, `\* ci\s+SHA256:`, out, "first project key pair becomes the default")

	te.mustRun(t, "key", "new", "release", "--default")
	out = te.mustRun(t, "key", "resolve")
	assert.Regexp(t, `^release SHA256:`, out)

	out = te.mustRun(t, "key", "resolve", kinds.DefaultKeyPairName)
	assert.Regexp(t, `^default SHA256:`, out, "falls back to the user store")

	out = te.mustRun(t, "key", "remove", "release")
	assert.Contains(t, out, "Default key pair is now ci")

	_, err := te.run(t, "key", "new", "ci")
	require.ErrorIs(t, err, kinds.ErrKeyPairExists)

	_, err = te.run(t, "key", "remove", kinds.DefaultKeyPairName, "--user")
	require.ErrorIs(t, err, kinds.ErrLastKeyPair)
	assert.Equal(t, ExitUser, ExitCode(err))
}

func TestService(t *testing.T) {
	te := newTestEnv(t)
	svcDir := filepath.Join(te.root, "services", "storage")
	require.NoError(t, os.MkdirAll(svcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svcDir, kinds.ServiceFileName),
		[]byte("version: 0\nname: storage\nmodules:\n  facade:\n    get: ./modules/facade\n"), 0o644))

	out := te.mustRun(t, "service", "add", svcDir)
	assert.Contains(t, out, "Added service storage (./services/storage)")

	out = te.mustRun(t, "service", "add", filepath.Join(svcDir, kinds.ServiceFileName), "--name", "cache")
	assert.Contains(t, out, "Added service cache")

	_, err := te.run(t, "service", "add", svcDir)
	require.ErrorIs(t, err, kinds.ErrServiceExists)

	out = te.mustRun(t, "service", "list")
	assert.Regexp(t, `storage\s+\./services/storage \[default\]`, out)
	assert.Contains(t, out, "cache")

	_, err = te.run(t, "service", "add", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no service.yaml found")
}

func TestHistory(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "init")
	require.NoError(t, os.WriteFile(filepath.Join(te.projectDir, kinds.AppFileName), []byte(appV1Doc), 0o644))
	te.mustRun(t, "migrate", "app")

	out := te.mustRun(t, "history")
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "config.created")
	assert.Contains(t, out, "config.migrated")
	assert.Contains(t, out, "v1->v3")

	out = te.mustRun(t, "history", "--kind", "app")
	assert.NotContains(t, out, "config.created")

	out = te.mustRun(t, "history", "prune", "--older-than", "0s")
	assert.Contains(t, out, "Pruned")
	out = te.mustRun(t, "history", "--kind", "app")
	assert.NotContains(t, out, "config.migrated")
}

func TestHistory_DisabledBySettingsFile(t *testing.T) {
	te := newTestEnv(t)
	te.journal = ""
	require.NoError(t, os.MkdirAll(te.userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(te.userDir, paths.SettingsFileName), []byte("journal: \"off\"\n"), 0o644))

	_, err := te.run(t, "history")
	require.ErrorIs(t, err, ErrJournalDisabled)
	_, err = os.Stat(filepath.Join(te.userDir, paths.JournalFileName))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWatch(t *testing.T) {
	te := newTestEnv(t)
	te.journal = ""
	te.mustRun(t, "init")

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- te.runContext(ctx, out, "watch", "project", "--debounce", "10ms", "--journal", "off")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "valid (v0)")
	}, 5*time.Second, 10*time.Millisecond)

	bad := "version: 0\nservices:\n  web:\n    get: \"\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(te.projectDir, kinds.ProjectFileName), []byte(bad), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "services.web.get")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestExitCode(t *testing.T) {
	parse := config.NewParseError("/x.yaml", errors.New("bad"))
	io := config.NewIOError("/x.yaml", "write", errors.New("disk full"))
	internal := config.NewMigrationValidationError("/x.yaml", 2, 1, nil, errors.New("decode")).AsInternal()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "parse", err: parse, want: ExitUser},
		{name: "io", err: io, want: ExitFailure},
		{name: "internal", err: internal, want: ExitFailure},
		{name: "wrapped io", err: fmt.Errorf("app: %w", io), want: ExitFailure},
		{name: "joined", err: errors.Join(parse, io), want: ExitFailure},
		{name: "plain", err: errors.New("unknown kind"), want: ExitUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
