// Package paths resolves the project and user configuration directories.
package paths

import (
	"os"
	"path/filepath"
)

// DirName is the configuration directory inside a project and inside the home directory.
const DirName = ".vcfg"

// Environment variable names for directory overrides.
const (
	EnvProjectDir = "VCFG_PROJECT_DIR"
	EnvUserDir    = "VCFG_USER_DIR"
)

// File names kept in the user directory next to the user's configuration kinds.
const (
	SettingsFileName = "settings.yaml"
	JournalFileName  = "journal.db"
)

// platformDir holds lookups that tests override.
var platformDir = struct {
	homeDir func() (string, error)
	getwd   func() (string, error)
}{
	homeDir: os.UserHomeDir,
	getwd:   os.Getwd,
}

// ResolveUserDir returns the user configuration directory following the
// precedence chain: flag > VCFG_USER_DIR env > ~/.vcfg.
func ResolveUserDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvUserDir); env != "" {
		return filepath.Abs(env)
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// ResolveProjectDir returns the project configuration directory following the
// precedence chain: flag > VCFG_PROJECT_DIR env > nearest .vcfg directory in
// the working directory or one of its parents > .vcfg in the working directory.
//
// Flag and env name the project root; the returned path is always the .vcfg
// directory inside it.
func ResolveProjectDir(flag string) (string, error) {
	if flag != "" {
		return projectDir(flag)
	}
	if env := os.Getenv(EnvProjectDir); env != "" {
		return projectDir(env)
	}

	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	if found, ok := FindProjectDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, DirName), nil
}

// FindProjectDir walks up from start looking for a .vcfg directory.
func FindProjectDir(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ResolveJournalPath returns the journal database path: flag > <user dir>/journal.db.
func ResolveJournalPath(flag, userDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	return filepath.Join(userDir, JournalFileName), nil
}

func projectDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if filepath.Base(abs) == DirName {
		return abs, nil
	}
	return filepath.Join(abs, DirName), nil
}
