package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteOptions controls how a document is persisted.
type WriteOptions struct {
	// Template is appended as commented example lines. Only set for newly generated files.
	Template string

	// Perm is the mode for a newly created file. An existing file keeps its mode.
	Perm os.FileMode
}

// EncodeDocument renders doc as YAML with two-space indentation. Struct fields keep
// their declaration order and map keys are sorted, so equal documents encode identically.
func EncodeDocument(doc any, template string) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	if template != "" {
		buf.WriteString("\n")
		buf.WriteString(commentBlock(template))
	}
	return buf.Bytes(), nil
}

// commentBlock turns a template into YAML comment lines under an "Examples" heading.
func commentBlock(template string) string {
	var b strings.Builder
	b.WriteString("# Examples:\n")
	for _, line := range strings.Split(strings.TrimRight(template, "\n"), "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			b.WriteString("#\n")
		case strings.HasPrefix(line, "#"):
			b.WriteString(line + "\n")
		default:
			b.WriteString("# " + line + "\n")
		}
	}
	return b.String()
}

// WriteDocument encodes doc and atomically replaces the file at path with it.
// Either the old contents or the complete new contents are on disk afterwards.
func WriteDocument(path string, doc any, opts WriteOptions) error {
	data, err := EncodeDocument(doc, opts.Template)
	if err != nil {
		return NewIOError(path, "encode", err)
	}

	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	if err := writeFileAtomic(path, data, perm); err != nil {
		return NewIOError(path, "write", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs it,
// and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform supports
// syncing a directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
