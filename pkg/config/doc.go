// Package config implements the lifecycle of versioned configuration files.
//
// # Overview
//
// A configuration kind declares a file name, one CUE schema per historical
// version and one migration between each pair of consecutive versions. The
// engine loads a file of any historical version, validates it, migrates it
// forward one version at a time, validates again at every boundary, and hands
// back a typed document of the latest version. Mutations are persisted with
// an explicit Commit, which re-validates and atomically replaces the file.
//
// # Components
//
// SchemaSet: compiled CUE #Config definitions indexed by version. Validate
// returns every violation as a (path, expected, actual) triple.
//
// Migration: a pure function from a version N document to a version N+1
// document. Migrations can be written in Go or as Starlark scripts
// (StarlarkMigration).
//
// Engine, LoadMutable, LoadReadonly: the loader. A missing file is created
// from a default generator when one is given; otherwise the load yields a nil
// handle. A file that needed migration is written back immediately in its
// upgraded form.
//
// Handle: owns the typed document and its path. Commit validates and writes.
//
// WriteDocument: canonical YAML encoding with stable ordering and an atomic
// temp-file-then-rename write.
//
// # Errors
//
// Every failure is an *Error carrying an ErrorClass: parse, schema_version,
// migration_validation, commit_validation or io. Use errors.Is with the
// sentinels (ErrParse, ...) or the IsParse style helpers.
//
// # Usage Example
//
//	engine := config.NewEngine(config.WithLogger(log.Logger))
//	h, err := config.LoadMutable(ctx, engine, kinds.Project(), config.LoadOptions[kinds.ProjectConfig]{
//	    Dir:     projectDir,
//	    Default: kinds.NewProject,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := h.Config().AddService("web", "./web"); err != nil {
//	    return err
//	}
//	return h.Commit(ctx)
package config
