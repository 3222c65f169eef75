package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/paths"
	"github.com/vcfg/vcfg/pkg/stores"
	"github.com/vcfg/vcfg/pkg/telemetry"
)

// Setting keys. Each one is a persistent flag, a VCFG_ environment variable
// and a key in the user's settings.yaml.
const (
	keyProjectDir   = "project-dir"
	keyUserDir      = "user-dir"
	keyLogLevel     = "log-level"
	keyLogFormat    = "log-format"
	keyTrace        = "trace"
	keyOTLPEndpoint = "otlp-endpoint"
	keyMetricsFile  = "metrics-file"
	keyJournal      = "journal"
)

// journalOff disables the migration journal when given as the journal path.
const journalOff = "off"

// Exit codes.
const (
	ExitOK      = 0
	ExitUser    = 1
	ExitFailure = 2
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	s := newSession(version)
	return s.run(ctx, newRootCommand(s, version, commit, buildDate))
}

// ExitCode maps an error returned by Execute to the process exit code.
// Broken documents are the user's to fix; I/O failures and defects in a
// kind declaration are not.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrIO), config.IsInternal(err):
		return ExitFailure
	default:
		return ExitUser
	}
}

// session holds what a command needs once flags and settings are resolved.
type session struct {
	version  string
	settings *viper.Viper

	projectDir string
	userDir    string

	tel     *telemetry.Telemetry
	engine  *config.Engine
	journal *stores.SQLiteStore
	log     zerolog.Logger
}

func newSession(version string) *session {
	v := viper.New()
	v.SetEnvPrefix("VCFG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &session{version: version, settings: v, log: zerolog.Nop()}
}

func newRootCommand(s *session, version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vcfg",
		Short: "vcfg - versioned configuration files",
		Long: `vcfg manages versioned YAML configuration files.

Every file carries a version. Loading an older file migrates it step by step
to the latest version, validating the document at every step, and rewrites
it in place. Edits are validated before they are written, and every write
replaces the file atomically.

Settings come from flags, VCFG_* environment variables and settings.yaml
in the user directory, in that order.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyProjectDir, "", "project root (default: nearest directory with .vcfg)")
	flags.String(keyUserDir, "", "user configuration directory (default: ~/.vcfg)")
	flags.String(keyLogLevel, "info", "log level (trace, debug, info, warn, error)")
	flags.String(keyLogFormat, "console", "log format (console, json)")
	flags.String(keyTrace, "none", "trace exporter (none, stdout, otlp)")
	flags.String(keyOTLPEndpoint, "", "OTLP gRPC endpoint for --trace otlp")
	flags.String(keyMetricsFile, "", "write metrics in textfile format to this path on exit")
	flags.String(keyJournal, "", `migration journal database (default: <user dir>/journal.db, "off" to disable)`)
	_ = s.settings.BindPFlags(flags)

	rootCmd.AddCommand(newInitCommand(s))
	rootCmd.AddCommand(newValidateCommand(s))
	rootCmd.AddCommand(newMigrateCommand(s))
	rootCmd.AddCommand(newShowCommand(s))
	rootCmd.AddCommand(newKeyCommand(s))
	rootCmd.AddCommand(newServiceCommand(s))
	rootCmd.AddCommand(newHistoryCommand(s))
	rootCmd.AddCommand(newWatchCommand(s))

	return rootCmd
}

// run executes cmd and releases the session whether or not the command failed.
func (s *session) run(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := s.close(context.WithoutCancel(ctx)); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// setup resolves directories and settings and builds telemetry, the journal
// and the engine.
func (s *session) setup(cmd *cobra.Command, _ []string) error {
	v := s.settings

	userDir, err := paths.ResolveUserDir(v.GetString(keyUserDir))
	if err != nil {
		return fmt.Errorf("failed to resolve user directory: %w", err)
	}
	s.userDir = userDir

	v.SetConfigFile(filepath.Join(userDir, paths.SettingsFileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read settings: %w", err)
		}
	}

	projectDir, err := paths.ResolveProjectDir(v.GetString(keyProjectDir))
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}
	s.projectDir = projectDir

	tel, err := telemetry.NewTelemetry(s.telemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	s.tel = tel
	s.log = tel.Logger.NewComponentLogger("cli").Zerolog()

	ctx := tel.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	if err := s.openJournal(ctx); err != nil {
		return err
	}

	s.engine = config.NewEngine(config.WithTelemetry(tel))
	s.log.Debug().
		Str("project_dir", s.projectDir).
		Str("user_dir", s.userDir).
		Bool("journal", s.journal != nil).
		Msg("session ready")
	return nil
}

func (s *session) telemetryConfig() *telemetry.Config {
	v := s.settings
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = s.version
	cfg.Logging.Level = v.GetString(keyLogLevel)
	cfg.Logging.Format = v.GetString(keyLogFormat)
	if exporter := v.GetString(keyTrace); exporter != "" && exporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = exporter
		cfg.Tracing.Endpoint = v.GetString(keyOTLPEndpoint)
	}
	cfg.Metrics.TextfilePath = v.GetString(keyMetricsFile)
	return cfg
}

// openJournal opens the journal and subscribes it to lifecycle events.
func (s *session) openJournal(ctx context.Context) error {
	flag := s.settings.GetString(keyJournal)
	if flag == journalOff {
		return nil
	}
	path, err := paths.ResolveJournalPath(flag, s.userDir)
	if err != nil {
		return fmt.Errorf("failed to resolve journal path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	journal, err := stores.Open(ctx, stores.Config{Path: path})
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	s.journal = journal

	s.tel.Events.Subscribe(stores.Subscriber(ctx, journal, func(err error) {
		s.log.Warn().Err(err).Msg("failed to journal event")
	}), nil)
	return nil
}

func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.tel != nil {
		if err := s.tel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}
	s.tel, s.journal = nil, nil
	return errors.Join(errs...)
}

// projectRoot is the directory containing the project's .vcfg directory.
func (s *session) projectRoot() string {
	return filepath.Dir(s.projectDir)
}
