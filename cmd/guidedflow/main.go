// guidedflow is the operator CLI for guided-chat flow graphs: it lists,
// validates, exports, imports and deletes the flow documents a chat widget
// traverses at conversation time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/chatlift/guidedflow/internal/codec"
	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
	"github.com/chatlift/guidedflow/internal/store"
	"github.com/chatlift/guidedflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for guidedflow state data
	DefaultStateDir = "/var/lib/guidedflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "guidedflow.db"
	// DefaultOwner is the owner key used when none is configured
	DefaultOwner = "default"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags, command := parseCommandLineFlags(config)
	if command == "" {
		fmt.Fprintln(os.Stderr, "usage: guidedflow [flags] <list|validate|export|import|delete>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	// Ensure required directories exist for file-based storage
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open flow document store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := runCommand(context.Background(), command, st, flags); err != nil {
		slog.Error("guidedflow command failed", "command", command, "error", err)
		os.Exit(1)
	}
	slog.Debug("guidedflow command completed", "command", command)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	Owner       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDSN    *string
	owner    *string
	format   *string
	input    *string
	output   *string
	flowName *string
}

// initializeLogger sets up structured logging; debug level is opt-in.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("GUIDEDFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("GUIDEDFLOW_STATE_DIR"),
		Owner:       os.Getenv("GUIDEDFLOW_OWNER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No GUIDEDFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Owner == "" {
		config.Owner = DefaultOwner
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"GUIDEDFLOW_STATE_DIR", config.StateDir,
		"GUIDEDFLOW_OWNER", config.Owner)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) (Flags, string) {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "state directory for guidedflow data (overrides $GUIDEDFLOW_STATE_DIR)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite file path or Postgres URL (overrides $DATABASE_URL)"),
		owner:    flag.String("owner", config.Owner, "owner key of the flow graph (overrides $GUIDEDFLOW_OWNER)"),
		format:   flag.String("format", "json", "export format: json or yaml"),
		input:    flag.String("in", "", "import document path (default stdin)"),
		output:   flag.String("out", "", "export document path (default stdout)"),
		flowName: flag.String("flow", "", "flow name for the delete command"),
	}

	flag.Parse()

	// Follow an overridden state directory unless the DSN itself was overridden.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"owner", *flags.owner,
		"format", *flags.format)

	return flags, flag.Arg(0)
}

// isPostgresDSN reports whether the DSN targets Postgres rather than a SQLite file.
func isPostgresDSN(dsn string) bool {
	return strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if isPostgresDSN(*flags.dbDSN) {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	return os.MkdirAll(stateDir, 0755)
}

// openStore selects the store backend from the DSN shape.
func openStore(flags Flags) (store.Store, error) {
	if isPostgresDSN(*flags.dbDSN) {
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

func runCommand(ctx context.Context, command string, st store.Store, flags Flags) error {
	switch command {
	case "list":
		return runList(ctx, st, flags)
	case "validate":
		return runValidate(ctx, st, flags)
	case "export":
		return runExport(ctx, st, flags)
	case "import":
		return runImport(ctx, st, flags)
	case "delete":
		return runDelete(ctx, st, flags)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadModel reads the owner's committed graph from the store.
func loadModel(ctx context.Context, st store.Store, owner string) (*graph.Model, error) {
	flows, err := st.ListFlows(ctx, owner)
	if err != nil {
		return nil, err
	}
	return graph.NewModel(flows)
}

func runList(ctx context.Context, st store.Store, flags Flags) error {
	m, err := loadModel(ctx, st, *flags.owner)
	if err != nil {
		return err
	}
	for _, f := range m.Flows() {
		state := "active"
		if !f.Active {
			state = "inactive"
		}
		fmt.Printf("%-24s %-8s %s  %d option(s)\n", f.Name, state, f.Language, len(f.Options))
	}
	return nil
}

func runValidate(ctx context.Context, st store.Store, flags Flags) error {
	flows, err := st.ListFlows(ctx, *flags.owner)
	if err != nil {
		return err
	}
	if violations := graph.CheckAll(flows); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v.String())
		}
		return fmt.Errorf("stored graph has %d violation(s)", len(violations))
	}
	fmt.Printf("graph ok: %d flow(s)\n", len(flows))
	return nil
}

func runExport(ctx context.Context, st store.Store, flags Flags) error {
	m, err := loadModel(ctx, st, *flags.owner)
	if err != nil {
		return err
	}

	var data []byte
	switch *flags.format {
	case "json":
		data, err = codec.Export(m)
	case "yaml":
		data, err = codec.ExportYAML(m)
	default:
		return fmt.Errorf("unknown export format %q", *flags.format)
	}
	if err != nil {
		return err
	}

	if *flags.output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*flags.output, data, 0644)
}

func runImport(ctx context.Context, st store.Store, flags Flags) error {
	var data []byte
	var err error
	if *flags.input == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*flags.input)
	}
	if err != nil {
		return fmt.Errorf("failed to read import document: %w", err)
	}

	flows, err := codec.Import(data)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintln(os.Stderr, v.String())
			}
		}
		return err
	}

	if err := st.ReplaceAll(ctx, *flags.owner, flows); err != nil {
		return err
	}
	fmt.Printf("imported %d flow(s)\n", len(flows))
	return nil
}

func runDelete(ctx context.Context, st store.Store, flags Flags) error {
	name := *flags.flowName
	if name == "" {
		return fmt.Errorf("delete requires -flow")
	}

	m, err := loadModel(ctx, st, *flags.owner)
	if err != nil {
		return err
	}
	if violations := graph.CheckDelete(m, name); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v.String())
		}
		return fmt.Errorf("flow %s cannot be deleted", name)
	}

	if err := st.DeleteFlow(ctx, *flags.owner, name); err != nil {
		return err
	}
	fmt.Printf("deleted flow %s\n", name)
	return nil
}
