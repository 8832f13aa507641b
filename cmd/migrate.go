package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groundworklabs/groundwork/internal/config"
	"github.com/groundworklabs/groundwork/internal/database"
	"github.com/groundworklabs/groundwork/internal/logging"
	"github.com/groundworklabs/groundwork/internal/migrate"
	"github.com/groundworklabs/groundwork/internal/sqlcheck"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long: `Apply every pending migration in lexicographic tag order.

Pending means: a .sql file in the migrations directory whose tag has no
journal entry. Each migration is recorded in the journal immediately after
it succeeds, so a failed run never replays completed work.`,
	Example: `  # Apply pending migrations for the default environment
  groundwork migrate

  # Apply against a named environment
  groundwork migrate --env production

  # Parse-check postgres migrations before executing anything
  groundwork migrate --validate`,
	Run: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Run:   runMigrateStatus,
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback [tag|count]",
	Short: "Roll back applied migrations",
	Long: `Roll back applied migrations, most recent first.

With no argument the single most recent migration is undone. A numeric
argument undoes that many of the most recent migrations. A tag argument
undoes everything applied after that migration, leaving the tag itself
applied. Each migration's undo is its paired <tag>.down.sql file.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMigrateRollback,
}

var migrateInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold the migrations directory and journal",
	Run:   runMigrateInit,
}

var (
	migrateEnv      string
	migrateDir      string
	migrateValidate bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
	migrateCmd.AddCommand(migrateInitCmd)

	migrateCmd.PersistentFlags().StringVar(&migrateEnv, "env", "", "Named environment from "+config.ConfigFileName+" (defaults to config default)")
	migrateCmd.PersistentFlags().StringVar(&migrateDir, "dir", "", "Migrations directory (overrides config)")
	migrateCmd.Flags().BoolVar(&migrateValidate, "validate", false, "Parse-check postgres migrations before executing anything")
}

// migrationTarget bundles everything a migrate subcommand needs: an open
// database handle, the resolved migrations directory and a ready runner.
type migrationTarget struct {
	db      *sql.DB
	dir     string
	dialect string
	runner  *migrate.Runner
}

func resolveMigrationTarget(ctx context.Context) (*migrationTarget, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	env, err := config.ResolveEnvironment(cfg, migrateEnv)
	if err != nil {
		return nil, nil, err
	}

	dir := env.MigrationsDir
	if strings.TrimSpace(migrateDir) != "" {
		dir = migrateDir
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	driver := database.DetectDriver(env.DatabaseURL)
	logger.Info("connecting",
		"database", database.Redact(env.DatabaseURL),
		"dialect", database.Dialect(driver))

	db, err := database.Open(ctx, env.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	var locker migrate.Locker
	if driver == "postgres" {
		locker = migrate.NewPostgresAdvisoryLock(db, "groundwork_migrate")
	}

	return &migrationTarget{
		db:      db,
		dir:     dir,
		dialect: database.Dialect(driver),
		runner:  migrate.NewRunner(db, dir, locker, logger),
	}, cleanup, nil
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	target, cleanup, err := resolveMigrationTarget(ctx)
	if err != nil {
		log.Fatalf("Failed to prepare migration run: %v", err)
	}
	defer cleanup()

	if migrateValidate && target.dialect == database.DialectPostgres {
		if err := validatePending(target.dir); err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
	}

	result, err := target.runner.Apply(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied %d migration(s)\n", result.Applied)
}

// validatePending parse-checks every discovered migration without touching the
// database. Only meaningful for the postgres dialect; the parser speaks
// postgres SQL.
func validatePending(dir string) error {
	files := migrate.Discover(dir)
	batches := make(map[string]string, len(files))
	order := make([]string, 0, len(files))
	for _, f := range files {
		sqlText, err := f.ReadSQL()
		if err != nil {
			return err
		}
		batches[f.Tag] = sqlText
		order = append(order, f.Tag)
	}

	issues := sqlcheck.CheckBatch(batches, order)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(os.Stderr, issue)
	}
	return fmt.Errorf("%d migration(s) failed to parse", len(issues))
}

func runMigrateStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	env, err := config.ResolveEnvironment(cfg, migrateEnv)
	if err != nil {
		log.Fatalf("Failed to resolve environment: %v", err)
	}
	dir := env.MigrationsDir
	if strings.TrimSpace(migrateDir) != "" {
		dir = migrateDir
	}

	journal, err := migrate.LoadJournal(dir)
	if errors.Is(err, migrate.ErrJournalNotFound) {
		fmt.Printf("No journal at %s. Run `groundwork migrate init` to scaffold one.\n", migrate.JournalPath(dir))
		journal = nil
	} else if err != nil {
		log.Fatalf("Failed to load journal: %v", err)
	}

	applied := journal.AppliedTags()
	files := migrate.Discover(dir)

	var pending int
	for _, f := range files {
		status := "pending"
		if applied[f.Tag] {
			status = "applied"
		} else {
			pending++
		}
		fmt.Printf("  %-8s %s\n", status, f.Tag)
	}

	// Journal entries with no matching file are worth surfacing: the file was
	// deleted after being applied.
	if journal != nil {
		onDisk := make(map[string]bool, len(files))
		for _, f := range files {
			onDisk[f.Tag] = true
		}
		for _, entry := range journal.Entries {
			if !onDisk[entry.Tag] {
				fmt.Printf("  %-8s %s (file missing)\n", "applied", entry.Tag)
			}
		}
	}

	fmt.Printf("%d migration(s), %d pending\n", len(files), pending)
}

// parseRollbackTarget interprets the rollback argument: a bare integer is a
// count, anything else is a tag, no argument means the most recent migration.
func parseRollbackTarget(args []string) (migrate.RollbackTarget, error) {
	var target migrate.RollbackTarget
	if len(args) == 0 {
		return target, nil
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 {
			return target, fmt.Errorf("rollback count must be at least 1, got %d", n)
		}
		target.Count = n
		return target, nil
	}
	target.Tag = args[0]
	return target, nil
}

func runMigrateRollback(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	target, err := parseRollbackTarget(args)
	if err != nil {
		log.Fatalf("Invalid rollback target: %v", err)
	}

	mt, cleanup, err := resolveMigrationTarget(ctx)
	if err != nil {
		log.Fatalf("Failed to prepare rollback: %v", err)
	}
	defer cleanup()

	result, err := mt.runner.Rollback(ctx, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rolled back %d migration(s)\n", result.RolledBack)
}

func runMigrateInit(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	env, err := config.ResolveEnvironment(cfg, migrateEnv)
	if err != nil {
		log.Fatalf("Failed to resolve environment: %v", err)
	}
	dir := env.MigrationsDir
	if strings.TrimSpace(migrateDir) != "" {
		dir = migrateDir
	}

	if _, err := migrate.LoadJournal(dir); err == nil {
		fmt.Printf("Journal already exists at %s\n", migrate.JournalPath(dir))
		return
	} else if !errors.Is(err, migrate.ErrJournalNotFound) {
		log.Fatalf("Existing journal is unreadable: %v", err)
	}

	dialect := database.Dialect(database.DetectDriver(env.DatabaseURL))
	if err := migrate.NewJournal(dialect).Save(dir); err != nil {
		log.Fatalf("Failed to create journal: %v", err)
	}
	fmt.Printf("Created %s\n", migrate.JournalPath(dir))
}
