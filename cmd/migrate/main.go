// Command migrate manages the ledger database schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/chantier/backend/internal/infrastructure/logger"
	"github.com/chantier/backend/internal/infrastructure/migration"
	"github.com/chantier/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// dbCommand runs against an open migrator; args excludes the command name
type dbCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var dbCommands = map[string]dbCommand{
	"up":      func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() },
	"down":    func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() },
	"step":    stepCmd,
	"goto":    gotoCmd,
	"version": versionCmd,
	"force":   forceCmd,
	"drop":    dropCmd,
}

func main() {
	dir := flag.String("path", "", "migrations directory (empty: embedded)")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(log, *dir, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error())
			printUsage()
			os.Exit(2)
		}
		log.Fatal("migrate "+args[0]+" failed", zap.Error(err))
	}
}

func run(log *zap.Logger, dir, command string, args []string) error {
	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
		}
		return createCmd(log, localDir(dir), args)
	case "list":
		return listCmd(log, localDir(dir))
	}

	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if dir == "" {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	} else {
		m, err = migration.New(db, localDir(dir), log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info("running migration command",
		zap.String("command", command),
		zap.Bool("embedded", dir == ""),
		zap.String("database", cfg.Database.DBName),
	)
	return cmd(m, log, args)
}

// localDir resolves the on-disk directory used by create, list and -path
func localDir(dir string) string {
	if dir == "" {
		dir = defaultMigrationsDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func createCmd(log *zap.Logger, dir string, args []string) error {
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func listCmd(log *zap.Logger, dir string) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	log.Info("migrations", zap.String("dir", dir), zap.Int("count", len(names)))
	for _, n := range names {
		fmt.Println("  -", n)
	}
	return nil
}

func stepCmd(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate step <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n == 0 {
		return fmt.Errorf("%w: step count must be a non-zero integer, got %q", errUsage, args[0])
	}
	return m.Steps(n)
}

func gotoCmd(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate goto <version>", errUsage)
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	return m.GoTo(uint(v))
}

func versionCmd(m *migration.Migrator, log *zap.Logger, _ []string) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

func forceCmd(m *migration.Migrator, log *zap.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate force <version>", errUsage)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	log.Warn("forcing schema version", zap.Int("version", v))
	return m.Force(v)
}

func dropCmd(m *migration.Migrator, log *zap.Logger, args []string) error {
	if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
		return fmt.Errorf("%w: drop removes every ledger table, rerun with -confirm", errUsage)
	}
	log.Warn("dropping all database objects")
	return m.Drop()
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Chantier ledger schema migrations

Usage: migrate [-path dir] [-log-level level] <command> [args]

  up                    apply pending migrations
  down                  roll back every migration
  step <n>              apply n migrations, negative rolls back
  goto <version>        migrate to a version
  version               print the applied version
  force <version>       set the version without running SQL
  drop -confirm         drop every database object
  create <name> [desc]  write a new up/down pair under ./migrations
  list                  list migration files

The database is configured with CHANTIER_DATABASE_HOST, _PORT, _USER,
_PASSWORD, _DBNAME and _SSLMODE. Without -path the migrations embedded
in the binary are used.
`)
}
