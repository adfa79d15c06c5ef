// migrate applies the embedded schema migrations.
//
// Usage:
//
//	migrate up            apply all pending migrations
//	migrate down          roll back one migration
//	migrate version       print the current schema version
//
// The database URL comes from PAWARISK_DATABASE_DSN.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"pawarisk/db"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if len(os.Args) < 2 {
		logger.Error("usage: migrate <up|down|version>")
		os.Exit(2)
	}
	dsn := os.Getenv("PAWARISK_DATABASE_DSN")
	if dsn == "" {
		logger.Error("PAWARISK_DATABASE_DSN is required")
		os.Exit(2)
	}

	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		logger.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		logger.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%v\n", version, dirty)
		}
	default:
		logger.Error("unknown command", "command", os.Args[1])
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no pending migrations")
		return
	}
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("done", "command", os.Args[1])
}
