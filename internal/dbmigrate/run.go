package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/fdg312/meal-recommender/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Commands accepted by Run.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
	CommandReset   = "reset"
)

// Run opens dsn with the dialect's driver and applies command.
func Run(ctx context.Context, command, dialect, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("database URL is empty")
	}

	driver, err := driverFor(dialect)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return RunDB(ctx, db, command, dialect)
}

// RunDB applies command on an already open database.
func RunDB(ctx context.Context, db *sql.DB, command, dialect string) error {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(command)) {
	case CommandUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("goose up failed: %w", err)
		}
		for _, r := range results {
			log.Info().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("migration applied")
		}
	case CommandDown:
		if _, err := provider.Down(ctx); err != nil {
			return fmt.Errorf("goose down failed: %w", err)
		}
	case CommandReset:
		if _, err := provider.DownTo(ctx, 0); err != nil {
			return fmt.Errorf("goose reset failed: %w", err)
		}
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status failed: %w", err)
		}
		for _, s := range statuses {
			log.Info().Int64("version", s.Source.Version).Str("state", string(s.State)).Msg("migration status")
		}
	case CommandVersion:
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("goose version failed: %w", err)
		}
		log.Info().Int64("version", version).Msg("database version")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	return nil
}

func newProvider(db *sql.DB, dialect string) (*goose.Provider, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations.FS, dialect)
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return provider, nil
}

func driverFor(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres:
		return "pgx", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}
