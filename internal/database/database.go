package database

import (
	"database/sql"
	"embed"
	"fmt"

	"badminton-scoreboard/internal/config"
	"badminton-scoreboard/internal/constants"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// per-connection settings go in the DSN so every pooled connection gets them
const dsnParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-16000"

const driverName = "sqlite3_scoreboard"

// connPragmas have no DSN parameter and run in the connect hook instead.
var connPragmas = []string{
	"PRAGMA temp_store = MEMORY",
}

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range connPragmas {
				if _, err := conn.Exec(pragma, nil); err != nil {
					return fmt.Errorf("failed to run %q: %w", pragma, err)
				}
			}
			return nil
		},
	})
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", cfg.DBPath).Msg("connecting to database")

	db, err := Open(cfg.DBPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := optimizeSQLite(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to optimize SQLite")
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}
	if err := Migrate(db); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	logger.Info().Msg("database connection established and optimized")
	return db, nil
}

func Open(path string) (*sql.DB, error) {
	return sql.Open(driverName, fmt.Sprintf("file:%s?%s", path, dsnParams))
}

func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// optimizeSQLite checks the connection settings took effect and lets SQLite
// refresh its query planner statistics.
func optimizeSQLite(sqlDB *sql.DB, logger zerolog.Logger) error {
	var journalMode string
	if err := sqlDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if journalMode != "wal" {
		logger.Warn().Str("journal_mode", journalMode).Msg("WAL journal mode not enabled")
	}

	var foreignKeys int
	if err := sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		return fmt.Errorf("failed to read foreign keys setting: %w", err)
	}
	if foreignKeys != 1 {
		return fmt.Errorf("foreign keys are disabled")
	}

	if _, err := sqlDB.Exec("PRAGMA optimize"); err != nil {
		logger.Warn().Err(err).Msg("failed to optimize database")
	}

	logger.Debug().
		Str("journal_mode", journalMode).
		Int("foreign_keys", foreignKeys).
		Msg("SQLite settings verified")
	return nil
}
