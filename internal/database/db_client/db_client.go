package db_client

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	//go:embed schema.sql
	schema string
	//go:embed schema_sqlite.sql
	sqliteSchema string
)

func Open(host, port, user, pass, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		user, pass, host, port, database,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetConnMaxIdleTime(time.Minute)
	return db, db.Ping()
}

// OpenSQLite opens a single-file room log for single-node setups. SQLite
// serialises writers, so the pool is one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, db.Ping()
}

// Migrate creates the room log table and its index if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, schema)
}

func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, sqliteSchema)
}

func migrate(ctx context.Context, db *sql.DB, ddl string) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	zap.L().Info("db schema ready")
	return nil
}
