package auth

import (
	"context"
	"database/sql"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/netowork/go-auth/migrations"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenDB opens a bun database for driver ("sqlite" or "postgres").
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// a single writer keeps sqlite from reporting SQLITE_BUSY under load
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, goerrors.New("unsupported database driver: "+driver, goerrors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER")
	}
}

// Migrate applies every pending embedded migration for driver.
func Migrate(ctx context.Context, db *bun.DB, driver string) error {
	var (
		dialect goose.Dialect
		source  fs.FS
		err     error
	)

	switch driver {
	case DriverSQLite:
		dialect = goose.DialectSQLite3
		source, err = fs.Sub(migrations.SQLite, "sqlite")
	case DriverPostgres:
		dialect = goose.DialectPostgres
		source, err = fs.Sub(migrations.Postgres, "postgres")
	default:
		return goerrors.New("unsupported database driver: "+driver, goerrors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER")
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	provider, err := goose.NewProvider(dialect, db.DB, source)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migration provider")
	}

	if _, err := provider.Up(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	return nil
}
