package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// driverName maps a configured catalog driver to its database/sql name.
func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return "pgx"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	}
	return ""
}

// Open connects to the catalog database and checks that it answers.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name := driverName(driver)
	if name == "" {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	if name == "sqlite" {
		// an in-memory database exists per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s catalog: %w", driver, err)
	}
	return db, nil
}

// LoadFrom opens the catalog database, loads a cache from it and closes it.
func LoadFrom(ctx context.Context, driver, dsn string) (*Cache, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	c := NewCache()
	if err := c.Load(ctx, db, driver); err != nil {
		return nil, err
	}
	return c, nil
}
