package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Pool sizes the connection pool. Zero fields take the defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// LambdaPool keeps a short-lived invocation to a single connection.
var LambdaPool = Pool{MaxOpen: 1, MaxIdle: 1, MaxLifetime: 5 * time.Minute}

func (p Pool) withDefaults() Pool {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = min(5, p.MaxOpen)
	}
	if p.MaxIdle > p.MaxOpen {
		p.MaxIdle = p.MaxOpen
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = time.Hour
	}
	return p
}

// Open connects through the pgx stdlib driver and pings before returning.
func Open(ctx context.Context, url string, pool Pool) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Migrate brings the applications schema up to date and logs the version change.
func Migrate(db *sql.DB, log *logrus.Entry) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	from, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate from %d: %w", from, err)
	}
	to, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}

	entry := log.WithField("from", from).WithField("to", to)
	if from == to {
		entry.Info("applications schema up to date")
		return nil
	}
	entry.Info("applications schema migrated")
	return nil
}
