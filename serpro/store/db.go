// Package store persists successful regime elections in PostgreSQL.
package store

import (
	"embed"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.store")

//go:embed migrations/*.sql
var migrations embed.FS

// NewDB opens a pgx backed connection pool and verifies it with a ping.
func NewDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, serpro.Mark(serpro.ErrConfiguration, err, "connect to postgres")
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

// Migrate applies the embedded schema migrations. dsn must use the postgres:// scheme.
func Migrate(dsn string) (err error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return serpro.Mark(serpro.ErrConfiguration, err, "create migrate instance")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil && dbErr != nil {
			err = errors.Wrap(dbErr, "close migrate")
		}
		if srcErr != nil {
			logger.WithError(srcErr).Warn("Closing migration source failed")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "migration version")
	}
	logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Schema up to date")
	return nil
}
