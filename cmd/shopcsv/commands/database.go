package commands

import (
	"database/sql"

	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/db"
	"github.com/harborline/shopcsv/errors"
	"github.com/harborline/shopcsv/logger"
)

// openDatabase opens and migrates the catalog/job database. An empty path
// falls back to the configured one.
func openDatabase(cfg *config.Config, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}
