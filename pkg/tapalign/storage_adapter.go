package tapalign

import (
	"github.com/himanishpuri/TapAlign/internal/storage"
)

var _ Storage = (*storage.DBClient)(nil)

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
