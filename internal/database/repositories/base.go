package repositories

import (
	"database/sql"
	"github.com/rs/zerolog"
)

// BaseRepository provides common database operations
type BaseRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBase creates a new base repository
func NewBase(db *sql.DB, log zerolog.Logger) *BaseRepository {
	return &BaseRepository{
		db:  db,
		log: log,
	}
}

// DB returns the database connection
func (r *BaseRepository) DB() *sql.DB {
	return r.db
}

// Example repository pattern:
//
// type BondRepository struct {
//     *BaseRepository
// }
//
// func NewBondRepository(db *sql.DB, log zerolog.Logger) *BondRepository {
//     return &BondRepository{
//         BaseRepository: NewBase(db, log.With().Str("repo", "bonds").Logger()),
//     }
// }
//
// func (r *BondRepository) GetByID(id string) (*Bond, error) {
//     // Implementation
// }
