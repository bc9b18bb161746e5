package persistence

import "trade-assistant-go/internal/models"

// PositionRepository is the durable store for position snapshots. Upserts are
// idempotent by position id so a retry after a crash is safe. It abstracts
// the underlying storage mechanism (BadgerDB, in-memory) from the rest of the
// application.
type PositionRepository interface {
	// Upsert saves or replaces the snapshot keyed by its position id.
	Upsert(snap *models.PositionSnapshot) error

	// Get loads one snapshot. Returns (nil, nil) when the id is unknown.
	Get(positionID string) (*models.PositionSnapshot, error)

	// ListOpen returns all snapshots whose status is OPEN.
	ListOpen() ([]*models.PositionSnapshot, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
