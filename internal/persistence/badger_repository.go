package persistence

import (
	"encoding/json"
	"errors"

	"trade-assistant-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

var positionKeyPrefix = []byte("position/")

// badgerRepository is the BadgerDB implementation of the PositionRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens (or creates) a BadgerDB database at dbPath and
// returns a repository backed by it.
func NewBadgerRepository(dbPath string) (PositionRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{db: db}, nil
}

func positionKey(id string) []byte {
	return append(append([]byte{}, positionKeyPrefix...), id...)
}

// Upsert saves or replaces a snapshot under its position id.
func (r *badgerRepository) Upsert(snap *models.PositionSnapshot) error {
	if snap == nil || snap.PositionID == "" {
		return errors.New("snapshot must have a position id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(positionKey(snap.PositionID), data)
	})
}

// Get loads one snapshot; (nil, nil) when the id is unknown.
func (r *badgerRepository) Get(positionID string) (*models.PositionSnapshot, error) {
	var snap models.PositionSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(positionKey(positionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListOpen scans the position key space and returns every OPEN snapshot.
func (r *badgerRepository) ListOpen() ([]*models.PositionSnapshot, error) {
	var open []*models.PositionSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(positionKeyPrefix); it.ValidForPrefix(positionKeyPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var snap models.PositionSnapshot
				if err := json.Unmarshal(val, &snap); err != nil {
					return err
				}
				if snap.Status == models.StatusOpen {
					open = append(open, &snap)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return open, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
