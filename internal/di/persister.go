package di

import (
	"stride/internal/statistic"
	"stride/internal/statistic/interfaces"
	"stride/internal/storage"
)

// NewPersister lets the scheduler flush stores that keep a snapshot.
func NewPersister(store storage.RecordStore) interfaces.PersisterInterface {
	return statistic.NewPersister(store)
}
