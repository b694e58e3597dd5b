// Package publish holds the entity.Publisher implementations the service
// fans fresh state out to.
package publish

import (
	"context"

	"github.com/i474232898/srf-weather/internal/entity"
	"github.com/i474232898/srf-weather/internal/weather"
)

// StorePublisher appends every published snapshot to a weather.Store.
type StorePublisher struct {
	store weather.Store
}

func NewStorePublisher(store weather.Store) *StorePublisher {
	return &StorePublisher{store: store}
}

// Publish implements entity.Publisher.
func (p *StorePublisher) Publish(_ context.Context, state entity.State) error {
	return p.store.SaveSnapshot(state.Snapshot.Location, state.Snapshot)
}
