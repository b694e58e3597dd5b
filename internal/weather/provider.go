package weather

import (
	"context"
	"time"
)

// TokenSource hands out a valid bearer token, renewing it when needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ForecastSource abstracts the forecast endpoint of the weather provider.
type ForecastSource interface {
	Forecast(ctx context.Context, token string, loc Location) (*ForecastResponse, error)
}

// Store is the contract the in-memory store and the SQLite store satisfy.
type Store interface {
	SaveSnapshot(loc Location, snapshot Snapshot) error
	GetLatest(loc Location) (Snapshot, error)
	GetRange(loc Location, from, to time.Time) ([]Snapshot, error)
	// Prune removes snapshots fetched before the cutoff and reports how many went.
	Prune(before time.Time) (int, error)
}
