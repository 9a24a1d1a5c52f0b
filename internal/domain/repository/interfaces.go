// Package repository defines the storage interfaces used by domain services.
// Domain logic depends on these interfaces; infrastructure packages provide
// the concrete implementations.
package repository

import (
	"context"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
)

// PriceStatStore is the durable, append-only collection of PriceStat records.
type PriceStatStore interface {
	// SaveStat appends one record. Records are never updated afterwards.
	SaveStat(ctx context.Context, stat *model.PriceStat) error

	// LatestStat returns the newest record for coin, ties broken by
	// insertion order. It returns model.ErrNoData when the coin has none.
	LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error)

	// RecentStats returns up to limit newest records for coin, newest first.
	// An empty slice is not an error.
	RecentStats(ctx context.Context, coin model.Coin, limit int) ([]*model.PriceStat, error)

	// Close releases the underlying connection.
	Close() error
}

// LatestStatCache keeps the newest record per coin in fast storage.
// Implementations prioritize speed over durability; the store stays the
// source of truth.
type LatestStatCache interface {
	// SaveLatest overwrites the cached record for stat.Coin.
	SaveLatest(ctx context.Context, stat *model.PriceStat) error

	// FillLatest stores stat only when nothing is cached for stat.Coin, so a
	// read-path fill never replaces a record written by ingestion.
	FillLatest(ctx context.Context, stat *model.PriceStat) error

	// GetLatest returns nil, nil on a cache miss.
	GetLatest(ctx context.Context, coin model.Coin) (*model.PriceStat, error)

	// Invalidate drops the cached record for coin.
	Invalidate(ctx context.Context, coin model.Coin) error
}
