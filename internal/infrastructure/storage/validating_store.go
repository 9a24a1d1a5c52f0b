package storage

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
)

// ValidatingStore enforces the record invariants at the storage boundary
// before delegating to the wrapped backend. Every write error it returns
// wraps model.ErrPersistence.
type ValidatingStore struct {
	repository.PriceStatStore
	validator *model.StatValidator
	clock     clock.Clock
}

func NewValidatingStore(inner repository.PriceStatStore, coins model.CoinSet, clk clock.Clock) *ValidatingStore {
	return &ValidatingStore{
		PriceStatStore: inner,
		validator:      model.NewStatValidator(coins),
		clock:          clk,
	}
}

var _ repository.PriceStatStore = (*ValidatingStore)(nil)

// SaveStat fills a missing ID and timestamp on stat, validates it and appends it.
func (s *ValidatingStore) SaveStat(ctx context.Context, stat *model.PriceStat) error {
	if stat != nil {
		if stat.ID == uuid.Nil {
			stat.ID = uuid.New()
		}
		if stat.Timestamp.IsZero() {
			stat.Timestamp = s.clock.Now()
		}
	}
	if err := s.validator.Validate(stat); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	if err := s.PriceStatStore.SaveStat(ctx, stat); err != nil {
		return fmt.Errorf("%w: save %s: %w", model.ErrPersistence, stat.Coin, err)
	}
	return nil
}
