package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
)

// RedisRepository implements the LatestStatCache interface using Redis as the backend.
// Entries have no TTL; each ingestion cycle overwrites them.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(addr, password string, db int) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client}
}

// Ensure RedisRepository implements the LatestStatCache interface
var _ repository.LatestStatCache = (*RedisRepository)(nil)

// Ping checks connectivity within a short deadline.
func (r *RedisRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func latestKey(coin model.Coin) string {
	return fmt.Sprintf("stats:latest:%s", coin)
}

func (r *RedisRepository) SaveLatest(ctx context.Context, stat *model.PriceStat) error {
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal price stat: %w", err)
	}
	return r.client.Set(ctx, latestKey(stat.Coin), data, 0).Err()
}

// FillLatest writes stat with SETNX; an existing entry is left as is.
func (r *RedisRepository) FillLatest(ctx context.Context, stat *model.PriceStat) error {
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal price stat: %w", err)
	}
	return r.client.SetNX(ctx, latestKey(stat.Coin), data, 0).Err()
}

func (r *RedisRepository) GetLatest(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	data, err := r.client.Get(ctx, latestKey(coin)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var stat model.PriceStat
	if err := json.Unmarshal(data, &stat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price stat: %w", err)
	}
	return &stat, nil
}

func (r *RedisRepository) Invalidate(ctx context.Context, coin model.Coin) error {
	return r.client.Del(ctx, latestKey(coin)).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
