package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
)

// PostgresRepository implements PriceStatStore on a plain table; the seq
// column breaks timestamp ties in insertion order.
type PostgresRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	repo := &PostgresRepository{DB: pool}
	if err := repo.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return repo, nil
}

var _ repository.PriceStatStore = (*PostgresRepository)(nil)

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_stats (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL,
			coin TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL CHECK (price > 0),
			market_cap DOUBLE PRECISION NOT NULL CHECK (market_cap >= 0),
			change_24h DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_price_stats_coin_timestamp
			ON price_stats (coin, timestamp DESC, seq DESC);
	`)
	return err
}

func (r *PostgresRepository) SaveStat(ctx context.Context, stat *model.PriceStat) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO price_stats (id, coin, price, market_cap, change_24h, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		stat.ID, string(stat.Coin), stat.Price, stat.MarketCap, stat.Change24h, stat.Timestamp)
	return err
}

func (r *PostgresRepository) LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, coin, price, market_cap, change_24h, timestamp
		FROM price_stats
		WHERE coin = $1
		ORDER BY timestamp DESC, seq DESC
		LIMIT 1`, string(coin))

	stat, err := scanPriceStat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNoData
		}
		return nil, err
	}
	return stat, nil
}

func (r *PostgresRepository) RecentStats(ctx context.Context, coin model.Coin, limit int) ([]*model.PriceStat, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, coin, price, market_cap, change_24h, timestamp
		FROM price_stats
		WHERE coin = $1
		ORDER BY timestamp DESC, seq DESC
		LIMIT $2`, string(coin), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.PriceStat, 0, limit)
	for rows.Next() {
		stat, err := scanPriceStat(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *PostgresRepository) Close() error {
	r.DB.Close()
	return nil
}

func scanPriceStat(row pgx.Row) (*model.PriceStat, error) {
	var (
		stat     model.PriceStat
		coinName string
	)
	if err := row.Scan(&stat.ID, &coinName, &stat.Price, &stat.MarketCap, &stat.Change24h, &stat.Timestamp); err != nil {
		return nil, err
	}
	stat.Coin = model.Coin(coinName)
	return &stat, nil
}
