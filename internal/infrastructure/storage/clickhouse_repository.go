package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
)

// ClickHouseRepository implements PriceStatStore on a MergeTree table ordered
// by (coin, timestamp), which serves both the latest and the windowed reads.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

func NewClickHouseRepository(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := createPriceStatsTable(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

var _ repository.PriceStatStore = (*ClickHouseRepository)(nil)

// inserted_at breaks timestamp ties in favour of the later write.
func createPriceStatsTable(ctx context.Context, conn driver.Conn) error {
	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_stats (
			id UUID,
			coin LowCardinality(String),
			price Float64,
			market_cap Float64,
			change_24h Float64,
			timestamp DateTime64(6, 'UTC'),
			inserted_at DateTime64(9, 'UTC') DEFAULT now64(9)
		) ENGINE = MergeTree()
		ORDER BY (coin, timestamp)
	`)
}

// SaveStat waits for the async insert to be flushed so the record is
// readable once SaveStat returns.
func (r *ClickHouseRepository) SaveStat(ctx context.Context, stat *model.PriceStat) error {
	query := `
		INSERT INTO price_stats (
			id, coin, price, market_cap, change_24h, timestamp
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, true,
		stat.ID.String(),
		string(stat.Coin),
		stat.Price,
		stat.MarketCap,
		stat.Change24h,
		stat.Timestamp.UTC(),
	)
}

func (r *ClickHouseRepository) LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	query := `
		SELECT id, coin, price, market_cap, change_24h, timestamp
		FROM price_stats
		WHERE coin = ?
		ORDER BY timestamp DESC, inserted_at DESC
		LIMIT 1
	`

	var (
		stat     model.PriceStat
		coinName string
	)
	row := r.conn.QueryRow(ctx, query, string(coin))
	err := row.Scan(
		&stat.ID,
		&coinName,
		&stat.Price,
		&stat.MarketCap,
		&stat.Change24h,
		&stat.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNoData
		}
		return nil, err
	}
	stat.Coin = model.Coin(coinName)

	return &stat, nil
}

func (r *ClickHouseRepository) RecentStats(ctx context.Context, coin model.Coin, limit int) ([]*model.PriceStat, error) {
	query := `
		SELECT id, coin, price, market_cap, change_24h, timestamp
		FROM price_stats
		WHERE coin = ?
		ORDER BY timestamp DESC, inserted_at DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, string(coin), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.PriceStat, 0, limit)
	for rows.Next() {
		var (
			stat     = new(model.PriceStat)
			coinName string
		)
		if err := rows.Scan(
			&stat.ID,
			&coinName,
			&stat.Price,
			&stat.MarketCap,
			&stat.Change24h,
			&stat.Timestamp,
		); err != nil {
			return nil, err
		}
		stat.Coin = model.Coin(coinName)
		results = append(results, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
