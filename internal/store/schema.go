package store

import (
	"context"
	"fmt"
)

// Schema is the DDL for every table named in the data model. CreateSchema is
// driven by the `init-db` CLI command.
const Schema = `
CREATE TABLE IF NOT EXISTS coins (
	symbol TEXT PRIMARY KEY,
	name TEXT,
	price_usd NUMERIC,
	last_price_updated TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS exchanges (
	id BIGINT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS markets (
	first_coin_id TEXT NOT NULL REFERENCES coins(symbol),
	second_coin_id TEXT NOT NULL REFERENCES coins(symbol),
	PRIMARY KEY (first_coin_id, second_coin_id)
);

CREATE TABLE IF NOT EXISTS exchange_markets (
	first_coin_id TEXT NOT NULL,
	second_coin_id TEXT NOT NULL,
	exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
	quoted_volume NUMERIC,
	quoted_volume_id TEXT,
	quoted_vol_timestamp TIMESTAMPTZ,
	volume_usd NUMERIC,
	vol_usd_timestamp TIMESTAMPTZ,
	PRIMARY KEY (first_coin_id, second_coin_id, exchange_id)
);

CREATE TABLE IF NOT EXISTS orders (
	exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
	exchange_order_id TEXT NOT NULL,
	buy_sym_id TEXT NOT NULL REFERENCES coins(symbol),
	sell_sym_id TEXT NOT NULL REFERENCES coins(symbol),
	side TEXT,
	order_type TEXT,
	timestamp TIMESTAMPTZ NOT NULL,
	filled_at TIMESTAMPTZ,
	expiry TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	amount_buy NUMERIC,
	amount_sell NUMERIC,
	gas_fee NUMERIC,
	"user" TEXT,
	PRIMARY KEY (exchange_id, exchange_order_id)
);
CREATE INDEX IF NOT EXISTS orders_timestamp_idx ON orders (timestamp);
CREATE INDEX IF NOT EXISTS orders_cancelled_at_idx ON orders (cancelled_at);

CREATE TABLE IF NOT EXISTS order_sizes (
	exchange_id BIGINT NOT NULL,
	exchange_order_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	size NUMERIC NOT NULL,
	PRIMARY KEY (exchange_id, exchange_order_id, timestamp),
	FOREIGN KEY (exchange_id, exchange_order_id) REFERENCES orders(exchange_id, exchange_order_id)
);

CREATE TABLE IF NOT EXISTS market_order_funds (
	exchange_id BIGINT NOT NULL,
	exchange_order_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	funds NUMERIC NOT NULL,
	PRIMARY KEY (exchange_id, exchange_order_id, timestamp),
	FOREIGN KEY (exchange_id, exchange_order_id) REFERENCES orders(exchange_id, exchange_order_id)
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
	buy_sym_id TEXT NOT NULL REFERENCES coins(symbol),
	sell_sym_id TEXT NOT NULL REFERENCES coins(symbol),
	timestamp TIMESTAMPTZ NOT NULL,
	trade_type TEXT,
	maker TEXT,
	taker TEXT,
	price NUMERIC NOT NULL,
	size NUMERIC NOT NULL,
	total NUMERIC,
	buyer_fee NUMERIC,
	seller_fee NUMERIC,
	gas_fee NUMERIC,
	buy_order_id TEXT,
	sell_order_id TEXT
);
CREATE INDEX IF NOT EXISTS trades_timestamp_idx ON trades (timestamp);

CREATE TABLE IF NOT EXISTS aggregate_orders (
	id BIGSERIAL PRIMARY KEY,
	exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
	buy_sym_id TEXT NOT NULL,
	sell_sym_id TEXT NOT NULL,
	order_type TEXT NOT NULL,
	price NUMERIC NOT NULL,
	size NUMERIC NOT NULL,
	last_update_id BIGINT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	UNIQUE (exchange_id, buy_sym_id, sell_sym_id, order_type, price, last_update_id)
);
CREATE INDEX IF NOT EXISTS agg_orders_market_idx ON aggregate_orders (exchange_id, buy_sym_id, sell_sym_id, timestamp);

CREATE TABLE IF NOT EXISTS order_book_snapshots (
	exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
	buy_sym_id TEXT NOT NULL,
	sell_sym_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	spread NUMERIC,
	bids_count INT,
	asks_count INT,
	bids_volume NUMERIC,
	asks_volume NUMERIC,
	bids_price_mean NUMERIC,
	asks_price_mean NUMERIC,
	bids_price_stddev NUMERIC,
	asks_price_stddev NUMERIC,
	bid_price_median NUMERIC,
	ask_price_median NUMERIC,
	min_ask_price NUMERIC,
	min_ask_size NUMERIC,
	max_bid_price NUMERIC,
	max_bid_size NUMERIC,
	bid_price_upper_quartile NUMERIC,
	ask_price_lower_quartile NUMERIC,
	bids_volume_upper_quartile NUMERIC,
	asks_volume_lower_quartile NUMERIC,
	bids_count_upper_quartile INT,
	asks_count_lower_quartile INT,
	bids_price_stddev_upper_quartile NUMERIC,
	asks_price_stddev_lower_quartile NUMERIC,
	bids_price_mean_upper_quartile NUMERIC,
	asks_price_mean_lower_quartile NUMERIC,
	PRIMARY KEY (exchange_id, buy_sym_id, sell_sym_id, timestamp)
);
`

// CreateSchema applies the DDL. Idempotent: every statement is IF NOT EXISTS.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
