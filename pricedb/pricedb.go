// Package pricedb persists a cointax.PriceCache in a SQLite database.
package pricedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/etnz/cointax"
	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// DB is a price database.
type DB struct {
	db *sql.DB
}

// Open opens, and creates if needed, the price database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	// prices are stored as text to keep them exact.
	schema := `
	CREATE TABLE IF NOT EXISTS prices (
		asset TEXT NOT NULL,
		day TEXT NOT NULL,
		price TEXT NOT NULL,
		PRIMARY KEY (asset, day)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Load adds every stored price to cache and returns how many were read.
func (d *DB) Load(ctx context.Context, cache *cointax.PriceCache) (int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT asset, day, price FROM prices ORDER BY asset, day`)
	if err != nil {
		return 0, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var asset, day, price string
		if err := rows.Scan(&asset, &day, &price); err != nil {
			return n, fmt.Errorf("scan price: %w", err)
		}
		dd, err := date.Parse(day)
		if err != nil {
			return n, fmt.Errorf("price of %s: %w", asset, err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return n, fmt.Errorf("price of %s on %s: %w", asset, day, err)
		}
		cache.Set(cointax.Asset(asset), dd, p)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate prices: %w", err)
	}
	return n, nil
}

// Save writes every price of cache, replacing the stored ones, and returns how many
// were written.
func (d *DB) Save(ctx context.Context, cache *cointax.PriceCache) (n int, err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO prices(asset, day, price) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, asset := range cache.Assets() {
		for _, p := range cache.Points(asset) {
			if _, err := stmt.ExecContext(ctx, string(asset), p.Day.String(), p.Value.String()); err != nil {
				return n, fmt.Errorf("insert price of %s on %s: %w", asset, p.Day, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
