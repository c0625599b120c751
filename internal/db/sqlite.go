package db

import (
	"database/sql"
	"fmt"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/config"

	_ "modernc.org/sqlite"
)

const geocodeCacheSchema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query      TEXT PRIMARY KEY,
	json       TEXT NOT NULL,
	fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// OpenGeocodeCache opens the suggestion cache database. An empty path
// disables the cache and returns a nil handle.
func OpenGeocodeCache(cfg config.Config) (*sql.DB, error) {
	if cfg.GeocodeCachePath == "" {
		return nil, nil
	}
	conn, err := sql.Open("sqlite", cfg.GeocodeCachePath)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(geocodeCacheSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate geocode cache: %w", err)
	}
	return conn, nil
}
