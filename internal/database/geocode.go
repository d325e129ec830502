package database

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Coordinates are rounded to three decimal places (roughly 110m) before
// cache lookups and writes, so nearby shots share one cache entry and one
// upstream request.
const coordPrecision = 3

// RoundCoord normalizes a coordinate to the cache precision.
func RoundCoord(v float64) float64 {
	scale := math.Pow(10, coordPrecision)
	return math.Round(v*scale) / scale
}

// CachedPlace looks up a previously resolved place for the coordinates.
// The second return is false on a cache miss.
func (db *DB) CachedPlace(lat, lng float64) (*Place, bool, error) {
	start := time.Now()
	var p Place
	var name, city, state, country sql.NullString
	err := db.conn.QueryRow(`
		SELECT location_name, location_city, location_state, location_country
		FROM geocode_cache
		WHERE latitude = ? AND longitude = ? AND precision_level = ?`,
		RoundCoord(lat), RoundCoord(lng), coordPrecision).Scan(&name, &city, &state, &country)
	recordQuery("geocode_lookup", start, err)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("geocode cache lookup: %w", err)
	}
	p.Name = name.String
	p.City = city.String
	p.State = state.String
	p.Country = country.String
	return &p, true, nil
}

// StorePlace caches a resolved place under the rounded coordinates,
// replacing any previous entry.
func (db *DB) StorePlace(lat, lng float64, p *Place) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		INSERT INTO geocode_cache (
			latitude, longitude, precision_level, location_name, location_city,
			location_state, location_country, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(latitude, longitude, precision_level) DO UPDATE SET
			location_name = excluded.location_name,
			location_city = excluded.location_city,
			location_state = excluded.location_state,
			location_country = excluded.location_country,
			cached_at = excluded.cached_at`,
		RoundCoord(lat), RoundCoord(lng), coordPrecision,
		emptyNil(p.Name), emptyNil(p.City), emptyNil(p.State), emptyNil(p.Country),
		time.Now().Unix())
	recordQuery("geocode_store", start, err)
	if err != nil {
		return fmt.Errorf("storing geocode entry: %w", err)
	}
	return nil
}

// AddGeocodeStats folds a batch of in-memory lookup counters into the
// durable totals. Called from the geocode accumulator's flush, not per
// lookup.
func (db *DB) AddGeocodeStats(hits, misses, errs int64) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		INSERT INTO geocode_stats (id, cache_hits, cache_misses, errors, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cache_hits = cache_hits + excluded.cache_hits,
			cache_misses = cache_misses + excluded.cache_misses,
			errors = errors + excluded.errors,
			updated_at = excluded.updated_at`,
		hits, misses, errs, time.Now().Unix())
	recordQuery("geocode_stats_flush", start, err)
	if err != nil {
		return fmt.Errorf("flushing geocode stats: %w", err)
	}
	return nil
}

// GeocodeStats returns the lifetime lookup totals.
func (db *DB) GeocodeStats() (hits, misses, errs int64, err error) {
	start := time.Now()
	err = db.conn.QueryRow(`
		SELECT cache_hits, cache_misses, errors FROM geocode_stats WHERE id = 1`).
		Scan(&hits, &misses, &errs)
	recordQuery("geocode_stats", start, err)
	if err == sql.ErrNoRows {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reading geocode stats: %w", err)
	}
	return hits, misses, errs, nil
}
