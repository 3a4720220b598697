package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS satellite_positions (
	run_id        TEXT             NOT NULL,
	tick          INTEGER          NOT NULL,
	sim_time      TIMESTAMPTZ      NOT NULL,
	satellite     INTEGER          NOT NULL,
	latitude      DOUBLE PRECISION NOT NULL,
	longitude     DOUBLE PRECISION NOT NULL,
	altitude_km   DOUBLE PRECISION NOT NULL,
	northbound    BOOLEAN          NOT NULL,
	PRIMARY KEY (run_id, tick, satellite)
);
CREATE TABLE IF NOT EXISTS isl_links (
	run_id        TEXT             NOT NULL,
	tick          INTEGER          NOT NULL,
	link_id       TEXT             NOT NULL,
	kind          TEXT             NOT NULL,
	distance_km   DOUBLE PRECISION NOT NULL,
	latency_ms    DOUBLE PRECISION NOT NULL,
	is_up         BOOLEAN          NOT NULL,
	PRIMARY KEY (run_id, tick, link_id)
);`

const (
	insertPosition = `
		INSERT INTO satellite_positions (
			run_id, tick, sim_time, satellite, latitude, longitude, altitude_km, northbound
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertLink = `
		INSERT INTO isl_links (
			run_id, tick, link_id, kind, distance_km, latency_ms, is_up
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// PostgresSink records the history of positions and links.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection pool for connStr.
func NewPostgresSink(connStr string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

// NewPostgresSinkWithDB wraps an existing pool (useful for testing).
func NewPostgresSinkWithDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the history tables if they are missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Publish writes one snapshot in a single transaction.
func (s *PostgresSink) Publish(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sat := range snap.Satellites {
		if _, err := tx.ExecContext(ctx, insertPosition,
			snap.RunID, snap.Tick, snap.SimTime, sat.Index,
			sat.Position.Latitude, sat.Position.Longitude, sat.Position.Altitude,
			bool(sat.Direction),
		); err != nil {
			return fmt.Errorf("insert position of %s: %w", sat.ID, err)
		}
	}
	for _, l := range snap.Links {
		if _, err := tx.ExecContext(ctx, insertLink,
			snap.RunID, snap.Tick, l.ID, string(l.Kind), l.DistanceKm, l.LatencyMs, l.IsUp,
		); err != nil {
			return fmt.Errorf("insert link %s: %w", l.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
