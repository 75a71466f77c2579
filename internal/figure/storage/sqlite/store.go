// Package sqlite persists tracked-point telemetry so a session can be
// replayed or plotted after the process exits.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a telemetry database.
type Store struct {
	*sql.DB
}

// Recording summarises one stored run.
type Recording struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
	Samples   int64     `json:"samples"`
}

// Open opens or creates the database at path and migrates it to the
// latest schema. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp applies all pending migrations.
func (s *Store) MigrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Debugf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// NewRecording registers a run for the named model and returns its ID.
func (s *Store) NewRecording(ctx context.Context, model string, started time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.ExecContext(ctx,
		`INSERT INTO recordings (recording_id, model, started_unix_ns) VALUES (?, ?, ?)`,
		id, model, started.UnixNano())
	if err != nil {
		return "", fmt.Errorf("create recording: %w", err)
	}
	return id, nil
}

// InsertSamples stores a batch in one transaction and bumps the
// recording's sample count. Frames already stored are replaced.
func (s *Store) InsertSamples(ctx context.Context, recordingID string, samples []tracking.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO samples (
		recording_id, frame, timestamp_ns, dt,
		pos_x, pos_y, pos_z, rot_x, rot_y, rot_z,
		vel_x, vel_y, vel_z, ang_vel_x, ang_vel_y, ang_vel_z,
		acc_x, acc_y, acc_z, degenerate
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		_, err := stmt.ExecContext(ctx, recordingID, smp.Frame, smp.TimestampNanos, smp.DeltaSeconds,
			smp.Position.X, smp.Position.Y, smp.Position.Z,
			smp.Orientation.X, smp.Orientation.Y, smp.Orientation.Z,
			smp.Velocity.X, smp.Velocity.Y, smp.Velocity.Z,
			smp.AngularVelocity.X, smp.AngularVelocity.Y, smp.AngularVelocity.Z,
			smp.Acceleration.X, smp.Acceleration.Y, smp.Acceleration.Z,
			smp.Degenerate)
		if err != nil {
			return fmt.Errorf("insert frame %d: %w", smp.Frame, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE recordings SET sample_count = (SELECT COUNT(*) FROM samples WHERE recording_id = ?) WHERE recording_id = ?`,
		recordingID, recordingID); err != nil {
		return fmt.Errorf("update sample count: %w", err)
	}
	return tx.Commit()
}

// ListRecordings returns every recording, newest first.
func (s *Store) ListRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT recording_id, model, started_unix_ns, sample_count FROM recordings ORDER BY started_unix_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		var started int64
		if err := rows.Scan(&r.ID, &r.Model, &started, &r.Samples); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns a recording's samples in frame order.
func (s *Store) Samples(ctx context.Context, recordingID string) ([]tracking.Sample, error) {
	rows, err := s.QueryContext(ctx, `SELECT
		frame, timestamp_ns, dt,
		pos_x, pos_y, pos_z, rot_x, rot_y, rot_z,
		vel_x, vel_y, vel_z, ang_vel_x, ang_vel_y, ang_vel_z,
		acc_x, acc_y, acc_z, degenerate
		FROM samples WHERE recording_id = ? ORDER BY frame`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Sample
	for rows.Next() {
		var smp tracking.Sample
		var rot geom.EulerXYZ
		if err := rows.Scan(&smp.Frame, &smp.TimestampNanos, &smp.DeltaSeconds,
			&smp.Position.X, &smp.Position.Y, &smp.Position.Z,
			&rot.X, &rot.Y, &rot.Z,
			&smp.Velocity.X, &smp.Velocity.Y, &smp.Velocity.Z,
			&smp.AngularVelocity.X, &smp.AngularVelocity.Y, &smp.AngularVelocity.Z,
			&smp.Acceleration.X, &smp.Acceleration.Y, &smp.Acceleration.Z,
			&smp.Degenerate); err != nil {
			return nil, err
		}
		smp.Orientation = rot
		out = append(out, smp)
	}
	return out, rows.Err()
}
