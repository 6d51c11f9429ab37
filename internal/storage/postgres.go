package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		target_sec INTEGER NOT NULL,
		target_energy INTEGER NOT NULL,
		elapsed_sec INTEGER NOT NULL,
		energy_units INTEGER NOT NULL,
		completed BOOLEAN NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_finished_at ON sessions(finished_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) SaveSession(record *SessionRecord) error {
	query := `
		INSERT INTO sessions (id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			target_sec = EXCLUDED.target_sec,
			target_energy = EXCLUDED.target_energy,
			elapsed_sec = EXCLUDED.elapsed_sec,
			energy_units = EXCLUDED.energy_units,
			completed = EXCLUDED.completed,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.ActivityID,
		record.TargetSeconds,
		record.TargetEnergyUnits,
		record.ElapsedSeconds,
		record.EnergyUnits,
		record.Completed,
		record.StartedAt,
		record.FinishedAt,
	)

	return err
}

func (r *PostgresRepository) GetSessionsByUser(userID string) ([]SessionRecord, error) {
	query := `
		SELECT id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY finished_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *PostgresRepository) GetRecentSessions(userID string, since time.Time) ([]SessionRecord, error) {
	query := `
		SELECT id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at
		FROM sessions
		WHERE user_id = $1 AND finished_at >= $2
		ORDER BY finished_at DESC
	`

	rows, err := r.db.Query(query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *PostgresRepository) GetSessionStats(userID string) (*SessionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(elapsed_sec), 0),
			COALESCE(SUM(energy_units), 0)
		FROM sessions
		WHERE user_id = $1
	`

	var stats SessionStats
	err := r.db.QueryRow(query, userID).Scan(
		&stats.TotalSessions,
		&stats.CompletedCount,
		&stats.TotalSeconds,
		&stats.TotalEnergy,
	)
	if err != nil {
		return nil, err
	}

	stats.finish()
	return &stats, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
