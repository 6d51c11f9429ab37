package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
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
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_finished_at ON sessions(finished_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSession inserts the record or overwrites an earlier one for the same run.
func (r *SQLiteRepository) SaveSession(record *SessionRecord) error {
	query := `
		INSERT INTO sessions (id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_sec = excluded.target_sec,
			target_energy = excluded.target_energy,
			elapsed_sec = excluded.elapsed_sec,
			energy_units = excluded.energy_units,
			completed = excluded.completed,
			finished_at = excluded.finished_at
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

func (r *SQLiteRepository) GetSessionsByUser(userID string) ([]SessionRecord, error) {
	query := `
		SELECT id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY finished_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *SQLiteRepository) GetRecentSessions(userID string, since time.Time) ([]SessionRecord, error) {
	query := `
		SELECT id, user_id, activity_id, target_sec, target_energy, elapsed_sec, energy_units, completed, started_at, finished_at
		FROM sessions
		WHERE user_id = ? AND finished_at >= ?
		ORDER BY finished_at DESC
	`

	rows, err := r.db.Query(query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

func (r *SQLiteRepository) GetSessionStats(userID string) (*SessionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(elapsed_sec), 0),
			COALESCE(SUM(energy_units), 0)
		FROM sessions
		WHERE user_id = ?
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

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSessions(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord

	for rows.Next() {
		var record SessionRecord

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.ActivityID,
			&record.TargetSeconds,
			&record.TargetEnergyUnits,
			&record.ElapsedSeconds,
			&record.EnergyUnits,
			&record.Completed,
			&record.StartedAt,
			&record.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
