package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chmdznr/pdfup/pkg/models"
)

// DB holds the uploaded-file list for one session. The database lives only in
// memory and is gone once it is closed.
type DB struct {
	*sql.DB
	name string
}

// New creates a fresh in-memory session database
func New() (*DB, error) {
	name := "session-" + uuid.NewString()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// Every connection to a shared-cache memory db sees the same data, but the
	// db vanishes when the last one closes; keep exactly one open.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{DB: sqlDB, name: name}
	if err := db.initialize(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// Name returns the session database name
func (db *DB) Name() string { return db.name }

// initialize creates the necessary tables if they don't exist
func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS uploaded_files (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			file_name TEXT NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS attempts (
			outcome TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0
		);
		PRAGMA temp_store=MEMORY;
	`)
	return err
}

// AppendUploaded adds a file to the end of the uploaded list. Duplicates are kept.
func (db *DB) AppendUploaded(fileName string, size int64) (*models.UploadedFileRecord, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO uploaded_files (file_name, size, uploaded_at)
		VALUES (?, ?, ?)
	`, fileName, size, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record upload: %v", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.UploadedFileRecord{Seq: seq, FileName: fileName, Size: size, UploadedAt: now}, nil
}

// ListUploaded returns uploaded files in upload order
func (db *DB) ListUploaded() ([]models.UploadedFileRecord, error) {
	rows, err := db.Query(`
		SELECT seq, file_name, size, uploaded_at
		FROM uploaded_files
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.UploadedFileRecord
	for rows.Next() {
		var rec models.UploadedFileRecord
		if err := rows.Scan(&rec.Seq, &rec.FileName, &rec.Size, &rec.UploadedAt); err != nil {
			return nil, err
		}
		files = append(files, rec)
	}
	return files, rows.Err()
}

// CountAttempt increments the counter for a submission outcome
func (db *DB) CountAttempt(outcome string) error {
	_, err := db.Exec(`
		INSERT INTO attempts (outcome, count) VALUES (?, 1)
		ON CONFLICT(outcome) DO UPDATE SET count = count + 1
	`, outcome)
	return err
}

// GetStats returns statistics about the session
func (db *DB) GetStats() (*models.Stats, error) {
	var stats models.Stats
	err := db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size), 0)
		FROM uploaded_files
	`).Scan(&stats.UploadedFiles, &stats.UploadedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %v", err)
	}

	err = db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN outcome IN ('server_rejected', 'transport_failure') THEN count ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'rejected' THEN count ELSE 0 END), 0)
		FROM attempts
	`).Scan(&stats.FailedFiles, &stats.RejectedFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %v", err)
	}
	return &stats, nil
}
