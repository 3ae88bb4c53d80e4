package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists prediction history and the training log in SQLite.
type Store struct {
	db *sql.DB
}

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID            string    `json:"id"`
	Mode          string    `json:"mode"`
	Prediction    string    `json:"prediction"`
	RawPrediction int       `json:"raw_prediction"`
	Confidence    float64   `json:"confidence"`
	Malignant     float64   `json:"malignant"`
	Benign        float64   `json:"benign"`
	ModelVersion  string    `json:"model_version"`
	CreatedAt     time.Time `json:"created_at"`
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	ModelPath  string    `json:"model_path"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY churn
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        mode VARCHAR(20) NOT NULL,
        prediction VARCHAR(20) NOT NULL,
        raw_prediction INTEGER NOT NULL,
        confidence REAL NOT NULL,
        malignant REAL NOT NULL,
        benign REAL NOT NULL,
        model_version VARCHAR(50),
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SavePrediction(ctx context.Context, record PredictionRecord) error {
	if record.ID == "" {
		return errors.New("prediction id required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            id, mode, prediction, raw_prediction, confidence, malignant, benign, model_version, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Mode,
		record.Prediction,
		record.RawPrediction,
		record.Confidence,
		record.Malignant,
		record.Benign,
		record.ModelVersion,
		record.CreatedAt,
	)
	return err
}

// RecentPredictions returns up to limit records, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, mode, prediction, raw_prediction, confidence, malignant, benign, model_version, created_at
        FROM predictions
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var version sql.NullString
		if err := rows.Scan(&r.ID, &r.Mode, &r.Prediction, &r.RawPrediction, &r.Confidence,
			&r.Malignant, &r.Benign, &version, &r.CreatedAt); err != nil {
			return nil, err
		}
		if version.Valid {
			r.ModelVersion = version.String
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	if log.TrainedAt.IsZero() {
		log.TrainedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, model_path, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ModelName, log.ModelPath, log.Accuracy, log.Precision, log.Recall, log.TrainedAt, log.DataPoints)
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, model_path, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var path sql.NullString
		if err := rows.Scan(&log.ModelName, &path, &log.Accuracy, &log.Precision, &log.Recall, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		log.ModelPath = path.String
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
