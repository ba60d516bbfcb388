package dal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cubedraft/cubedraft/internal/models"
)

// SQLiteStore implements DraftStore using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite draft store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		cube_id TEXT NOT NULL,
		pack_number INTEGER NOT NULL DEFAULT 1,
		pick_number INTEGER NOT NULL DEFAULT 1,
		record TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS picks (
		draft_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		pick TEXT NOT NULL,
		pack TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (draft_id) REFERENCES drafts(id)
	);

	CREATE INDEX IF NOT EXISTS idx_picks_draft ON picks(draft_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) CreateDraft(id, cubeID string) error {
	if id == "" {
		return fmt.Errorf("draft id required")
	}

	_, err := s.db.Exec(`
		INSERT INTO drafts (id, cube_id, started_at)
		VALUES (?, ?, ?)
	`, id, cubeID, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) RecordPick(rec models.PickRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Ensure a draft row exists so out-of-order notifications still land.
	_, err = tx.Exec(`
		INSERT INTO drafts (id, cube_id, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.DraftID, rec.CubeID, time.Now().UnixMilli())
	if err != nil {
		return err
	}

	seq := rec.Seq
	if seq == 0 {
		if err := tx.QueryRow(`SELECT COUNT(*) + 1 FROM picks WHERE draft_id = ?`, rec.DraftID).Scan(&seq); err != nil {
			return err
		}
	}

	packJSON, err := json.Marshal(rec.Pack)
	if err != nil {
		return fmt.Errorf("failed to marshal pack contents: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err = tx.Exec(`
		INSERT INTO picks (draft_id, seq, pick, pack, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.DraftID, seq, rec.Pick, string(packJSON), createdAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveFinished(rec models.DraftRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal draft record: %w", err)
	}

	finishedAt := rec.FinishedAt
	if finishedAt == 0 {
		finishedAt = time.Now().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO drafts (id, cube_id, pack_number, pick_number, record, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pack_number = excluded.pack_number,
			pick_number = excluded.pick_number,
			record = excluded.record,
			finished_at = excluded.finished_at
	`, rec.ID, rec.CubeID, rec.PackNumber, rec.PickNumber, string(recordJSON), time.Now().UnixMilli(), finishedAt)
	return err
}

func (s *SQLiteStore) GetDraft(id string) (*models.DraftRecord, error) {
	var recordJSON sql.NullString
	err := s.db.QueryRow(`SELECT record FROM drafts WHERE id = ?`, id).Scan(&recordJSON)
	if err != nil {
		return nil, err
	}
	if !recordJSON.Valid {
		return nil, fmt.Errorf("draft %s has no finished record", id)
	}

	var rec models.DraftRecord
	if err := json.Unmarshal([]byte(recordJSON.String), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft record: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListPicks(draftID string) ([]models.PickRecord, error) {
	var cubeID string
	err := s.db.QueryRow(`SELECT cube_id FROM drafts WHERE id = ?`, draftID).Scan(&cubeID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("draft %s not found", draftID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT seq, pick, pack, created_at
		FROM picks WHERE draft_id = ? ORDER BY seq ASC
	`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	picks := []models.PickRecord{}
	for rows.Next() {
		rec := models.PickRecord{DraftID: draftID, CubeID: cubeID}
		var packJSON string
		if err := rows.Scan(&rec.Seq, &rec.Pick, &packJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(packJSON), &rec.Pack); err != nil {
			return nil, err
		}
		picks = append(picks, rec)
	}

	return picks, rows.Err()
}

func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
