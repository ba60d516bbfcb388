package dal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/cubedraft/cubedraft/internal/models"
)

// PostgresStore implements DraftStore using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL draft store
func NewPostgresStore(connString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	// Pool settings sized for a managed cluster with a modest connection cap
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Retry the first ping; in Kubernetes the database DNS name can lag the
	// pod start.
	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := db.PingContext(ctx)
		cancel()

		if err == nil {
			lastErr = nil
			break
		}

		lastErr = err
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (p *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		cube_id TEXT NOT NULL,
		pack_number INTEGER NOT NULL DEFAULT 1,
		pick_number INTEGER NOT NULL DEFAULT 1,
		record JSONB,
		started_at BIGINT NOT NULL,
		finished_at BIGINT
	);

	CREATE TABLE IF NOT EXISTS picks (
		draft_id TEXT NOT NULL REFERENCES drafts(id),
		seq INTEGER NOT NULL,
		pick TEXT NOT NULL,
		pack JSONB NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_picks_draft ON picks(draft_id);
	`

	_, err := p.db.Exec(schema)
	return err
}

func (p *PostgresStore) CreateDraft(id, cubeID string) error {
	if id == "" {
		return fmt.Errorf("draft id required")
	}

	_, err := p.db.Exec(`
		INSERT INTO drafts (id, cube_id, started_at)
		VALUES ($1, $2, $3)
	`, id, cubeID, time.Now().UnixMilli())
	return err
}

func (p *PostgresStore) RecordPick(rec models.PickRecord) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO drafts (id, cube_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, rec.DraftID, rec.CubeID, time.Now().UnixMilli())
	if err != nil {
		return err
	}

	seq := rec.Seq
	if seq == 0 {
		if err := tx.QueryRow(`SELECT COUNT(*) + 1 FROM picks WHERE draft_id = $1`, rec.DraftID).Scan(&seq); err != nil {
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
		VALUES ($1, $2, $3, $4, $5)
	`, rec.DraftID, seq, rec.Pick, string(packJSON), createdAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (p *PostgresStore) SaveFinished(rec models.DraftRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal draft record: %w", err)
	}

	finishedAt := rec.FinishedAt
	if finishedAt == 0 {
		finishedAt = time.Now().Unix()
	}

	_, err = p.db.Exec(`
		INSERT INTO drafts (id, cube_id, pack_number, pick_number, record, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			pack_number = EXCLUDED.pack_number,
			pick_number = EXCLUDED.pick_number,
			record = EXCLUDED.record,
			finished_at = EXCLUDED.finished_at
	`, rec.ID, rec.CubeID, rec.PackNumber, rec.PickNumber, string(recordJSON), time.Now().UnixMilli(), finishedAt)
	return err
}

func (p *PostgresStore) GetDraft(id string) (*models.DraftRecord, error) {
	var recordJSON sql.NullString
	err := p.db.QueryRow(`SELECT record FROM drafts WHERE id = $1`, id).Scan(&recordJSON)
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

func (p *PostgresStore) ListPicks(draftID string) ([]models.PickRecord, error) {
	var cubeID string
	err := p.db.QueryRow(`SELECT cube_id FROM drafts WHERE id = $1`, draftID).Scan(&cubeID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("draft %s not found", draftID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(`
		SELECT seq, pick, pack, created_at
		FROM picks WHERE draft_id = $1 ORDER BY seq ASC
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

func (p *PostgresStore) Ping() error {
	return p.db.Ping()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
