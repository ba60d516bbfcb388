package dal

import (
	"fmt"
	"sync"
	"time"

	"github.com/cubedraft/cubedraft/internal/models"
)

type memoryDraft struct {
	cubeID   string
	finished *models.DraftRecord
	picks    []models.PickRecord
}

// MemoryStore implements DraftStore using in-memory storage
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]*memoryDraft
}

// NewMemoryStore creates a new in-memory draft store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts: make(map[string]*memoryDraft),
	}
}

func (m *MemoryStore) CreateDraft(id, cubeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		return fmt.Errorf("draft id required")
	}
	if _, ok := m.drafts[id]; ok {
		return fmt.Errorf("draft %s already exists", id)
	}

	m.drafts[id] = &memoryDraft{cubeID: cubeID}
	return nil
}

func (m *MemoryStore) RecordPick(rec models.PickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[rec.DraftID]
	if !ok {
		// Pick notifications are applied independently; a record for an
		// unknown draft still lands.
		d = &memoryDraft{cubeID: rec.CubeID}
		m.drafts[rec.DraftID] = d
	}

	if rec.Seq == 0 {
		rec.Seq = len(d.picks) + 1
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	rec.Pack = append([]string(nil), rec.Pack...)
	d.picks = append(d.picks, rec)
	return nil
}

func (m *MemoryStore) SaveFinished(rec models.DraftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[rec.ID]
	if !ok {
		d = &memoryDraft{cubeID: rec.CubeID}
		m.drafts[rec.ID] = d
	}
	saved := rec
	d.finished = &saved
	return nil
}

func (m *MemoryStore) GetDraft(id string) (*models.DraftRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[id]
	if !ok || d.finished == nil {
		return nil, fmt.Errorf("draft not found")
	}

	rec := *d.finished
	return &rec, nil
}

func (m *MemoryStore) ListPicks(draftID string) ([]models.PickRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("draft not found")
	}

	picks := make([]models.PickRecord, len(d.picks))
	copy(picks, d.picks)
	return picks, nil
}

func (m *MemoryStore) Ping() error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
