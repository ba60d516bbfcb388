package dal

import "github.com/cubedraft/cubedraft/internal/models"

// DraftStore defines the interface for the draft persistence layer. Draft
// state stays client-held until the finished record lands; per-pick records
// are informational and tolerate out-of-order arrival.
type DraftStore interface {
	CreateDraft(id, cubeID string) error
	RecordPick(rec models.PickRecord) error
	SaveFinished(rec models.DraftRecord) error
	GetDraft(id string) (*models.DraftRecord, error)
	ListPicks(draftID string) ([]models.PickRecord, error)
	Ping() error
	Close() error
}
