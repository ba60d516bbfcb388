package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cubedraft/cubedraft/internal/dal"
	"github.com/cubedraft/cubedraft/internal/draft"
	"github.com/cubedraft/cubedraft/internal/logger"
	"github.com/cubedraft/cubedraft/internal/models"
	"github.com/cubedraft/cubedraft/internal/pubsub"
)

func init() {
	logger.Init()
}

func card(id, name string, colors ...string) models.PackCard {
	return models.PackCard{
		CardID: id,
		Name:   name,
		Colors: colors,
		Details: &models.CardDetails{
			Name:          name,
			ColorIdentity: colors,
		},
	}
}

// twoSeatConfig mirrors the minimal end-to-end draft: one human, one bot,
// one pack of two cards each.
func twoSeatConfig(draftID string) draft.Config {
	return draft.Config{
		DraftID: draftID,
		CubeID:  "cube-1",
		Seats: [][]models.Pack{
			{{card("a1", "Alpha", "W"), card("a2", "Ace", "U")}},
			{{card("b1", "Beta", "W"), card("b2", "Bay", "U")}},
		},
		Bots:    [][]string{{"W"}},
		Ratings: map[string]float64{"Alpha": 1.0, "Ace": 2.0, "Beta": 1.0, "Bay": 2.0},
		Seed:    42,
	}
}

func newTestHandlers() (*APIHandlers, *dal.MemoryStore) {
	store := dal.NewMemoryStore()
	return NewAPIHandlers(store, pubsub.New(), nil), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func startDraft(t *testing.T, h *APIHandlers, cfg draft.Config) {
	t.Helper()
	w := postJSON(t, h.StartDraft, cfg)
	if w.Code != http.StatusOK {
		t.Fatalf("start draft: status %d, body %s", w.Code, w.Body.String())
	}
}

func TestStartDraftRejectsBadConfig(t *testing.T) {
	h, _ := newTestHandlers()

	tests := []struct {
		name string
		cfg  draft.Config
	}{
		{"no seats", draft.Config{DraftID: "d1"}},
		{
			"bot count mismatch",
			draft.Config{
				DraftID: "d1",
				Seats:   [][]models.Pack{{{card("a1", "Alpha")}}},
				Bots:    [][]string{{"W"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h.StartDraft, tt.cfg)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestStartDraftRejectsMalformedJSON(t *testing.T) {
	h, _ := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.StartDraft(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStartDraftConflict(t *testing.T) {
	h, _ := newTestHandlers()

	startDraft(t, h, twoSeatConfig("d1"))

	w := postJSON(t, h.StartDraft, twoSeatConfig("d1"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate draft, got %d", w.Code)
	}
}

func TestGetPack(t *testing.T) {
	h, _ := newTestHandlers()
	startDraft(t, h, twoSeatConfig("d1"))

	req := httptest.NewRequest(http.MethodGet, "/?draft=d1", nil)
	w := httptest.NewRecorder()
	h.GetPack(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	var st draftStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.PackNumber != 1 || st.PickNumber != 1 {
		t.Errorf("expected (1,1), got (%d,%d)", st.PackNumber, st.PickNumber)
	}
	if len(st.Pack) != 2 || st.Pack[0].CardID != "a1" {
		t.Errorf("unexpected pack: %+v", st.Pack)
	}
	if st.Complete {
		t.Error("fresh draft should not be complete")
	}
}

func TestGetPackUnknownDraft(t *testing.T) {
	h, _ := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/?draft=missing", nil)
	w := httptest.NewRecorder()
	h.GetPack(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDraftPickFlow(t *testing.T) {
	h, store := newTestHandlers()
	startDraft(t, h, twoSeatConfig("d1"))

	w := postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "d1", "index": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("pick: status %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Card models.PackCard `json:"card"`
		draftStatus
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Card.CardID != "a1" {
		t.Errorf("expected picked card a1, got %s", resp.Card.CardID)
	}
	if resp.PackNumber != 1 || resp.PickNumber != 2 {
		t.Errorf("expected (1,2), got (%d,%d)", resp.PackNumber, resp.PickNumber)
	}
	// One card left after removal and an odd-parity rotation to seat 1; the
	// human now holds the bot's passed pack
	if len(resp.Pack) != 1 || resp.Pack[0].CardID != "b2" {
		t.Errorf("unexpected rotated pack: %+v", resp.Pack)
	}

	// The per-pick record lands asynchronously
	waitFor(t, func() bool {
		picks, err := store.ListPicks("d1")
		return err == nil && len(picks) == 1
	})
	picks, err := store.ListPicks("d1")
	if err != nil {
		t.Fatalf("list picks: %v", err)
	}
	if picks[0].Pick != "Alpha" {
		t.Errorf("expected recorded pick Alpha, got %s", picks[0].Pick)
	}
	if len(picks[0].Pack) != 1 || picks[0].Pack[0] != "Ace" {
		t.Errorf("expected remaining pack [Ace], got %v", picks[0].Pack)
	}

	// Forced pick of the final card completes the draft
	w = postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "d1", "index": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("second pick: status %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Complete {
		t.Error("draft should be complete after both packs empty")
	}
}

func TestDraftPickOutOfRange(t *testing.T) {
	h, _ := newTestHandlers()
	startDraft(t, h, twoSeatConfig("d1"))

	w := postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "d1", "index": 9})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range index, got %d", w.Code)
	}
}

func TestDraftPickUnknownDraft(t *testing.T) {
	h, _ := newTestHandlers()

	w := postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "missing", "index": 0})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestArrangePicksLengthGuard(t *testing.T) {
	h, _ := newTestHandlers()
	startDraft(t, h, twoSeatConfig("d1"))

	w := postJSON(t, h.ArrangePicks, map[string]interface{}{
		"draft_id": "d1",
		"picks":    []models.PackCard{card("a1", "Alpha")},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for wrong-length arrangement, got %d", w.Code)
	}

	w = postJSON(t, h.ArrangePicks, map[string]interface{}{
		"draft_id": "d1",
		"picks":    []models.PackCard{card("a2", "Ace"), card("a1", "Alpha")},
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for full-size arrangement, got %d", w.Code)
	}
}

func TestFinishDraft(t *testing.T) {
	h, store := newTestHandlers()
	startDraft(t, h, twoSeatConfig("d1"))

	for i := 0; i < 2; i++ {
		w := postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "d1", "index": 0})
		if w.Code != http.StatusOK {
			t.Fatalf("pick %d: status %d", i, w.Code)
		}
	}

	w := postJSON(t, h.FinishDraft, map[string]interface{}{"draft_id": "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("finish: status %d, body %s", w.Code, w.Body.String())
	}

	var rec models.DraftRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if len(rec.HumanPicks) != 2 {
		t.Errorf("expected 2 human picks, got %d", len(rec.HumanPicks))
	}
	for _, c := range rec.HumanPicks {
		if c.Details != nil {
			t.Errorf("card %s still carries details payload", c.CardID)
		}
	}

	// Session is retired; further requests 404
	req := httptest.NewRequest(http.MethodGet, "/?draft=d1", nil)
	rw := httptest.NewRecorder()
	h.GetStatus(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Errorf("expected 404 after finish, got %d", rw.Code)
	}

	// The stored record lands asynchronously
	waitFor(t, func() bool {
		_, err := store.GetDraft("d1")
		return err == nil
	})
	stored, err := store.GetDraft("d1")
	if err != nil {
		t.Fatalf("get stored draft: %v", err)
	}
	if len(stored.PickOrder) != 2 {
		t.Errorf("expected 2 entries in pick order, got %d", len(stored.PickOrder))
	}
}

func TestPickPublishesEvent(t *testing.T) {
	store := dal.NewMemoryStore()
	ps := pubsub.New()
	h := NewAPIHandlers(store, ps, nil)

	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	startDraft(t, h, twoSeatConfig("d1"))

	// Drain the start event
	select {
	case ev := <-ch:
		if ev.Type != pubsub.EventDraftStart {
			t.Fatalf("expected %s, got %s", pubsub.EventDraftStart, ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for start event")
	}

	w := postJSON(t, h.DraftPick, map[string]interface{}{"draft_id": "d1", "index": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("pick: status %d", w.Code)
	}

	select {
	case ev := <-ch:
		if ev.Type != pubsub.EventDraftPick {
			t.Errorf("expected %s, got %s", pubsub.EventDraftPick, ev.Type)
		}
		if ev.Payload["card"] != "Alpha" {
			t.Errorf("expected card Alpha in payload, got %v", ev.Payload["card"])
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for pick event")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
