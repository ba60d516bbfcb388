package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cubedraft/cubedraft/internal/dal"
	"github.com/cubedraft/cubedraft/internal/draft"
	"github.com/cubedraft/cubedraft/internal/logger"
	"github.com/cubedraft/cubedraft/internal/models"
	"github.com/cubedraft/cubedraft/internal/pubsub"
	"github.com/cubedraft/cubedraft/internal/ratings"
)

// sessionEntry wraps a session with its own lock. Sessions are single-owner
// state machines, so each entry serializes the requests that touch it.
type sessionEntry struct {
	mu      sync.Mutex
	session *draft.Session
}

// APIHandlers contains all API handler methods.
type APIHandlers struct {
	store   dal.DraftStore
	pubsub  *pubsub.PubSub
	ratings *ratings.Table

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewAPIHandlers creates a new API handlers instance. The rating table may
// be nil when no analytics source is configured.
func NewAPIHandlers(store dal.DraftStore, ps *pubsub.PubSub, table *ratings.Table) *APIHandlers {
	return &APIHandlers{
		store:    store,
		pubsub:   ps,
		ratings:  table,
		sessions: make(map[string]*sessionEntry),
	}
}

func (h *APIHandlers) lookup(draftID string) (*sessionEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.sessions[draftID]
	return entry, ok
}

// draftStatus is the state snapshot shared by several endpoints.
type draftStatus struct {
	DraftID    string      `json:"draft_id"`
	CubeID     string      `json:"cube"`
	PackNumber int         `json:"packNumber"`
	PickNumber int         `json:"pickNumber"`
	Pack       models.Pack `json:"pack"`
	Picks      models.Pack `json:"picks,omitempty"`
	Complete   bool        `json:"complete"`
}

func statusOf(s *draft.Session, includePicks bool) draftStatus {
	packNumber, pickNumber := s.PackPickNumber()
	st := draftStatus{
		DraftID:    s.ID(),
		CubeID:     s.CubeID(),
		PackNumber: packNumber,
		PickNumber: pickNumber,
		Pack:       s.CurrentPack(),
		Complete:   s.Complete(),
	}
	if includePicks {
		st.Picks = s.HumanPicks()
	}
	return st
}

// writeDraftError maps the draft error taxonomy onto HTTP status codes.
// Structural and validation problems are the client's fault.
func writeDraftError(w http.ResponseWriter, err error) {
	var cfgErr *draft.ConfigError
	var valErr *draft.ValidationError
	var rangeErr *draft.RangeError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &rangeErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StartDraft creates a new draft session from a client-assembled draft
// configuration and registers it for subsequent picks.
func (h *APIHandlers) StartDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg draft.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		logger.Warn("Failed to decode draft start request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Configs without their own rating table fall back to the server-wide
	// one kept current by the analytics sync
	if len(cfg.Ratings) == 0 && h.ratings != nil {
		cfg.Ratings = h.ratings.Snapshot()
	}

	session, err := draft.NewSession(&cfg)
	if err != nil {
		logger.Warn("Rejected draft configuration", "error", err, "draft_id", cfg.DraftID)
		writeDraftError(w, err)
		return
	}

	h.mu.Lock()
	if _, exists := h.sessions[session.ID()]; exists {
		h.mu.Unlock()
		http.Error(w, "draft already in progress", http.StatusConflict)
		return
	}
	h.sessions[session.ID()] = &sessionEntry{session: session}
	h.mu.Unlock()

	logger.Info("Draft started", "draft_id", session.ID(), "cube", session.CubeID())

	// Registration is informational; a store failure never blocks the draft
	go func() {
		if err := h.store.CreateDraft(session.ID(), session.CubeID()); err != nil {
			logger.Error("Failed to register draft", "error", err, "draft_id", session.ID())
		}
	}()

	h.pubsub.Publish(pubsub.Event{
		Type: pubsub.EventDraftStart,
		Payload: map[string]interface{}{
			"draftID": session.ID(),
			"cube":    session.CubeID(),
		},
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusOf(session, false))
}

// GetPack returns the human seat's active pack.
func (h *APIHandlers) GetPack(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(r.URL.Query().Get("draft"))
	if !ok {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	st := statusOf(entry.session, false)
	entry.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// GetStatus returns the full draft state including the picks made so far.
func (h *APIHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(r.URL.Query().Get("draft"))
	if !ok {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	st := statusOf(entry.session, true)
	entry.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// DraftPick takes the card at the given index from the active pack, runs the
// bot picks and pack rotation, and fires the per-pick persistence
// notification.
func (h *APIHandlers) DraftPick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DraftID string `json:"draft_id"`
		Index   int    `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Failed to decode draft pick request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, ok := h.lookup(req.DraftID)
	if !ok {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	card, remaining, err := entry.session.Pick(req.Index)
	if err != nil {
		logger.Warn("Rejected pick", "error", err, "draft_id", req.DraftID, "index", req.Index)
		writeDraftError(w, err)
		return
	}
	st := statusOf(entry.session, false)
	cubeID := entry.session.CubeID()

	logger.Info("Card picked", "draft_id", req.DraftID, "card", card.DisplayName())

	rec := models.PickRecord{
		DraftID: req.DraftID,
		CubeID:  cubeID,
		Pick:    card.DisplayName(),
		Pack:    packNames(remaining),
	}

	// Per-pick records are informational; failures are logged and the pick
	// stands regardless
	go func() {
		if err := h.store.RecordPick(rec); err != nil {
			logger.Error("Failed to record pick", "error", err, "draft_id", rec.DraftID, "pick", rec.Pick)
		}
	}()

	h.pubsub.Publish(pubsub.Event{
		Type: pubsub.EventDraftPick,
		Payload: map[string]interface{}{
			"draftID": req.DraftID,
			"pick":    card.CardID,
			"card":    card.DisplayName(),
		},
	})

	resp := struct {
		Card models.PackCard `json:"card"`
		draftStatus
	}{Card: card, draftStatus: st}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ArrangePicks replaces the human's recorded pick sequence with a reordered
// one of the same length.
func (h *APIHandlers) ArrangePicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DraftID string            `json:"draft_id"`
		Picks   []models.PackCard `json:"picks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, ok := h.lookup(req.DraftID)
	if !ok {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.session.ArrangePicks(req.Picks); err != nil {
		logger.Warn("Rejected pick arrangement", "error", err, "draft_id", req.DraftID)
		writeDraftError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// FinishDraft snapshots the session into its durable stripped record,
// submits it for storage and retires the session.
func (h *APIHandlers) FinishDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DraftID string `json:"draft_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, ok := h.lookup(req.DraftID)
	if !ok {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	rec := entry.session.Finish()

	// The snapshot is the durable record but a store failure still does not
	// fail the draft flow; the loss is logged and accepted
	go func() {
		if err := h.store.SaveFinished(rec); err != nil {
			logger.Error("Failed to save finished draft", "error", err, "draft_id", req.DraftID)
		}
	}()

	h.mu.Lock()
	delete(h.sessions, req.DraftID)
	h.mu.Unlock()

	logger.Info("Draft finished", "draft_id", req.DraftID, "picks", len(rec.PickOrder))

	h.pubsub.Publish(pubsub.Event{
		Type: pubsub.EventDraftFinish,
		Payload: map[string]interface{}{
			"draftID": req.DraftID,
		},
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// GetFinishedDraft returns a previously stored draft record.
func (h *APIHandlers) GetFinishedDraft(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("draft")
	if id == "" {
		http.Error(w, "Missing draft parameter", http.StatusBadRequest)
		return
	}

	rec, err := h.store.GetDraft(id)
	if err != nil {
		http.Error(w, "Draft not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// EventsSSE provides Server-Sent Events for realtime draft updates.
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case event := <-eventChan:
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-time.After(30 * time.Second):
			// Keepalive ping
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func packNames(pack models.Pack) []string {
	names := make([]string, len(pack))
	for i, card := range pack {
		names[i] = card.DisplayName()
	}
	return names
}
