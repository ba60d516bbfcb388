package draft

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cubedraft/cubedraft/internal/models"
)

// Config is the inbound collaborator contract: everything a session needs,
// assembled by the caller from a loaded cube. Seat 0 is the human; seats
// 1..N-1 are bots with one color-preference profile each.
type Config struct {
	DraftID string `json:"draft_id"`
	CubeID  string `json:"cube"`

	// PackSize is the expected length of the human's arranged pick sequence.
	// Zero means "size of the first pack".
	PackSize int `json:"packSize,omitempty"`

	Seats   [][]models.Pack    `json:"packs"`
	Bots    [][]string         `json:"bots"`
	Ratings map[string]float64 `json:"ratings"`

	// Seed fixes the bot shuffle source for reproducible runs. Zero seeds
	// from the clock.
	Seed int64 `json:"seed,omitempty"`
}

// Session is the mutable state of one in-progress draft. It is exclusively
// owned by a single draft flow; the only shared piece is the read-only
// rating table.
type Session struct {
	id       string
	cubeID   string
	packSize int

	seats      [][]models.Pack // seat -> queue of packs, index 0 active
	humanPicks []models.PackCard
	botPicks   [][]string
	bots       [][]string
	ratings    map[string]float64

	packNumber int
	pickNumber int
	pickOrder  []string

	rng *rand.Rand
}

// NewSession validates the configuration and installs a fresh session.
// Structural problems are reported as *ConfigError before any pick is
// accepted.
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, &ConfigError{Reason: "no draft supplied"}
	}
	if len(cfg.Seats) == 0 {
		return nil, &ConfigError{Reason: "no seats"}
	}
	for i, queue := range cfg.Seats {
		if len(queue) == 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("seat %d has no packs", i)}
		}
		if len(queue) != len(cfg.Seats[0]) {
			return nil, &ConfigError{Reason: fmt.Sprintf("seat %d has %d packs, seat 0 has %d", i, len(queue), len(cfg.Seats[0]))}
		}
		for j, pack := range queue {
			if len(pack) != len(cfg.Seats[0][j]) {
				return nil, &ConfigError{Reason: fmt.Sprintf("round %d pack sizes differ between seat %d and seat 0", j+1, i)}
			}
		}
	}
	if len(cfg.Bots) != len(cfg.Seats)-1 {
		return nil, &ConfigError{Reason: "bot profile count must equal seat count minus one"}
	}

	packSize := cfg.PackSize
	if packSize == 0 {
		packSize = len(cfg.Seats[0][0])
	}
	if packSize < 1 {
		return nil, &ConfigError{Reason: "pack size must be positive"}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Session{
		id:         cfg.DraftID,
		cubeID:     cfg.CubeID,
		packSize:   packSize,
		seats:      cloneSeats(cfg.Seats),
		botPicks:   make([][]string, len(cfg.Seats)-1),
		bots:       cloneColorSets(cfg.Bots),
		ratings:    cfg.Ratings,
		packNumber: 1,
		pickNumber: 1,
		rng:        rand.New(rand.NewSource(seed)),
	}
	return s, nil
}

// ID returns the draft's opaque identifier.
func (s *Session) ID() string { return s.id }

// CubeID returns the identifier of the source card pool.
func (s *Session) CubeID() string { return s.cubeID }

// CurrentPack returns a copy of the human seat's active pack, or an empty
// pack once the draft is exhausted.
func (s *Session) CurrentPack() models.Pack {
	if len(s.seats[0]) == 0 {
		return models.Pack{}
	}
	return clonePack(s.seats[0][0])
}

// HumanPicks returns a copy of the human seat's picks so far.
func (s *Session) HumanPicks() models.Pack {
	return clonePack(s.humanPicks)
}

// PackPickNumber returns the 1-based (round, turn) coordinates.
func (s *Session) PackPickNumber() (packNumber, pickNumber int) {
	return s.packNumber, s.pickNumber
}

// Complete reports whether every pack has been drafted.
func (s *Session) Complete() bool {
	return len(s.seats[0]) == 0
}

// ArrangePicks overwrites the human's recorded pick sequence wholesale,
// letting the drafter reorder already-made picks without replaying the
// draft. The sequence must be exactly one pack long.
func (s *Session) ArrangePicks(picks []models.PackCard) error {
	if len(picks) != s.packSize {
		return &ValidationError{Want: s.packSize, Got: len(picks)}
	}
	s.humanPicks = clonePack(picks)
	return nil
}

// Pick removes the card at index from the human seat's active pack, records
// it, and runs the pass step: every bot picks once, then the packs either
// rotate or the round closes. The returned pack is the human's pack right
// after removal and before rotation, for the per-pick notification.
func (s *Session) Pick(index int) (models.PackCard, models.Pack, error) {
	var active models.Pack
	if len(s.seats[0]) > 0 {
		active = s.seats[0][0]
	}
	if index < 0 || index >= len(active) {
		return models.PackCard{}, nil, &RangeError{Index: index, PackLen: len(active)}
	}

	card := active[index]
	s.seats[0][0] = append(active[:index], active[index+1:]...)
	s.pickOrder = append(s.pickOrder, card.CardID)
	s.humanPicks = append(s.humanPicks, card)

	remaining := clonePack(s.seats[0][0])
	s.passPack()
	return card, remaining, nil
}

// Finish produces a deep, independent snapshot of the session with every
// card's heavy details payload stripped, leaving only identifiers and
// denormalized scalars. The live session is not mutated.
func (s *Session) Finish() models.DraftRecord {
	rec := models.DraftRecord{
		ID:         s.id,
		CubeID:     s.cubeID,
		PackNumber: s.packNumber,
		PickNumber: s.pickNumber,
		Bots:       cloneColorSets(s.bots),
		FinishedAt: time.Now().Unix(),
	}

	rec.Seats = make([][]models.Pack, len(s.seats))
	for i, queue := range s.seats {
		rec.Seats[i] = make([]models.Pack, len(queue))
		for j, pack := range queue {
			rec.Seats[i][j] = stripPack(pack)
		}
	}

	rec.HumanPicks = stripPack(s.humanPicks)

	rec.BotPicks = make([][]string, len(s.botPicks))
	for i, ids := range s.botPicks {
		rec.BotPicks[i] = append([]string(nil), ids...)
	}
	rec.PickOrder = append([]string(nil), s.pickOrder...)

	return rec
}

func cloneSeats(seats [][]models.Pack) [][]models.Pack {
	out := make([][]models.Pack, len(seats))
	for i, queue := range seats {
		out[i] = make([]models.Pack, len(queue))
		for j, pack := range queue {
			out[i][j] = clonePack(pack)
		}
	}
	return out
}

func clonePack(pack []models.PackCard) models.Pack {
	out := make(models.Pack, len(pack))
	copy(out, pack)
	return out
}

func cloneColorSets(sets [][]string) [][]string {
	out := make([][]string, len(sets))
	for i, set := range sets {
		out[i] = append([]string(nil), set...)
	}
	return out
}

func stripPack(pack []models.PackCard) models.Pack {
	out := make(models.Pack, len(pack))
	for i, card := range pack {
		out[i] = stripCard(card)
	}
	return out
}

func stripCard(c models.PackCard) models.PackCard {
	c.Colors = append([]string(nil), c.Colors...)
	c.Tags = append([]string(nil), c.Tags...)
	c.Details = nil
	return c
}
