package draft

import (
	"math"
	"testing"

	"github.com/cubedraft/cubedraft/internal/models"
)

func ratingSession(t *testing.T, ratings map[string]float64) *Session {
	t.Helper()
	cfg := &Config{
		DraftID: "dr",
		CubeID:  "cr",
		Seats: [][]models.Pack{
			{{card("x", "Filler", nil, "Creature")}},
			{{card("y", "Filler", nil, "Creature")}},
		},
		Bots:    [][]string{{"W", "U"}},
		Ratings: ratings,
		Seed:    1,
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	return s
}

func TestBotRatingAdjustments(t *testing.T) {
	ratings := map[string]float64{
		"On Color":      5.0,
		"Scalding Tarn": 5.0,
		"Overlap Land":  5.0,
		"Overlap Spell": 5.0,
		"Off Color":     5.0,
	}
	s := ratingSession(t, ratings)
	botColors := []string{"W", "U"}

	tests := []struct {
		name string
		card models.PackCard
		want float64
	}{
		// Color identity within the bot's colors.
		{"subset", card("1", "On Color", []string{"W"}, "Creature"), 4.7},
		// Fetch land overlapping one color; identity U,R is not a subset.
		{"fetch overlap", card("2", "Scalding Tarn", []string{"U", "R"}, "Land"), 4.7},
		// Non-fetch land with overlap only gets the land discount.
		{"land overlap", card("3", "Overlap Land", []string{"U", "R"}, "Land - Island Mountain"), 4.8},
		// Overlapping nonland spell.
		{"spell overlap", card("4", "Overlap Spell", []string{"U", "R"}, "Instant"), 4.85},
		// No overlap at all: raw rating.
		{"off color", card("5", "Off Color", []string{"B", "R"}, "Sorcery"), 5.0},
	}

	for _, tc := range tests {
		got := s.botRating(botColors, tc.card)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected %.2f, got %.2f", tc.name, tc.want, got)
		}
	}
}

// TestBotRatingBranchExclusive checks that a card matching both the subset
// and the fetch-overlap conditions gets exactly one 0.3 discount, never
// stacked adjustments.
func TestBotRatingBranchExclusive(t *testing.T) {
	ratings := map[string]float64{"Flooded Strand": 3.0}
	s := ratingSession(t, ratings)

	// Identity {W,U} is a subset of bot colors {W,U} and Flooded Strand is a
	// fetch with overlap; both branch-a conditions hold at once.
	c := card("f", "Flooded Strand", []string{"W", "U"}, "Land")
	got := s.botRating([]string{"W", "U"}, c)
	if math.Abs(got-2.7) > 1e-9 {
		t.Errorf("expected exactly one -0.3 adjustment (2.7), got %.2f", got)
	}
}

// TestBotPickRatedOrder checks that bots take the lowest adjusted rating and
// break ties by original pack order.
func TestBotPickRatedOrder(t *testing.T) {
	ratings := map[string]float64{
		"First Tie":  2.0,
		"Second Tie": 2.0,
		"Best":       1.0,
	}
	pack := models.Pack{
		card("t1", "First Tie", nil, "Creature"),
		card("t2", "Second Tie", nil, "Creature"),
		card("b", "Best", nil, "Creature"),
	}
	cfg := &Config{
		DraftID: "d",
		CubeID:  "c",
		Seats: [][]models.Pack{
			{clonePack(pack)},
			{clonePack(pack)},
		},
		Bots:    [][]string{{}},
		Ratings: ratings,
		Seed:    3,
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}

	s.runBotPicks()
	if s.botPicks[0][0] != "b" {
		t.Fatalf("bot should take the lowest rating first, got %s", s.botPicks[0][0])
	}

	s.runBotPicks()
	if s.botPicks[0][1] != "t1" {
		t.Errorf("tied ratings should fall back to pack order, got %s", s.botPicks[0][1])
	}
}

// TestBotPickUnratedFallback checks that rated cards always win over unrated
// ones, and that with only unrated cards the pick is drawn from that pool.
func TestBotPickUnratedFallback(t *testing.T) {
	ratings := map[string]float64{"Known": 9.0}
	pack := models.Pack{
		card("u1", "Mystery One", nil, "Creature"),
		card("k", "Known", nil, "Creature"),
		card("u2", "Mystery Two", nil, "Creature"),
	}
	cfg := &Config{
		DraftID: "d",
		CubeID:  "c",
		Seats: [][]models.Pack{
			{clonePack(pack)},
			{clonePack(pack)},
		},
		Bots:    [][]string{{}},
		Ratings: ratings,
		Seed:    11,
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}

	// Any rated card beats the whole unrated pool, even with a bad rating.
	s.runBotPicks()
	if s.botPicks[0][0] != "k" {
		t.Fatalf("rated card should be taken before unrated ones, got %s", s.botPicks[0][0])
	}

	// Only unrated cards left: the pick must come from that pool, whatever
	// the shuffle does.
	s.runBotPicks()
	got := s.botPicks[0][1]
	if got != "u1" && got != "u2" {
		t.Errorf("pick should come from the unrated pool, got %s", got)
	}
	if len(s.seats[1][0]) != 1 {
		t.Errorf("bot pack should shrink by one per pick, got %d cards", len(s.seats[1][0]))
	}
}

// TestBotRatingZeroIsRated checks that a card whose table entry is 0.0 is
// still treated as rated; presence in the table decides, not the value.
func TestBotRatingZeroIsRated(t *testing.T) {
	ratings := map[string]float64{"Zero": 0.0}
	pack := models.Pack{
		card("u", "Unknown", nil, "Creature"),
		card("z", "Zero", nil, "Creature"),
	}
	cfg := &Config{
		DraftID: "d",
		CubeID:  "c",
		Seats: [][]models.Pack{
			{clonePack(pack)},
			{clonePack(pack)},
		},
		Bots:    [][]string{{}},
		Ratings: ratings,
		Seed:    5,
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}

	s.runBotPicks()
	if s.botPicks[0][0] != "z" {
		t.Errorf("zero-rated card is still rated and should win, got %s", s.botPicks[0][0])
	}
}
