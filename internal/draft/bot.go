package draft

import (
	"sort"
	"strings"

	"github.com/cubedraft/cubedraft/internal/models"
)

// fetchLands are the ten fetch lands that get the full on-color discount
// whenever they overlap a bot's colors, since they fix any overlapping pair.
var fetchLands = map[string]bool{
	"Arid Mesa":         true,
	"Bloodstained Mire": true,
	"Flooded Strand":    true,
	"Marsh Flats":       true,
	"Misty Rainforest":  true,
	"Polluted Delta":    true,
	"Scalding Tarn":     true,
	"Verdant Catacombs": true,
	"Windswept Heath":   true,
	"Wooded Foothills":  true,
}

// botRating returns the bias-adjusted desirability of a card for a bot with
// the given color preferences. Lower is better. Exactly one adjustment
// applies: on-color (or overlapping fetch), then overlapping land, then any
// overlap.
func (s *Session) botRating(botColors []string, card models.PackCard) float64 {
	rating := s.ratings[card.DisplayName()]
	colors := card.ColorIdentity()
	subset := isColorSubset(colors, botColors)
	overlap := colorsOverlap(botColors, colors)
	isLand := strings.Contains(card.TypeText(), "Land")
	isFetch := fetchLands[card.DisplayName()]

	switch {
	case subset || (isFetch && overlap):
		rating -= 0.3
	case isLand && overlap:
		rating -= 0.2
	case overlap:
		rating -= 0.15
	}
	return rating
}

// runBotPicks removes exactly one card from every bot seat's active pack.
// Rated cards are taken in ascending adjusted-rating order (stable on ties);
// unrated cards are a shuffled fallback pool behind them.
func (s *Session) runBotPicks() {
	for seat := 1; seat < len(s.seats); seat++ {
		pack := s.seats[seat][0]
		botColors := s.bots[seat-1]

		var rated, unrated []int
		for i, card := range pack {
			if _, ok := s.ratings[card.DisplayName()]; ok {
				rated = append(rated, i)
			} else {
				unrated = append(unrated, i)
			}
		}

		sort.SliceStable(rated, func(a, b int) bool {
			return s.botRating(botColors, pack[rated[a]]) < s.botRating(botColors, pack[rated[b]])
		})
		s.rng.Shuffle(len(unrated), func(a, b int) {
			unrated[a], unrated[b] = unrated[b], unrated[a]
		})

		order := append(rated, unrated...)
		idx := order[0]
		card := pack[idx]
		s.seats[seat][0] = append(pack[:idx], pack[idx+1:]...)
		s.botPicks[seat-1] = append(s.botPicks[seat-1], card.CardID)
	}
}

func isColorSubset(colors, of []string) bool {
	for _, c := range colors {
		if !containsColor(of, c) {
			return false
		}
	}
	return true
}

func colorsOverlap(botColors, colors []string) bool {
	for _, c := range botColors {
		if containsColor(colors, c) {
			return true
		}
	}
	return false
}

func containsColor(colors []string, c string) bool {
	for _, x := range colors {
		if x == c {
			return true
		}
	}
	return false
}
