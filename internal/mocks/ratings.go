package mocks

import (
	"github.com/cubedraft/cubedraft/internal/logger"
)

// MockRatingsClient stands in for ClickHouse in local development. Ratings
// are average historical pick positions, so lower means better.
type MockRatingsClient struct {
	ratings map[string]float64
}

// NewMockRatingsClient creates a ratings client backed by a static table.
func NewMockRatingsClient() *MockRatingsClient {
	logger.Info("Using MOCK ratings client for local development")

	return &MockRatingsClient{
		ratings: map[string]float64{
			"Lightning Bolt":       1.8,
			"Counterspell":         2.4,
			"Swords to Plowshares": 2.1,
			"Dark Ritual":          4.6,
			"Birds of Paradise":    3.2,
			"Llanowar Elves":       4.1,
			"Arid Mesa":            5.3,
			"Scalding Tarn":        5.1,
			"Flooded Strand":       5.2,
			"Polluted Delta":       5.0,
			"Brainstorm":           3.0,
			"Fact or Fiction":      3.7,
			"Wrath of God":         2.2,
			"Shivan Dragon":        7.9,
			"Grizzly Bears":        11.4,
		},
	}
}

// GetRating returns the mock rating for a card.
func (m *MockRatingsClient) GetRating(cardName string) (float64, error) {
	rating, ok := m.ratings[cardName]
	if !ok {
		return 8.0, nil // Middle of a fifteen card pack for unknown cards
	}
	return rating, nil
}

// GetAllRatings returns the full mock rating table.
func (m *MockRatingsClient) GetAllRatings() (map[string]float64, error) {
	result := make(map[string]float64, len(m.ratings))
	for name, rating := range m.ratings {
		result[name] = rating
	}
	return result, nil
}

// SyncRatings pushes every mock rating through updateFunc.
func (m *MockRatingsClient) SyncRatings(updateFunc func(cardName string, rating float64) error) error {
	allRatings, err := m.GetAllRatings()
	if err != nil {
		return err
	}

	for cardName, rating := range allRatings {
		if err := updateFunc(cardName, rating); err != nil {
			logger.Warn("Failed to update rating", "card", cardName, "error", err)
		}
	}

	logger.Debug("Mock ratings: synced all card ratings")
	return nil
}

// Close is a no-op for the mock client.
func (m *MockRatingsClient) Close() error {
	return nil
}
