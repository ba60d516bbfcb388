package ratings

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client provides ClickHouse integration for the card rating table. Ratings
// are derived from historical draft picks: the average position a card is
// taken at, so lower means more desirable.
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// GetRating retrieves the rating for a single card name
func (c *Client) GetRating(cardName string) (float64, error) {
	var rating float64

	query := `
		SELECT avg(pick_position) as rating
		FROM draft_picks
		WHERE card_name = $1
		AND picked_at >= now() - INTERVAL 90 DAY
	`

	row := c.conn.QueryRow(context.Background(), query, cardName)
	if err := row.Scan(&rating); err != nil {
		return 0, err
	}

	return rating, nil
}

// GetAllRatings retrieves the full card-name to rating mapping
func (c *Client) GetAllRatings() (map[string]float64, error) {
	ratings := make(map[string]float64)

	query := `
		SELECT
			card_name,
			avg(pick_position) as rating
		FROM draft_picks
		WHERE picked_at >= now() - INTERVAL 90 DAY
		GROUP BY card_name
		HAVING count() >= 5
	`

	rows, err := c.conn.Query(context.Background(), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var rating float64
		if err := rows.Scan(&name, &rating); err != nil {
			return nil, err
		}
		ratings[name] = rating
	}

	return ratings, nil
}

// SyncRatings pushes the current ClickHouse ratings through updateFunc.
// This should be called periodically to keep the in-memory table current.
func (c *Client) SyncRatings(updateFunc func(cardName string, rating float64) error) error {
	allRatings, err := c.GetAllRatings()
	if err != nil {
		return err
	}

	for name, rating := range allRatings {
		if err := updateFunc(name, rating); err != nil {
			return fmt.Errorf("failed to update rating for %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
