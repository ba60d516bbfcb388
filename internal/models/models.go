package models

// PackCard is a single card inside a booster pack. The scalar fields are
// denormalized from the cube list; Details carries the full card record and
// is only needed for display. Stored drafts never include Details.
type PackCard struct {
	CardID   string       `json:"cardID"`
	Name     string       `json:"name,omitempty"`
	Colors   []string     `json:"colors,omitempty"`
	TypeLine string       `json:"type_line,omitempty"`
	CMC      float64      `json:"cmc,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Details  *CardDetails `json:"details,omitempty"`
}

// CardDetails is the heavy display payload for a card printing.
type CardDetails struct {
	Name          string   `json:"name"`
	ColorIdentity []string `json:"color_identity,omitempty"`
	Type          string   `json:"type,omitempty"`
	Set           string   `json:"set,omitempty"`
	CollectorNum  string   `json:"collector_number,omitempty"`
	ImageNormal   string   `json:"image_normal,omitempty"`
	OracleText    string   `json:"oracle_text,omitempty"`
	CMC           float64  `json:"cmc,omitempty"`
	Rarity        string   `json:"rarity,omitempty"`
}

// DisplayName returns the card's name, falling back to the details payload
// when the denormalized field is empty.
func (c PackCard) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Details != nil {
		return c.Details.Name
	}
	return ""
}

// ColorIdentity returns the card's colors, falling back to the details
// payload's color identity.
func (c PackCard) ColorIdentity() []string {
	if c.Colors != nil {
		return c.Colors
	}
	if c.Details != nil {
		return c.Details.ColorIdentity
	}
	return nil
}

// TypeText returns the card's type line, falling back to the details payload.
func (c PackCard) TypeText() string {
	if c.TypeLine != "" {
		return c.TypeLine
	}
	if c.Details != nil {
		return c.Details.Type
	}
	return ""
}

// Pack is an ordered group of cards opened together.
type Pack []PackCard

// PickRecord is the per-pick persistence notification. Each record carries
// enough context to be applied independently of arrival order.
type PickRecord struct {
	DraftID   string   `json:"draft_id"`
	CubeID    string   `json:"cube"`
	Pick      string   `json:"pick"`
	Pack      []string `json:"pack"`
	Seq       int      `json:"seq,omitempty"`
	CreatedAt int64    `json:"created_at,omitempty"`
}

// DraftRecord is the durable record of a completed draft: the stripped
// session snapshot submitted once at finish.
type DraftRecord struct {
	ID         string     `json:"id"`
	CubeID     string     `json:"cube"`
	PackNumber int        `json:"packNumber"`
	PickNumber int        `json:"pickNumber"`
	Seats      [][]Pack   `json:"packs"`
	HumanPicks []PackCard `json:"picks"`
	BotPicks   [][]string `json:"botPicks"`
	Bots       [][]string `json:"bots"`
	PickOrder  []string   `json:"pickOrder"`
	FinishedAt int64      `json:"finishedAt,omitempty"`
}
