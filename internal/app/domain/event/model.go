package event

import "time"

// Location is a GeoJSON point; coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Event is a ticketed occasion. Records reference it softly by ID.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   *Location `json:"location,omitempty"`
	Categories []string  `json:"categories"`
	Media      string    `json:"media,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
