package models

import "time"

// RatingValue is a traffic-light quality vote on a subtitle version
type RatingValue string

const (
	RatingRed    RatingValue = "red"
	RatingYellow RatingValue = "yellow"
	RatingGreen  RatingValue = "green"
)

// Valid reports whether r is one of the known rating values
func (r RatingValue) Valid() bool {
	switch r {
	case RatingRed, RatingYellow, RatingGreen:
		return true
	}
	return false
}

// RatingSummary aggregates votes for one video version
type RatingSummary struct {
	Red        int          `json:"Red"`
	Yellow     int          `json:"Yellow"`
	Green      int          `json:"Green"`
	Version    int          `json:"Version"`
	UserRating *RatingValue `json:"UserRating"`
}

// RatingEvent is one entry of the recent-ratings log
type RatingEvent struct {
	VideoID   string      `json:"VideoId"`
	Version   int         `json:"Version"`
	UserID    string      `json:"UserId"`
	UserName  string      `json:"UserName,omitempty"`
	Value     RatingValue `json:"Value"`
	CreatedAt time.Time   `json:"CreatedAt"`
}
