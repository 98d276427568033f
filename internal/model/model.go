// Package model defines the entities exchanged with the askaround API and the
// tagged request/response payloads for each endpoint.
package model

import (
	"time"

	"github.com/onnwee/askaround/internal/geo"
)

// ContentType distinguishes plain questions from polls.
type ContentType string

// Supported content types.
const (
	ContentTypeText ContentType = "text"
	ContentTypePoll ContentType = "poll"
)

// Valid reports whether the content type is known.
func (c ContentType) Valid() bool {
	return c == ContentTypeText || c == ContentTypePoll
}

// Category groups questions in the feed.
type Category string

// Known categories.
const (
	CategoryGeneral         Category = "general"
	CategoryFood            Category = "food"
	CategoryEvents          Category = "events"
	CategoryRecommendations Category = "recommendations"
	CategorySafety          Category = "safety"
	CategoryLostAndFound    Category = "lost_and_found"
)

var knownCategories = map[Category]bool{
	CategoryGeneral:         true,
	CategoryFood:            true,
	CategoryEvents:          true,
	CategoryRecommendations: true,
	CategorySafety:          true,
	CategoryLostAndFound:    true,
}

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	return knownCategories[c]
}

// UserSummary is the author reference embedded in questions and responses.
// Ownership is by id; the summary is display-only.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// User is the signed-in user's profile returned by GET /auth/me.
type User struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"clerk_id,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Question is a location-anchored question or poll.
type Question struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Body          string          `json:"body,omitempty"`
	Category      Category        `json:"category"`
	ContentType   ContentType     `json:"content_type"`
	Location      geo.Coordinates `json:"location"`
	LocationName  string          `json:"location_name,omitempty"`
	ImageURLs     []string        `json:"image_urls,omitempty"`
	Poll          *Poll           `json:"poll,omitempty"`
	AuthorID      string          `json:"author_id"`
	Author        *UserSummary    `json:"author,omitempty"`
	IsOwned       bool            `json:"is_owned"`
	NumResponses  int             `json:"num_responses"`
	DistanceMiles float64         `json:"distance_miles,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	EditedAt      *time.Time      `json:"edited_at,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// EntityID returns the question id.
func (q Question) EntityID() string { return q.ID }

// Expired reports whether the question's duration has elapsed at now.
func (q Question) Expired(now time.Time) bool {
	return q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}

// WithResponseDelta returns a copy with NumResponses adjusted by delta,
// never below zero.
func (q Question) WithResponseDelta(delta int) Question {
	q.NumResponses += delta
	if q.NumResponses < 0 {
		q.NumResponses = 0
	}
	return q
}

// Response is an answer to a question.
type Response struct {
	ID         string       `json:"id"`
	QuestionID string       `json:"question_id"`
	Body       string       `json:"body"`
	AuthorID   string       `json:"author_id"`
	Author     *UserSummary `json:"author,omitempty"`
	IsOwned    bool         `json:"is_owned"`
	CreatedAt  time.Time    `json:"created_at"`
	EditedAt   *time.Time   `json:"edited_at,omitempty"`
}

// EntityID returns the response id.
func (r Response) EntityID() string { return r.ID }

// PollOption is a single choice in a poll.
type PollOption struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	NumVotes   int    `json:"num_votes"`
	IsSelected bool   `json:"is_selected"`
}

// Poll is the poll content of a question. The sum of option votes is
// expected to equal NumTotalVotes; that is trusted from the server.
type Poll struct {
	Options       []PollOption `json:"options"`
	NumTotalVotes int          `json:"num_total_votes"`
	ExpiredAt     time.Time    `json:"expired_at"`
}

// Expired reports whether voting is closed at now.
func (p Poll) Expired(now time.Time) bool {
	return !p.ExpiredAt.IsZero() && !now.Before(p.ExpiredAt)
}

// Option returns the option with the given id.
func (p Poll) Option(id string) (PollOption, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return PollOption{}, false
}

// Selected returns the option the caller voted for, if any.
func (p Poll) Selected() (PollOption, bool) {
	for _, o := range p.Options {
		if o.IsSelected {
			return o, true
		}
	}
	return PollOption{}, false
}

// MediaAsset is an uploaded image.
type MediaAsset struct {
	ID          string `json:"id,omitempty"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}
