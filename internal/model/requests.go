package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/onnwee/askaround/internal/geo"
)

// ErrEmptyCreateResult is returned when POST /questions yields neither an id
// nor a hydrated question.
var ErrEmptyCreateResult = errors.New("create question response has no question id")

// CreateQuestionRequest is the body of POST /questions.
type CreateQuestionRequest struct {
	Title         string          `json:"title"`
	Body          string          `json:"body,omitempty"`
	Category      Category        `json:"category"`
	Location      geo.Coordinates `json:"location"`
	ImageURLs     []string        `json:"image_urls,omitempty"`
	DurationHours int             `json:"duration"`
	ContentType   ContentType     `json:"content_type"`
	PollOptions   []string        `json:"poll_options,omitempty"`
}

// CreateQuestionResult is the response of POST /questions. Older API versions
// return only {"question_id": "..."}; newer ones return the hydrated question.
type CreateQuestionResult struct {
	QuestionID string
	Question   *Question
}

// UnmarshalJSON accepts either response shape.
func (r *CreateQuestionResult) UnmarshalJSON(data []byte) error {
	var idOnly struct {
		QuestionID string `json:"question_id"`
	}
	if err := json.Unmarshal(data, &idOnly); err != nil {
		return err
	}
	if idOnly.QuestionID != "" {
		r.QuestionID = idOnly.QuestionID
		r.Question = nil
		return nil
	}

	var q Question
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}
	if q.ID == "" {
		return ErrEmptyCreateResult
	}
	r.QuestionID = q.ID
	r.Question = &q
	return nil
}

// UpdateQuestionRequest is the body of PUT /questions. Nil fields are left
// unchanged by the server.
type UpdateQuestionRequest struct {
	QuestionID string    `json:"question_id"`
	Title      *string   `json:"title,omitempty"`
	Body       *string   `json:"body,omitempty"`
	Category   *Category `json:"category,omitempty"`
}

// VotePollRequest is the body of POST /questions/{id}/vote.
type VotePollRequest struct {
	QuestionID string `json:"-"`
	OptionID   string `json:"option_id"`
}

// CreateResponseRequest is the body of POST /responses.
type CreateResponseRequest struct {
	QuestionID string `json:"question_id"`
	Body       string `json:"body"`
}

// UpdateResponseRequest is the body of PUT /responses.
type UpdateResponseRequest struct {
	ResponseID string `json:"response_id"`
	Body       string `json:"body"`
}

// UploadResult is the response of POST /media/upload.
type UploadResult struct {
	Asset MediaAsset `json:"asset"`
}

// SyncIdentityRequest is the body of POST /auth/sync-clerk.
type SyncIdentityRequest struct {
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SyncIdentityResult is the response of POST /auth/sync-clerk.
type SyncIdentityResult struct {
	User    User `json:"user"`
	Created bool `json:"created"`
}

// PushTokenRequest is the body of POST and DELETE /users/push-token.
type PushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// LocationUpdate is the body of POST /users/location.
type LocationUpdate struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewLocationUpdate builds a LocationUpdate for c observed at t.
func NewLocationUpdate(c geo.Coordinates, t time.Time) LocationUpdate {
	return LocationUpdate{Latitude: c.Latitude, Longitude: c.Longitude, RecordedAt: t.UTC()}
}

// ListQuestionsParams are the query parameters of GET /questions.
type ListQuestionsParams struct {
	Region      geo.Region
	FilterType  string
	FilterValue string
	Limit       int
	Offset      int
}

// ListResponsesParams are the query parameters of GET /responses/questions/{id}.
type ListResponsesParams struct {
	QuestionID string
	Limit      int
	Offset     int
}

// QuestionList decodes GET /questions. The current contract returns a bare
// array; a {"questions": [...]} envelope is also accepted.
type QuestionList []Question

// UnmarshalJSON accepts a bare array or an envelope.
func (l *QuestionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var qs []Question
		if err := json.Unmarshal(data, &qs); err != nil {
			return err
		}
		*l = qs
		return nil
	}
	var env struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*l = env.Questions
	return nil
}

// ResponseList decodes GET /responses/questions/{id}, bare array or
// {"responses": [...]} envelope.
type ResponseList []Response

// UnmarshalJSON accepts a bare array or an envelope.
func (l *ResponseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rs []Response
		if err := json.Unmarshal(data, &rs); err != nil {
			return err
		}
		*l = rs
		return nil
	}
	var env struct {
		Responses []Response `json:"responses"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*l = env.Responses
	return nil
}
