package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/onnwee/askaround/internal/idempotency"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/validate"
)

// ErrMissingID is returned when an endpoint needing an entity id gets "".
var ErrMissingID = errors.New("entity id is required")

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("offset", strconv.Itoa(offset))
	return q
}

// ListQuestions fetches one page of questions near the region center.
func (c *Client) ListQuestions(ctx context.Context, p model.ListQuestionsParams) ([]model.Question, error) {
	q := pageQuery(p.Limit, p.Offset)
	q.Set("latitude", formatFloat(p.Region.Center.Latitude))
	q.Set("longitude", formatFloat(p.Region.Center.Longitude))
	q.Set("radius", formatFloat(p.Region.RadiusMiles))
	if p.FilterType != "" {
		q.Set("filter_type", p.FilterType)
		q.Set("filter_value", p.FilterValue)
	}

	var list model.QuestionList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/questions", query: q}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetQuestion fetches a single question.
func (c *Client) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	var out model.Question
	if id == "" {
		return out, ErrMissingID
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/questions/" + url.PathEscape(id)}, &out)
	return out, err
}

// CreateQuestion validates and posts a new question. The request is
// normalized in place. An Idempotency-Key taken from ctx (or freshly
// generated) is attached.
func (c *Client) CreateQuestion(ctx context.Context, req *model.CreateQuestionRequest) (model.CreateQuestionResult, error) {
	var out model.CreateQuestionResult
	if err := validate.CreateQuestion(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPost, "/questions", req)
	if err != nil {
		return out, err
	}
	r.header = http.Header{idempotency.Header: []string{idempotency.FromContext(ctx)}}
	err = c.do(ctx, r, &out)
	return out, err
}

// UpdateQuestion applies a partial edit and returns the server's copy.
func (c *Client) UpdateQuestion(ctx context.Context, req *model.UpdateQuestionRequest) (model.Question, error) {
	var out model.Question
	if err := validate.UpdateQuestion(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPut, "/questions", req)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

// DeleteQuestion deletes a question owned by the caller.
func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.do(ctx, request{method: http.MethodDelete, path: "/questions/" + url.PathEscape(id)}, nil)
}

// VotePoll records a vote and returns the updated poll.
func (c *Client) VotePoll(ctx context.Context, req model.VotePollRequest) (model.Poll, error) {
	var out struct {
		Poll model.Poll `json:"poll"`
	}
	if req.QuestionID == "" || req.OptionID == "" {
		return out.Poll, ErrMissingID
	}
	r, err := jsonRequest(http.MethodPost, "/questions/"+url.PathEscape(req.QuestionID)+"/vote", req)
	if err != nil {
		return out.Poll, err
	}
	err = c.do(ctx, r, &out)
	return out.Poll, err
}
