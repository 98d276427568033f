package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/onnwee/askaround/internal/idempotency"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/validate"
)

// ListResponses fetches one page of responses to a question.
func (c *Client) ListResponses(ctx context.Context, p model.ListResponsesParams) ([]model.Response, error) {
	if p.QuestionID == "" {
		return nil, ErrMissingID
	}
	r := request{
		method: http.MethodGet,
		path:   "/responses/questions/" + url.PathEscape(p.QuestionID),
		query:  pageQuery(p.Limit, p.Offset),
	}
	var list model.ResponseList
	if err := c.do(ctx, r, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateResponse posts an answer to a question.
func (c *Client) CreateResponse(ctx context.Context, req *model.CreateResponseRequest) (model.Response, error) {
	var out model.Response
	if err := validate.CreateResponse(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPost, "/responses", req)
	if err != nil {
		return out, err
	}
	r.header = http.Header{idempotency.Header: []string{idempotency.FromContext(ctx)}}
	err = c.do(ctx, r, &out)
	return out, err
}

// UpdateResponse edits the body of a response.
func (c *Client) UpdateResponse(ctx context.Context, req *model.UpdateResponseRequest) (model.Response, error) {
	var out model.Response
	if err := validate.UpdateResponse(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPut, "/responses", req)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

// DeleteResponse deletes a response owned by the caller.
func (c *Client) DeleteResponse(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.do(ctx, request{method: http.MethodDelete, path: "/responses/" + url.PathEscape(id)}, nil)
}
