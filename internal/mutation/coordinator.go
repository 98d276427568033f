// Package mutation wraps the write endpoints. After the server confirms a
// write, the coordinator patches the entity caches and the paginated query
// state so every screen reflects it without a full refetch. A failed write
// changes nothing.
package mutation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/query"
	"github.com/onnwee/askaround/internal/tracing"
)

var (
	// ErrMissingID is returned when a mutation names no entity.
	ErrMissingID = errors.New("entity id is required")
	// ErrPollExpired is returned when voting on a closed poll.
	ErrPollExpired = errors.New("poll has expired")
	// ErrNotPoll is returned when voting on a question without a poll.
	ErrNotPoll = errors.New("question has no poll")
	// ErrUnknownOption is returned when the option is not part of the poll.
	ErrUnknownOption = errors.New("poll option not found")
)

// Entity kinds used in spans and metrics.
const (
	kindQuestion = "question"
	kindResponse = "response"
)

// Backend is the write surface of the API. *api.Client implements it.
type Backend interface {
	CreateQuestion(ctx context.Context, req *model.CreateQuestionRequest) (model.CreateQuestionResult, error)
	UpdateQuestion(ctx context.Context, req *model.UpdateQuestionRequest) (model.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	VotePoll(ctx context.Context, req model.VotePollRequest) (model.Poll, error)
	CreateResponse(ctx context.Context, req *model.CreateResponseRequest) (model.Response, error)
	UpdateResponse(ctx context.Context, req *model.UpdateResponseRequest) (model.Response, error)
	DeleteResponse(ctx context.Context, id string) error
}

// Options configures a Coordinator.
type Options struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Coordinator applies confirmed writes to the question and response state.
type Coordinator struct {
	backend   Backend
	questions *query.Engine[model.Question]
	responses *query.Engine[model.Response]
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics
}

// NewCoordinator creates a coordinator over the two engines and their caches.
func NewCoordinator(b Backend, questions *query.Engine[model.Question], responses *query.Engine[model.Response], opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		backend:   b,
		questions: questions,
		responses: responses,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// run wraps one backend call in a span and records its outcome.
func (c *Coordinator) run(ctx context.Context, kind string, op tracing.MutationOperation, id string, call func(context.Context) error) error {
	ctx, endSpan := tracing.StartMutationSpan(ctx, kind, op, id)
	start := c.clock.Now()
	err := call(ctx)
	endSpan(err)

	result := "success"
	if err != nil {
		result = "failure"
		c.logger.Warn("mutation failed",
			slog.String("kind", kind),
			slog.String("operation", string(op)),
			slog.String("id", id),
			slog.String("error", err.Error()))
	} else {
		c.logger.Debug("mutation applied",
			slog.String("kind", kind),
			slog.String("operation", string(op)),
			slog.String("id", id))
	}
	if c.metrics != nil {
		c.metrics.Observe(kind, string(op), result, c.clock.Since(start).Seconds())
	}
	return err
}

// CreateQuestion creates a question. When the server returns the hydrated
// question it is written to the cache. Every question feed is reset to its
// first page and marked stale so the new question appears on revalidation.
func (c *Coordinator) CreateQuestion(ctx context.Context, req *model.CreateQuestionRequest) (model.CreateQuestionResult, error) {
	var res model.CreateQuestionResult
	err := c.run(ctx, kindQuestion, tracing.MutationCreate, "", func(ctx context.Context) error {
		var err error
		res, err = c.backend.CreateQuestion(ctx, req)
		return err
	})
	if err != nil {
		return model.CreateQuestionResult{}, err
	}

	if res.Question != nil {
		c.questions.Cache().Set(res.QuestionID, *res.Question)
	}
	c.questions.ResetMatching(query.KindPrefix(query.KindQuestions))
	return res, nil
}

// UpdateQuestion edits a question and patches the confirmed fields into the
// cache. List order is not touched. When the question is not cached and the
// server echoes no body, the result carries only the id and the edited
// request fields, and the cache is left alone.
func (c *Coordinator) UpdateQuestion(ctx context.Context, req *model.UpdateQuestionRequest) (model.Question, error) {
	if req == nil || req.QuestionID == "" {
		return model.Question{}, ErrMissingID
	}
	var updated model.Question
	err := c.run(ctx, kindQuestion, tracing.MutationUpdate, req.QuestionID, func(ctx context.Context) error {
		var err error
		updated, err = c.backend.UpdateQuestion(ctx, req)
		return err
	})
	if err != nil {
		return model.Question{}, err
	}

	id := req.QuestionID
	var patched model.Question
	ok := c.questions.Cache().Patch(id, func(cur model.Question) model.Question {
		patched = mergeQuestion(cur, updated, req)
		return patched
	})
	if !ok {
		if updated.ID == "" {
			return mergeQuestion(model.Question{ID: id}, updated, req), nil
		}
		c.questions.Cache().Refresh(id, updated)
		return updated, nil
	}
	return patched, nil
}

// mergeQuestion applies the editable fields of a confirmed update to cur.
// When the server echoed no question, the request fields are used.
func mergeQuestion(cur, updated model.Question, req *model.UpdateQuestionRequest) model.Question {
	if updated.ID == "" {
		if req.Title != nil {
			cur.Title = *req.Title
		}
		if req.Body != nil {
			cur.Body = *req.Body
		}
		if req.Category != nil {
			cur.Category = *req.Category
		}
		return cur
	}
	cur.Title = updated.Title
	cur.Body = updated.Body
	cur.Category = updated.Category
	if updated.ImageURLs != nil {
		cur.ImageURLs = updated.ImageURLs
	}
	if updated.EditedAt != nil {
		cur.EditedAt = updated.EditedAt
	}
	return cur
}

// DeleteQuestion deletes a question, removes it from every loaded question
// page and tombstones its cache slot so it is not fetched again. Its
// response lists are marked stale.
func (c *Coordinator) DeleteQuestion(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	err := c.run(ctx, kindQuestion, tracing.MutationDelete, id, func(ctx context.Context) error {
		return c.backend.DeleteQuestion(ctx, id)
	})
	if err != nil {
		return err
	}

	c.questions.RemoveID(query.KindPrefix(query.KindQuestions), id)
	c.questions.Cache().Remove(id)
	c.responses.InvalidateMatching(query.KindPrefix(query.ResponsesKind(id)))
	return nil
}

// VotePoll records a vote. Expired polls and unknown options known from the
// cache are refused before any request is sent. The confirmed poll replaces
// the cached one.
func (c *Coordinator) VotePoll(ctx context.Context, req model.VotePollRequest) (model.Poll, error) {
	if req.QuestionID == "" || req.OptionID == "" {
		return model.Poll{}, ErrMissingID
	}
	if q, st := c.questions.Cache().Get(req.QuestionID); st.Live() {
		if q.Poll == nil {
			return model.Poll{}, ErrNotPoll
		}
		if q.Poll.Expired(c.clock.Now()) {
			return model.Poll{}, ErrPollExpired
		}
		if _, ok := q.Poll.Option(req.OptionID); !ok {
			return model.Poll{}, ErrUnknownOption
		}
	}

	var poll model.Poll
	err := c.run(ctx, kindQuestion, tracing.MutationVote, req.QuestionID, func(ctx context.Context) error {
		var err error
		poll, err = c.backend.VotePoll(ctx, req)
		return err
	})
	if err != nil {
		return model.Poll{}, err
	}

	c.questions.Cache().Patch(req.QuestionID, func(q model.Question) model.Question {
		p := poll
		q.Poll = &p
		return q
	})
	return poll, nil
}

// CreateResponse posts a response, increments the parent question's count
// by one and resets the question's response list so it refetches from the
// first page.
func (c *Coordinator) CreateResponse(ctx context.Context, req *model.CreateResponseRequest) (model.Response, error) {
	if req == nil || req.QuestionID == "" {
		return model.Response{}, ErrMissingID
	}
	var resp model.Response
	err := c.run(ctx, kindResponse, tracing.MutationCreate, "", func(ctx context.Context) error {
		var err error
		resp, err = c.backend.CreateResponse(ctx, req)
		return err
	})
	if err != nil {
		return model.Response{}, err
	}

	if resp.ID != "" {
		if resp.QuestionID == "" {
			resp.QuestionID = req.QuestionID
		}
		c.responses.Cache().Set(resp.ID, resp)
	}
	c.questions.Cache().Patch(req.QuestionID, func(q model.Question) model.Question {
		return q.WithResponseDelta(1)
	})
	c.responses.ResetMatching(query.KindPrefix(query.ResponsesKind(req.QuestionID)))
	return resp, nil
}

// UpdateResponse edits a response body and patches the cache.
func (c *Coordinator) UpdateResponse(ctx context.Context, req *model.UpdateResponseRequest) (model.Response, error) {
	if req == nil || req.ResponseID == "" {
		return model.Response{}, ErrMissingID
	}
	var updated model.Response
	err := c.run(ctx, kindResponse, tracing.MutationUpdate, req.ResponseID, func(ctx context.Context) error {
		var err error
		updated, err = c.backend.UpdateResponse(ctx, req)
		return err
	})
	if err != nil {
		return model.Response{}, err
	}

	var patched model.Response
	ok := c.responses.Cache().Patch(req.ResponseID, func(cur model.Response) model.Response {
		cur.Body = req.Body
		if updated.ID != "" {
			cur.Body = updated.Body
			if updated.EditedAt != nil {
				cur.EditedAt = updated.EditedAt
			}
		}
		patched = cur
		return cur
	})
	if !ok {
		if updated.ID != "" {
			c.responses.Cache().Refresh(updated.ID, updated)
		}
		return updated, nil
	}
	return patched, nil
}

// DeleteResponse deletes a response of questionID, removes it from the
// loaded response pages, tombstones it and decrements the question's
// response count, never below zero.
func (c *Coordinator) DeleteResponse(ctx context.Context, questionID, responseID string) error {
	if questionID == "" || responseID == "" {
		return ErrMissingID
	}
	err := c.run(ctx, kindResponse, tracing.MutationDelete, responseID, func(ctx context.Context) error {
		return c.backend.DeleteResponse(ctx, responseID)
	})
	if err != nil {
		return err
	}

	c.responses.RemoveID(query.KindPrefix(query.ResponsesKind(questionID)), responseID)
	c.responses.Cache().Remove(responseID)
	c.questions.Cache().Patch(questionID, func(q model.Question) model.Question {
		return q.WithResponseDelta(-1)
	})
	return nil
}
