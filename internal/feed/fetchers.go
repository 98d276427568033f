package feed

import (
	"context"
	"errors"

	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/query"
)

// ErrNotResponsesKey is returned when a responses fetcher gets a key that
// does not name a question.
var ErrNotResponsesKey = errors.New("key is not a response list key")

// Lister is the read surface of the API. *api.Client implements it.
type Lister interface {
	ListQuestions(ctx context.Context, p model.ListQuestionsParams) ([]model.Question, error)
	ListResponses(ctx context.Context, p model.ListResponsesParams) ([]model.Response, error)
	GetQuestion(ctx context.Context, id string) (model.Question, error)
}

// QuestionsFetcher pages GET /questions for the key's region and filter.
func QuestionsFetcher(l Lister) query.Fetcher[model.Question] {
	return func(ctx context.Context, key query.Key, limit, offset int) ([]model.Question, error) {
		return l.ListQuestions(ctx, model.ListQuestionsParams{
			Region:      key.Region,
			FilterType:  key.FilterType,
			FilterValue: key.FilterValue,
			Limit:       limit,
			Offset:      offset,
		})
	}
}

// ResponsesFetcher pages GET /responses/questions/{id} for a response-list key.
func ResponsesFetcher(l Lister) query.Fetcher[model.Response] {
	return func(ctx context.Context, key query.Key, limit, offset int) ([]model.Response, error) {
		id, ok := key.QuestionID()
		if !ok {
			return nil, ErrNotResponsesKey
		}
		return l.ListResponses(ctx, model.ListResponsesParams{QuestionID: id, Limit: limit, Offset: offset})
	}
}

// QuestionLoader loads a single question for cache.Read.
func QuestionLoader(l Lister) func(ctx context.Context, id string) (model.Question, error) {
	return l.GetQuestion
}
