package feed

import (
	"context"
	"errors"

	"github.com/onnwee/askaround/internal/cache"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/query"
)

// ErrQuestionGone is returned when the thread's question has been deleted.
var ErrQuestionGone = errors.New("question was deleted")

// Thread is the detail view of one question: the question itself read
// through the shared cache and its paginated responses.
type Thread struct {
	questionID string
	questions  *cache.Cache[model.Question]
	seq        *query.Sequence[model.Response]
}

// OpenThread observes the response list of questionID. Call Close when the
// view goes away.
func OpenThread(questions *cache.Cache[model.Question], responses *query.Engine[model.Response], questionID string) *Thread {
	seq := responses.Sequence(query.ResponsesKey(questionID))
	seq.Acquire()
	return &Thread{questionID: questionID, questions: questions, seq: seq}
}

// Question returns the cached question, revalidating it in the background
// when stale and loading it when missing.
func (t *Thread) Question(ctx context.Context) (model.Question, error) {
	q, st := t.questions.Read(ctx, t.questionID)
	switch st {
	case cache.Fresh, cache.Stale:
		return q, nil
	case cache.Deleted:
		return model.Question{}, ErrQuestionGone
	}
	q, err := t.questions.Load(ctx, t.questionID)
	if errors.Is(err, cache.ErrDeleted) {
		return model.Question{}, ErrQuestionGone
	}
	return q, err
}

// Load fetches the first page of responses if none is loaded, or
// revalidates the list after a mutation reset it.
func (t *Thread) Load(ctx context.Context) error {
	st := t.seq.State()
	if st.Pages == 0 {
		return t.seq.FetchNextPage(ctx)
	}
	if st.Stale {
		return t.seq.Revalidate(ctx)
	}
	return nil
}

// FetchNextPage loads the next page of responses.
func (t *Thread) FetchNextPage(ctx context.Context) error {
	return t.seq.FetchNextPage(ctx)
}

// Refresh refetches the responses from the first page.
func (t *Thread) Refresh(ctx context.Context) error {
	return t.seq.Refetch(ctx)
}

// Responses returns the loaded responses in server order.
func (t *Thread) Responses() []model.Response { return t.seq.Items() }

// State returns the loading state of the response list.
func (t *Thread) State() query.State { return t.seq.State() }

// Close releases the response list; it is evicted after the engine's
// GC time unless reopened.
func (t *Thread) Close() { t.seq.Release() }
