package query

import (
	"fmt"
	"strings"

	"github.com/onnwee/askaround/internal/geo"
)

// Kinds of paginated sequences.
const (
	KindQuestions = "questions"
	kindResponses = "responses"
)

// ResponsesKind is the kind of the response list for one question.
func ResponsesKind(questionID string) string {
	return kindResponses + ":" + questionID
}

// KindPrefix matches every kind starting with prefix, so "responses" matches
// every per-question response list.
func KindPrefix(prefix string) func(Key) bool {
	return func(k Key) bool {
		return k.Kind == prefix || strings.HasPrefix(k.Kind, prefix+":")
	}
}

// Key identifies one paginated sequence. Two keys with the same String are
// the same sequence.
type Key struct {
	Kind        string
	Region      geo.Region
	FilterType  string
	FilterValue string
}

// QuestionsKey builds the key for the questions feed in region.
func QuestionsKey(region geo.Region, filterType, filterValue string) Key {
	return Key{Kind: KindQuestions, Region: region, FilterType: filterType, FilterValue: filterValue}
}

// ResponsesKey builds the key for a question's response list. Response lists
// are not region-bound.
func ResponsesKey(questionID string) Key {
	return Key{Kind: ResponsesKind(questionID)}
}

// String encodes the settled center as a full-precision geohash and the
// radius to a millionth of a mile. Debouncing happens before a region
// settles, so every distinct settled region gets its own sequence.
func (k Key) String() string {
	if k.Region.RadiusMiles == 0 && k.Region.Center.IsZero() {
		return fmt.Sprintf("%s|||%s|%s", k.Kind, k.FilterType, k.FilterValue)
	}
	return fmt.Sprintf("%s|%s|%.6f|%s|%s",
		k.Kind,
		geo.Geohash(k.Region.Center, geo.KeyPrecision),
		k.Region.RadiusMiles,
		k.FilterType,
		k.FilterValue,
	)
}

// QuestionID returns the question a response-list key belongs to.
func (k Key) QuestionID() (string, bool) {
	id, ok := strings.CutPrefix(k.Kind, kindResponses+":")
	return id, ok && id != ""
}
