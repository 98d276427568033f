package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCreateQuestionResult_IDOnly(t *testing.T) {
	var r CreateQuestionResult
	if err := json.Unmarshal([]byte(`{"question_id":"q-1"}`), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if r.QuestionID != "q-1" {
		t.Errorf("QuestionID = %q, want q-1", r.QuestionID)
	}
	if r.Question != nil {
		t.Error("Question should be nil for id-only responses")
	}
}

func TestCreateQuestionResult_Hydrated(t *testing.T) {
	body := `{"id":"q-2","title":"Best coffee?","category":"food","content_type":"text","num_responses":0}`
	var r CreateQuestionResult
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if r.QuestionID != "q-2" || r.Question == nil || r.Question.Title != "Best coffee?" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestCreateQuestionResult_Empty(t *testing.T) {
	var r CreateQuestionResult
	err := json.Unmarshal([]byte(`{}`), &r)
	if !errors.Is(err, ErrEmptyCreateResult) {
		t.Errorf("error = %v, want ErrEmptyCreateResult", err)
	}
}

func TestQuestionList_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bare array", body: `[{"id":"a"},{"id":"b"}]`, want: 2},
		{name: "envelope", body: `{"questions":[{"id":"a"}]}`, want: 1},
		{name: "empty array", body: ` [] `, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l QuestionList
			if err := json.Unmarshal([]byte(tt.body), &l); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(l) != tt.want {
				t.Errorf("len = %d, want %d", len(l), tt.want)
			}
		})
	}
}

func TestResponseList_Envelope(t *testing.T) {
	var l ResponseList
	if err := json.Unmarshal([]byte(`{"responses":[{"id":"r1","question_id":"q"}]}`), &l); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(l) != 1 || l[0].QuestionID != "q" {
		t.Errorf("unexpected list: %+v", l)
	}
}

func TestQuestion_WithResponseDelta(t *testing.T) {
	q := Question{NumResponses: 1}
	if got := q.WithResponseDelta(-1).NumResponses; got != 0 {
		t.Errorf("1-1 = %d, want 0", got)
	}
	if got := q.WithResponseDelta(-5).NumResponses; got != 0 {
		t.Errorf("clamped count = %d, want 0", got)
	}
	if got := q.WithResponseDelta(1).NumResponses; got != 2 {
		t.Errorf("1+1 = %d, want 2", got)
	}
	if q.NumResponses != 1 {
		t.Error("WithResponseDelta must not modify the receiver")
	}
}

func TestPoll_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		poll Poll
		want bool
	}{
		{name: "no expiry", poll: Poll{}, want: false},
		{name: "future", poll: Poll{ExpiredAt: now.Add(time.Hour)}, want: false},
		{name: "exactly now", poll: Poll{ExpiredAt: now}, want: true},
		{name: "past", poll: Poll{ExpiredAt: now.Add(-time.Minute)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.poll.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPoll_OptionAndSelected(t *testing.T) {
	p := Poll{Options: []PollOption{{ID: "a", Label: "Yes"}, {ID: "b", Label: "No", IsSelected: true}}}
	if o, ok := p.Option("a"); !ok || o.Label != "Yes" {
		t.Errorf("Option(a) = %+v, %v", o, ok)
	}
	if _, ok := p.Option("zzz"); ok {
		t.Error("Option(zzz) should not be found")
	}
	if o, ok := p.Selected(); !ok || o.ID != "b" {
		t.Errorf("Selected() = %+v, %v", o, ok)
	}
}

func TestCategoryAndContentType_Valid(t *testing.T) {
	if !CategoryFood.Valid() || Category("nope").Valid() {
		t.Error("Category.Valid misclassified")
	}
	if !ContentTypePoll.Valid() || ContentType("video").Valid() {
		t.Error("ContentType.Valid misclassified")
	}
}
