package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/onnwee/askaround/internal/geo"
	"github.com/onnwee/askaround/internal/model"
)

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		c       StringConstraints
		want    string
		wantErr error
	}{
		{name: "trimmed", input: "  hello  ", c: StringConstraints{TrimSpace: true}, want: "hello"},
		{name: "empty rejected", input: "   ", c: StringConstraints{TrimSpace: true}, wantErr: ErrEmpty},
		{name: "empty allowed", input: "", c: StringConstraints{AllowEmpty: true}, want: ""},
		{name: "too short", input: "ab", c: StringConstraints{MinLength: 3}, wantErr: ErrStringTooShort},
		{name: "too long", input: "abcdef", c: StringConstraints{MaxLength: 5}, wantErr: ErrStringTooLong},
		{name: "runes not bytes", input: "héllo", c: StringConstraints{MaxLength: 5}, want: "héllo"},
		{name: "control chars", input: "a\x00b", c: StringConstraints{}, wantErr: ErrInvalidCharacters},
		{name: "single line", input: "a\nb", c: StringConstraints{SingleLine: true}, wantErr: ErrInvalidCharacters},
		{name: "multi line ok", input: "a\nb", c: StringConstraints{}, want: "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.c)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("String() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("String() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "https ok", input: "https://cdn.example.com/a.jpg"},
		{name: "http rejected", input: "http://cdn.example.com/a.jpg", wantErr: ErrDisallowedScheme},
		{name: "localhost rejected", input: "https://localhost/a.jpg", wantErr: ErrPrivateHost},
		{name: "private ip rejected", input: "https://10.0.0.5/a.jpg", wantErr: ErrPrivateHost},
		{name: "loopback ip rejected", input: "https://127.0.0.1/a.jpg", wantErr: ErrPrivateHost},
		{name: "missing host", input: "https:///a.jpg", wantErr: ErrInvalidURL},
		{name: "empty", input: " ", wantErr: ErrEmpty},
		{name: "too long", input: "https://cdn.example.com/" + strings.Repeat("a", MaxURLLength), wantErr: ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImageURL(tt.input)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ImageURL() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ImageURL() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImageUpload(t *testing.T) {
	if mt, err := ImageUpload("Image/JPEG; charset=binary", 1024); err != nil || mt != MIMEImageJPEG {
		t.Errorf("ImageUpload() = %q, %v", mt, err)
	}
	if _, err := ImageUpload("video/mp4", 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("video error = %v, want ErrInvalidMIMEType", err)
	}
	if _, err := ImageUpload(MIMEImagePNG, 0); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty error = %v, want ErrEmptyFile", err)
	}
	if _, err := ImageUpload(MIMEImagePNG, MaxImageBytes+1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("large error = %v, want ErrFileTooLarge", err)
	}
}

func validQuestion() model.CreateQuestionRequest {
	return model.CreateQuestionRequest{
		Title:         "  Where is the best ramen?  ",
		Category:      model.CategoryFood,
		Location:      geo.DefaultCenter,
		DurationHours: 24,
		ContentType:   model.ContentTypeText,
	}
}

func TestCreateQuestion_Valid(t *testing.T) {
	req := validQuestion()
	if err := CreateQuestion(&req); err != nil {
		t.Fatalf("CreateQuestion() error = %v", err)
	}
	if req.Title != "Where is the best ramen?" {
		t.Errorf("title not normalized: %q", req.Title)
	}
}

func TestCreateQuestion_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreateQuestionRequest)
		field  string
	}{
		{name: "short title", mutate: func(r *model.CreateQuestionRequest) { r.Title = "hi" }, field: "title"},
		{name: "bad category", mutate: func(r *model.CreateQuestionRequest) { r.Category = "misc" }, field: "category"},
		{name: "no location", mutate: func(r *model.CreateQuestionRequest) { r.Location = geo.Coordinates{} }, field: "location"},
		{name: "duration zero", mutate: func(r *model.CreateQuestionRequest) { r.DurationHours = 0 }, field: "duration"},
		{name: "duration too long", mutate: func(r *model.CreateQuestionRequest) { r.DurationHours = 100 }, field: "duration"},
		{name: "too many images", mutate: func(r *model.CreateQuestionRequest) {
			r.ImageURLs = []string{"https://a.io/1", "https://a.io/2", "https://a.io/3", "https://a.io/4", "https://a.io/5"}
		}, field: "image_urls"},
		{name: "bad image", mutate: func(r *model.CreateQuestionRequest) { r.ImageURLs = []string{"ftp://a.io/1"} }, field: "image_urls[0]"},
		{name: "unknown type", mutate: func(r *model.CreateQuestionRequest) { r.ContentType = "video" }, field: "content_type"},
		{name: "text with options", mutate: func(r *model.CreateQuestionRequest) { r.PollOptions = []string{"a", "b"} }, field: "poll_options"},
		{name: "poll one option", mutate: func(r *model.CreateQuestionRequest) {
			r.ContentType = model.ContentTypePoll
			r.PollOptions = []string{"only"}
		}, field: "poll_options"},
		{name: "poll duplicate", mutate: func(r *model.CreateQuestionRequest) {
			r.ContentType = model.ContentTypePoll
			r.PollOptions = []string{"Yes", "yes"}
		}, field: "poll_options[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuestion()
			tt.mutate(&req)
			err := CreateQuestion(&req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			var fe FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not FieldErrors", err)
			}
			if _, ok := fe[tt.field]; !ok {
				t.Errorf("missing field error %q in %v", tt.field, fe)
			}
		})
	}
}

func TestCreateQuestion_Poll(t *testing.T) {
	req := validQuestion()
	req.ContentType = model.ContentTypePoll
	req.PollOptions = []string{" Yes ", "No"}
	if err := CreateQuestion(&req); err != nil {
		t.Fatalf("CreateQuestion() error = %v", err)
	}
	if req.PollOptions[0] != "Yes" {
		t.Errorf("option not trimmed: %q", req.PollOptions[0])
	}
}

func TestUpdateQuestion(t *testing.T) {
	title := "A better title"
	if err := UpdateQuestion(&model.UpdateQuestionRequest{QuestionID: "q1", Title: &title}); err != nil {
		t.Errorf("UpdateQuestion() error = %v", err)
	}
	err := UpdateQuestion(&model.UpdateQuestionRequest{QuestionID: "q1"})
	var fe FieldErrors
	if !errors.As(err, &fe) || fe["request"] == "" {
		t.Errorf("empty update error = %v", err)
	}
}

func TestResponses(t *testing.T) {
	if err := CreateResponse(&model.CreateResponseRequest{QuestionID: "q1", Body: "Try the place on State St."}); err != nil {
		t.Errorf("CreateResponse() error = %v", err)
	}
	err := CreateResponse(&model.CreateResponseRequest{Body: " "})
	var fe FieldErrors
	if !errors.As(err, &fe) || fe["question_id"] == "" || fe["body"] == "" {
		t.Errorf("CreateResponse() error = %v", err)
	}
	if err := UpdateResponse(&model.UpdateResponseRequest{ResponseID: "r1", Body: strings.Repeat("x", 1001)}); !errors.Is(err, ErrValidation) {
		t.Errorf("UpdateResponse() error = %v", err)
	}
}

func TestFieldErrors_ErrorIsSorted(t *testing.T) {
	fe := FieldErrors{"title": "x", "body": "y"}
	if got := fe.Error(); got != "validation failed: body: y; title: x" {
		t.Errorf("Error() = %q", got)
	}
}
