package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/askaround/internal/model"
)

// Limits for question payloads.
const (
	MaxImages        = 4
	MinPollOptions   = 2
	MaxPollOptions   = 6
	MinDurationHours = 1
	MaxDurationHours = 72
)

// ErrValidation is wrapped by every FieldErrors value.
var ErrValidation = errors.New("validation failed")

// FieldErrors maps a request field to the reason it was rejected. It is
// returned before any request is sent so forms can show errors inline.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, k+": "+f[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (f FieldErrors) Unwrap() error { return ErrValidation }

func (f FieldErrors) add(field string, err error) {
	if err != nil {
		f[field] = err.Error()
	}
}

func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

// CreateQuestion validates and normalizes req in place.
func CreateQuestion(req *model.CreateQuestionRequest) error {
	errs := FieldErrors{}

	title, err := QuestionTitle(req.Title)
	errs.add("title", err)
	req.Title = title

	body, err := QuestionBody(req.Body)
	errs.add("body", err)
	req.Body = body

	if !req.Category.Valid() {
		errs["category"] = fmt.Sprintf("unknown category %q", req.Category)
	}
	if !req.Location.Valid() || req.Location.IsZero() {
		errs["location"] = "location is required"
	}
	if req.DurationHours < MinDurationHours || req.DurationHours > MaxDurationHours {
		errs["duration"] = fmt.Sprintf("must be between %d and %d hours", MinDurationHours, MaxDurationHours)
	}

	if len(req.ImageURLs) > MaxImages {
		errs["image_urls"] = fmt.Sprintf("at most %d images", MaxImages)
	} else {
		for i, u := range req.ImageURLs {
			clean, err := ImageURL(u)
			if err != nil {
				errs.add(fmt.Sprintf("image_urls[%d]", i), err)
				continue
			}
			req.ImageURLs[i] = clean
		}
	}

	switch req.ContentType {
	case model.ContentTypeText:
		if len(req.PollOptions) > 0 {
			errs["poll_options"] = "only poll questions take options"
		}
	case model.ContentTypePoll:
		validatePollOptions(req.PollOptions, errs)
	default:
		errs["content_type"] = fmt.Sprintf("unknown content type %q", req.ContentType)
	}

	return errs.orNil()
}

func validatePollOptions(options []string, errs FieldErrors) {
	if len(options) < MinPollOptions || len(options) > MaxPollOptions {
		errs["poll_options"] = fmt.Sprintf("need between %d and %d options", MinPollOptions, MaxPollOptions)
		return
	}
	seen := make(map[string]bool, len(options))
	for i, o := range options {
		label, err := PollOptionLabel(o)
		if err != nil {
			errs.add(fmt.Sprintf("poll_options[%d]", i), err)
			continue
		}
		key := strings.ToLower(label)
		if seen[key] {
			errs[fmt.Sprintf("poll_options[%d]", i)] = "duplicate option"
			continue
		}
		seen[key] = true
		options[i] = label
	}
}

// UpdateQuestion validates the fields present in req.
func UpdateQuestion(req *model.UpdateQuestionRequest) error {
	errs := FieldErrors{}
	if strings.TrimSpace(req.QuestionID) == "" {
		errs["question_id"] = ErrEmpty.Error()
	}
	if req.Title != nil {
		title, err := QuestionTitle(*req.Title)
		errs.add("title", err)
		req.Title = &title
	}
	if req.Body != nil {
		body, err := QuestionBody(*req.Body)
		errs.add("body", err)
		req.Body = &body
	}
	if req.Category != nil && !req.Category.Valid() {
		errs["category"] = fmt.Sprintf("unknown category %q", *req.Category)
	}
	if req.Title == nil && req.Body == nil && req.Category == nil {
		errs["request"] = "nothing to update"
	}
	return errs.orNil()
}

// CreateResponse validates and normalizes req in place.
func CreateResponse(req *model.CreateResponseRequest) error {
	errs := FieldErrors{}
	if strings.TrimSpace(req.QuestionID) == "" {
		errs["question_id"] = ErrEmpty.Error()
	}
	body, err := ResponseBody(req.Body)
	errs.add("body", err)
	req.Body = body
	return errs.orNil()
}

// UpdateResponse validates and normalizes req in place.
func UpdateResponse(req *model.UpdateResponseRequest) error {
	errs := FieldErrors{}
	if strings.TrimSpace(req.ResponseID) == "" {
		errs["response_id"] = ErrEmpty.Error()
	}
	body, err := ResponseBody(req.Body)
	errs.add("body", err)
	req.Body = body
	return errs.orNil()
}
