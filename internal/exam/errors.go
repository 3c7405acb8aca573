package exam

import (
	"errors"
	"net/http"
)

// Validation-class errors carry the offending question/task id via
// fmt.Errorf wrapping; callers match with errors.Is.
var (
	ErrNotFound               = errors.New("requested resource not found")
	ErrMalformedPayload       = errors.New("malformed submission payload")
	ErrContainerNotInSection  = errors.New("container does not belong to section")
	ErrQuestionNotInContainer = errors.New("question does not belong to container")
	ErrInvalidAnswerFormat    = errors.New("invalid answer format")
	ErrInvalidAnswerToken     = errors.New("invalid answer token")
	ErrMissingRecording       = errors.New("missing recording for task")
	ErrMissingEssay           = errors.New("missing essay for task")
	ErrIncompleteReview       = errors.New("review must cover every task")
	ErrScoreOutOfRange        = errors.New("score out of range")
	ErrEmptyFeedback          = errors.New("feedback must not be empty")
)

// HTTPStatus maps domain errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrContainerNotInSection),
		errors.Is(err, ErrQuestionNotInContainer),
		errors.Is(err, ErrInvalidAnswerFormat),
		errors.Is(err, ErrInvalidAnswerToken),
		errors.Is(err, ErrMissingRecording),
		errors.Is(err, ErrMissingEssay),
		errors.Is(err, ErrIncompleteReview),
		errors.Is(err, ErrScoreOutOfRange),
		errors.Is(err, ErrEmptyFeedback):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
