package voice

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessageID is returned when a voice is requested without a
	// message id to cache it under.
	ErrEmptyMessageID = errors.New("message id is required")

	// ErrNoSynthesizer is returned when no synthesis function is given.
	ErrNoSynthesizer = errors.New("no synthesizer")

	// ErrPlaybackError means the audio primitive reported a play error.
	ErrPlaybackError = errors.New("playback error")

	// ErrStalled means playback never became audible within the start
	// timeout.
	ErrStalled = errors.New("playback stalled before start")

	// ErrSuperseded means a newer play or stop request replaced the attempt.
	ErrSuperseded = errors.New("playback superseded")

	// ErrInterrupted means playback was stopped or paused before it
	// started.
	ErrInterrupted = errors.New("playback interrupted before start")
)

// FetchError is a failed blob fallback download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// terminal reports whether a start failure must not trigger the fallback.
func terminal(err error) bool {
	return errors.Is(err, ErrSuperseded) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// result maps a start outcome to a metric label.
func result(err error) string {
	var fe *FetchError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPlaybackError):
		return "playerror"
	case errors.Is(err, ErrStalled):
		return "stalled"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	case errors.As(err, &fe):
		return "fetch_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
