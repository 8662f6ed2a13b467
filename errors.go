package main

import (
	"errors"
	"fmt"
)

var (
	ErrBadInput                  = errors.New("bad input")
	ErrUnknownProgram            = errors.New("unknown program")
	ErrFetchFailed               = errors.New("fetch failed")
	ErrChecksumUnavailable       = errors.New("checksum unavailable")
	ErrChecksumMismatch          = errors.New("checksum mismatch")
	ErrCannotStopRunningInstance = errors.New("cannot stop running instance")
	ErrAllMirrorsExhausted       = errors.New("all mirrors exhausted")
	ErrLaunchFailed              = errors.New("launch failed")
)

// FetchError describes a failed fetch of a single URL. It matches ErrFetchFailed.
type FetchError struct {
	Reason     FetchFailureReason
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching %s failed (%s)", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func fetchFailure(reason FetchFailureReason, url string, err error) *FetchError {
	return &FetchError{Reason: reason, URL: url, Err: err}
}

// FetchFailureReasonOf reports the reason of the first FetchError in err's chain.
func FetchFailureReasonOf(err error) (FetchFailureReason, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason, true
	}
	return 0, false
}

func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return EXIT_OK
	case errors.Is(err, ErrBadInput):
		return EXIT_NO_ARGUMENTS
	case errors.Is(err, ErrUnknownProgram):
		return EXIT_UNKNOWN_PROGRAM
	case errors.Is(err, ErrCannotStopRunningInstance):
		return EXIT_STILL_RUNNING
	case errors.Is(err, ErrAllMirrorsExhausted):
		return EXIT_UNREACHABLE
	default:
		return EXIT_FAILURE
	}
}
