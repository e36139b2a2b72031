package history

import "errors"

var (
	// ErrBusy is returned when a message load is already in flight.
	// The request is dropped, not queued.
	ErrBusy = errors.New("message load already in progress")

	// ErrStale is returned when a response arrives after the filter it was
	// requested for has been replaced. The response is discarded.
	ErrStale = errors.New("response superseded by a newer request")

	// ErrNoMorePages is returned by LoadMore when the last page is loaded.
	ErrNoMorePages = errors.New("no more pages")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("history view closed")

	// ErrInvalidLeadID is returned for an empty lead identifier.
	ErrInvalidLeadID = errors.New("lead id is required")

	// ErrMalformedPayload is returned when a response body does not have
	// the expected shape.
	ErrMalformedPayload = errors.New("malformed response payload")

	// ErrNoAnalysisData is returned when an analysis response carries no data.
	ErrNoAnalysisData = errors.New("analysis response has no data")
)

// statusError is implemented by transport errors that carry an HTTP status.
type statusError interface {
	error
	HTTPStatus() int
}

// messageError is implemented by errors that carry a server-supplied,
// user-facing message.
type messageError interface {
	error
	ServerMessage() string
}

func httpStatusOf(err error) int {
	var se statusError
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return 0
}

func serverMessageOf(err error) string {
	var me messageError
	if errors.As(err, &me) {
		return me.ServerMessage()
	}
	return ""
}
