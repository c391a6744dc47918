package wloc

import "errors"

var (
	// ErrEncodingOverflow is returned when a serialized request does not fit the
	// signed 16-bit length prefix of the request frame.
	ErrEncodingOverflow = errors.New("wloc: request message too large for length prefix")

	// ErrMalformedResponse is returned when a non-empty response lacks the payload
	// marker or its payload does not parse as a Response message.
	ErrMalformedResponse = errors.New("wloc: malformed response")

	// ErrMalformedRequest is returned by DecodeRequest for bodies that are not a
	// well-formed request frame.
	ErrMalformedRequest = errors.New("wloc: malformed request")
)
