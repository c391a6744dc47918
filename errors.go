package gsloc

import (
	"github.com/gsloc/gsloc/transport"
	"github.com/gsloc/gsloc/wloc"
)

// Errors that abort a single query call. Use errors.Is / errors.As.
var (
	ErrEncodingOverflow  = wloc.ErrEncodingOverflow
	ErrMalformedResponse = wloc.ErrMalformedResponse
)

// TransportError is returned when the exchange with the service fails.
type TransportError = transport.Error

// NoResultError reports that the service holds no usable location for an
// access point. It only ever describes one record; queries skip the record
// and carry on.
type NoResultError struct {
	MAC string
}

func (e *NoResultError) Error() string {
	return "no results found for MAC address: " + e.MAC
}
