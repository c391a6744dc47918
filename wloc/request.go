package wloc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Defaults locationd sends with every query.
const (
	DefaultNoise  int32 = 0
	DefaultSignal int32 = 100
)

// MaxMessageLen is the largest serialized request the frame's signed 16-bit
// length prefix can carry.
const MaxMessageLen = math.MaxInt16

// Request is the Request message of location.proto.
type Request struct {
	Wifis  []RequestWifi `protobuf:"wifis"`
	Noise  int32         `protobuf:"noise"`
	Signal int32         `protobuf:"signal"`
}

// RequestWifi names one access point to locate.
type RequestWifi struct {
	MAC string `protobuf:"mac"`
}

// NewRequest returns a request for macs, in order and duplicates included,
// with the default noise and signal.
func NewRequest(macs []string) *Request {
	r := &Request{
		Wifis:  make([]RequestWifi, 0, len(macs)),
		Noise:  DefaultNoise,
		Signal: DefaultSignal,
	}
	for _, mac := range macs {
		r.Wifis = append(r.Wifis, RequestWifi{MAC: mac})
	}
	return r
}

// MACs returns the queried addresses in request order.
func (r *Request) MACs() []string {
	macs := make([]string, len(r.Wifis))
	for i, w := range r.Wifis {
		macs[i] = w.MAC
	}
	return macs
}

// Encode returns the full request body: header, big-endian length of the
// serialized message, then the message itself.
func (r *Request) Encode() ([]byte, error) {
	codec, err := DefaultCodec()
	if err != nil {
		return nil, err
	}
	message, err := codec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("serialize request: %w", err)
	}
	if len(message) > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrEncodingOverflow, len(message), MaxMessageLen)
	}

	body := make([]byte, 0, HeaderLen+2+len(message))
	body = append(body, headerBytes[:]...)
	body = binary.BigEndian.AppendUint16(body, uint16(len(message)))
	return append(body, message...), nil
}

// EncodeRequest builds the request body for macs with the default noise and signal.
func EncodeRequest(macs []string) ([]byte, error) {
	return NewRequest(macs).Encode()
}

// DecodeRequest parses a request body produced by Encode. It checks the
// header and the length prefix strictly.
func DecodeRequest(body []byte) (*Request, error) {
	if len(body) < HeaderLen+2 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedRequest, len(body))
	}
	if !bytes.Equal(body[:HeaderLen], headerBytes[:]) {
		return nil, fmt.Errorf("%w: header mismatch", ErrMalformedRequest)
	}
	size := int(int16(binary.BigEndian.Uint16(body[HeaderLen:])))
	message := body[HeaderLen+2:]
	if size < 0 || size != len(message) {
		return nil, fmt.Errorf("%w: length prefix %d, message is %d bytes", ErrMalformedRequest, size, len(message))
	}

	codec, err := DefaultCodec()
	if err != nil {
		return nil, err
	}
	req := &Request{}
	if err := codec.Unmarshal(message, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return req, nil
}
