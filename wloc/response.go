package wloc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Magic precedes the protobuf payload inside a response body. Two length
// bytes follow it; they are skipped, not checked against the buffer.
var Magic = []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00}

// payloadSkip is the distance from the start of Magic to the payload.
const payloadSkip = 6 + 2

// Response is the Response message of location.proto.
type Response struct {
	Wifis []ResponseWifi `protobuf:"wifis"`
}

// ResponseWifi is one access point as returned by the service. Coordinates
// are scaled by CoordinateScale.
type ResponseWifi struct {
	MAC      string   `protobuf:"mac"`
	Location Location `protobuf:"location"`
	Channel  int32    `protobuf:"channel"`
}

// Location is the WifiLocation message of location.proto.
type Location struct {
	Latitude         int64 `protobuf:"latitude"`
	Longitude        int64 `protobuf:"longitude"`
	Accuracy         int32 `protobuf:"accuracy"`
	Altitude         int32 `protobuf:"altitude"`
	AltitudeAccuracy int32 `protobuf:"altitudeAccuracy"`
}

// CoordinateScale is the factor latitude and longitude are multiplied by on the wire.
const CoordinateScale = 1e8

// PayloadOffset returns where the protobuf payload starts in raw: eight bytes
// past the first occurrence of Magic.
func PayloadOffset(raw []byte) (int, error) {
	idx := bytes.Index(raw, Magic)
	if idx < 0 {
		return 0, fmt.Errorf("%w: payload marker % x not found in %d bytes", ErrMalformedResponse, Magic, len(raw))
	}
	return idx + payloadSkip, nil
}

// DecodeResponse extracts and parses the payload of a raw response body. An
// empty body yields no records and no error. Records keep service order.
func DecodeResponse(raw []byte) ([]ResponseWifi, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	offset, err := PayloadOffset(raw)
	if err != nil {
		return nil, err
	}
	// a marker at the very end leaves an empty payload, which is an empty Response
	if offset > len(raw) {
		offset = len(raw)
	}

	codec, err := DefaultCodec()
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := codec.Unmarshal(raw[offset:], &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return resp.Wifis, nil
}

// EncodeResponse frames resp the way the service does: a two byte prefix,
// Magic, the big-endian payload length and the payload.
func EncodeResponse(resp *Response) ([]byte, error) {
	codec, err := DefaultCodec()
	if err != nil {
		return nil, err
	}
	payload, err := codec.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("serialize response: %w", err)
	}
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrEncodingOverflow, len(payload))
	}

	body := make([]byte, 0, 2+payloadSkip+len(payload))
	body = append(body, 0x00, 0x01)
	body = append(body, Magic...)
	body = binary.BigEndian.AppendUint16(body, uint16(len(payload)))
	return append(body, payload...), nil
}
