package wire

import "github.com/gsloc/gsloc/schema"

// ===== PROTOBUF WIRE FORMAT TYPES =====

// WireType represents protobuf wire format types
type WireType int32

const (
	WireVarint     WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // fixed64, sfixed64, double
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // deprecated, skipped when unknown
	WireEndGroup   WireType = 4 // deprecated, skipped when unknown
	WireFixed32    WireType = 5 // fixed32, sfixed32, float
)

// FieldNumber represents a protobuf field number
type FieldNumber int32

// MaxFieldNumber is the largest field number a tag may carry.
const MaxFieldNumber = 1<<29 - 1

// Tag represents a protobuf field tag (field number + wire type)
type Tag uint64

// MakeTag creates a tag from field number and wire type
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType))
}

// ParseTag parses a tag into field number and wire type
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}

// wireTypeOf returns the wire type a single (unpacked) value of t is encoded with
func wireTypeOf(t *schema.FieldType) WireType {
	switch t.Kind {
	case schema.KindMessage:
		return WireBytes
	case schema.KindEnum:
		return WireVarint
	}
	switch t.PrimitiveType {
	case schema.TypeDouble, schema.TypeFixed64, schema.TypeSfixed64:
		return WireFixed64
	case schema.TypeFloat, schema.TypeFixed32, schema.TypeSfixed32:
		return WireFixed32
	case schema.TypeString, schema.TypeBytes:
		return WireBytes
	default:
		return WireVarint
	}
}
