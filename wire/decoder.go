package wire

import (
	"fmt"
	"math"

	"github.com/gsloc/gsloc/registry"
	"github.com/gsloc/gsloc/schema"
)

// Decoder handles low-level protobuf wire format decoding
type Decoder struct {
	buf      []byte
	pos      int
	registry *registry.Registry
}

// NewDecoder creates a new wire format decoder
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		buf: data,
		pos: 0,
	}
}

// NewDecoderWithRegistry creates a decoder with schema registry
func NewDecoderWithRegistry(data []byte, registry *registry.Registry) *Decoder {
	return &Decoder{
		buf:      data,
		pos:      0,
		registry: registry,
	}
}

// DecodeMessage decodes protobuf bytes using schema - main entry point
func DecodeMessage(data []byte, msg *schema.Message, registry *registry.Registry) (map[string]interface{}, error) {
	return NewDecoderWithRegistry(data, registry).DecodeWithSchema(msg)
}

// DecodeWithSchema decodes the remaining buffer as msg. Only fields present on
// the wire appear in the result; repeated fields keep wire order and unknown
// fields are skipped.
func (d *Decoder) DecodeWithSchema(msg *schema.Message) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	repeatedCollector := make(map[string][]interface{})

	for d.pos < len(d.buf) {
		tag, err := d.DecodeVarint()
		if err != nil {
			return nil, fmt.Errorf("failed to decode tag in message %s: %w", msg.Name, err)
		}

		if tag>>3 > MaxFieldNumber {
			return nil, fmt.Errorf("invalid field number %d in message %s", tag>>3, msg.Name)
		}
		fieldNumber, wireType := ParseTag(Tag(tag))
		if fieldNumber <= 0 {
			return nil, fmt.Errorf("invalid field number %d in message %s", fieldNumber, msg.Name)
		}

		field := msg.FieldByNumber(int32(fieldNumber))
		if field == nil {
			if err := d.skipField(fieldNumber, wireType); err != nil {
				return nil, fmt.Errorf("failed to skip unknown field %d in message %s: %w", fieldNumber, msg.Name, err)
			}
			continue
		}

		if field.Label == schema.LabelRepeated {
			values, err := d.decodeRepeated(field, wireType)
			if err != nil {
				return nil, wrapDecodingFieldError(err, field.Name)
			}
			repeatedCollector[field.Name] = append(repeatedCollector[field.Name], values...)
			continue
		}

		value, err := d.DecodeTypedField(&field.Type, wireType)
		if err != nil {
			return nil, wrapDecodingFieldError(err, field.Name)
		}
		// last one wins for singular fields, sub-messages included
		result[field.Name] = value
	}

	for fieldName, values := range repeatedCollector {
		result[fieldName] = values
	}

	return result, nil
}

// decodeRepeated decodes one occurrence of a repeated field, which is a whole
// packed run when a scalar arrives length-delimited
func (d *Decoder) decodeRepeated(field *schema.Field, wireType WireType) ([]interface{}, error) {
	elemWire := wireTypeOf(&field.Type)
	if wireType != WireBytes || elemWire == WireBytes {
		value, err := d.DecodeTypedField(&field.Type, wireType)
		if err != nil {
			return nil, err
		}
		return []interface{}{value}, nil
	}

	packed, err := NewBytesDecoder(d).DecodeRawBytes()
	if err != nil {
		return nil, err
	}
	inner := NewDecoderWithRegistry(packed, d.registry)
	var values []interface{}
	for inner.pos < len(inner.buf) {
		value, err := inner.DecodeTypedField(&field.Type, elemWire)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// DecodeTypedField routes to the appropriate decoder based on field type
func (d *Decoder) DecodeTypedField(fieldType *schema.FieldType, wireType WireType) (interface{}, error) {
	if expected := wireTypeOf(fieldType); wireType != expected {
		return nil, fmt.Errorf("wire type %d does not match expected %d", wireType, expected)
	}

	switch fieldType.Kind {
	case schema.KindPrimitive:
		return d.decodePrimitive(fieldType.PrimitiveType)
	case schema.KindMessage:
		return NewMessageDecoder(d).DecodeMessage(fieldType.MessageType)
	case schema.KindEnum:
		raw, err := d.DecodeVarint()
		if err != nil {
			return nil, err
		}
		number := int32(raw)
		if d.registry != nil {
			if enum, err := d.registry.GetEnum(fieldType.EnumType); err == nil {
				for _, v := range enum.Values {
					if v.Number == number {
						return v.Name, nil
					}
				}
			}
		}
		// proto2 keeps numbers it does not know about
		return number, nil
	default:
		return nil, fmt.Errorf("unsupported field kind: %s", fieldType.Kind)
	}
}

// decodePrimitive decodes a primitive type using the appropriate decoder
func (d *Decoder) decodePrimitive(primitiveType schema.PrimitiveType) (interface{}, error) {
	switch primitiveType {
	case schema.TypeString:
		return NewBytesDecoder(d).DecodeString()
	case schema.TypeBytes:
		return NewBytesDecoder(d).DecodeBytes()
	}

	fd := NewFixedDecoder(d)
	switch primitiveType {
	case schema.TypeFixed32, schema.TypeSfixed32, schema.TypeFloat:
		v, err := fd.DecodeFixed32()
		if err != nil {
			return nil, err
		}
		switch primitiveType {
		case schema.TypeSfixed32:
			return int32(v), nil
		case schema.TypeFloat:
			return math.Float32frombits(v), nil
		}
		return v, nil
	case schema.TypeFixed64, schema.TypeSfixed64, schema.TypeDouble:
		v, err := fd.DecodeFixed64()
		if err != nil {
			return nil, err
		}
		switch primitiveType {
		case schema.TypeSfixed64:
			return int64(v), nil
		case schema.TypeDouble:
			return math.Float64frombits(v), nil
		}
		return v, nil
	}

	rawValue, err := d.DecodeVarint()
	if err != nil {
		return nil, err
	}
	switch primitiveType {
	case schema.TypeInt32:
		return int32(rawValue), nil
	case schema.TypeInt64:
		return int64(rawValue), nil
	case schema.TypeUint32:
		return uint32(rawValue), nil
	case schema.TypeUint64:
		return rawValue, nil
	case schema.TypeSint32:
		return DecodeZigZag32(rawValue), nil
	case schema.TypeSint64:
		return DecodeZigZag64(rawValue), nil
	case schema.TypeBool:
		return rawValue != 0, nil
	default:
		return nil, fmt.Errorf("unsupported primitive type: %s", primitiveType)
	}
}

// skipField advances past one value of the given wire type. A group is
// skipped through its matching end-group tag.
func (d *Decoder) skipField(fieldNumber FieldNumber, wireType WireType) error {
	switch wireType {
	case WireVarint:
		_, err := d.DecodeVarint()
		return err
	case WireFixed64:
		_, err := NewFixedDecoder(d).DecodeFixed64()
		return err
	case WireFixed32:
		_, err := NewFixedDecoder(d).DecodeFixed32()
		return err
	case WireBytes:
		_, err := NewBytesDecoder(d).DecodeRawBytes()
		return err
	case WireStartGroup:
		return d.skipGroup(fieldNumber)
	case WireEndGroup:
		return fmt.Errorf("unexpected end group for field %d", fieldNumber)
	default:
		return fmt.Errorf("unsupported wire type %d", wireType)
	}
}

func (d *Decoder) skipGroup(fieldNumber FieldNumber) error {
	for d.pos < len(d.buf) {
		tag, err := d.DecodeVarint()
		if err != nil {
			return err
		}
		if tag>>3 > MaxFieldNumber {
			return fmt.Errorf("invalid field number %d in group %d", tag>>3, fieldNumber)
		}
		num, wireType := ParseTag(Tag(tag))
		if num <= 0 {
			return fmt.Errorf("invalid field number %d in group %d", num, fieldNumber)
		}
		if wireType == WireEndGroup {
			if num != fieldNumber {
				return fmt.Errorf("end group %d does not match group %d", num, fieldNumber)
			}
			return nil
		}
		if err := d.skipField(num, wireType); err != nil {
			return err
		}
	}
	return fmt.Errorf("group %d is not terminated", fieldNumber)
}
