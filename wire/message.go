package wire

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/gsloc/gsloc/schema"
)

// MessageDecoder handles message decoding operations
type MessageDecoder struct {
	decoder *Decoder
}

// MessageEncoder handles message encoding operations
type MessageEncoder struct {
	encoder *Encoder
}

// NewMessageDecoder creates a new message decoder
func NewMessageDecoder(d *Decoder) *MessageDecoder {
	return &MessageDecoder{decoder: d}
}

// NewMessageEncoder creates a new message encoder
func NewMessageEncoder(e *Encoder) *MessageEncoder {
	return &MessageEncoder{encoder: e}
}

// DECODER METHODS

// DecodeMessage decodes a nested, length-delimited message of the given type
func (md *MessageDecoder) DecodeMessage(messageType string) (map[string]interface{}, error) {
	messageBytes, err := NewBytesDecoder(md.decoder).DecodeRawBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to decode message bytes: %w", err)
	}

	if md.decoder.registry == nil {
		return nil, fmt.Errorf("no registry to resolve message type %s", messageType)
	}
	msg, err := md.decoder.registry.GetMessage(messageType)
	if err != nil {
		return nil, err
	}

	return NewDecoderWithRegistry(messageBytes, md.decoder.registry).DecodeWithSchema(msg)
}

// ENCODER METHODS

// EncodeMessage appends the fields of data to the encoder, in increasing field number order.
// Keys that are not fields of msg and nil values are skipped; every other key is written,
// zero values included, so proto2 presence survives the round trip.
func (me *MessageEncoder) EncodeMessage(data map[string]interface{}, msg *schema.Message) error {
	type fieldEntry struct {
		value interface{}
		field *schema.Field
	}
	entries := make([]fieldEntry, 0, len(data))
	for fieldName, fieldValue := range data {
		field := msg.FieldByName(fieldName)
		if field == nil || fieldValue == nil {
			continue
		}
		entries = append(entries, fieldEntry{value: fieldValue, field: field})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].field.Number < entries[j].field.Number
	})

	for _, entry := range entries {
		if err := me.encodeField(entry.value, entry.field); err != nil {
			return wrapEncodingFieldError(err, entry.field.Name)
		}
	}
	return nil
}

// encodeField writes tag and value for every element of a field. Repeated scalars
// are written unpacked, which both proto2 and proto3 parsers accept.
func (me *MessageEncoder) encodeField(value interface{}, field *schema.Field) error {
	if field.Label != schema.LabelRepeated {
		return me.encodeTagged(value, field)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return newFieldError("repeated field value must be a slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := me.encodeTagged(rv.Index(i).Interface(), field); err != nil {
			return err
		}
	}
	return nil
}

func (me *MessageEncoder) encodeTagged(value interface{}, field *schema.Field) error {
	e := me.encoder
	e.EncodeVarint(uint64(MakeTag(FieldNumber(field.Number), wireTypeOf(&field.Type))))

	switch field.Type.Kind {
	case schema.KindPrimitive:
		return me.encodePrimitive(value, field.Type.PrimitiveType)
	case schema.KindEnum:
		return me.encodeEnum(value, field.Type.EnumType)
	case schema.KindMessage:
		return me.encodeNested(value, field.Type.MessageType)
	default:
		return newFieldError("unsupported field kind: %s", field.Type.Kind)
	}
}

// encodeNested encodes a sub-message into its own buffer and appends it length-delimited
func (me *MessageEncoder) encodeNested(value interface{}, messageType string) error {
	data, ok := value.(map[string]interface{})
	if !ok {
		return newFieldError("message value must be map[string]interface{}, got %T", value)
	}
	if me.encoder.registry == nil {
		return newFieldError("no registry to resolve message type %s", messageType)
	}
	msg, err := me.encoder.registry.GetMessage(messageType)
	if err != nil {
		return err
	}

	nested := NewEncoderWithRegistry(me.encoder.registry)
	if err := NewMessageEncoder(nested).EncodeMessage(data, msg); err != nil {
		return err
	}
	NewBytesEncoder(me.encoder).EncodeBytes(nested.Bytes())
	return nil
}

func (me *MessageEncoder) encodeEnum(value interface{}, enumType string) error {
	ve := NewVarintEncoder(me.encoder)
	if name, ok := value.(string); ok {
		if me.encoder.registry == nil {
			return newFieldError("no registry to resolve enum %s", enumType)
		}
		enum, err := me.encoder.registry.GetEnum(enumType)
		if err != nil {
			return err
		}
		for _, v := range enum.Values {
			if v.Name == name {
				ve.EncodeInt32(v.Number)
				return nil
			}
		}
		return newFieldError("unknown value %q for enum %s", name, enumType)
	}

	n, err := toInt64(value)
	if err != nil {
		return err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return newFieldError("enum value %d overflows int32", n)
	}
	ve.EncodeInt32(int32(n))
	return nil
}

// encodePrimitive encodes a scalar value. Integer inputs of any Go width are
// accepted as long as they fit the declared protobuf type.
func (me *MessageEncoder) encodePrimitive(value interface{}, primitiveType schema.PrimitiveType) error {
	ve := NewVarintEncoder(me.encoder)
	fe := NewFixedEncoder(me.encoder)
	be := NewBytesEncoder(me.encoder)

	switch primitiveType {
	case schema.TypeString:
		switch v := value.(type) {
		case string:
			be.EncodeString(v)
		case []byte:
			be.EncodeBytes(v)
		default:
			return newFieldError("expected string, got %T", value)
		}
		return nil
	case schema.TypeBytes:
		switch v := value.(type) {
		case []byte:
			be.EncodeBytes(v)
		case string:
			be.EncodeString(v)
		default:
			return newFieldError("expected bytes, got %T", value)
		}
		return nil
	case schema.TypeBool:
		v, ok := value.(bool)
		if !ok {
			return newFieldError("expected bool, got %T", value)
		}
		ve.EncodeBool(v)
		return nil
	case schema.TypeFloat, schema.TypeDouble:
		v, err := toFloat64(value)
		if err != nil {
			return err
		}
		if primitiveType == schema.TypeFloat {
			fe.EncodeFloat32(float32(v))
		} else {
			fe.EncodeFloat64(v)
		}
		return nil
	case schema.TypeUint32, schema.TypeUint64, schema.TypeFixed32, schema.TypeFixed64:
		v, err := toUint64(value)
		if err != nil {
			return err
		}
		is32 := primitiveType == schema.TypeUint32 || primitiveType == schema.TypeFixed32
		if is32 && v > math.MaxUint32 {
			return newFieldError("value %d overflows %s", v, primitiveType)
		}
		switch primitiveType {
		case schema.TypeFixed32:
			fe.EncodeFixed32(uint32(v))
		case schema.TypeFixed64:
			fe.EncodeFixed64(v)
		default:
			ve.EncodeVarint(v)
		}
		return nil
	}

	v, err := toInt64(value)
	if err != nil {
		return err
	}
	switch primitiveType {
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return newFieldError("value %d overflows %s", v, primitiveType)
		}
	}
	switch primitiveType {
	case schema.TypeInt32:
		ve.EncodeInt32(int32(v))
	case schema.TypeInt64:
		ve.EncodeInt64(v)
	case schema.TypeSint32:
		ve.EncodeSint32(int32(v))
	case schema.TypeSint64:
		ve.EncodeSint64(v)
	case schema.TypeSfixed32:
		fe.EncodeFixed32(uint32(int32(v)))
	case schema.TypeSfixed64:
		fe.EncodeFixed64(uint64(v))
	default:
		return newFieldError("unsupported primitive type: %s", primitiveType)
	}
	return nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, newFieldError("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, newFieldError("value %d overflows int64", v)
		}
		return int64(v), nil
	default:
		return 0, newFieldError("expected integer, got %T", value)
	}
}

func toUint64(value interface{}) (uint64, error) {
	switch v := value.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	}
	n, err := toInt64(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newFieldError("negative value %d for unsigned field", n)
	}
	return uint64(n), nil
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	n, err := toInt64(value)
	if err != nil {
		return 0, newFieldError("expected number, got %T", value)
	}
	return float64(n), nil
}
