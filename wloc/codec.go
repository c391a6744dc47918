package wloc

import (
	"fmt"
	"reflect"

	"github.com/gsloc/gsloc/registry"
	"github.com/gsloc/gsloc/wire"
)

// Codec binds Go structs to protobuf messages of a registry without generated
// code. Struct fields are matched to message fields through the `protobuf`
// tag; the message type of the top level value is its Go type name.
type Codec struct {
	registry *registry.Registry
}

// NewCodec creates a codec over the message definitions held by reg.
func NewCodec(reg *registry.Registry) *Codec {
	return &Codec{registry: reg}
}

// Marshal encodes the struct pointed to by v.
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("marshal source must be a pointer to struct, got %T", v)
	}

	msg, err := c.registry.GetMessage(rv.Elem().Type().Name())
	if err != nil {
		return nil, err
	}
	return wire.EncodeMessage(structToMap(rv.Elem()), msg, c.registry)
}

// Unmarshal decodes protobuf bytes into the struct pointed to by v.
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct, got %T", v)
	}

	msg, err := c.registry.GetMessage(rv.Elem().Type().Name())
	if err != nil {
		return err
	}
	result, err := wire.DecodeMessage(data, msg, c.registry)
	if err != nil {
		return err
	}
	return mapToStruct(result, rv.Elem())
}

// structToMap converts a struct into the field map the wire encoder consumes.
// Nil pointers and nil slices are left out.
func structToMap(rv reflect.Value) map[string]interface{} {
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		name, ok := rt.Field(i).Tag.Lookup("protobuf")
		if !ok {
			continue
		}
		if value, present := toWireValue(rv.Field(i)); present {
			out[name] = value
		}
	}
	return out
}

func toWireValue(fv reflect.Value) (interface{}, bool) {
	switch fv.Kind() {
	case reflect.Ptr:
		if fv.IsNil() {
			return nil, false
		}
		return toWireValue(fv.Elem())
	case reflect.Struct:
		return structToMap(fv), true
	case reflect.Slice:
		if fv.IsNil() {
			return nil, false
		}
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			return fv.Bytes(), true
		}
		items := make([]interface{}, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			if item, ok := toWireValue(fv.Index(i)); ok {
				items = append(items, item)
			}
		}
		return items, true
	default:
		return fv.Interface(), true
	}
}

// mapToStruct maps parsed result to struct fields
func mapToStruct(data map[string]interface{}, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		name, ok := field.Tag.Lookup("protobuf")
		if !ok || !fieldValue.CanSet() {
			continue
		}

		if value, ok := data[name]; ok {
			if err := setFieldValue(fieldValue, value); err != nil {
				return fmt.Errorf("failed to set field %s: %w", field.Name, err)
			}
		}
	}
	return nil
}

// setFieldValue sets a struct field with type conversion
func setFieldValue(fieldValue reflect.Value, value interface{}) error {
	if value == nil {
		return nil
	}

	switch fieldValue.Kind() {
	case reflect.Ptr:
		if fieldValue.IsNil() {
			fieldValue.Set(reflect.New(fieldValue.Type().Elem()))
		}
		return setFieldValue(fieldValue.Elem(), value)
	case reflect.Struct:
		nested, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
		}
		return mapToStruct(nested, fieldValue)
	case reflect.Slice:
		items, ok := value.([]interface{})
		if !ok {
			break
		}
		slice := reflect.MakeSlice(fieldValue.Type(), len(items), len(items))
		for i, item := range items {
			if err := setFieldValue(slice.Index(i), item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		fieldValue.Set(slice)
		return nil
	}

	sourceValue := reflect.ValueOf(value)
	if (sourceValue.Kind() == reflect.String) != (fieldValue.Kind() == reflect.String) {
		return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
	}
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	if sourceValue.Type().ConvertibleTo(fieldValue.Type()) && !overflows(sourceValue, fieldValue) {
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
}

// overflows reports whether an integer source does not fit the target kind
func overflows(src, dst reflect.Value) bool {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return dst.OverflowInt(src.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return src.Int() < 0 || dst.OverflowUint(uint64(src.Int()))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return src.Uint() > 1<<63-1 || dst.OverflowInt(int64(src.Uint()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return dst.OverflowUint(src.Uint())
		}
	}
	return false
}
