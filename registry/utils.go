package registry

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/gsloc/gsloc/schema"
)

// pendingField is a field whose declared type is not a scalar and has to be
// resolved against the symbol table.
type pendingField struct {
	field    *schema.Field
	typeName string
	scope    string // fully qualified name of the enclosing message
}

// parseProto runs go-protoparser over src and registers the messages and enums it declares
func (r *Registry) parseProto(name string, src io.Reader) error {
	parsed, err := protoparser.Parse(src, protoparser.WithFilename(name))
	if err != nil {
		return err
	}

	protoFile := &schema.ProtoFile{
		Name:     name,
		Syntax:   "proto2", // a file without a syntax statement is proto2
		Messages: []*schema.Message{},
		Enums:    []*schema.Enum{},
	}
	if parsed.Syntax != nil && parsed.Syntax.ProtobufVersion != "" {
		protoFile.Syntax = parsed.Syntax.ProtobufVersion
	}

	// package must be known before names are built
	for _, body := range parsed.ProtoBody {
		if p, ok := body.(*protoparserparser.Package); ok {
			protoFile.Package = p.Name
		}
	}

	for _, body := range parsed.ProtoBody {
		switch b := body.(type) {
		case *protoparserparser.Message:
			msg, err := r.convertMessage(b, protoFile.Package, "")
			if err != nil {
				return err
			}
			protoFile.Messages = append(protoFile.Messages, msg)
		case *protoparserparser.Enum:
			enum, err := r.convertEnum(b, r.getFullName(protoFile.Package, b.EnumName))
			if err != nil {
				return err
			}
			protoFile.Enums = append(protoFile.Enums, enum)
		}
	}

	r.repo.ProtoFiles[name] = protoFile
	return nil
}

// convertMessage converts a parsed message and everything nested in it, registering each under its full name
func (r *Registry) convertMessage(m *protoparserparser.Message, pkg, parent string) (*schema.Message, error) {
	localName := m.MessageName
	if parent != "" {
		localName = parent + "." + m.MessageName
	}
	fullName := r.getFullName(pkg, localName)
	if _, exists := r.messages[fullName]; exists {
		return nil, fmt.Errorf("duplicate message definition: %s", fullName)
	}

	msg := &schema.Message{
		Name:        m.MessageName,
		FullName:    fullName,
		Fields:      []*schema.Field{},
		NestedTypes: []*schema.Message{},
		NestedEnums: []*schema.Enum{},
	}
	r.messages[fullName] = msg

	for _, body := range m.MessageBody {
		switch b := body.(type) {
		case *protoparserparser.Field:
			field, err := r.convertField(b, fullName)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", fullName, err)
			}
			if existing := msg.FieldByNumber(field.Number); existing != nil {
				return nil, fmt.Errorf("message %s: field number %d used by %s and %s", fullName, field.Number, existing.Name, field.Name)
			}
			msg.Fields = append(msg.Fields, field)
		case *protoparserparser.Message:
			nested, err := r.convertMessage(b, pkg, localName)
			if err != nil {
				return nil, err
			}
			msg.NestedTypes = append(msg.NestedTypes, nested)
		case *protoparserparser.Enum:
			enum, err := r.convertEnum(b, fullName+"."+b.EnumName)
			if err != nil {
				return nil, err
			}
			msg.NestedEnums = append(msg.NestedEnums, enum)
		}
	}
	return msg, nil
}

func (r *Registry) convertField(f *protoparserparser.Field, scope string) (*schema.Field, error) {
	number, err := strconv.ParseInt(f.FieldNumber, 0, 32)
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("invalid field number %q for %s", f.FieldNumber, f.FieldName)
	}

	field := &schema.Field{
		Name:   f.FieldName,
		Number: int32(number),
		Label:  schema.LabelOptional,
	}
	switch {
	case f.IsRepeated:
		field.Label = schema.LabelRepeated
	case f.IsRequired:
		field.Label = schema.LabelRequired
	}

	if prim, ok := schema.LookupPrimitive(f.Type); ok {
		field.Type = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim}
		return field, nil
	}

	r.pending = append(r.pending, pendingField{field: field, typeName: f.Type, scope: scope})
	return field, nil
}

func (r *Registry) convertEnum(e *protoparserparser.Enum, fullName string) (*schema.Enum, error) {
	if _, exists := r.enums[fullName]; exists {
		return nil, fmt.Errorf("duplicate enum definition: %s", fullName)
	}
	enum := &schema.Enum{Name: e.EnumName, Values: []*schema.EnumValue{}}
	for _, body := range e.EnumBody {
		ef, ok := body.(*protoparserparser.EnumField)
		if !ok {
			continue
		}
		number, err := strconv.ParseInt(ef.Number, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("enum %s: invalid value %q for %s", fullName, ef.Number, ef.Ident)
		}
		enum.Values = append(enum.Values, &schema.EnumValue{Name: ef.Ident, Number: int32(number)})
	}
	r.enums[fullName] = enum
	return enum, nil
}

/*
This helper function will return the entity for any referenced type ,
Be it top/file,nested or imported entities.If not found will return an error
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	// top level entity, or one referenced via its package name
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, bool) {
	prefixSplit := strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		entityName := strings.Join(prefixSplit, ".") + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]struct{}) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve fully qualified (.) type name: %s", typeName)
}
