package registry

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gsloc/gsloc/schema"
)

// Registry allows us to store the schema of the protobuf messages. We look this up when we need to parse or marshal a message.
type Registry struct {
	repo     *schema.ProtoRepo
	messages map[string]*schema.Message // fully qualified name -> message
	enums    map[string]*schema.Enum    // fully qualified name -> enum

	// fields whose type names still need resolving once every file is registered
	pending []pendingField
}

func NewRegistry() *Registry {
	return &Registry{
		repo: &schema.ProtoRepo{
			ProtoFiles: make(map[string]*schema.ProtoFile),
		},
		messages: make(map[string]*schema.Message),
		enums:    make(map[string]*schema.Enum),
	}
}

// LoadSchema Given a path it will recursively scan all *proto files inside it and register their definitions
func (r *Registry) LoadSchema(protoPath string) error {
	// Check if the path exists
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	// If it's a single file, process it directly
	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("file %s is not a .proto file", protoPath)
		}
		if err := r.loadSingleProtoFile(protoPath); err != nil {
			return fmt.Errorf("failed to load proto file: %w", err)
		}
	} else {
		// If it's a directory, walk through it recursively
		err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			// Skip directories and non-proto files
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}

			if err := r.loadSingleProtoFile(path); err != nil {
				return fmt.Errorf("failed to load proto file %s: %w", path, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk directory: %w", err)
		}
	}

	return r.buildSymbolTable()
}

// LoadProto parses one .proto source read from src and registers its definitions under name.
func (r *Registry) LoadProto(name string, src io.Reader) error {
	if err := r.parseProto(name, src); err != nil {
		return fmt.Errorf("failed to load proto %s: %w", name, err)
	}
	return r.buildSymbolTable()
}

// loadSingleProtoFile loads and parses a single .proto file
func (r *Registry) loadSingleProtoFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return r.parseProto(filePath, bytes.NewReader(content))
}

// buildSymbolTable resolves every field type name registered since the last call
func (r *Registry) buildSymbolTable() error {
	entities := make(map[string]struct{}, len(r.messages)+len(r.enums))
	for name := range r.messages {
		entities[name] = struct{}{}
	}
	for name := range r.enums {
		entities[name] = struct{}{}
	}

	pending := r.pending
	r.pending = nil
	for _, p := range pending {
		resolved, err := getReferencedType(p.typeName, p.scope, entities)
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", p.scope, p.field.Name, err)
		}
		if _, ok := r.messages[resolved]; ok {
			p.field.Type = schema.FieldType{Kind: schema.KindMessage, MessageType: resolved}
		} else {
			p.field.Type = schema.FieldType{Kind: schema.KindEnum, EnumType: resolved}
		}
	}
	return nil
}

func (r *Registry) getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// GetMessage retrieves a message definition by name
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	if msg, exists := r.messages[name]; exists {
		return msg, nil
	}

	// Try without package prefix
	for fullName, msg := range r.messages {
		if strings.HasSuffix(fullName, "."+name) {
			return msg, nil
		}
	}

	return nil, fmt.Errorf("message not found: %s", name)
}

// GetEnum retrieves an enum definition by name
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	if enum, exists := r.enums[name]; exists {
		return enum, nil
	}

	// Try without package prefix
	for fullName, enum := range r.enums {
		if strings.HasSuffix(fullName, "."+name) {
			return enum, nil
		}
	}

	return nil, fmt.Errorf("enum not found: %s", name)
}

// ListMessages returns all registered message names, sorted
func (r *Registry) ListMessages() []string {
	names := make([]string, 0, len(r.messages))
	for name := range r.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListEnums returns all registered enum names, sorted
func (r *Registry) ListEnums() []string {
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the parsed files keyed by the name they were loaded under.
func (r *Registry) Files() map[string]*schema.ProtoFile {
	return r.repo.ProtoFiles
}
