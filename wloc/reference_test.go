package wloc

import (
	"context"
	"sync"
	"testing"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	referenceOnce  sync.Once
	referenceFile  protoreflect.FileDescriptor
	referenceError error
)

// referenceDescriptors compiles the embedded contract with protocompile so
// tests can check our bytes against the official protobuf runtime.
func referenceDescriptors(tb testing.TB) protoreflect.FileDescriptor {
	tb.Helper()
	referenceOnce.Do(func() {
		compiler := protocompile.Compiler{
			Resolver: &protocompile.SourceResolver{
				Accessor: protocompile.SourceAccessorFromMap(map[string]string{
					"location.proto": string(LocationProto()),
				}),
			},
		}
		files, err := compiler.Compile(context.Background(), "location.proto")
		if err != nil {
			referenceError = err
			return
		}
		referenceFile = files[0]
	})
	if referenceError != nil {
		tb.Fatalf("Failed to compile location.proto: %v", referenceError)
	}
	return referenceFile
}

func referenceMessage(tb testing.TB, name ...protoreflect.Name) protoreflect.MessageDescriptor {
	tb.Helper()
	md := referenceDescriptors(tb).Messages().ByName(name[0])
	for _, nested := range name[1:] {
		md = md.Messages().ByName(nested)
	}
	if md == nil {
		tb.Fatalf("message %v not found in compiled contract", name)
	}
	return md
}
