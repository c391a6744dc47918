package wloc

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/gsloc/gsloc/registry"
)

//go:embed location.proto
var locationProto []byte

// LocationProto returns the .proto source of the service contract.
func LocationProto() []byte {
	return bytes.Clone(locationProto)
}

var (
	defaultOnce  sync.Once
	defaultCodec *Codec
	defaultErr   error
)

// DefaultCodec returns the codec for the embedded location.proto contract,
// loading it on first use.
func DefaultCodec() (*Codec, error) {
	defaultOnce.Do(func() {
		reg := registry.NewRegistry()
		if err := reg.LoadProto("location.proto", bytes.NewReader(locationProto)); err != nil {
			defaultErr = err
			return
		}
		defaultCodec = NewCodec(reg)
	})
	return defaultCodec, defaultErr
}
