package zipkit

import (
	"io"
	"sync"
)

// Codec is the compression algorithm plugin surface (spec.md section 4.4's
// "algorithm registry keyed by method number"). Concrete codecs wrap a
// third-party compressor/decompressor; zipkit itself never implements a
// compression algorithm, only the registry and the pipeline stage that
// drives whatever Codec a given entry's Method selects.
type Codec interface {
	Method() uint16

	// NewReader wraps r (raw compressed bytes) to yield decompressed
	// output.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// NewWriter wraps w to accept uncompressed bytes and emit compressed
	// output on w; level is the codec's own level scale (ignored by
	// codecs, like Store, that have none).
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
}

// Registry maps a compression method number to the Codec that handles it.
// The zero value is not ready to use; call NewRegistry or DefaultRegistry.
type Registry struct {
	mu     sync.RWMutex
	codecs map[uint16]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[uint16]Codec)}
}

// Register installs c, replacing any codec previously registered for the
// same method. This is how a caller overrides a default (e.g. swaps in a
// different Deflate implementation) or adds support for a method this
// library doesn't ship a codec for (e.g. PPMd, for which no suitable
// Go library was found anywhere in this corpus — see DESIGN.md).
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Method()] = c
}

// Lookup returns the codec registered for method, or (nil, false).
func (r *Registry) Lookup(method uint16) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[method]
	return c, ok
}

var defaultRegistry *Registry
var defaultRegistryOnce sync.Once

// DefaultRegistry returns the process-wide registry pre-populated with the
// Store/Deflate/Bzip2/LZMA/Zstd codecs this library ships. Open installs
// this registry on every Archive; callers change the codecs an Archive uses
// by calling Register on it.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.Register(storeCodec{})
		defaultRegistry.Register(deflateCodec{})
		defaultRegistry.Register(bzip2Codec{})
		defaultRegistry.Register(lzmaCodec{})
		defaultRegistry.Register(zstdCodec{})
	})
	return defaultRegistry
}
