package zipkit

import (
	"io"
	"sync"
)

// EncryptionCodec is the encryption algorithm plugin surface, the
// ciphertext-side counterpart to Codec (spec.md section 4.12: "encryption
// is modeled the same way as compression, a registry keyed by method").
type EncryptionCodec interface {
	Method() EncryptionMethod

	// NewReader wraps r (raw ciphertext, including any header/salt/trailer
	// the method prepends or appends) to yield plaintext. crc is the
	// entry's expected CRC32, which traditional PKWARE encryption needs
	// for its one-byte header check.
	NewReader(r io.Reader, password string, crc uint32, size int64) (io.Reader, error)

	// NewWriter wraps w to accept plaintext and emit ciphertext (plus any
	// header/trailer) on w.
	NewWriter(w io.Writer, password string, crc uint32) (io.WriteCloser, error)
}

// EncryptionRegistry maps an EncryptionMethod to the EncryptionCodec that
// implements it.
type EncryptionRegistry struct {
	mu     sync.RWMutex
	codecs map[EncryptionMethod]EncryptionCodec
}

func NewEncryptionRegistry() *EncryptionRegistry {
	return &EncryptionRegistry{codecs: make(map[EncryptionMethod]EncryptionCodec)}
}

func (r *EncryptionRegistry) Register(c EncryptionCodec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Method()] = c
}

func (r *EncryptionRegistry) Lookup(method EncryptionMethod) (EncryptionCodec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[method]
	return c, ok
}

var defaultEncryptionRegistry *EncryptionRegistry
var defaultEncryptionRegistryOnce sync.Once

// DefaultEncryptionRegistry returns the process-wide registry pre-populated
// with the traditional-PKWARE and WinZip-AES codecs this library ships.
func DefaultEncryptionRegistry() *EncryptionRegistry {
	defaultEncryptionRegistryOnce.Do(func() {
		defaultEncryptionRegistry = NewEncryptionRegistry()
		defaultEncryptionRegistry.Register(traditionalCodec{})
		defaultEncryptionRegistry.Register(winZipAESCodec{EncryptionWinZipAES128})
		defaultEncryptionRegistry.Register(winZipAESCodec{EncryptionWinZipAES192})
		defaultEncryptionRegistry.Register(winZipAESCodec{EncryptionWinZipAES256})
	})
	return defaultEncryptionRegistry
}
