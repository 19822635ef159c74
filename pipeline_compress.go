package zipkit

import (
	"io"
)

// compressBufferSize is the chunk size used when streaming data through a
// Codec on the write path (spec.md section 4.4's "8kB input buffer").
const compressBufferSize = 8 * 1024

// decompressSource is the read-side layered Source that turns an entry's
// raw compressed bytes (typically a WindowSource over the archive's
// backing Source) into decompressed output, per spec.md section 4.4 and
// 4.10. Method Store is a fast path: no Codec is invoked at all, the lower
// source's bytes pass straight through.
type decompressSource struct {
	layeredSource

	method uint16
	codec  Codec
	dec    io.ReadCloser
}

// newDecompressSource looks method up in registry and wraps lower. An
// unregistered method (e.g. PPMd, for which this library ships no codec)
// reports ErrKindUnsupportedMethod as soon as Open is called, not at
// construction, matching how other Source failures surface.
func newDecompressSource(lower Source, method uint16, registry *Registry) *decompressSource {
	d := &decompressSource{method: method}
	d.lower = lower
	if method != Store {
		d.codec, _ = registry.Lookup(method)
	}
	return d
}

func (d *decompressSource) Supports() CommandSet {
	own := SupportsRead
	if d.method == Store {
		own |= SupportsSeek
	}
	return d.supportsFrom(own)
}

func (d *decompressSource) Open() error {
	if err := d.checkInvalid(); err != nil {
		return err
	}
	if err := d.lower.Open(); err != nil {
		return err
	}
	if d.method == Store {
		return nil
	}
	if d.codec == nil {
		return d.setErr(newError(ErrKindUnsupportedMethod))
	}
	rc, err := d.codec.NewReader(d.lower)
	if err != nil {
		return d.setErr(wrapError(ErrKindUnsupportedMethod, err))
	}
	d.dec = rc
	return nil
}

func (d *decompressSource) Close() error {
	if d.dec != nil {
		d.dec.Close()
		d.dec = nil
	}
	return d.lower.Close()
}

func (d *decompressSource) Read(p []byte) (int, error) {
	if d.method == Store {
		return d.lower.Read(p)
	}
	if d.dec == nil {
		return 0, d.setErr(newError(ErrKindUnsupportedMethod))
	}
	n, err := d.dec.Read(p)
	if err != nil && err != io.EOF {
		return n, d.setErr(wrapError(ErrKindRead, err))
	}
	return n, err
}

func (d *decompressSource) Seek(offset int64, whence int) (int64, error) {
	if d.method != Store {
		return 0, d.unsupported()
	}
	return d.lower.Seek(offset, whence)
}

// compressStream drives codec over src in compressBufferSize chunks,
// writing compressed output to dst and returning the CRC32 and both size
// counters the central directory needs, per spec.md section 4.4. Method
// Store bypasses the codec entirely and copies src to dst unchanged while
// still accumulating the checksum, which is how the commit path computes
// CRC32 for uncompressed entries without a second pass.
func compressStream(codec Codec, level int, dst io.Writer, src io.Reader) (crc32 uint32, uncompressedSize, compressedSize int64, err error) {
	h := newCRC32()
	counter := &countWriter{w: dst}

	var out io.Writer = counter
	var wc io.WriteCloser
	if codec.Method() != Store {
		wc, err = codec.NewWriter(counter, level)
		if err != nil {
			return 0, 0, 0, wrapError(ErrKindUnsupportedMethod, err)
		}
		out = wc
	}

	buf := make([]byte, compressBufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			uncompressedSize += int64(n)
			if _, werr := out.Write(buf[:n]); werr != nil {
				if wc != nil {
					wc.Close()
				}
				return 0, 0, 0, wrapError(ErrKindWrite, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if wc != nil {
				wc.Close()
			}
			return 0, 0, 0, wrapError(ErrKindRead, rerr)
		}
	}
	if wc != nil {
		if err := wc.Close(); err != nil {
			return 0, 0, 0, wrapError(ErrKindWrite, err)
		}
	}
	return h.Sum32(), uncompressedSize, counter.count, nil
}
