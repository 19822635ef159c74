package zipkit

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateCodec grounds method 8 (DEFLATE) on klauspost/compress/flate
// rather than the standard library's compress/flate: it is a drop-in
// faster reimplementation and is the Deflate implementation the wider
// example corpus reaches for.
type deflateCodec struct{}

func (deflateCodec) Method() uint16 { return Deflate }

func (deflateCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

func (deflateCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(w, level)
}
