package zipkit

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec grounds method 93 (Zstandard, an unofficial but widely
// produced ZIP method) on github.com/klauspost/compress/zstd.
type zstdCodec struct{}

func (zstdCodec) Method() uint16 { return Zstd }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (zstdCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	opts := []zstd.EOption{}
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	return zstd.NewWriter(w, opts...)
}
