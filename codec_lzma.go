package zipkit

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaCodec grounds method 14 (LZMA) on github.com/ulikunitz/xz/lzma, the
// corpus's LZMA implementation (also used for method 95 generic XZ
// elsewhere in the examples).
type lzmaCodec struct{}

func (lzmaCodec) Method() uint16 { return LZMA }

func (lzmaCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(lr), nil
}

func (lzmaCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	cfg := lzma.WriterConfig{}
	if level != 0 {
		cfg.DictCap = 1 << uint(16+level)
	}
	lw, err := cfg.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return lw, nil
}
