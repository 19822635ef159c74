package zipkit

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// bzip2Codec grounds method 12 (bzip2) on github.com/dsnet/compress/bzip2,
// the only actively maintained pure-Go bzip2 encoder in this corpus (the
// standard library's compress/bzip2 is decode-only).
type bzip2Codec struct{}

func (bzip2Codec) Method() uint16 { return Bzip2 }

func (bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return bzip2.NewReader(r, nil)
}

func (bzip2Codec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	var conf *bzip2.WriterConfig
	if level != 0 {
		conf = &bzip2.WriterConfig{Level: level}
	}
	return bzip2.NewWriter(w, conf)
}
