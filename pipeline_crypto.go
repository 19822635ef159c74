package zipkit

import "io"

// decryptSource is the read-side layered Source that turns an entry's raw
// ciphertext (a WindowSource over the archive's backing Source, sized to
// include any header/salt/MAC framing the method adds) into plaintext, per
// spec.md section 4.12. EncryptionNone is a pass-through: no codec is
// consulted at all.
type decryptSource struct {
	layeredSource

	method     EncryptionMethod
	codec      EncryptionCodec
	password   string
	crc        uint32
	payloadLen int64

	dec io.Reader
	aes *winZipAESReader
}

// payloadLen is the ciphertext payload length the codec should read
// before expecting any trailer (WinZip-AES's 10-byte MAC); it excludes
// the salt/verifier framing the codec itself consumes up front.
func newDecryptSource(lower Source, method EncryptionMethod, password string, crc uint32, payloadLen int64, registry *EncryptionRegistry) *decryptSource {
	d := &decryptSource{method: method, password: password, crc: crc, payloadLen: payloadLen}
	d.lower = lower
	if method != EncryptionNone {
		d.codec, _ = registry.Lookup(method)
	}
	return d
}

func (d *decryptSource) Supports() CommandSet {
	return d.supportsFrom(SupportsRead)
}

func (d *decryptSource) Open() error {
	if err := d.checkInvalid(); err != nil {
		return err
	}
	if err := d.lower.Open(); err != nil {
		return err
	}
	if d.method == EncryptionNone {
		return nil
	}
	if d.codec == nil {
		return d.setErr(newError(ErrKindUnsupportedEncryption))
	}
	if d.password == "" {
		return d.setErr(newError(ErrKindNoPassword))
	}
	r, err := d.codec.NewReader(d.lower, d.password, d.crc, d.payloadLen)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return d.setErr(e)
		}
		return d.setErr(wrapError(ErrKindWrongPassword, err))
	}
	d.dec = r
	if wr, ok := r.(*winZipAESReader); ok {
		d.aes = wr
	}
	return nil
}

func (d *decryptSource) Read(p []byte) (int, error) {
	if d.method == EncryptionNone {
		return d.lower.Read(p)
	}
	if d.dec == nil {
		return 0, d.setErr(newError(ErrKindUnsupportedEncryption))
	}
	n, err := d.dec.Read(p)
	if err == io.EOF && d.aes != nil {
		trailer := make([]byte, winZipAESMACLen)
		if _, terr := io.ReadFull(d.lower, trailer); terr != nil {
			return n, d.setErr(wrapError(ErrKindPrematureEOF, terr))
		}
		if verr := d.aes.VerifyTrailer(trailer); verr != nil {
			return n, d.setErr(verr.(*Error))
		}
	}
	return n, err
}

// encryptStream drives codec over src, writing ciphertext (including any
// header/salt/trailer framing) to dst, returning the count of ciphertext
// bytes written (the entry's on-disk compressed-field size once encryption
// sits innermost in the pipeline).
func encryptStream(codec EncryptionCodec, password string, crc uint32, dst io.Writer, src io.Reader) (int64, error) {
	counter := &countWriter{w: dst}
	wc, err := codec.NewWriter(counter, password, crc)
	if err != nil {
		return 0, wrapError(ErrKindUnsupportedEncryption, err)
	}
	if _, err := io.Copy(wc, src); err != nil {
		wc.Close()
		return 0, wrapError(ErrKindWrite, err)
	}
	if err := wc.Close(); err != nil {
		return 0, wrapError(ErrKindWrite, err)
	}
	return counter.count, nil
}
