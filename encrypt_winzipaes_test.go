package zipkit

import (
	"bytes"
	"io"
	"testing"
)

func TestWinZipAESEncryptDecryptRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		method EncryptionMethod
	}{
		{"AES128", EncryptionWinZipAES128},
		{"AES192", EncryptionWinZipAES192},
		{"AES256", EncryptionWinZipAES256},
	}
	for _, tc := range cases {
		method := tc.method
		t.Run(tc.name, func(t *testing.T) {
			plain := []byte("some payload that spans more than one AES block, for good measure")
			crc := crc32IEEE(plain)
			password := "correct horse battery staple"

			codec, ok := DefaultEncryptionRegistry().Lookup(method)
			if !ok {
				t.Fatalf("no codec registered for %v", method)
			}

			var cipher bytes.Buffer
			n, err := encryptStream(codec, password, crc, &cipher, bytes.NewReader(plain))
			if err != nil {
				t.Fatalf("encryptStream: %v", err)
			}
			if n != int64(cipher.Len()) {
				t.Fatalf("reported size %d != actual %d", n, cipher.Len())
			}

			lower := NewBufferSource(cipher.Bytes())
			payloadLen := n - int64(winZipAESCodec{method: method}.saltLen()) - winZipAESVerifierLen - winZipAESMACLen
			dec := newDecryptSource(lower, method, password, crc, payloadLen, DefaultEncryptionRegistry())
			if err := dec.Open(); err != nil {
				t.Fatalf("decryptSource.Open: %v", err)
			}
			got, err := io.ReadAll(dec)
			if err != nil {
				t.Fatalf("reading decrypted stream: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Fatalf("round trip mismatch: got %q, want %q", got, plain)
			}
		})
	}
}

func TestWinZipAESWrongPasswordFailsAtVerifier(t *testing.T) {
	plain := []byte("secret")
	crc := crc32IEEE(plain)

	codec, _ := DefaultEncryptionRegistry().Lookup(EncryptionWinZipAES256)
	var cipher bytes.Buffer
	n, err := encryptStream(codec, "right-password", crc, &cipher, bytes.NewReader(plain))
	if err != nil {
		t.Fatalf("encryptStream: %v", err)
	}

	lower := NewBufferSource(cipher.Bytes())
	dec := newDecryptSource(lower, EncryptionWinZipAES256, "wrong-password", crc, n, DefaultEncryptionRegistry())
	err = dec.Open()
	if err == nil {
		t.Fatalf("expected a wrong-password error at the verifier check")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != ErrKindWrongPassword {
		t.Fatalf("err = %v; want ErrKindWrongPassword", err)
	}
}

func TestWinZipAESTamperedTrailerFailsMACCheck(t *testing.T) {
	plain := []byte("authenticate me please")
	crc := crc32IEEE(plain)
	password := "hunter2"

	codec, _ := DefaultEncryptionRegistry().Lookup(EncryptionWinZipAES256)
	var cipher bytes.Buffer
	n, err := encryptStream(codec, password, crc, &cipher, bytes.NewReader(plain))
	if err != nil {
		t.Fatalf("encryptStream: %v", err)
	}
	tampered := append([]byte(nil), cipher.Bytes()...)
	tampered[len(tampered)-1] ^= 0xFF

	lower := NewBufferSource(tampered)
	payloadLen := n - int64(winZipAESCodec{method: EncryptionWinZipAES256}.saltLen()) - winZipAESVerifierLen - winZipAESMACLen
	dec := newDecryptSource(lower, EncryptionWinZipAES256, password, crc, payloadLen, DefaultEncryptionRegistry())
	if err := dec.Open(); err != nil {
		t.Fatalf("decryptSource.Open: %v", err)
	}
	_, err = io.ReadAll(dec)
	if err == nil {
		t.Fatalf("expected a MAC verification failure")
	}
}
