package zipkit

import (
	"bytes"
	"io"
	"testing"
)

func TestTraditionalEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("a secret message, not very long, but enough to span a buffer")
	crc := crc32IEEE(plain)
	password := "hunter2"

	codec, ok := DefaultEncryptionRegistry().Lookup(EncryptionTraditional)
	if !ok {
		t.Fatalf("no codec registered for EncryptionTraditional")
	}

	var cipher bytes.Buffer
	compSize, err := encryptStream(codec, password, crc, &cipher, bytes.NewReader(plain))
	if err != nil {
		t.Fatalf("encryptStream: %v", err)
	}
	if compSize != int64(cipher.Len()) {
		t.Fatalf("reported size %d != actual %d", compSize, cipher.Len())
	}
	if compSize != int64(len(plain))+traditionalHeaderLen {
		t.Fatalf("compSize = %d; want plaintext + %d-byte header", compSize, traditionalHeaderLen)
	}

	lower := NewBufferSource(cipher.Bytes())
	dec := newDecryptSource(lower, EncryptionTraditional, password, crc, compSize, DefaultEncryptionRegistry())
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
}

func TestTraditionalDecryptWrongPasswordFails(t *testing.T) {
	plain := []byte("top secret")
	crc := crc32IEEE(plain)

	codec, _ := DefaultEncryptionRegistry().Lookup(EncryptionTraditional)
	var cipher bytes.Buffer
	if _, err := encryptStream(codec, "correct-horse", crc, &cipher, bytes.NewReader(plain)); err != nil {
		t.Fatalf("encryptStream: %v", err)
	}

	lower := NewBufferSource(cipher.Bytes())
	dec := newDecryptSource(lower, EncryptionTraditional, "wrong-password", crc, int64(cipher.Len()), DefaultEncryptionRegistry())
	if err := dec.Open(); err == nil {
		t.Fatalf("expected a wrong-password error, got nil")
	}
}

func TestDecryptSourceNoPasswordFails(t *testing.T) {
	lower := NewBufferSource([]byte{})
	dec := newDecryptSource(lower, EncryptionTraditional, "", 0, 0, DefaultEncryptionRegistry())
	err := dec.Open()
	if err == nil {
		t.Fatalf("expected ErrKindNoPassword, got nil")
	}
	if zerr, ok := err.(*Error); !ok || zerr.Kind != ErrKindNoPassword {
		t.Fatalf("err = %v; want ErrKindNoPassword", err)
	}
}
