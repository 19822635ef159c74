package zipkit

import (
	"os"
	"testing"
)

func TestDirentModeRoundTripRegularFile(t *testing.T) {
	d := &Dirent{}
	d.SetMode(0644)
	got := d.Mode()
	if got&0777 != 0644 {
		t.Fatalf("permission bits = %o; want 644", got&0777)
	}
	if got.IsDir() {
		t.Fatalf("a regular file should not report IsDir")
	}
}

func TestDirentModeRoundTripDirectory(t *testing.T) {
	d := &Dirent{}
	d.name = newZipStringUTF8("some/dir/", false)
	d.SetMode(os.ModeDir | 0755)
	got := d.Mode()
	if !got.IsDir() {
		t.Fatalf("expected IsDir to be true for a directory entry")
	}
	if got&0777 != 0755 {
		t.Fatalf("permission bits = %o; want 755", got&0777)
	}
}

func TestDirentSetModeMarksCreatorUnix(t *testing.T) {
	d := &Dirent{}
	d.SetMode(0600)
	if d.CreatorVersion>>8 != creatorUnix {
		t.Fatalf("creator OS = %d; want creatorUnix", d.CreatorVersion>>8)
	}
	if d.changed&changedExternalAttrs == 0 {
		t.Fatalf("SetMode should mark changedExternalAttrs")
	}
}

func TestDirentSetModeReadOnlyMarksMsdosReadOnlyBit(t *testing.T) {
	d := &Dirent{}
	d.SetMode(0444)
	if d.ExternalAttrs&msdosReadOnly == 0 {
		t.Fatalf("a mode with no write bits should set the msdos read-only attribute")
	}
}

func TestDirentVersionNeededByMethodAndEncryption(t *testing.T) {
	tests := []struct {
		name string
		d    Dirent
		want uint16
	}{
		{"store-plain", Dirent{Method: Store}, zipVersion10},
		{"deflate", Dirent{Method: Deflate}, zipVersion20},
		{"bzip2", Dirent{Method: Bzip2}, zipVersion46},
		{"lzma", Dirent{Method: LZMA}, zipVersion63},
		{"winzip-aes", Dirent{Method: Store, Encryption: EncryptionWinZipAES256}, zipVersion51},
		{"traditional-encryption", Dirent{Method: Store, Encryption: EncryptionTraditional}, zipVersion20},
		{"zip64-sizes", Dirent{Method: Store, CompressedSize64: uint32max + 1}, zipVersion45},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.d.versionNeeded(false)
			if got != tc.want {
				t.Fatalf("versionNeeded() = %d; want %d", got, tc.want)
			}
		})
	}
}

func TestDirentVersionNeededForceZip64(t *testing.T) {
	d := Dirent{Method: Store}
	if got := d.versionNeeded(true); got != zipVersion45 {
		t.Fatalf("versionNeeded(forceZip64=true) = %d; want %d", got, zipVersion45)
	}
}

func TestDirentVersionNeededNeverBelowReaderVersion(t *testing.T) {
	d := Dirent{Method: Store, ReaderVersion: zipVersion63}
	if got := d.versionNeeded(false); got != zipVersion63 {
		t.Fatalf("versionNeeded() = %d; want %d (should not go below ReaderVersion)", got, zipVersion63)
	}
}
