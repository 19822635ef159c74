package zipkit

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxTempNameAttempts = 1024

// tempFileName derives a randomized temporary file name alongside dest
// (same directory, so the final rename is same-filesystem and therefore
// atomic), trying up to maxTempNameAttempts times to avoid a collision, per
// spec.md section 5. Each candidate's random suffix is a 6-character slug
// carved out of a v4 UUID, grounded on github.com/google/uuid rather than a
// hand-rolled 36-alphabet generator.
func tempFileName(dest string, exists func(string) bool) (string, error) {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	for i := 0; i < maxTempNameAttempts; i++ {
		candidate := filepath.Join(dir, base+"."+randomSlug()+".tmp")
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", newError(ErrKindTempOpen)
}

func randomSlug() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return hex[:6]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
