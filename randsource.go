package zipkit

import "crypto/rand"

// cryptoRandReader is the source of randomness for encryption headers and
// salts (traditional PKWARE's 12-byte header, WinZip-AES's salt). A package
// variable rather than a bare crypto/rand.Reader reference so tests can
// substitute a deterministic reader to get reproducible fixtures.
var cryptoRandReader = rand.Reader
