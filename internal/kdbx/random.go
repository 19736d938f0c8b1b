package kdbx

import (
	"crypto/rand"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// cryptoRandReader is the randReader backed by crypto/rand, used by every
// caller outside of tests.
type cryptoRandReader struct{}

// CryptoRand is the default randReader for new databases and key material.
var CryptoRand randReader = cryptoRandReader{}

// RandomBytes returns size cryptographically random bytes from CryptoRand,
// exported so package kdbxdb can generate entry/group UUIDs through the
// same random source the binary codec uses for keys, salts and IVs, rather
// than calling crypto/rand directly a second time.
func RandomBytes(size int) ([]byte, error) {
	return CryptoRand.random(size)
}

func (cryptoRandReader) random(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeRandomNumberGeneratorFailed, err)
	}
	return buf, nil
}
