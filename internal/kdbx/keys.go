package kdbx

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"hash"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

const (
	keySize  = 32
	hmacSize = 64
)

// Keys holds the two secrets derived from a database's master password and
// KDF parameters: the block cipher key and the base HMAC key the block
// stream derives its per-block keys from. Neither is ever serialized to
// the database file itself; the daemon hands them to the client,
// base64-encoded, after unlock, and the client sends them back with every
// later request, so the password is needed only once.
type Keys struct {
	encryption []byte
	hmacBase   []byte
}

// Derive runs the full key-derivation chain for password against header's
// KDF parameters and main seed: composite key, Argon2-derived key, then
// the encryption and HMAC-base keys. No key-file support is implemented,
// matching the original's stance (a noted TODO there, never acted on).
func Derive(password string, header *OuterHeader) (*Keys, error) {
	hashedPassword := sha256.Sum256([]byte(password))
	compositeKeyHash := sha256.Sum256(hashedPassword[:])

	derivedKey, err := header.kdfParameters.deriveKey(compositeKeyHash[:], keySize)
	if err != nil {
		return nil, err
	}

	encHasher := sha256.New()
	encHasher.Write(header.mainSeed)
	encHasher.Write(derivedKey)
	encryption := encHasher.Sum(nil)

	hmacHasher := sha512.New()
	hmacHasher.Write(header.mainSeed)
	hmacHasher.Write(derivedKey)
	hmacHasher.Write([]byte{1})
	hmacBase := hmacHasher.Sum(nil)

	return &Keys{encryption: encryption, hmacBase: hmacBase}, nil
}

// hmacHasher builds the HMAC-SHA256 instance for one block of the HMAC
// block stream: its key is SHA-512 of the little-endian block index
// followed by the base HMAC key.
func (k *Keys) hmacHasher(blockIndex int64) hash.Hash {
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], uint64(blockIndex))

	keyHasher := sha512.New()
	keyHasher.Write(idxBuf[:])
	keyHasher.Write(k.hmacBase)
	key := keyHasher.Sum(nil)

	return hmac.New(sha256.New, key)
}

// ToString base64-encodes both keys for handing to the client, which
// passes them back on later requests instead of the password.
func (k *Keys) ToString() (encryption, hmacBase string) {
	return base64.StdEncoding.EncodeToString(k.encryption),
		base64.StdEncoding.EncodeToString(k.hmacBase)
}

// KeysFromString reverses ToString, validating that both decoded values
// have the exact expected key size; any mismatch is treated the same as
// a wrong password rather than a distinct corruption error, since mangled
// client-supplied keys look identical to stale ones.
func KeysFromString(encryption, hmacBase string) (*Keys, error) {
	encryptionDecoded, err := base64.StdEncoding.DecodeString(encryption)
	if err != nil {
		return nil, kdbxerr.ErrInvalidCredentials
	}
	hmacDecoded, err := base64.StdEncoding.DecodeString(hmacBase)
	if err != nil {
		return nil, kdbxerr.ErrInvalidCredentials
	}
	if len(encryptionDecoded) != keySize || len(hmacDecoded) != hmacSize {
		return nil, kdbxerr.ErrInvalidCredentials
	}
	return &Keys{encryption: encryptionDecoded, hmacBase: hmacDecoded}, nil
}
