package kdbx

import (
	"testing"

	"github.com/alecthomas/assert"
)

func TestDerive(t *testing.T) {

	header, err := newOuterHeader(&kdfParameters{
		algorithm:   argonID,
		version:     argonVersion13,
		salt:        make([]byte, 16),
		parallelism: 1,
		memory:      1024,
		iterations:  2,
	}, CryptoRand)
	assert.NoError(t, err)

	keys, err := Derive("correct horse battery staple", header)
	assert.NoError(t, err)
	assert.Equal(t, keySize, len(keys.encryption))
	assert.Equal(t, hmacSize, len(keys.hmacBase))

	again, err := Derive("correct horse battery staple", header)
	assert.NoError(t, err)
	assert.Equal(t, keys.encryption, again.encryption)
	assert.Equal(t, keys.hmacBase, again.hmacBase)

	wrong, err := Derive("wrong password", header)
	assert.NoError(t, err)
	assert.NotEqual(t, keys.encryption, wrong.encryption)
}

func TestKeysToFromString(t *testing.T) {

	keys := testKeys()
	encryption, hmacBase := keys.ToString()

	decoded, err := KeysFromString(encryption, hmacBase)
	assert.NoError(t, err)
	assert.Equal(t, keys.encryption, decoded.encryption)
	assert.Equal(t, keys.hmacBase, decoded.hmacBase)
}

func TestKeysFromStringInvalid(t *testing.T) {

	_, err := KeysFromString("not-base64!!", "not-base64!!")
	assert.Error(t, err)

	_, err = KeysFromString("YQ==", "YQ==")
	assert.Error(t, err)
}
