package kdbx

import (
	"bytes"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestKdfParametersVariantListRoundTrip(t *testing.T) {

	params := &kdfParameters{
		algorithm:   argonID,
		version:     argonVersion13,
		salt:        bytes.Repeat([]byte{0x07}, kdfSaltSize),
		parallelism: 4,
		memory:      65536,
		iterations:  3,
	}

	decoded, err := kdfParametersFromVariantList(params.toVariantList())
	assert.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestKdfParametersVariantListAesKdfRejected(t *testing.T) {

	list := newVariantList()
	list.add("$UUID", variantValueBytes(uuidAESKDF[:]))

	_, err := kdfParametersFromVariantList(list)
	assert.Error(t, err)
}

func TestKdfParametersCompactRoundTrip(t *testing.T) {

	params := &kdfParameters{
		algorithm:   argonD,
		version:     argonVersion13,
		salt:        bytes.Repeat([]byte{0x09}, kdfSaltSize),
		parallelism: 2,
		memory:      1 << 20,
		iterations:  10,
	}

	var buf bytes.Buffer
	assert.NoError(t, params.serializeCompact(&buf))

	decoded, err := deserializeKdfParametersCompact(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestGenerateKdfParameters(t *testing.T) {

	params, err := generateKdfParameters(1024, 1, 10*time.Millisecond, CryptoRand)
	assert.NoError(t, err)
	assert.Equal(t, argonD, params.algorithm)
	assert.Equal(t, argonVersion13, params.version)
	assert.Equal(t, kdfSaltSize, len(params.salt))
	assert.Equal(t, true, params.iterations >= 1)
}

func TestKdfParametersResetSalt(t *testing.T) {

	params := &kdfParameters{salt: make([]byte, kdfSaltSize)}
	original := append([]byte(nil), params.salt...)

	assert.NoError(t, params.resetSalt(CryptoRand))
	assert.Equal(t, kdfSaltSize, len(params.salt))
	assert.NotEqual(t, original, params.salt)
}
