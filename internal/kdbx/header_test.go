package kdbx

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
)

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	assert.NoError(t, err)
	return b
}

func TestVersionDeserialize(t *testing.T) {

	_, err := deserializeVersion(bytes.NewReader(mustHex(t, "0102030405060708010004 00")))
	assert.Error(t, err)

	v, err := deserializeVersion(bytes.NewReader(mustHex(t, "03d9a29a67fb4bb5010004 00")))
	assert.NoError(t, err)
	assert.Equal(t, Version{Major: 4, Minor: 1}, v)
}

func TestVersionSerialize(t *testing.T) {

	var buf bytes.Buffer
	assert.NoError(t, (Version{Major: 4, Minor: 1}).serialize(&buf))
	assert.Equal(t, mustHex(t, "03d9a29a67fb4bb5010004 00"), buf.Bytes())
}

func TestVersionString(t *testing.T) {

	assert.Equal(t, "4.1", (Version{Major: 4, Minor: 1}).String())
	assert.Equal(t, "4.0", DefaultVersion.String())
}

func TestBinaryDeserialize(t *testing.T) {

	_, err := deserializeBinary(bytes.NewReader(nil), 0)
	assert.Error(t, err)

	_, err = deserializeBinary(bytes.NewReader([]byte{0x03}), 1)
	assert.Error(t, err)

	b, err := deserializeBinary(bytes.NewReader([]byte{0x00}), 1)
	assert.NoError(t, err)
	assert.Equal(t, Binary{Flags: 0x00, Data: []byte{}}, b)

	b, err = deserializeBinary(bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04}), 4)
	assert.NoError(t, err)
	assert.Equal(t, Binary{Flags: 0x01, Data: []byte{0x02, 0x03, 0x04}}, b)
}

func TestBinarySerialize(t *testing.T) {

	var buf bytes.Buffer
	assert.NoError(t, (Binary{Flags: 0x01, Data: []byte{0x02, 0x03, 0x04}}).serialize(&buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf.Bytes())
}

func TestInnerHeaderResetCipher(t *testing.T) {

	h := &InnerHeader{cipher: streamCipherSalsa20, key: []byte{0, 0}}
	assert.NoError(t, h.resetCipher(CryptoRand))

	assert.Equal(t, streamCipherChaCha20, h.cipher)
	assert.Equal(t, 64, len(h.key))
}

func TestInnerHeaderSerializeDeserialize(t *testing.T) {

	h := &InnerHeader{
		cipher: streamCipherChaCha20,
		key:    mustHex(t, "0102030405060708"),
		binaries: []Binary{
			{Flags: 0x00, Data: []byte{}},
			{Flags: 0x01, Data: mustHex(t, "02030405")},
		},
	}

	var buf bytes.Buffer
	assert.NoError(t, h.serialize(&buf))

	decoded, err := deserializeInnerHeader(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	assert.Equal(t, h.cipher, decoded.cipher)
	assert.Equal(t, h.key, decoded.key)
	assert.Equal(t, h.binaries, decoded.binaries)
}

func TestOuterHeaderNew(t *testing.T) {

	params := &kdfParameters{
		algorithm:   argonID,
		version:     argonVersion10,
		salt:        make([]byte, 16),
		parallelism: 8,
		memory:      1024,
		iterations:  4,
	}

	h, err := newOuterHeader(params, CryptoRand)
	assert.NoError(t, err)
	assert.Equal(t, blockCipherChaCha20, h.cipher)
	assert.Equal(t, compressionGzip, h.compressionID)
	assert.Equal(t, 32, len(h.mainSeed))
	assert.Equal(t, 12, len(h.iv))

	iv := h.iv
	assert.NoError(t, h.resetIV(CryptoRand))
	assert.NotEqual(t, iv, h.iv)
}

func TestOuterHeaderSerializeDeserialize(t *testing.T) {

	params := &kdfParameters{
		algorithm:   argonID,
		version:     argonVersion10,
		salt:        make([]byte, 16),
		parallelism: 8,
		memory:      1024,
		iterations:  4,
	}

	h, err := newOuterHeader(params, CryptoRand)
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, h.serialize(&buf))

	decoded, err := deserializeOuterHeader(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	assert.Equal(t, h.cipher, decoded.cipher)
	assert.Equal(t, h.compressionID, decoded.compressionID)
	assert.Equal(t, h.mainSeed, decoded.mainSeed)
	assert.Equal(t, h.iv, decoded.iv)
	assert.Equal(t, h.kdfParameters.parallelism, decoded.kdfParameters.parallelism)
}

func TestOuterHeaderDeserializeMissingFields(t *testing.T) {

	_, err := deserializeOuterHeader(bytes.NewReader([]byte{0x88}))
	assert.Error(t, err)

	_, err = deserializeOuterHeader(bytes.NewReader(mustHex(t, "020a000000")))
	assert.Error(t, err)

	_, err = deserializeOuterHeader(bytes.NewReader(mustHex(t, "0000000000")))
	assert.Error(t, err)
}
