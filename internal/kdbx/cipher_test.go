package kdbx

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/alecthomas/assert"
)

func TestBlockCipherDeserialize(t *testing.T) {

	_, err := deserializeBlockCipher(bytes.NewReader(nil))
	assert.Error(t, err)

	aes128, _ := hex.DecodeString("61ab05a1946441c38d743a563df8dd35")
	_, err = deserializeBlockCipher(bytes.NewReader(aes128[:16]))
	assert.Error(t, err)

	aes256, _ := hex.DecodeString("31c1f2e6bf714350be5805216afc5aff")
	c, err := deserializeBlockCipher(bytes.NewReader(aes256))
	assert.NoError(t, err)
	assert.Equal(t, blockCipherAES256, c)
}

func TestBlockCipherSerialize(t *testing.T) {

	var buf bytes.Buffer
	assert.NoError(t, blockCipherAES256.serialize(&buf))

	want, _ := hex.DecodeString("31c1f2e6bf714350be5805216afc5aff")
	assert.Equal(t, want, buf.Bytes())
}

func TestBlockCipherIVSize(t *testing.T) {

	assert.Equal(t, 16, blockCipherAES256.ivSize())
	assert.Equal(t, 16, blockCipherTwofish.ivSize())
	assert.Equal(t, 12, blockCipherChaCha20.ivSize())
}

func TestBlockCipherEncryptDecrypt(t *testing.T) {

	key := []byte("01234567012345670123456701234567")
	iv := []byte("abcdefghabcdefgh")

	out, err := blockCipherAES256.encrypt([]byte("test"), key, iv)
	assert.NoError(t, err)
	want, _ := hex.DecodeString("6301df0b911c8e1e665c4af9f3ae8271")
	assert.Equal(t, want, out)

	back, err := blockCipherAES256.decrypt(out, key, iv)
	assert.NoError(t, err)
	assert.Equal(t, []byte("test"), back)

	chachaIV := []byte("abcdefghabcd")
	out, err = blockCipherChaCha20.encrypt([]byte("test"), key, chachaIV)
	assert.NoError(t, err)
	want, _ = hex.DecodeString("a1cff2f2")
	assert.Equal(t, want, out)

	back, err = blockCipherChaCha20.decrypt(out, key, chachaIV)
	assert.NoError(t, err)
	assert.Equal(t, []byte("test"), back)
}

func TestStreamCipherDeserialize(t *testing.T) {

	_, err := deserializeStreamCipher(bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = deserializeStreamCipher(bytes.NewReader([]byte{0x01, 0x00, 0x00, 0x00}))
	assert.Error(t, err)

	c, err := deserializeStreamCipher(bytes.NewReader([]byte{0x03, 0x00, 0x00, 0x00}))
	assert.NoError(t, err)
	assert.Equal(t, streamCipherChaCha20, c)
}

func TestStreamCipherSerialize(t *testing.T) {

	var buf bytes.Buffer
	assert.NoError(t, streamCipherChaCha20.serialize(&buf))
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestStreamCipherKeySize(t *testing.T) {

	assert.Equal(t, 32, streamCipherSalsa20.keySize())
	assert.Equal(t, 64, streamCipherChaCha20.keySize())
}

func TestStreamCipherEncryptDecrypt(t *testing.T) {

	key := []byte("z1234567012345670123456701234567")

	c, err := streamCipherSalsa20.create(key)
	assert.NoError(t, err)
	data := []byte("test")
	c.XORKeyStream(data, data)
	want, _ := hex.DecodeString("f30e8d2e")
	assert.Equal(t, want, data)

	c, err = streamCipherSalsa20.create(key)
	assert.NoError(t, err)
	c.XORKeyStream(data, data)
	assert.Equal(t, []byte("test"), data)

	c, err = streamCipherChaCha20.create([]byte("key"))
	assert.NoError(t, err)
	data = []byte("test")
	c.XORKeyStream(data, data)
	want, _ = hex.DecodeString("244cfc4d")
	assert.Equal(t, want, data)

	c, err = streamCipherChaCha20.create([]byte("key"))
	assert.NoError(t, err)
	c.XORKeyStream(data, data)
	assert.Equal(t, []byte("test"), data)
}
