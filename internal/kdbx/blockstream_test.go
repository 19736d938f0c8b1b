package kdbx

import (
	"bytes"
	"io"
	"testing"

	"github.com/alecthomas/assert"
)

func testKeys() *Keys {
	return &Keys{
		encryption: bytes.Repeat([]byte{0x01}, keySize),
		hmacBase:   bytes.Repeat([]byte{0x02}, hmacSize),
	}
}

func TestHmacBlockStreamRoundTrip(t *testing.T) {

	keys := testKeys()
	var buf bytes.Buffer

	w := newHmacBlockStreamWriter(&buf, keys)
	n, err := w.Write([]byte("hello, kdbx"))
	assert.NoError(t, err)
	assert.Equal(t, len("hello, kdbx"), n)
	assert.NoError(t, w.finish())

	r := newHmacBlockStreamReader(&buf, keys)
	out, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello, kdbx"), out)
}

func TestHmacBlockStreamRoundTripMultiBlock(t *testing.T) {

	keys := testKeys()
	var buf bytes.Buffer

	data := bytes.Repeat([]byte{0xAB}, blockStreamBlockSize+1000)

	w := newHmacBlockStreamWriter(&buf, keys)
	_, err := w.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, w.finish())

	r := newHmacBlockStreamReader(&buf, keys)
	out, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestHmacBlockStreamTamperDetected(t *testing.T) {

	keys := testKeys()
	var buf bytes.Buffer

	w := newHmacBlockStreamWriter(&buf, keys)
	_, err := w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, w.finish())

	tampered := buf.Bytes()
	tampered[40] ^= 0xFF

	r := newHmacBlockStreamReader(bytes.NewReader(tampered), keys)
	_, err = io.ReadAll(r)
	assert.Error(t, err)
}
