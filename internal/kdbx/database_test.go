package kdbx

import (
	"bytes"
	"testing"

	"github.com/alecthomas/assert"
)

func TestDatabaseSaveDeserializeRoundTrip(t *testing.T) {

	db, err := New()
	assert.NoError(t, err)

	keys, err := Derive("correct horse battery staple", db.Header)
	assert.NoError(t, err)

	payload := []byte("inner-header-bytes-then-xml-document")

	var buf bytes.Buffer
	assert.NoError(t, db.Save(&buf, keys, payload))

	r := bytes.NewReader(buf.Bytes())
	decoded, err := Deserialize(r)
	assert.NoError(t, err)
	assert.Equal(t, db.Version, decoded.Version)

	unlocked, err := decoded.Unlock("correct horse battery staple")
	assert.NoError(t, err)

	plaintext, err := decoded.Decrypt(r, unlocked)
	assert.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestDatabaseUnlockWrongPassword(t *testing.T) {

	db, err := New()
	assert.NoError(t, err)
	keys, err := Derive("correct horse battery staple", db.Header)
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, db.Save(&buf, keys, []byte("payload")))

	decoded, err := Deserialize(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)

	_, err = decoded.Unlock("wrong password")
	assert.Error(t, err)
}

func TestDatabaseDeserializeTamperedHeaderChecksum(t *testing.T) {

	db, err := New()
	assert.NoError(t, err)
	keys, err := Derive("pw", db.Header)
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, db.Save(&buf, keys, []byte("payload")))

	tampered := buf.Bytes()
	tampered[0] ^= 0xFF

	_, err = Deserialize(bytes.NewReader(tampered))
	assert.Error(t, err)
}

func TestDuplicateKdfParametersAndDeriveKeyFromCompact(t *testing.T) {

	db, err := New()
	assert.NoError(t, err)

	encoded, err := db.DuplicateKdfParameters()
	assert.NoError(t, err)

	key, consumed, err := DeriveKeyFromCompact(encoded, "correct horse battery staple")
	assert.NoError(t, err)
	assert.Equal(t, keySize, len(key))
	assert.Equal(t, true, consumed > 0)

	again, _, err := DeriveKeyFromCompact(encoded, "correct horse battery staple")
	assert.NoError(t, err)
	assert.Equal(t, key, again)
}
