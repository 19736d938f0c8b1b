// Package kdbxdb implements the KeePass XML document model carried inside
// a decrypted KDBX 4 payload: entries, the group tree, protected-field
// masking, alias storage, and the database-level operations (unlock, save,
// entry CRUD) the daemon drives.
//
// It is grounded on the Go reference implementation vendored by this
// project's teacher (tobischo/gokeepasslib/v3) for XML shape and masking,
// and on the original Rust pfp-native-host sources retained for grounding
// under _examples/ for entry/alias domain semantics; see DESIGN.md for the
// per-file mapping.
package kdbxdb

import (
	"encoding/base64"

	"github.com/spectralops/kdbx-native-host/internal/kdbx"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// UUID is a KeePass entry or group identifier: 16 random bytes, carried on
// the wire as standard base64 text rather than the canonical UUID string
// form KeePass's own UUID type is unrelated to.
type UUID [16]byte

// NewUUID returns a fresh randomly generated identifier, propagating any
// failure of the underlying random source rather than silently continuing
// with a zero or partially filled UUID.
func NewUUID() (UUID, error) {
	var id UUID
	b, err := kdbx.RandomBytes(len(id))
	if err != nil {
		return UUID{}, err
	}
	copy(id[:], b)
	return id, nil
}

// String returns the standard base64 encoding used on the wire and in XML.
func (u UUID) String() string {
	return base64.StdEncoding.EncodeToString(u[:])
}

// MarshalText implements encoding.TextMarshaler so UUID round-trips through
// encoding/xml as the <UUID> element's text content.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UUID) UnmarshalText(text []byte) error {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(decoded, text)
	if err != nil {
		return kdbxerr.Wrap(kdbxerr.CodeXMLParsing, err)
	}
	if n != 16 {
		return kdbxerr.New(kdbxerr.CodeXMLParsing, "UUID did not decode to 16 bytes")
	}
	copy(u[:], decoded[:16])
	return nil
}
