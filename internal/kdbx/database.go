package kdbx

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// Default Argon2 cost parameters for a freshly created database: 64 MiB of
// memory and 4-way parallelism, with the iteration count calibrated at
// creation time to cost roughly defaultKdfTargetMillis to derive.
const (
	defaultKdfMemoryKiB    = 64 * 1024
	defaultKdfParallelism  = 4
	defaultKdfTargetMillis = 300
)

// Database is the binary-format envelope of a KDBX 4 file: the version and
// outer header, the raw bytes those two serialize to (captured so the
// header's own SHA-256 self-check and HMAC seal can be verified byte-exact
// without re-serializing), and the header HMAC read from or written to the
// file.
//
// Database has no knowledge of the decrypted payload's shape (the inner
// header and the KeePass XML document); that parsing lives in package
// kdbxdb, one layer up, which calls Decrypt/Save to move bytes across the
// binary-format boundary.
type Database struct {
	Version    Version
	Header     *OuterHeader
	headerData []byte
	headerHMAC []byte
}

// New builds a fresh, unkeyed database header for a database that has never
// been saved: KeePass-recommended Argon2d cost parameters, calibrated
// against this machine so unlocking costs roughly defaultKdfTargetMillis.
func New() (*Database, error) {
	params, err := generateKdfParameters(defaultKdfMemoryKiB, defaultKdfParallelism, defaultKdfTargetMillis*1e6, CryptoRand)
	if err != nil {
		return nil, err
	}
	header, err := newOuterHeader(params, CryptoRand)
	if err != nil {
		return nil, err
	}
	return &Database{Version: DefaultVersion, Header: header}, nil
}

// recordingReader tees every byte read through it into buf, so the exact
// wire bytes of the version and outer header can be hashed and HMAC'd
// without re-serializing them (re-serialization could disagree with the
// bytes actually on disk, e.g. a foreign writer's custom data ordering).
type recordingReader struct {
	r   io.Reader
	buf bytes.Buffer
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if n > 0 {
		rr.buf.Write(p[:n])
	}
	return n, err
}

// Deserialize reads the version, outer header, header checksum and header
// HMAC from r. The header checksum is verified immediately, before any
// password is involved: a mismatch means the file is corrupt or foreign,
// not that the wrong password was supplied. The HMAC is only checked later,
// inside Unlock, once a password is available to derive keys from.
func Deserialize(r io.Reader) (*Database, error) {
	rec := &recordingReader{r: r}

	version, err := deserializeVersion(rec)
	if err != nil {
		return nil, err
	}
	header, err := deserializeOuterHeader(rec)
	if err != nil {
		return nil, err
	}
	headerData := append([]byte(nil), rec.buf.Bytes()...)

	headerHash, err := readBytes(r, sha256.Size)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(headerData)
	if !bytes.Equal(sum[:], headerHash) {
		return nil, kdbxerr.ErrHeaderChecksumMismatch
	}

	headerHMAC, err := readBytes(r, sha256.Size)
	if err != nil {
		return nil, err
	}

	return &Database{
		Version:    version,
		Header:     header,
		headerData: headerData,
		headerHMAC: headerHMAC,
	}, nil
}

// Unlock derives keys from password against this database's KDF parameters
// and verifies them against the stored header HMAC, returning
// ErrInvalidCredentials on any mismatch (wrong password or a tampered
// header sealed under a different key).
func (d *Database) Unlock(password string) (*Keys, error) {
	keys, err := Derive(password, d.Header)
	if err != nil {
		return nil, err
	}

	hasher := keys.hmacHasher(-1)
	hasher.Write(d.headerData)
	if !hmac.Equal(hasher.Sum(nil), d.headerHMAC) {
		return nil, kdbxerr.ErrInvalidCredentials
	}
	return keys, nil
}

// Decrypt reads the HMAC-authenticated block stream from r (the remainder
// of the file after the header HMAC), block-cipher-decrypts it under keys
// and this database's IV, and decompresses it if the header declares Gzip
// compression. The returned bytes are the inner header followed by the
// KeePass XML document, both opaque to this package.
func (d *Database) Decrypt(r io.Reader, keys *Keys) ([]byte, error) {
	ciphertext, err := io.ReadAll(newHmacBlockStreamReader(r, keys))
	if err != nil {
		return nil, err
	}
	plaintext, err := d.Header.cipher.decrypt(ciphertext, keys.encryption, d.Header.iv)
	if err != nil {
		return nil, err
	}
	return d.Header.compressionID.decompress(plaintext)
}

// Save writes this database's version, outer header, header checksum,
// header HMAC and the HMAC-block-framed, compressed, encrypted payload to
// w. payload is the inner header followed by the serialized KeePass XML
// document, supplied by package kdbxdb. The IV is rotated on every save so
// no two saves of the same database ever reuse key material.
func (d *Database) Save(w io.Writer, keys *Keys, payload []byte) error {
	if err := d.Header.resetIV(CryptoRand); err != nil {
		return err
	}

	var headerBuf bytes.Buffer
	if err := d.Version.serialize(&headerBuf); err != nil {
		return err
	}
	if err := d.Header.serialize(&headerBuf); err != nil {
		return err
	}
	d.headerData = headerBuf.Bytes()

	if _, err := w.Write(d.headerData); err != nil {
		return kdbxerr.IO(err)
	}

	headerHash := sha256.Sum256(d.headerData)
	if _, err := w.Write(headerHash[:]); err != nil {
		return kdbxerr.IO(err)
	}

	hasher := keys.hmacHasher(-1)
	hasher.Write(d.headerData)
	d.headerHMAC = hasher.Sum(nil)
	if _, err := w.Write(d.headerHMAC); err != nil {
		return kdbxerr.IO(err)
	}

	compressed, err := d.Header.compressionID.compress(payload)
	if err != nil {
		return err
	}
	ciphertext, err := d.Header.cipher.encrypt(compressed, keys.encryption, d.Header.iv)
	if err != nil {
		return err
	}

	bw := newHmacBlockStreamWriter(w, keys)
	if _, err := bw.Write(ciphertext); err != nil {
		return err
	}
	return bw.finish()
}

// DuplicateKdfParameters returns a compact, base64-encoded copy of this
// database's KDF parameters with a freshly randomized salt, for handing to
// a browser extension that wants to derive the same class of key (e.g. to
// recognize a repeated master password) without ever unlocking the full
// database. Reading this far requires no password at all.
func (d *Database) DuplicateKdfParameters() (string, error) {
	params := *d.Header.kdfParameters
	if err := params.resetSalt(CryptoRand); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := params.serializeCompact(&buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DeriveKeyFromCompact decodes a base64 compact-codec KDF parameter blob
// (as produced by DuplicateKdfParameters) and derives a key-sized value
// from password against it. It returns the number of bytes of the decoded
// blob actually consumed, since the compact codec has no end-of-data
// marker and a caller may need to know where trailing data begins.
func DeriveKeyFromCompact(encoded string, password string) (key []byte, bytesConsumed int, err error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, 0, kdbxerr.Wrap(kdbxerr.CodeEncoding, err)
	}

	r := bytes.NewReader(data)
	params, err := deserializeKdfParametersCompact(r)
	if err != nil {
		return nil, 0, err
	}
	consumed := len(data) - r.Len()

	key, err = params.deriveKey([]byte(password), keySize)
	if err != nil {
		return nil, 0, err
	}
	return key, consumed, nil
}
