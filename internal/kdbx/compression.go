package kdbx

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// compression identifies whether the decrypted payload is gzip-compressed,
// as declared by the outer header's Compression field.
type compression uint32

const (
	compressionNone compression = 0
	compressionGzip compression = 1
)

const compressionIDSize = 4

func (c compression) serialize(w io.Writer) error {
	return writeUint32(w, uint32(c))
}

func deserializeCompression(r io.Reader) (compression, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, err
	}
	switch compression(v) {
	case compressionNone, compressionGzip:
		return compression(v), nil
	default:
		return 0, kdbxerr.UnsupportedCompression(v)
	}
}

// decompress reverses compress, returning data unchanged when c is
// compressionNone.
func (c compression) decompress(data []byte) ([]byte, error) {
	if c == compressionNone {
		return data, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeDecryptionError, err)
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeDecryptionError, err)
	}
	return out, nil
}

// compress applies gzip to data when c is compressionGzip, leaving it
// unchanged for compressionNone.
func (c compression) compress(data []byte) ([]byte, error) {
	if c == compressionNone {
		return data, nil
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeEncryptionError, err)
	}
	if err := gz.Close(); err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeEncryptionError, err)
	}
	return buf.Bytes(), nil
}
