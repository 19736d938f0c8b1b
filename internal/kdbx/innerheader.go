package kdbx

import (
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// innerHeaderFieldType tags each TLV record of the encrypted inner header,
// a distinct field-ID space from the outer header's.
type innerHeaderFieldType uint8

const (
	innerFieldEndOfHeader  innerHeaderFieldType = 0
	innerFieldStreamCipher innerHeaderFieldType = 1
	innerFieldStreamKey    innerHeaderFieldType = 2
	innerFieldBinary       innerHeaderFieldType = 3
)

// Binary holds one attachment embedded in the database. The only defined
// flag bit (0x01) marks memory protection, which this module ignores on
// read and never sets on write since it has no attachment feature of its
// own to protect.
type Binary struct {
	Flags byte
	Data  []byte
}

func (b Binary) len() int { return 1 + len(b.Data) }

func (b Binary) serialize(w io.Writer) error {
	if err := writeByte(w, b.Flags); err != nil {
		return err
	}
	_, err := w.Write(b.Data)
	return kdbxerr.IO(err)
}

func deserializeBinary(r io.Reader, size int) (Binary, error) {
	if size < 1 {
		return Binary{}, kdbxerr.ErrInvalidFieldSize
	}
	flags, err := readByte(r)
	if err != nil {
		return Binary{}, err
	}
	if flags & ^byte(0x01) != 0 {
		return Binary{}, kdbxerr.UnsupportedBinaryFlags(flags)
	}
	data, err := readBytes(r, size-1)
	if err != nil {
		return Binary{}, err
	}
	return Binary{Flags: flags, Data: data}, nil
}

// InnerHeader is the header carried inside the decrypted, decompressed
// payload: which stream cipher masks protected XML field values, its key,
// and any attached binary files.
type InnerHeader struct {
	cipher   streamCipher
	key      []byte
	binaries []Binary
}

// resetCipher forces ChaCha20 with a fresh random key before the database
// is next saved, matching the original's stance that new protected-stream
// keys are always ChaCha20 regardless of what was read in.
func (h *InnerHeader) resetCipher(randSource randReader) error {
	h.cipher = streamCipherChaCha20
	key, err := randSource.random(h.cipher.keySize())
	if err != nil {
		return err
	}
	h.key = key
	return nil
}

// ResetCipher is the exported form of resetCipher, used by package kdbxdb
// before every save so a stolen inner header never reveals the key that
// masked a previous save's protected fields.
func (h *InnerHeader) ResetCipher(randSource randReader) error {
	return h.resetCipher(randSource)
}

// NewProtectedCipher builds the stream cipher instance that masks or
// unmasks this database's protected field values, per the cipher and key
// this inner header declares.
func (h *InnerHeader) NewProtectedCipher() (ProtectedCipher, error) {
	return h.cipher.create(h.key)
}

// Serialize is the exported form of serialize, used by package kdbxdb to
// prepend the inner header to the XML document before the combined bytes
// are handed to Database.Save as the plaintext payload.
func (h *InnerHeader) Serialize(w io.Writer) error {
	return h.serialize(w)
}

// DeserializeInnerHeader is the exported form of deserializeInnerHeader,
// used by package kdbxdb to split Database.Decrypt's plaintext payload
// into the inner header and the XML document that follows it.
func DeserializeInnerHeader(r io.Reader) (*InnerHeader, error) {
	return deserializeInnerHeader(r)
}

func (h *InnerHeader) serialize(w io.Writer) error {
	if err := writeByte(w, byte(innerFieldStreamCipher)); err != nil {
		return err
	}
	if err := writeUint32(w, streamCipherIDSize); err != nil {
		return err
	}
	if err := h.cipher.serialize(w); err != nil {
		return err
	}

	if err := writeByte(w, byte(innerFieldStreamKey)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(h.key))); err != nil {
		return err
	}
	if _, err := w.Write(h.key); err != nil {
		return kdbxerr.IO(err)
	}

	for _, binary := range h.binaries {
		if err := writeByte(w, byte(innerFieldBinary)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(binary.len())); err != nil {
			return err
		}
		if err := binary.serialize(w); err != nil {
			return err
		}
	}

	if err := writeByte(w, byte(innerFieldEndOfHeader)); err != nil {
		return err
	}
	return writeUint32(w, 0)
}

func deserializeInnerHeader(r io.Reader) (*InnerHeader, error) {
	var h InnerHeader
	var haveCipher, haveKey bool

	for {
		fieldByte, err := readByte(r)
		if err != nil {
			return nil, err
		}
		fieldType := innerHeaderFieldType(fieldByte)
		size, err := readUint32(r)
		if err != nil {
			return nil, err
		}

		switch fieldType {
		case innerFieldStreamCipher:
			if size != streamCipherIDSize {
				return nil, kdbxerr.ErrInvalidFieldSize
			}
			h.cipher, err = deserializeStreamCipher(r)
			if err != nil {
				return nil, err
			}
			haveCipher = true
		case innerFieldStreamKey:
			h.key, err = readBytes(r, int(size))
			if err != nil {
				return nil, err
			}
			haveKey = true
		case innerFieldBinary:
			binary, err := deserializeBinary(r, int(size))
			if err != nil {
				return nil, err
			}
			h.binaries = append(h.binaries, binary)
		case innerFieldEndOfHeader:
			if _, err := readBytes(r, int(size)); err != nil {
				return nil, err
			}
			if !haveCipher || !haveKey {
				return nil, kdbxerr.ErrHeaderFieldsMissing
			}
			return &h, nil
		default:
			return nil, kdbxerr.UnsupportedHeaderFieldType(fieldByte)
		}
	}
}
