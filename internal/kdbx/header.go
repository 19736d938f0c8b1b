package kdbx

import (
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

const (
	signature1 uint32 = 0x9AA2D903
	signature2 uint32 = 0xB54BFB67
)

// Version is the KDBX file format version declared at the very start of
// the database, ahead of the outer header. Only major version 4 is
// accepted; earlier KDBX releases use a different header layout entirely.
type Version struct {
	Major uint16
	Minor uint16
}

// DefaultVersion is written for every database this module creates.
var DefaultVersion = Version{Major: 4, Minor: 0}

func (v Version) String() string {
	return versionString(v.Major, v.Minor)
}

func versionString(major, minor uint16) string {
	return itoa(int(major)) + "." + itoa(int(minor))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

func (v Version) serialize(w io.Writer) error {
	if err := writeUint32(w, signature1); err != nil {
		return err
	}
	if err := writeUint32(w, signature2); err != nil {
		return err
	}
	if err := writeUint16(w, v.Minor); err != nil {
		return err
	}
	return writeUint16(w, v.Major)
}

func deserializeVersion(r io.Reader) (Version, error) {
	sig1, err := readUint32(r)
	if err != nil {
		return Version{}, err
	}
	sig2, err := readUint32(r)
	if err != nil {
		return Version{}, err
	}
	if sig1 != signature1 || sig2 != signature2 {
		return Version{}, kdbxerr.ErrCorruptDatabase
	}

	minor, err := readUint16(r)
	if err != nil {
		return Version{}, err
	}
	major, err := readUint16(r)
	if err != nil {
		return Version{}, err
	}
	v := Version{Major: major, Minor: minor}
	if major != 4 {
		return Version{}, kdbxerr.UnsupportedVersion(major, minor)
	}
	return v, nil
}

// outerHeaderFieldType tags each TLV record of the unencrypted outer
// header. Values 5, 6, 8, 9 and 10 are reserved for KDBX 3 era fields
// (transform seed/rounds, a separate stream start bytes field, etc.) that
// have no place in a KDBX 4 outer header and are intentionally absent here.
type outerHeaderFieldType uint8

const (
	outerFieldEndOfHeader           outerHeaderFieldType = 0
	outerFieldComment                outerHeaderFieldType = 1
	outerFieldCipher                 outerHeaderFieldType = 2
	outerFieldCompression            outerHeaderFieldType = 3
	outerFieldMainSeed               outerHeaderFieldType = 4
	outerFieldInitializationVector   outerHeaderFieldType = 7
	outerFieldKdfParameters          outerHeaderFieldType = 11
	outerFieldCustomData             outerHeaderFieldType = 12
)

// OuterHeader is the unencrypted preamble of a KDBX 4 database: the block
// cipher and compression in use, the seed and IV feeding key derivation,
// and the KDF's own cost parameters.
type OuterHeader struct {
	cipher        blockCipher
	compressionID compression
	mainSeed      []byte
	iv            []byte
	kdfParameters *kdfParameters
	customData    *variantList
}

// newOuterHeader builds the header for a freshly created database: ChaCha20
// encryption, Gzip compression, and fresh random seed/IV.
func newOuterHeader(kdfParams *kdfParameters, randSource randReader) (*OuterHeader, error) {
	cipher := blockCipherChaCha20
	seed, err := randSource.random(32)
	if err != nil {
		return nil, err
	}
	iv, err := randSource.random(cipher.ivSize())
	if err != nil {
		return nil, err
	}
	return &OuterHeader{
		cipher:        cipher,
		compressionID: compressionGzip,
		mainSeed:      seed,
		iv:            iv,
		kdfParameters: kdfParams,
	}, nil
}

// resetIV assigns a fresh random initialization vector before the database
// is next saved; KeePass and this module never reuse an IV across saves.
func (h *OuterHeader) resetIV(randSource randReader) error {
	iv, err := randSource.random(h.cipher.ivSize())
	if err != nil {
		return err
	}
	h.iv = iv
	return nil
}

func (h *OuterHeader) serialize(w io.Writer) error {
	if err := writeByte(w, byte(outerFieldCipher)); err != nil {
		return err
	}
	if err := writeUint32(w, blockCipherIDSize); err != nil {
		return err
	}
	if err := h.cipher.serialize(w); err != nil {
		return err
	}

	if err := writeByte(w, byte(outerFieldCompression)); err != nil {
		return err
	}
	if err := writeUint32(w, compressionIDSize); err != nil {
		return err
	}
	if err := h.compressionID.serialize(w); err != nil {
		return err
	}

	if err := writeByte(w, byte(outerFieldMainSeed)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(h.mainSeed))); err != nil {
		return err
	}
	if _, err := w.Write(h.mainSeed); err != nil {
		return kdbxerr.IO(err)
	}

	if err := writeByte(w, byte(outerFieldInitializationVector)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(h.iv))); err != nil {
		return err
	}
	if _, err := w.Write(h.iv); err != nil {
		return kdbxerr.IO(err)
	}

	if err := writeByte(w, byte(outerFieldKdfParameters)); err != nil {
		return err
	}
	kdfList := h.kdfParameters.toVariantList()
	if err := writeUint32(w, uint32(kdfList.len())); err != nil {
		return err
	}
	if err := kdfList.serialize(w); err != nil {
		return err
	}

	if h.customData != nil {
		if err := writeByte(w, byte(outerFieldCustomData)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(h.customData.len())); err != nil {
			return err
		}
		if err := h.customData.serialize(w); err != nil {
			return err
		}
	}

	// KeePass and KeePassXC serialize EndOfHeader with four bytes of
	// fixed data; match their behavior rather than writing a zero-size field.
	if err := writeByte(w, byte(outerFieldEndOfHeader)); err != nil {
		return err
	}
	eoh := []byte("\r\n\r\n")
	if err := writeUint32(w, uint32(len(eoh))); err != nil {
		return err
	}
	_, err := w.Write(eoh)
	return kdbxerr.IO(err)
}

func deserializeOuterHeader(r io.Reader) (*OuterHeader, error) {
	var h OuterHeader
	var haveCipher, haveCompression, haveMainSeed, haveIV, haveKdf bool

	for {
		fieldByte, err := readByte(r)
		if err != nil {
			return nil, err
		}
		fieldType := outerHeaderFieldType(fieldByte)
		size, err := readUint32(r)
		if err != nil {
			return nil, err
		}

		switch fieldType {
		case outerFieldComment:
			if _, err := readBytes(r, int(size)); err != nil {
				return nil, err
			}
		case outerFieldCipher:
			if size != blockCipherIDSize {
				return nil, kdbxerr.ErrInvalidFieldSize
			}
			h.cipher, err = deserializeBlockCipher(r)
			if err != nil {
				return nil, err
			}
			haveCipher = true
		case outerFieldCompression:
			if size != compressionIDSize {
				return nil, kdbxerr.ErrInvalidFieldSize
			}
			h.compressionID, err = deserializeCompression(r)
			if err != nil {
				return nil, err
			}
			haveCompression = true
		case outerFieldMainSeed:
			h.mainSeed, err = readBytes(r, int(size))
			if err != nil {
				return nil, err
			}
			haveMainSeed = true
		case outerFieldInitializationVector:
			h.iv, err = readBytes(r, int(size))
			if err != nil {
				return nil, err
			}
			haveIV = true
		case outerFieldKdfParameters:
			list, err := deserializeVariantList(r)
			if err != nil {
				return nil, err
			}
			if list.len() != int(size) {
				return nil, kdbxerr.ErrInvalidFieldSize
			}
			h.kdfParameters, err = kdfParametersFromVariantList(list)
			if err != nil {
				return nil, err
			}
			haveKdf = true
		case outerFieldCustomData:
			list, err := deserializeVariantList(r)
			if err != nil {
				return nil, err
			}
			if list.len() != int(size) {
				return nil, kdbxerr.ErrInvalidFieldSize
			}
			h.customData = list
		case outerFieldEndOfHeader:
			if _, err := readBytes(r, int(size)); err != nil {
				return nil, err
			}
			if !haveCipher || !haveCompression || !haveMainSeed || !haveIV || !haveKdf {
				return nil, kdbxerr.ErrHeaderFieldsMissing
			}
			return &h, nil
		default:
			return nil, kdbxerr.UnsupportedHeaderFieldType(fieldByte)
		}
	}
}

// randReader abstracts the cryptographically secure random source used to
// generate seeds, IVs and keys, so header/key tests can inject deterministic
// bytes without touching crypto/rand.
type randReader interface {
	random(size int) ([]byte, error)
}
