package kdbx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"
	"golang.org/x/crypto/twofish"
)

// blockCipher identifies the algorithm used to encrypt the whole database
// payload, as declared by the outer header's Cipher field.
type blockCipher uint8

const (
	blockCipherAES256 blockCipher = iota
	blockCipherTwofish
	blockCipherChaCha20
)

var (
	uuidAES256   = [16]byte{0x31, 0xc1, 0xf2, 0xe6, 0xbf, 0x71, 0x43, 0x50, 0xbe, 0x58, 0x05, 0x21, 0x6a, 0xfc, 0x5a, 0xff}
	uuidTwofish  = [16]byte{0xad, 0x68, 0xf2, 0x9f, 0x57, 0x6f, 0x4b, 0xb9, 0xa3, 0x6a, 0xd4, 0x7a, 0xf9, 0x65, 0x34, 0x6c}
	uuidChaCha20 = [16]byte{0xd6, 0x03, 0x8a, 0x2b, 0x8b, 0x6f, 0x4c, 0xb5, 0xa5, 0x24, 0x33, 0x9a, 0x31, 0xdb, 0xb5, 0x9a}
)

const blockCipherIDSize = 16

func (c blockCipher) ivSize() int {
	switch c {
	case blockCipherAES256, blockCipherTwofish:
		return 16
	case blockCipherChaCha20:
		return 12
	default:
		return 0
	}
}

func (c blockCipher) serialize(w io.Writer) error {
	var id [16]byte
	switch c {
	case blockCipherAES256:
		id = uuidAES256
	case blockCipherTwofish:
		id = uuidTwofish
	case blockCipherChaCha20:
		id = uuidChaCha20
	default:
		return kdbxerr.UnsupportedBlockCipher()
	}
	_, err := w.Write(id[:])
	return kdbxerr.IO(err)
}

func deserializeBlockCipher(r io.Reader) (blockCipher, error) {
	buf, err := readBytes(r, blockCipherIDSize)
	if err != nil {
		return 0, err
	}
	switch {
	case equal16(buf, uuidAES256):
		return blockCipherAES256, nil
	case equal16(buf, uuidTwofish):
		return blockCipherTwofish, nil
	case equal16(buf, uuidChaCha20):
		return blockCipherChaCha20, nil
	default:
		return 0, kdbxerr.UnsupportedBlockCipher()
	}
}

func equal16(b []byte, id [16]byte) bool {
	if len(b) != 16 {
		return false
	}
	for i := range id {
		if b[i] != id[i] {
			return false
		}
	}
	return true
}

// pkcs7Pad appends PKCS#7 padding to bring data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
	}
	return data[:len(data)-padLen], nil
}

// encrypt runs the configured block cipher over data (AES-256/Twofish in
// CBC mode with PKCS#7 padding, ChaCha20 as a keystream XOR) and returns
// the ciphertext.
func (c blockCipher) encrypt(data, key, iv []byte) ([]byte, error) {
	switch c {
	case blockCipherAES256:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeEncryptionError, "database data could not be encrypted")
		}
		padded := pkcs7Pad(data, aes.BlockSize)
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
		return out, nil
	case blockCipherTwofish:
		block, err := twofish.NewCipher(key)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeEncryptionError, "database data could not be encrypted")
		}
		padded := pkcs7Pad(data, twofish.BlockSize)
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
		return out, nil
	case blockCipherChaCha20:
		stream, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeEncryptionError, "database data could not be encrypted")
		}
		out := make([]byte, len(data))
		stream.XORKeyStream(out, data)
		return out, nil
	default:
		return nil, kdbxerr.UnsupportedBlockCipher()
	}
}

// decrypt is encrypt's inverse; for AES/Twofish it strips PKCS#7 padding.
func (c blockCipher) decrypt(data, key, iv []byte) ([]byte, error) {
	switch c {
	case blockCipherAES256:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		if len(data)%aes.BlockSize != 0 {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		out := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
		return pkcs7Unpad(out, aes.BlockSize)
	case blockCipherTwofish:
		block, err := twofish.NewCipher(key)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		if len(data)%twofish.BlockSize != 0 {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		out := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
		return pkcs7Unpad(out, twofish.BlockSize)
	case blockCipherChaCha20:
		stream, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		out := make([]byte, len(data))
		stream.XORKeyStream(out, data)
		return out, nil
	default:
		return nil, kdbxerr.UnsupportedBlockCipher()
	}
}

// streamCipher identifies the algorithm used to mask individual protected
// XML field values, as declared by the inner header's StreamCipher field.
type streamCipher uint32

const (
	streamCipherSalsa20  streamCipher = 2
	streamCipherChaCha20 streamCipher = 3
)

const streamCipherIDSize = 4

func (c streamCipher) keySize() int {
	switch c {
	case streamCipherSalsa20:
		return 32
	case streamCipherChaCha20:
		return 64
	default:
		return 0
	}
}

func (c streamCipher) serialize(w io.Writer) error {
	return writeUint32(w, uint32(c))
}

func deserializeStreamCipher(r io.Reader) (streamCipher, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, err
	}
	switch streamCipher(v) {
	case streamCipherSalsa20, streamCipherChaCha20:
		return streamCipher(v), nil
	default:
		return 0, kdbxerr.UnsupportedStreamCipher(v)
	}
}

// salsa20FixedNonce is the constant nonce KeePass uses for the legacy
// Salsa20 protected-value stream cipher.
var salsa20FixedNonce = [8]byte{0xe8, 0x30, 0x09, 0x4b, 0x97, 0x20, 0x5d, 0x2a}

// protectedStreamCipher is a stateful XOR keystream over successive
// protected field values, applied in document order on both lock and
// unlock passes.
type protectedStreamCipher interface {
	XORKeyStream(dst, src []byte)
}

// ProtectedCipher is protectedStreamCipher's exported name, used by package
// kdbxdb to mask and unmask protected field values via InnerHeader.NewProtectedCipher.
type ProtectedCipher = protectedStreamCipher

// salsa20Cipher wraps golang.org/x/crypto/salsa20/salsa, whose exported
// XORKeyStream always restarts the keystream at block zero. Protected
// fields are masked by one cipher instance walking many XML nodes in
// sequence, each continuing where the last left off, so this tracks the
// total byte offset and regenerates (and discards) the keystream prefix
// on every call to splice in the next chunk at the right position.
type salsa20Cipher struct {
	key    [32]byte
	offset int
}

func (s *salsa20Cipher) XORKeyStream(dst, src []byte) {
	var nonce [8]byte = salsa20FixedNonce
	keystream := make([]byte, s.offset+len(src))
	salsa.XORKeyStream(keystream, keystream, &nonce, &s.key)
	for i := range src {
		dst[i] = src[i] ^ keystream[s.offset+i]
	}
	s.offset += len(src)
}

// create builds the stream cipher instance for this inner-header cipher ID
// and key, matching gokeepasslib's crypto/chacha.go precisely: for
// ChaCha20 the supplied key is SHA-512 hashed, the first 32 bytes become
// the cipher key and the next 12 the nonce.
func (c streamCipher) create(key []byte) (protectedStreamCipher, error) {
	switch c {
	case streamCipherSalsa20:
		var k [32]byte
		copy(k[:], key)
		return &salsa20Cipher{key: k}, nil
	case streamCipherChaCha20:
		hash := sha512.Sum512(key)
		stream, err := chacha20.NewUnauthenticatedCipher(hash[0:32], hash[32:44])
		if err != nil {
			return nil, kdbxerr.New(kdbxerr.CodeDecryptionError, "database data could not be decrypted")
		}
		return stream, nil
	default:
		return nil, kdbxerr.UnsupportedStreamCipher(uint32(c))
	}
}
