package kdbx

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// blockStreamBlockSize is the maximum number of plaintext bytes carried by
// one HMAC-authenticated block.
const blockStreamBlockSize = 1024 * 1024

// hmacBlockStreamReader unwraps the HMAC block framing that authenticates
// the encrypted payload: each block is hashed under a key derived from its
// index before any bytes are handed to the caller, so tampering anywhere
// in the stream is caught before decompression or decryption ever sees it.
// A zero-length block marks the end of the stream.
type hmacBlockStreamReader struct {
	r       io.Reader
	keys    *Keys
	index   int64
	current []byte
	pos     int
	done    bool
}

func newHmacBlockStreamReader(r io.Reader, keys *Keys) *hmacBlockStreamReader {
	return &hmacBlockStreamReader{r: r, keys: keys, index: -1}
}

func (s *hmacBlockStreamReader) nextBlock() error {
	s.index++

	expectedHash, err := readBytes(s.r, 32)
	if err != nil {
		return err
	}
	blockSize, err := readUint32(s.r)
	if err != nil {
		return err
	}
	block, err := readBytes(s.r, int(blockSize))
	if err != nil {
		return err
	}

	hasher := s.keys.hmacHasher(s.index)
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], uint64(s.index))
	hasher.Write(idxBuf[:])
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], blockSize)
	hasher.Write(sizeBuf[:])
	hasher.Write(block)
	if !bytes.Equal(hasher.Sum(nil), expectedHash) {
		return kdbxerr.ErrCorruptDatabase
	}

	if blockSize == 0 {
		s.done = true
		return nil
	}
	s.current = block
	s.pos = 0
	return nil
}

func (s *hmacBlockStreamReader) Read(buf []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if s.current == nil {
		if err := s.nextBlock(); err != nil {
			return 0, err
		}
		if s.done {
			return 0, io.EOF
		}
	}
	n := copy(buf, s.current[s.pos:])
	s.pos += n
	if s.pos == len(s.current) {
		s.current = nil
	}
	return n, nil
}

// hmacBlockStreamWriter frames a byte stream (the encrypted payload) into
// blockStreamBlockSize chunks,
// each sealed with an HMAC over its index, size and contents, terminated
// by an empty block once finish is called.
type hmacBlockStreamWriter struct {
	w       io.Writer
	keys    *Keys
	index   int64
	current []byte
}

func newHmacBlockStreamWriter(w io.Writer, keys *Keys) *hmacBlockStreamWriter {
	return &hmacBlockStreamWriter{w: w, keys: keys}
}

func (s *hmacBlockStreamWriter) writeBlock() error {
	hasher := s.keys.hmacHasher(s.index)
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], uint64(s.index))
	hasher.Write(idxBuf[:])
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(s.current)))
	hasher.Write(sizeBuf[:])
	hasher.Write(s.current)

	if _, err := s.w.Write(hasher.Sum(nil)); err != nil {
		return kdbxerr.IO(err)
	}
	if err := writeUint32(s.w, uint32(len(s.current))); err != nil {
		return err
	}
	if _, err := s.w.Write(s.current); err != nil {
		return kdbxerr.IO(err)
	}

	s.index++
	s.current = nil
	return nil
}

func (s *hmacBlockStreamWriter) Write(buf []byte) (int, error) {
	written := 0
	for len(buf) > 0 {
		remaining := blockStreamBlockSize - len(s.current)
		if len(buf) < remaining {
			s.current = append(s.current, buf...)
			written += len(buf)
			break
		}
		s.current = append(s.current, buf[:remaining]...)
		written += remaining
		buf = buf[remaining:]
		if err := s.writeBlock(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// finish flushes any partial final block, then writes the zero-size
// terminating block every reader expects to see.
func (s *hmacBlockStreamWriter) finish() error {
	if len(s.current) > 0 {
		if err := s.writeBlock(); err != nil {
			return err
		}
	}
	return s.writeBlock()
}
