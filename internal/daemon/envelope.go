package daemon

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
	"github.com/spectralops/kdbx-native-host/pkg/logging"
)

// Run drives the native-messaging stdio loop: each message is a 4-byte
// native-endian length prefix followed by that many bytes of JSON, in both
// directions, matching the browser's native-messaging host protocol
// exactly as the original's run_server implements it with
// u32::from_ne_bytes/to_ne_bytes.
func Run(r io.Reader, w io.Writer, logger logging.Logger) error {
	for {
		message, err := readMessage(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		response := buildResponse(message, logger)
		encoded, err := json.Marshal(response)
		if err != nil {
			return kdbxerr.Wrap(kdbxerr.CodeEncoding, err)
		}
		if err := writeMessage(w, encoded); err != nil {
			return err
		}
	}
}

func buildResponse(message []byte, logger logging.Logger) ActionResponse {
	requestID, payload, err := Handle(message)
	if err != nil {
		code, detail := errorDetail(err)
		logger.WithError(err).Debug("action failed")
		return ActionResponse{
			RequestID: requestID,
			Success:   false,
			Response: ErrorResponse{
				Error:     detail,
				ErrorCode: code,
			},
		}
	}
	return ActionResponse{RequestID: requestID, Success: true, Response: payload}
}

func errorDetail(err error) (code, message string) {
	if kerr, ok := err.(*kdbxerr.Error); ok {
		return string(kerr.Code), kerr.Error()
	}
	return string(kdbxerr.CodeIO), err.Error()
}

func readMessage(r io.Reader) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, kdbxerr.IO(err)
	}
	size := binary.NativeEndian.Uint32(sizeBuf[:])

	message := make([]byte, size)
	if _, err := io.ReadFull(r, message); err != nil {
		return nil, kdbxerr.IO(err)
	}
	return message, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	var sizeBuf [4]byte
	binary.NativeEndian.PutUint32(sizeBuf[:], uint32(len(payload)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return kdbxerr.IO(err)
	}
	if _, err := w.Write(payload); err != nil {
		return kdbxerr.IO(err)
	}
	return nil
}
