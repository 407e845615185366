// Package frame implements the LookinServer wire header: a fixed 16-byte,
// big-endian, four-field header followed by a payload of the declared size.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
)

// HeaderSize is the fixed on-wire size of a Header, in bytes.
const HeaderSize = 16

// Version is the only header version this client speaks.
const Version uint32 = 1

// Header is the 16-byte frame preamble: version, type, tag, payload size.
type Header struct {
	Version     uint32
	Type        uint32
	Tag         uint32
	PayloadSize uint32
}

// Frame is a decoded header plus its payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode renders h as its 16-byte wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Version)
	binary.BigEndian.PutUint32(buf[4:8], h.Type)
	binary.BigEndian.PutUint32(buf[8:12], h.Tag)
	binary.BigEndian.PutUint32(buf[12:16], h.PayloadSize)
	return buf
}

// DecodeHeader parses a 16-byte buffer into a Header. It rejects any version
// other than Version, since the client speaks exactly one wire version.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, lerrors.NewInvalidFrameError(
			fmt.Sprintf("header must be %d bytes, got %d", HeaderSize, len(buf)), nil)
	}
	h := Header{
		Version:     binary.BigEndian.Uint32(buf[0:4]),
		Type:        binary.BigEndian.Uint32(buf[4:8]),
		Tag:         binary.BigEndian.Uint32(buf[8:12]),
		PayloadSize: binary.BigEndian.Uint32(buf[12:16]),
	}
	if h.Version != Version {
		return Header{}, lerrors.NewInvalidFrameError(
			fmt.Sprintf("unsupported header version %d", h.Version), nil)
	}
	return h, nil
}

// EncodeFrame renders a complete frame (header + payload) as one byte slice,
// so callers can issue a single logical write.
func EncodeFrame(msgType, tag uint32, payload []byte) []byte {
	h := Header{
		Version:     Version,
		Type:        msgType,
		Tag:         tag,
		PayloadSize: uint32(len(payload)),
	}
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, h.Encode()...)
	buf = append(buf, payload...)
	return buf
}

// ReadFrame reads exactly one frame from r: a 16-byte header, then
// header.PayloadSize payload bytes, accumulating across short reads.
func ReadFrame(r io.Reader) (*Frame, error) {
	hbuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hbuf); err != nil {
		return nil, lerrors.NewReadErrorError("failed to read frame header", err)
	}
	h, err := DecodeHeader(hbuf)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if h.PayloadSize > 0 {
		payload = make([]byte, h.PayloadSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, lerrors.NewReadErrorError("failed to read frame payload", err)
		}
	}
	return &Frame{Header: h, Payload: payload}, nil
}
