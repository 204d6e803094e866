package websocket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf8"
)

// Opcode identifies the purpose of a frame, RFC 6455, section 5.2.
type Opcode byte

// Opcodes defined in RFC 6455, section 11.8.
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "unknown"
	}
}

// IsControl reports whether the opcode is a control opcode (close, ping, pong).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

func (o Opcode) valid() bool {
	switch o {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// Frame header constants per RFC 6455, section 5.2.
const (
	maxFrameHeaderSize         = 14  // 2 bytes base + 8 bytes extended length + 4 bytes mask
	maxControlFramePayloadSize = 125 // RFC 6455, section 5.5

	finalBit    = 1 << 7
	reservedBit = 0x70 // RSV1 | RSV2 | RSV3
	maskBit     = 1 << 7

	opcodeMask     = 0x0f
	payloadLenMask = 0x7f
	payloadLen16   = 126
	payloadLen64   = 127

	// Payloads announcing more than this are buffered as they arrive.
	maxPreallocPayloadSize = 64 << 10
)

// Frame is a single WebSocket wire unit. Masked and MaskKey describe a frame
// read from a client; WriteFrame rejects masked frames with ErrMaskedWrite.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// ReadFrame decodes one frame from r per RFC 6455, section 5.2.
// A masked payload is returned unmasked.
func ReadFrame(r io.Reader) (*Frame, error) {
	return readFrame(r, 0)
}

// readFrame is ReadFrame with a payload size limit. A limit of 0 means
// unlimited.
func readFrame(r io.Reader, limit int64) (*Frame, error) {
	var hdr [maxFrameHeaderSize]byte

	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return nil, err
	}

	if hdr[0]&reservedBit != 0 {
		return nil, protocolError(ErrReservedBits)
	}

	f := &Frame{
		Fin:    hdr[0]&finalBit != 0,
		Opcode: Opcode(hdr[0] & opcodeMask),
		Masked: hdr[1]&maskBit != 0,
	}

	if !f.Opcode.valid() {
		return nil, protocolError(ErrInvalidOpcode)
	}
	if f.Opcode == OpContinuation {
		return nil, protocolError(ErrUnexpectedContinuation)
	}
	if !f.Fin {
		return nil, protocolError(ErrFragmentedFrame)
	}

	var length uint64
	switch n := hdr[1] & payloadLenMask; n {
	case payloadLen16:
		if _, err := io.ReadFull(r, hdr[2:4]); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(hdr[2:4]))
	case payloadLen64:
		if _, err := io.ReadFull(r, hdr[2:10]); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(hdr[2:10])
		// The most significant bit must be 0, RFC 6455, section 5.2.
		if length > math.MaxInt64 || length > math.MaxInt {
			return nil, protocolError(ErrInvalidPayloadLength)
		}
	default:
		length = uint64(n)
	}

	if f.Opcode.IsControl() && length > maxControlFramePayloadSize {
		return nil, protocolError(ErrControlFramePayloadTooBig)
	}
	if limit > 0 && length > uint64(limit) {
		return nil, protocolError(ErrReadLimit)
	}

	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return nil, err
		}
	}

	payload, err := readPayload(r, length)
	if err != nil {
		return nil, err
	}
	f.Payload = payload

	if f.Masked {
		maskBytes(f.MaskKey, 0, f.Payload)
	}

	switch f.Opcode {
	case OpText:
		if !utf8.Valid(f.Payload) {
			return nil, protocolError(ErrInvalidUTF8)
		}
	case OpClose:
		// Status code and reason are not interpreted.
		f.Payload = f.Payload[:0]
	}

	return f, nil
}

// readPayload reads exactly length bytes. Memory grows with the bytes that
// actually arrive, not with the length announced in the header.
func readPayload(r io.Reader, length uint64) ([]byte, error) {
	if length <= maxPreallocPayloadSize {
		p := make([]byte, length)
		if _, err := io.ReadFull(r, p); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return p, nil
	}

	var buf bytes.Buffer
	buf.Grow(maxPreallocPayloadSize)
	if _, err := io.CopyN(&buf, r, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFrame encodes f to w as a final, unmasked server frame using the
// minimal payload length encoding. If w has a Flush method it is flushed.
func WriteFrame(w io.Writer, f *Frame) error {
	if f.Masked {
		return ErrMaskedWrite
	}

	var hdr [maxFrameHeaderSize]byte

	hdr[0] = finalBit | byte(f.Opcode)&opcodeMask
	headerLen := 2

	length := uint64(len(f.Payload))
	switch {
	case length <= maxControlFramePayloadSize:
		hdr[1] = byte(length)
	case length <= math.MaxUint16:
		hdr[1] = payloadLen16
		binary.BigEndian.PutUint16(hdr[2:4], uint16(length))
		headerLen = 4
	default:
		hdr[1] = payloadLen64
		binary.BigEndian.PutUint64(hdr[2:10], length)
		headerLen = 10
	}

	if _, err := w.Write(hdr[:headerLen]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}

	if fl, ok := w.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}

// maskBytes applies XOR masking to data per RFC 6455, section 5.3.
// The key is applied cyclically starting at pos; the returned value is the
// key position after the last byte.
func maskBytes(key [4]byte, pos int, data []byte) int {
	for i := range data {
		data[i] ^= key[(pos+i)%4]
	}
	return (pos + len(data)) % 4
}
