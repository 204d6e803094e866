package websocket

import "errors"

// Errors returned by the websocket package.
var (
	ErrBadHandshake       = errors.New("websocket: bad handshake")
	ErrNotWebSocket       = errors.New("websocket: not a websocket upgrade request")
	ErrClosed             = errors.New("websocket: session closed")
	ErrCloseSent          = errors.New("websocket: close sent")
	ErrInvalidMessageType = errors.New("websocket: invalid message type")
	ErrMaskedWrite        = errors.New("websocket: server frames must not be masked")

	ErrReservedBits              = errors.New("websocket: reserved bits set")
	ErrInvalidOpcode             = errors.New("websocket: invalid opcode")
	ErrUnexpectedContinuation    = errors.New("websocket: unexpected continuation frame")
	ErrFragmentedFrame           = errors.New("websocket: fragmented frames are not supported")
	ErrControlFramePayloadTooBig = errors.New("websocket: control frame payload too big")
	ErrInvalidPayloadLength      = errors.New("websocket: invalid payload length")
	ErrInvalidUTF8               = errors.New("websocket: invalid utf-8 in text frame")
	ErrReadLimit                 = errors.New("websocket: read limit exceeded")
)

// ProtocolError reports a frame that violates RFC 6455. It is fatal to the
// connection that produced it.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return "websocket: protocol error: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(err error) error {
	return &ProtocolError{Err: err}
}

// HandshakeError reports an upgrade request that cannot be completed.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "websocket: bad handshake: " + e.Reason
}

func (e *HandshakeError) Unwrap() error {
	return ErrBadHandshake
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
