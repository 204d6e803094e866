package websocket

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// websocketGUID is the globally unique identifier for the WebSocket
// handshake per RFC 6455, section 4.2.2, item 5.4.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client key: the
// base64-encoded SHA-1 hash of the key concatenated with the GUID.
func AcceptKey(challengeKey string) string {
	h := sha1.New()
	h.Write([]byte(challengeKey))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgradeRequest reports whether r asks for a WebSocket upgrade: a GET
// request whose Upgrade header equals "websocket", ignoring case.
func IsUpgradeRequest(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

// Negotiate validates an upgrade request and returns the headers of the
// 101 Switching Protocols response.
//
// It returns ErrNotWebSocket if r is not an upgrade request, in which case r
// belongs to a plain HTTP handler. A missing or malformed Sec-WebSocket-Key
// on an upgrade request yields a *HandshakeError; such a connection must be
// rejected.
func Negotiate(r *http.Request) (http.Header, error) {
	if !IsUpgradeRequest(r) {
		return nil, ErrNotWebSocket
	}

	challengeKey := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if challengeKey == "" {
		return nil, &HandshakeError{Reason: "missing Sec-WebSocket-Key"}
	}
	if !httpguts.ValidHeaderFieldValue(challengeKey) {
		return nil, &HandshakeError{Reason: "malformed Sec-WebSocket-Key"}
	}

	h := make(http.Header, 4)
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Content-Length", "0")
	h.Set("Sec-WebSocket-Accept", AcceptKey(challengeKey))

	return h, nil
}

// writeHandshakeResponse writes the server side of the opening handshake,
// RFC 6455, section 4.2.2.
func writeHandshakeResponse(w *bufio.Writer, h http.Header, serverName string) error {
	h = h.Clone()
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if serverName != "" {
		h.Set("Server", serverName)
	}

	if _, err := w.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	if err := h.Write(w); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
