package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Server serves plain HTTP requests and WebSocket connections on the same
// endpoint. Each request is inspected by Negotiate: upgrade requests are
// completed and handed to OnConnect, everything else goes to Handler.
//
//	srv := &websocket.Server{
//	    Handler: http.FileServer(http.Dir("static")),
//	    OnConnect: websocket.ConnectHandlerFunc(func(in *websocket.Inbox, out *websocket.Outbox) {
//	        go echo(in, out)
//	    }),
//	}
//	http.ListenAndServe(":8080", srv)
type Server struct {
	// Handler serves requests that are not WebSocket upgrades.
	// If nil, http.NotFoundHandler() is used.
	Handler http.Handler

	// OnConnect is invoked once per established WebSocket connection.
	// If nil, upgrade requests are served by Handler.
	OnConnect ConnectHandler

	// HandshakeTimeout bounds writing the 101 response. Zero means no limit.
	HandshakeTimeout time.Duration

	// CloseTimeout bounds the wait for the peer's Close frame after the
	// server started the closing handshake. Zero means no limit.
	CloseTimeout time.Duration

	// ReadLimit is the maximum payload size in bytes of a frame read from
	// the peer. Zero means unlimited.
	ReadLimit int64

	// ServerName is sent in the Server header of the 101 response when set.
	ServerName string

	// Logger receives connection lifecycle events. When nil, no logging is
	// performed.
	Logger *slog.Logger

	// GenerateID returns the identifier of a new session. Defaults to
	// NewSessionID.
	GenerateID func(r *http.Request) string
}

// NewSessionID returns a new UUID v7 string. IDs generated later sort
// lexicographically after earlier ones.
func NewSessionID(_ *http.Request) string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	h := s.Handler
	if h == nil {
		h = http.NotFoundHandler()
	}
	h.ServeHTTP(w, r)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.OnConnect == nil {
		s.serveHTTP(w, r)
		return
	}

	header, err := Negotiate(r)
	if errors.Is(err, ErrNotWebSocket) {
		s.serveHTTP(w, r)
		return
	}

	log := s.logger().With(slog.String("remote", r.RemoteAddr))

	if err != nil {
		log.Warn("websocket handshake rejected", slog.Any("error", err))
		s.reject(w, err)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		log.Error("websocket upgrade failed", slog.String("error", "response does not implement http.Hijacker"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	netConn, brw, err := hj.Hijack()
	if err != nil {
		log.Error("websocket upgrade failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Deadlines configured on the http.Server survive the hijack.
	_ = netConn.SetDeadline(time.Time{})

	generateID := s.GenerateID
	if generateID == nil {
		generateID = NewSessionID
	}

	sess := newSession(generateID(r), netConn, brw.Reader, brw.Writer)
	sess.readLimit = s.ReadLimit
	sess.closeTimeout = s.CloseTimeout
	sess.logger = log

	log = log.With(slog.String("session", sess.ID()))

	if s.HandshakeTimeout > 0 {
		_ = netConn.SetWriteDeadline(time.Now().Add(s.HandshakeTimeout))
	}
	if err := writeHandshakeResponse(sess.bw, header, s.ServerName); err != nil {
		log.Warn("websocket handshake failed", slog.Any("error", err))
		sess.abandon()
		return
	}
	if s.HandshakeTimeout > 0 {
		_ = netConn.SetWriteDeadline(time.Time{})
	}

	log.Debug("websocket session opened")

	err = sess.serve(s.OnConnect)

	switch {
	case err == nil:
		log.Debug("websocket session closed")
	case errors.Is(err, errHandlerPanic):
		log.Error("websocket connect handler failed", slog.Any("error", err))
	case IsProtocolError(err):
		log.Warn("websocket session aborted", slog.Any("error", err))
	default:
		log.Debug("websocket session closed", slog.Any("error", err))
	}
}

// reject drops a connection whose upgrade cannot be completed. No status
// line is written when the connection can be hijacked.
func (s *Server) reject(w http.ResponseWriter, reason error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, reason.Error(), http.StatusBadRequest)
		return
	}

	netConn, _, err := hj.Hijack()
	if err != nil {
		http.Error(w, reason.Error(), http.StatusBadRequest)
		return
	}
	_ = netConn.Close()
}
