package websocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var errHandlerPanic = errors.New("websocket: connect handler panic")

// State is the lifecycle state of a Session.
type State int32

// Session states. A session moves forward only:
// Handshaking -> Open -> Closing -> Closed.
const (
	StateHandshaking State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one WebSocket connection. It owns the
// socket from the end of the opening handshake until both directions are
// closed.
//
// The read half is used only by the reader flow. The write half is shared
// by the writer flow and the control replies of the reader flow, and is
// guarded by writeMu.
type Session struct {
	id     string
	conn   net.Conn
	br     *bufio.Reader
	logger *slog.Logger

	readLimit    int64
	closeTimeout time.Duration

	state atomic.Int32

	writeMu     sync.Mutex
	bw          *bufio.Writer
	writeClosed bool

	inbound  *messageQueue
	outbound *messageQueue

	done         chan struct{}
	teardownOnce sync.Once
	wg           sync.WaitGroup
}

func newSession(id string, conn net.Conn, br *bufio.Reader, bw *bufio.Writer) *Session {
	if br == nil {
		br = bufio.NewReader(conn)
	}
	if bw == nil {
		bw = bufio.NewWriter(conn)
	}

	return &Session{
		id:     id,
		conn:   conn,
		br:     br,
		bw:     bw,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// RemoteAddr returns the peer address of the underlying connection.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Done returns a channel that is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// abandon releases the socket of a session whose handshake failed.
func (s *Session) abandon() {
	if s.state.CompareAndSwap(int32(StateHandshaking), int32(StateClosed)) {
		s.teardown()
	}
}

// serve opens the session, hands its queues to h and runs the reader flow
// on the calling goroutine and the writer flow on a new one. It returns
// when both flows have stopped. The returned error is the reason the reader
// flow stopped; it is nil after a completed closing handshake.
func (s *Session) serve(h ConnectHandler) error {
	if !s.state.CompareAndSwap(int32(StateHandshaking), int32(StateOpen)) {
		return ErrClosed
	}

	s.inbound = newMessageQueue()
	s.outbound = newMessageQueue()

	// Also runs when the reader flow panics.
	defer func() {
		s.teardown()
		s.wg.Wait()
	}()

	if err := s.connect(h); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop()
	}()

	return s.readLoop()
}

func (s *Session) connect(h ConnectHandler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, v)
		}
	}()

	h.OnConnect(&Inbox{q: s.inbound}, &Outbox{q: s.outbound})
	return nil
}

func (s *Session) readLoop() error {
	for {
		f, err := readFrame(s.br, s.readLimit)
		if err != nil {
			if s.State() == StateClosing && errors.Is(err, io.EOF) {
				// The peer dropped the connection instead of replying
				// to our Close frame.
				_ = s.closeRead()
				return nil
			}
			return err
		}

		switch f.Opcode {
		case OpText, OpBinary:
			if err := s.inbound.push(messageFromFrame(f)); err != nil {
				return err
			}
		case OpPing:
			pong := &Frame{Fin: true, Opcode: OpPong, Payload: f.Payload}
			if err := s.writeFrame(pong); err != nil && !errors.Is(err, ErrCloseSent) {
				return err
			}
		case OpPong:
		case OpClose:
			return s.handleClose()
		}
	}
}

// handleClose completes the closing handshake after a Close frame from the
// peer: the frame is echoed, then the write half and the read half are
// closed. If the server started the handshake the frame is the reply and
// only the read half remains to be closed.
func (s *Session) handleClose() error {
	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		if err := s.sendClose(); err != nil {
			return err
		}
	}

	err := s.closeRead()
	s.state.Store(int32(StateClosed))

	return err
}

func (s *Session) writeLoop() {
	for {
		m, err := s.outbound.pop(context.Background(), s.done)
		if errors.Is(err, errQueueClosed) {
			s.initiateClose()
			return
		}
		if err != nil {
			return
		}

		f, err := m.frame()
		if err != nil {
			continue
		}

		if err := s.writeFrame(f); err != nil {
			if !errors.Is(err, ErrCloseSent) {
				s.logger.Debug("websocket write failed", slog.String("session", s.id), slog.Any("error", err))
				s.teardown()
			}
			return
		}
	}
}

// initiateClose starts a server-side closing handshake once the
// application has closed its outbox.
func (s *Session) initiateClose() {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return
	}

	if err := s.sendClose(); err != nil {
		s.logger.Debug("websocket close failed", slog.String("session", s.id), slog.Any("error", err))
		s.teardown()
		return
	}

	if s.closeTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.closeTimeout))
	}
}

func (s *Session) writeFrame(f *Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeClosed {
		return ErrCloseSent
	}

	return WriteFrame(s.bw, f)
}

// sendClose writes an empty Close frame and closes the write half. Nothing
// can be written afterwards.
func (s *Session) sendClose() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeClosed {
		return ErrCloseSent
	}
	s.writeClosed = true

	if err := WriteFrame(s.bw, &Frame{Fin: true, Opcode: OpClose}); err != nil {
		return err
	}

	return s.closeWrite()
}

func (s *Session) closeWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (s *Session) closeRead() error {
	if cr, ok := s.conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return nil
}

// teardown stops both flows and releases the socket. Safe to call from
// either flow, any number of times.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.inbound != nil {
			s.inbound.close()
		}
		if s.outbound != nil {
			s.outbound.close()
		}
		_ = s.conn.Close()
	})
}
