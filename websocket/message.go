package websocket

// MessageType is the kind of an application message.
type MessageType int

// Message types. The values match the opcodes that carry them.
const (
	EmptyMessage  MessageType = 0
	TextMessage   MessageType = MessageType(OpText)
	BinaryMessage MessageType = MessageType(OpBinary)
)

func (t MessageType) String() string {
	switch t {
	case EmptyMessage:
		return "empty"
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is the application-visible unit exchanged through an Inbox or an
// Outbox. One Message corresponds to exactly one frame.
type Message struct {
	Type MessageType
	Data []byte
}

// NewTextMessage returns a text message carrying s.
func NewTextMessage(s string) Message {
	return Message{Type: TextMessage, Data: []byte(s)}
}

// NewBinaryMessage returns a binary message carrying p.
func NewBinaryMessage(p []byte) Message {
	return Message{Type: BinaryMessage, Data: p}
}

// Text returns the message payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

func messageFromFrame(f *Frame) Message {
	switch f.Opcode {
	case OpText:
		return Message{Type: TextMessage, Data: f.Payload}
	case OpBinary:
		return Message{Type: BinaryMessage, Data: f.Payload}
	default:
		return Message{}
	}
}

func (m Message) frame() (*Frame, error) {
	switch m.Type {
	case TextMessage:
		return &Frame{Fin: true, Opcode: OpText, Payload: m.Data}, nil
	case BinaryMessage:
		return &Frame{Fin: true, Opcode: OpBinary, Payload: m.Data}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}
