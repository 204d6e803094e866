package websocket

// ConnectHandler is the application side of an established connection.
//
// OnConnect is called once per successful upgrade, before any frame after
// the handshake is processed. It must not block: applications start their
// own goroutines to consume in and produce on out.
type ConnectHandler interface {
	OnConnect(in *Inbox, out *Outbox)
}

// ConnectHandlerFunc adapts an ordinary function to a ConnectHandler.
type ConnectHandlerFunc func(in *Inbox, out *Outbox)

// OnConnect calls f(in, out).
func (f ConnectHandlerFunc) OnConnect(in *Inbox, out *Outbox) {
	f(in, out)
}
