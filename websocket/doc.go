// Package websocket implements the server side of the WebSocket protocol
// defined in RFC 6455.
//
// The package provides:
//   - Frame encoding and decoding with masking and the three payload length
//     encodings (ReadFrame, WriteFrame)
//   - The opening handshake (AcceptKey, IsUpgradeRequest, Negotiate)
//   - A per-connection Session with concurrent reader and writer flows,
//     transparent ping/pong handling and the closing handshake
//   - A Server that serves plain HTTP and WebSocket on one endpoint
//
// Applications receive each connection through a ConnectHandler as a pair
// of queues: an Inbox of messages from the peer and an Outbox of messages to
// the peer. OnConnect must return promptly and do its work on its own
// goroutines.
//
// Echo Example:
//
//	srv := &websocket.Server{
//	    OnConnect: websocket.ConnectHandlerFunc(func(in *websocket.Inbox, out *websocket.Outbox) {
//	        go func() {
//	            defer out.Close()
//	            for {
//	                msg, err := in.Receive(context.Background())
//	                if err != nil {
//	                    return
//	                }
//	                if err := out.Send(msg); err != nil {
//	                    return
//	                }
//	            }
//	        }()
//	    }),
//	}
//	log.Fatal(http.ListenAndServe(":8080", srv))
//
// Concurrency:
//
// Every connection runs one reader goroutine and one writer goroutine. The
// reader answers Ping frames directly, so a Pong may be written before
// application messages that are already queued in the Outbox. Messages in
// each direction keep their order.
//
// Limitations:
//
// Fragmented messages, extensions, Close status codes and client
// connections are not supported. A frame with FIN cleared or a continuation
// opcode is a protocol error.
package websocket
