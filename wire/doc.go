// Package wire implements the binary wire format shared by every packet the
// stream server exchanges with a client: a fixed 8-byte header followed by a
// message-specific payload, all in network byte order.
package wire
