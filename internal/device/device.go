// Package device models the two synchronous endpoint kinds the firmware
// exposes: a message endpoint (request/reply IPC) and a named control
// endpoint (scalar/struct read/write). Both a real file-backed
// implementation and a scripted test double are provided; every consumer
// (module handler, logger, prober) depends only on the interfaces.
package device

import "context"

// MessageEndpoint issues one request and reads back its reply. Request and
// reply are opaque octet buffers; maxReply bounds how much reply data the
// caller will accept.
type MessageEndpoint interface {
	Send(ctx context.Context, request []byte, maxReply int) ([]byte, error)
}

// ControlEndpoint reads and writes named scalar/struct controls.
type ControlEndpoint interface {
	CtlRead(name string, out []byte) error
	CtlWrite(name string, in []byte) error
}
