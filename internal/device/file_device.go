package device

import (
	"context"
	"os"
	"sync"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
)

// FileMessageEndpoint implements MessageEndpoint by writing a request then
// reading back a reply from the same file, the way the kernel driver's
// message-exchange character device works: one write, one subsequent read,
// serialized so concurrent callers (module handler, logger, prober) never
// interleave their requests.
type FileMessageEndpoint struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileMessageEndpoint opens path for read/write message exchange.
func NewFileMessageEndpoint(path string) (*FileMessageEndpoint, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "open message endpoint", err)
	}
	return &FileMessageEndpoint{f: f}, nil
}

// Send writes request, then reads up to maxReply bytes of reply. ctx
// cancellation is advisory only: the underlying file I/O is not
// interruptible, matching the synchronous character-device contract.
func (e *FileMessageEndpoint) Send(ctx context.Context, request []byte, maxReply int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "message endpoint context canceled", err)
	}

	if _, err := e.f.Write(request); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "write message request", err)
	}

	reply := make([]byte, maxReply)
	n, err := e.f.Read(reply)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "read message reply", err)
	}
	return reply[:n], nil
}

// Close releases the underlying file handle.
func (e *FileMessageEndpoint) Close() error {
	return e.f.Close()
}

// FileControlEndpoint implements ControlEndpoint over debugfs-style named
// control files: one open/write/close (or open/read/close) sequence per
// call, serialized across concurrent callers.
type FileControlEndpoint struct {
	mu   sync.Mutex
	root string
}

// NewFileControlEndpoint roots named controls under a debugfs-style
// directory, one file per control name.
func NewFileControlEndpoint(root string) *FileControlEndpoint {
	return &FileControlEndpoint{root: root}
}

func (e *FileControlEndpoint) controlPath(name string) string {
	return e.root + "/" + name
}

// CtlRead reads a named control's current value into out.
func (e *FileControlEndpoint) CtlRead(name string, out []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Open(e.controlPath(name))
	if err != nil {
		return agenterr.Wrap(agenterr.Io, "open control for read: "+name, err)
	}
	defer f.Close()

	if _, err := f.Read(out); err != nil {
		return agenterr.Wrap(agenterr.Io, "read control: "+name, err)
	}
	return nil
}

// CtlWrite writes a named control's value.
func (e *FileControlEndpoint) CtlWrite(name string, in []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.OpenFile(e.controlPath(name), os.O_WRONLY, 0)
	if err != nil {
		return agenterr.Wrap(agenterr.Io, "open control for write: "+name, err)
	}
	defer f.Close()

	if _, err := f.Write(in); err != nil {
		return agenterr.Wrap(agenterr.Io, "write control: "+name, err)
	}
	return nil
}
