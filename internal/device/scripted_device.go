package device

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
)

// Command names a ScriptedDevice expectation: a message Send, a CtlRead,
// or a CtlWrite.
type Command int

const (
	CommandSend Command = iota
	CommandCtlRead
	CommandCtlWrite
)

// Expectation is one scripted call a ScriptedDevice will accept next, in
// order. Name is unused for CommandSend. WantInput is the expected request
// (Send) or write value (CtlWrite); it is nil for CtlRead. Output is the
// reply to hand back (Send) or the value to populate into the caller's
// buffer (CtlRead); it is unused for CtlWrite. Err, if set, is returned
// instead of a successful result.
type Expectation struct {
	Command   Command
	Name      string
	WantInput []byte
	Output    []byte
	Err       error
}

// ScriptedDevice implements MessageEndpoint and ControlEndpoint by
// consuming an ordered list of Expectations; a call that doesn't match the
// next expectation (wrong command, wrong name, wrong input) fails with a
// descriptive error rather than silently desyncing the script.
type ScriptedDevice struct {
	mu     sync.Mutex
	script []Expectation
	pos    int
}

// NewScriptedDevice builds a device that will serve exactly script, in order.
func NewScriptedDevice(script []Expectation) *ScriptedDevice {
	return &ScriptedDevice{script: script}
}

// Remaining reports how many scripted expectations have not yet been consumed.
func (d *ScriptedDevice) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.script) - d.pos
}

func (d *ScriptedDevice) next(cmd Command) (Expectation, error) {
	if d.pos >= len(d.script) {
		return Expectation{}, agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: unexpected call %v, script exhausted", cmd))
	}
	exp := d.script[d.pos]
	if exp.Command != cmd {
		return Expectation{}, agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: expected %v, got %v at step %d", exp.Command, cmd, d.pos))
	}
	d.pos++
	return exp, nil
}

// Send implements MessageEndpoint.
func (d *ScriptedDevice) Send(_ context.Context, request []byte, maxReply int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, err := d.next(CommandSend)
	if err != nil {
		return nil, err
	}
	if exp.WantInput != nil && !bytes.Equal(exp.WantInput, request) {
		return nil, agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: request mismatch at step %d: want %x got %x", d.pos-1, exp.WantInput, request))
	}
	if exp.Err != nil {
		return nil, exp.Err
	}
	if len(exp.Output) > maxReply {
		return nil, agenterr.New(agenterr.Io, "scripted device: reply exceeds maxReply")
	}
	return append([]byte(nil), exp.Output...), nil
}

// CtlRead implements ControlEndpoint.
func (d *ScriptedDevice) CtlRead(name string, out []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, err := d.next(CommandCtlRead)
	if err != nil {
		return err
	}
	if exp.Name != name {
		return agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: ctl read name mismatch: want %q got %q", exp.Name, name))
	}
	if exp.Err != nil {
		return exp.Err
	}
	copy(out, exp.Output)
	return nil
}

// CtlWrite implements ControlEndpoint.
func (d *ScriptedDevice) CtlWrite(name string, in []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, err := d.next(CommandCtlWrite)
	if err != nil {
		return err
	}
	if exp.Name != name {
		return agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: ctl write name mismatch: want %q got %q", exp.Name, name))
	}
	if exp.WantInput != nil && !bytes.Equal(exp.WantInput, in) {
		return agenterr.New(agenterr.Io, fmt.Sprintf("scripted device: ctl write value mismatch for %q", name))
	}
	if exp.Err != nil {
		return exp.Err
	}
	return nil
}
