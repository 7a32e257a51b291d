package shutterlink

import (
	"io"
	"sync"
	"time"
)

// SimulatedPort models the shutter controller firmware for tests and for
// running the acquisition tools without hardware. It implements Porter.
//
// The device answers OPEN, CLOSE and RESET with ACK and STATUS with its
// current state. OPEN and CLOSE are idempotent: repeating the current state
// skips the mechanical settle delay and still acknowledges.
type SimulatedPort struct {
	mu      sync.Mutex
	dec     Decoder
	out     chan []byte
	pending []byte
	open    bool
	closed  bool

	// Settle delays the acknowledgment after a real state change.
	Settle time.Duration
	// DropReplies makes the device swallow that many commands without
	// answering, to exercise caller timeout handling.
	DropReplies int
}

// NewSimulatedPort creates a simulated controller with the shutter closed.
// The startup READY notice is already queued for the first reader.
func NewSimulatedPort() *SimulatedPort {
	p := &SimulatedPort{out: make(chan []byte, 16)}
	p.out <- Frame(Command(ReplyReady))
	return p
}

// Read delivers queued device output, blocking until bytes are available or
// the port is closed.
func (p *SimulatedPort) Read(buf []byte) (int, error) {
	if len(p.pending) == 0 {
		b, ok := <-p.out
		if !ok {
			return 0, io.EOF
		}
		p.pending = b
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write feeds host bytes into the device-side frame decoder and executes any
// completed commands.
func (p *SimulatedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	payloads := p.dec.Feed(data)
	p.mu.Unlock()

	for _, payload := range payloads {
		cmd, ok := ParseCommand(payload)
		if !ok {
			continue // firmware ignores unknown commands
		}
		p.execute(cmd)
	}
	return len(data), nil
}

func (p *SimulatedPort) execute(cmd Command) {
	p.mu.Lock()
	if p.DropReplies > 0 {
		p.DropReplies--
		p.mu.Unlock()
		return
	}

	var reply Reply
	settle := time.Duration(0)
	switch cmd {
	case CmdOpen:
		if !p.open {
			p.open = true
			settle = p.Settle
		}
		reply = ReplyAck
	case CmdClose:
		if p.open {
			p.open = false
			settle = p.Settle
		}
		reply = ReplyAck
	case CmdStatus:
		if p.open {
			reply = ReplyOpen
		} else {
			reply = ReplyClosed
		}
	case CmdReset:
		p.open = false
		reply = ReplyAck
	}
	p.mu.Unlock()

	if settle > 0 {
		time.AfterFunc(settle, func() { p.enqueue(reply) })
		return
	}
	p.enqueue(reply)
}

func (p *SimulatedPort) enqueue(reply Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.out <- Frame(Command(reply)):
	default:
	}
}

// ShutterOpen reports the simulated shutter state.
func (p *SimulatedPort) ShutterOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Close shuts the port; pending reads return EOF.
func (p *SimulatedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	return nil
}
