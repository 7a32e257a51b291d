// Package shutterlink implements the framed command/response protocol used to
// drive the laser shutter and calibration light over a serial line.
//
// Commands and replies are short symbolic codes framed between '<' and '>'.
// Bytes received outside an open frame are discarded, so the receiver
// resynchronizes automatically after line noise.
package shutterlink

// Command is a symbolic code sent to the peripheral.
type Command string

const (
	CmdOpen   Command = "OPEN"
	CmdClose  Command = "CLOSE"
	CmdStatus Command = "STATUS"
	CmdReset  Command = "RESET"
)

// Reply is a symbolic code returned by the peripheral.
type Reply string

const (
	// ReplyAck is the generic acknowledgment for OPEN, CLOSE and RESET.
	ReplyAck Reply = "ACK"
	// ReplyOpen and ReplyClosed answer STATUS queries.
	ReplyOpen   Reply = "OPEN"
	ReplyClosed Reply = "CLOSED"
	// ReplyReady is sent once by the device at startup.
	ReplyReady Reply = "READY"
)

// ParseReply maps a frame payload to a known reply code.
func ParseReply(payload string) (Reply, bool) {
	switch Reply(payload) {
	case ReplyAck, ReplyOpen, ReplyClosed, ReplyReady:
		return Reply(payload), true
	}
	return "", false
}

// ParseCommand maps a frame payload to a known command code. Used by the
// device side of the simulated port.
func ParseCommand(payload string) (Command, bool) {
	switch Command(payload) {
	case CmdOpen, CmdClose, CmdStatus, CmdReset:
		return Command(payload), true
	}
	return "", false
}

// Frame delimiters and limits.
const (
	frameStart = '<'
	frameEnd   = '>'
	// maxPayload bounds the buffered frame body. Overflow bytes are dropped
	// silently rather than treated as fatal.
	maxPayload = 64
)

// Frame wraps a command payload in delimiters for transmission.
func Frame(cmd Command) []byte {
	b := make([]byte, 0, len(cmd)+2)
	b = append(b, frameStart)
	b = append(b, cmd...)
	b = append(b, frameEnd)
	return b
}

// decodeState enumerates the two receiver states. The payload buffer is part
// of the Decoder value, so there is no ordering dependency between buffer
// writes and any separate "command available" flag.
type decodeState int

const (
	stateIdle decodeState = iota
	stateFraming
)

// Decoder is the per-endpoint framing state machine. The zero value is ready
// to use.
type Decoder struct {
	state decodeState
	buf   []byte
}

// Feed consumes a chunk of received bytes and returns the payloads of any
// frames completed within it, in arrival order.
func (d *Decoder) Feed(data []byte) []string {
	var payloads []string
	for _, b := range data {
		switch d.state {
		case stateIdle:
			if b == frameStart {
				d.state = stateFraming
				d.buf = d.buf[:0]
			}
			// Anything outside a frame is noise.
		case stateFraming:
			switch {
			case b == frameEnd:
				payloads = append(payloads, string(d.buf))
				d.state = stateIdle
			case len(d.buf) < maxPayload:
				d.buf = append(d.buf, b)
			}
		}
	}
	return payloads
}
