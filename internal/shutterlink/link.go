package shutterlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/raman-lab/autoraman/internal/monitoring"
)

// ErrDeviceTimeout is returned by Send when the peripheral does not reply
// within the configured window. The link never retries internally; the
// caller owns the retry policy.
var ErrDeviceTimeout = errors.New("shutterlink: device did not reply in time")

// ErrUnexpectedReply is returned when the device answers a command with a
// reply code that the command cannot produce.
var ErrUnexpectedReply = errors.New("shutterlink: unexpected reply")

// DefaultTimeout bounds one command/reply exchange. It is generous because a
// real shutter takes a couple of seconds to settle after a state change.
const DefaultTimeout = 5 * time.Second

// Porter is the minimal interface the link needs from a serial port. The
// abstraction enables unit testing without shutter hardware.
type Porter interface {
	io.ReadWriteCloser
}

// Link is an ordered command/response channel to one peripheral. Exactly one
// component may own a Link; it serializes commands itself but assumes no
// other writer shares the port.
type Link struct {
	port    Porter
	timeout time.Duration

	sendMu  sync.Mutex
	replies chan Reply
}

// Option configures a Link.
type Option func(*Link)

// WithTimeout overrides the per-command reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLink wraps a port. The caller must run Monitor before sending commands.
func NewLink(port Porter, opts ...Option) *Link {
	l := &Link{
		port:    port,
		timeout: DefaultTimeout,
		replies: make(chan Reply, 8),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Monitor reads bytes from the port, reassembles frames, and routes parsed
// replies to pending Send calls. It returns when the context is cancelled,
// the port reaches EOF, or a read error occurs. Closing the port unblocks a
// pending read.
func (l *Link) Monitor(ctx context.Context) error {
	frames := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)
		var dec Decoder
		buf := make([]byte, 256)
		for {
			n, err := l.port.Read(buf)
			if n > 0 {
				for _, payload := range dec.Feed(buf[:n]) {
					select {
					case frames <- payload:
					case <-ctx.Done():
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case readErr <- err:
					default:
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case payload, ok := <-frames:
			if !ok {
				return nil
			}
			reply, known := ParseReply(payload)
			if !known {
				monitoring.Logf("shutterlink: discarding unrecognized frame %q", payload)
				continue
			}
			if reply == ReplyReady {
				// Startup notice, not an answer to any command.
				monitoring.Logf("shutterlink: device reported ready")
				continue
			}
			select {
			case l.replies <- reply:
			default:
				monitoring.Logf("shutterlink: dropping unawaited reply %q", reply)
			}
		}
	}
}

// Send transmits one framed command and blocks for its reply, bounded by the
// link timeout. Commands are strictly serialized; a reply left over from an
// earlier timed-out exchange is drained before sending.
func (l *Link) Send(ctx context.Context, cmd Command) (Reply, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	for {
		select {
		case stale := <-l.replies:
			monitoring.Logf("shutterlink: draining stale reply %q", stale)
			continue
		default:
		}
		break
	}

	if _, err := l.port.Write(Frame(cmd)); err != nil {
		return "", fmt.Errorf("failed to write %s command: %w", cmd, err)
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case reply := <-l.replies:
		return reply, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", cmd, ErrDeviceTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OpenShutter opens the shutter. Opening an already-open shutter is a no-op
// on the device side but still acknowledged.
func (l *Link) OpenShutter(ctx context.Context) error {
	return l.expectAck(ctx, CmdOpen)
}

// CloseShutter closes the shutter. Idempotent like OpenShutter.
func (l *Link) CloseShutter(ctx context.Context) error {
	return l.expectAck(ctx, CmdClose)
}

// Reset re-initializes the peripheral and leaves the shutter closed.
func (l *Link) Reset(ctx context.Context) error {
	return l.expectAck(ctx, CmdReset)
}

// Status queries the current shutter state.
func (l *Link) Status(ctx context.Context) (Reply, error) {
	reply, err := l.Send(ctx, CmdStatus)
	if err != nil {
		return "", err
	}
	if reply != ReplyOpen && reply != ReplyClosed {
		return "", fmt.Errorf("%s answered %q: %w", CmdStatus, reply, ErrUnexpectedReply)
	}
	return reply, nil
}

func (l *Link) expectAck(ctx context.Context, cmd Command) error {
	reply, err := l.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if reply != ReplyAck {
		return fmt.Errorf("%s answered %q: %w", cmd, reply, ErrUnexpectedReply)
	}
	return nil
}

// Close closes the underlying port, unblocking Monitor.
func (l *Link) Close() error {
	return l.port.Close()
}
