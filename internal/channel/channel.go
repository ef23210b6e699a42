package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"example.com/clocksim/internal/types"
)

// MaxMessageSize bounds a single inbound read.
const MaxMessageSize = 2048

// DefaultPollWindow is how long Poll waits for a pending connection. An
// already expired deadline makes Accept fail before it looks at the backlog,
// so the window cannot be zero.
const DefaultPollWindow = time.Millisecond

type PollStatus int

const (
	NoConnection PollStatus = iota
	Received
	Failed
)

func (s PollStatus) String() string {
	switch s {
	case NoConnection:
		return "no-connection"
	case Received:
		return "received"
	default:
		return "failed"
	}
}

// PollResult is the outcome of one Poll.
// Msg is set for Received. Err and Raw are set for Failed.
type PollResult struct {
	Status PollStatus
	Msg    types.Message
	Raw    []byte
	Err    error
}

// Listener is a VM's inbound endpoint. One accepted connection carries
// exactly one message.
type Listener struct {
	ln     *net.TCPListener
	window time.Duration
}

func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return &Listener{ln: ln, window: DefaultPollWindow}, nil
}

func (l *Listener) SetPollWindow(d time.Duration) {
	if d > 0 {
		l.window = d
	}
}

func (l *Listener) Addr() string { return l.ln.Addr().String() }

func (l *Listener) Close() error { return l.ln.Close() }

// Poll accepts at most one pending connection. If one arrives it blocks,
// without a timeout, until a complete message has arrived or the peer closes.
func (l *Listener) Poll() PollResult {
	if err := l.ln.SetDeadline(time.Now().Add(l.window)); err != nil {
		return PollResult{Status: Failed, Err: err}
	}
	conn, err := l.ln.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return PollResult{Status: NoConnection}
		}
		return PollResult{Status: Failed, Err: err}
	}
	return receive(conn)
}

// receive reads chunks until the buffer decodes, the peer closes, or
// MaxMessageSize bytes have arrived.
func receive(conn net.Conn) PollResult {
	defer conn.Close()
	raw := make([]byte, 0, MaxMessageSize)
	chunk := make([]byte, MaxMessageSize)
	for len(raw) < MaxMessageSize {
		n, err := conn.Read(chunk[:MaxMessageSize-len(raw)])
		raw = append(raw, chunk[:n]...)
		if n > 0 {
			if msg, derr := Decode(raw); derr == nil {
				return PollResult{Status: Received, Msg: msg}
			}
		}
		if err != nil {
			if len(raw) == 0 && !errors.Is(err, io.EOF) {
				return PollResult{Status: Failed, Err: err}
			}
			break
		}
	}
	msg, err := Decode(raw)
	if err != nil {
		return PollResult{Status: Failed, Raw: raw, Err: err}
	}
	return PollResult{Status: Received, Msg: msg}
}

// Sender opens one connection per message.
type Sender struct {
	Dialer net.Dialer
}

func NewSender(dialTimeout time.Duration) *Sender {
	return &Sender{Dialer: net.Dialer{Timeout: dialTimeout}}
}

// Send writes m to addr once and closes the connection. No ack, no retry.
func (s *Sender) Send(ctx context.Context, addr string, m types.Message) error {
	conn, err := s.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	defer conn.Close()
	if _, err := conn.Write(Encode(m)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransport, addr, err)
	}
	return nil
}
