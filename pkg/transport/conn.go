// Package transport owns a single TCP connection to a LookinServer agent: a
// serialized writer, a single reader loop, and a tag-keyed pending-request
// table implementing single-shot, tag-multiplexed request/response
// dispatch over one socket.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/frame"
	"github.com/isnine/lookinmcp/pkg/logger"
)

// State names the connection's position in its lifecycle. Closed and
// Failed are terminal; a new connection requires a fresh Conn.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pendingRequest is a single-shot completion record: whichever of
// {response, timeout, send failure, teardown} fires first delivers exactly
// once and removes itself from the pending table.
type pendingRequest struct {
	done  chan struct{}
	once  sync.Once
	frame *frame.Frame
	err   error
	timer atomic.Pointer[time.Timer]
}

func newPendingRequest() *pendingRequest {
	return &pendingRequest{done: make(chan struct{})}
}

func (p *pendingRequest) completeFrame(f *frame.Frame) {
	p.once.Do(func() {
		p.frame = f
		close(p.done)
	})
}

func (p *pendingRequest) completeErr(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// setTimer installs t as the request's timeout timer.
func (p *pendingRequest) setTimer(t *time.Timer) {
	p.timer.Store(t)
}

// stopTimer stops the installed timer, if one has been set.
func (p *pendingRequest) stopTimer() {
	if t := p.timer.Load(); t != nil {
		t.Stop()
	}
}

// Conn is one TCP connection to a LookinServer agent, dialed to exactly one
// of the fixed loopback ports.
type Conn struct {
	mu        sync.RWMutex
	state     State
	conn      net.Conn
	port      int
	sessionID string
	writeMu   sync.Mutex
	tagCtr    atomic.Uint32
	pendMu    sync.Mutex
	pending   map[uint32]*pendingRequest
	closeCh   chan struct{}
	closeOne  sync.Once
	readerWG  sync.WaitGroup
}

// New returns an unconnected Conn in state Idle.
func New() *Conn {
	return &Conn{
		state:   StateIdle,
		pending: make(map[uint32]*pendingRequest),
	}
}

// SessionID returns the identifier generated for this connection's lifetime,
// used to correlate log lines and tag outgoing attribute modifications. It
// is empty until Connect succeeds.
func (c *Conn) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect dials 127.0.0.1:port and, on success, starts the reader loop and
// transitions to Ready. Connect on a non-Idle instance fails with
// AlreadyConnected.
func (c *Conn) Connect(ctx context.Context, port int) error {
	c.mu.Lock()
	if c.state != StateIdle {
		s := c.state
		c.mu.Unlock()
		return lerrors.NewAlreadyConnectedError(
			fmt.Sprintf("connect called while connection is %s", s), nil)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	var d net.Dialer
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.setState(StateFailed)
		return lerrors.NewConnectionFailedError("dial failed", err)
	}

	sessionID := uuid.New().String()

	c.mu.Lock()
	c.conn = conn
	c.port = port
	c.sessionID = sessionID
	c.state = StateReady
	c.closeCh = make(chan struct{})
	c.mu.Unlock()

	c.readerWG.Add(1)
	go c.readLoop()

	logger.Debugw("transport connected", "port", port, "sessionID", sessionID)
	return nil
}

// Port returns the port this connection is dialed to, valid once Ready.
func (c *Conn) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.port
}

func (c *Conn) readLoop() {
	defer c.readerWG.Done()
	for {
		f, err := frame.ReadFrame(c.conn)
		if err != nil {
			c.teardown(lerrors.NewNotConnectedError("reader loop ended", err))
			return
		}
		c.pendMu.Lock()
		p, ok := c.pending[f.Header.Tag]
		if ok {
			delete(c.pending, f.Header.Tag)
		}
		c.pendMu.Unlock()

		if !ok {
			logger.Debugw("dropped unsolicited frame", "tag", f.Header.Tag)
			continue
		}
		p.stopTimer()
		p.completeFrame(f)
	}
}

// teardown transitions to Closed and fails every pending entry with err,
// exactly once regardless of how many callers observe the failure.
func (c *Conn) teardown(err error) {
	c.closeOne.Do(func() {
		c.setState(StateClosed)
		if c.closeCh != nil {
			close(c.closeCh)
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}

		c.pendMu.Lock()
		pending := c.pending
		c.pending = make(map[uint32]*pendingRequest)
		c.pendMu.Unlock()

		for _, p := range pending {
			p.stopTimer()
			p.completeErr(err)
		}
	})
}

// Disconnect tears the connection down and fails every outstanding pending
// request with NotConnected. Safe to call more than once.
func (c *Conn) Disconnect() error {
	c.teardown(lerrors.NewNotConnectedError("connection disconnected", nil))
	c.readerWG.Wait()
	return nil
}

// nextTag returns the next tag value, skipping the reserved value 0.
func (c *Conn) nextTag() uint32 {
	for {
		t := c.tagCtr.Add(1)
		if t != 0 {
			return t
		}
	}
}

// SendRequest writes one frame of the given type and payload and waits for
// its matching response, or for timeout, send failure, or teardown —
// whichever occurs first. The pending entry and the returned continuation
// each resolve exactly once.
func (c *Conn) SendRequest(ctx context.Context, msgType uint32, payload []byte, timeout time.Duration) (*frame.Frame, error) {
	if c.State() != StateReady {
		return nil, lerrors.NewNotConnectedError("sendRequest called while not ready", nil)
	}

	tag := c.nextTag()
	p := newPendingRequest()

	c.pendMu.Lock()
	c.pending[tag] = p
	c.pendMu.Unlock()

	cleanup := func() {
		c.pendMu.Lock()
		delete(c.pending, tag)
		c.pendMu.Unlock()
	}

	wire := frame.EncodeFrame(msgType, tag, payload)

	c.writeMu.Lock()
	_, writeErr := c.conn.Write(wire)
	c.writeMu.Unlock()

	if writeErr != nil {
		cleanup()
		return nil, lerrors.NewSendErrorError("frame write failed", writeErr)
	}

	p.setTimer(time.AfterFunc(timeout, func() {
		c.pendMu.Lock()
		_, stillPending := c.pending[tag]
		if stillPending {
			delete(c.pending, tag)
		}
		c.pendMu.Unlock()
		if stillPending {
			p.completeErr(lerrors.NewTimeoutError(
				fmt.Sprintf("request type %d timed out after %s", msgType, timeout), nil))
		}
	}))

	select {
	case <-p.done:
		p.stopTimer()
		if p.err != nil {
			return nil, p.err
		}
		return p.frame, nil
	case <-ctx.Done():
		cleanup()
		p.stopTimer()
		return nil, lerrors.NewTimeoutError("request canceled by caller context", ctx.Err())
	}
}
