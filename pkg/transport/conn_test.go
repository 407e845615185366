package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/frame"
)

// fakeServer accepts exactly one connection and lets the test script replies
// by tag, simulating the out-of-order responses a real agent may produce.
type fakeServer struct {
	ln   net.Listener
	conn net.Conn
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fs := &fakeServer{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	return fs
}

func (fs *fakeServer) port(t *testing.T) int {
	t.Helper()
	return fs.ln.Addr().(*net.TCPAddr).Port
}

func (fs *fakeServer) accept(t *testing.T) net.Conn {
	t.Helper()
	conn, err := fs.ln.Accept()
	require.NoError(t, err)
	fs.conn = conn
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRequest(t *testing.T, conn net.Conn) *frame.Frame {
	t.Helper()
	f, err := frame.ReadFrame(conn)
	require.NoError(t, err)
	return f
}

func reply(t *testing.T, conn net.Conn, tag uint32, msgType uint32, payload []byte) {
	t.Helper()
	_, err := conn.Write(frame.EncodeFrame(msgType, tag, payload))
	require.NoError(t, err)
}

func TestConnectAndPingRoundtrip(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()

	go func() {
		conn := fs.accept(t)
		req := readRequest(t, conn)
		reply(t, conn, req.Header.Tag, 200, []byte("pong"))
	}()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))
	assert.Equal(t, StateReady, c.State())
	assert.NotEmpty(t, c.SessionID())

	f, err := c.SendRequest(ctx, 200, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), f.Payload)
}

func TestConnectTwiceFailsAlreadyConnected(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()
	go fs.accept(t)

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))

	err := c.Connect(ctx, fs.port(t))
	require.Error(t, err)
	assert.True(t, lerrors.IsAlreadyConnected(err))
}

func TestSendRequestBeforeConnectFailsNotConnected(t *testing.T) {
	t.Parallel()
	c := New()
	_, err := c.SendRequest(context.Background(), 200, nil, time.Second)
	require.Error(t, err)
	assert.True(t, lerrors.IsNotConnected(err))
}

func TestSendRequestTimesOutWhenServerNeverReplies(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()
	go func() {
		conn := fs.accept(t)
		readRequest(t, conn)
		// never reply
	}()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))

	start := time.Now()
	_, err := c.SendRequest(ctx, 200, nil, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, lerrors.IsTimeout(err))
	assert.Less(t, elapsed, time.Second)
}

func TestInterleavedRequestsEachGetOwnResponse(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn := fs.accept(t)
		req1 := readRequest(t, conn)
		req2 := readRequest(t, conn)
		// Reply to the second request first, to exercise out-of-order delivery.
		reply(t, conn, req2.Header.Tag, 200, []byte("second"))
		reply(t, conn, req1.Header.Tag, 202, []byte("first"))
	}()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))

	type result struct {
		f   *frame.Frame
		err error
	}
	r1c := make(chan result, 1)
	r2c := make(chan result, 1)

	go func() {
		f, err := c.SendRequest(ctx, 202, nil, 2*time.Second)
		r1c <- result{f, err}
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		f, err := c.SendRequest(ctx, 200, nil, 2*time.Second)
		r2c <- result{f, err}
	}()

	r1 := <-r1c
	r2 := <-r2c
	<-serverDone

	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Equal(t, []byte("first"), r1.f.Payload)
	assert.Equal(t, []byte("second"), r2.f.Payload)
}

func TestDisconnectFailsAllPendingWithNotConnected(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()
	go func() {
		conn := fs.accept(t)
		readRequest(t, conn)
		readRequest(t, conn)
		// never reply; the test disconnects instead.
	}()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))

	type result struct{ err error }
	r1c := make(chan result, 1)
	r2c := make(chan result, 1)
	go func() {
		_, err := c.SendRequest(ctx, 200, nil, 5*time.Second)
		r1c <- result{err}
	}()
	go func() {
		_, err := c.SendRequest(ctx, 202, nil, 5*time.Second)
		r2c <- result{err}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Disconnect())

	select {
	case r := <-r1c:
		require.Error(t, r.err)
		assert.True(t, lerrors.IsNotConnected(r.err))
	case <-time.After(time.Second):
		t.Fatal("pending request 1 never completed after disconnect")
	}
	select {
	case r := <-r2c:
		require.Error(t, r.err)
		assert.True(t, lerrors.IsNotConnected(r.err))
	case <-time.After(time.Second):
		t.Fatal("pending request 2 never completed after disconnect")
	}

	assert.Equal(t, StateClosed, c.State())
}

func TestServerErrorDoesNotTearDownConnection(t *testing.T) {
	t.Parallel()
	fs := startFakeServer(t)
	c := New()
	go func() {
		conn := fs.accept(t)
		req := readRequest(t, conn)
		reply(t, conn, req.Header.Tag, 204, []byte("error-envelope"))
	}()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, fs.port(t)))

	f, err := c.SendRequest(ctx, 204, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("error-envelope"), f.Payload)
	assert.Equal(t, StateReady, c.State())
}
