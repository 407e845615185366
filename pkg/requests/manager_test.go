package requests

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isnine/lookinmcp/pkg/archive"
	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/frame"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/transport"
)

// fakeAgent stands in for the LookinServer agent: serveOnce accepts one
// connection and answers its first inbound frame with a caller-supplied
// responder.
type fakeAgent struct {
	ln net.Listener
}

func startFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return &fakeAgent{ln: ln}
}

func (a *fakeAgent) port() int {
	return a.ln.Addr().(*net.TCPAddr).Port
}

func (a *fakeAgent) serveOnce(t *testing.T, respond func(req *frame.Frame) (msgType uint32, payload []byte)) {
	t.Helper()
	go func() {
		conn, err := a.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := frame.ReadFrame(conn)
		if err != nil {
			return
		}
		msgType, payload := respond(req)
		_, _ = conn.Write(frame.EncodeFrame(msgType, req.Header.Tag, payload))
	}()
}

func dialManager(t *testing.T, a *fakeAgent) Manager {
	t.Helper()
	c := transport.New()
	require.NoError(t, c.Connect(context.Background(), a.port()))
	t.Cleanup(func() { _ = c.Disconnect() })
	return NewManager(c)
}

func TestManagerPingHappyPath(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{"appIsInBackground": false})
		return CodePing, payload
	})

	m := dialManager(t, a)
	alive, bg, err := m.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, alive)
	assert.False(t, bg)
}

func TestManagerAppInfoDecodesDirectShape(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": map[string]any{
				"appName":     "Demo",
				"bundleID":    "com.example.demo",
				"appVersion":  "1.0",
				"isSandboxed": true,
				"deviceInfo":  "iPhone Simulator",
			},
		})
		return CodeApp, payload
	})

	m := dialManager(t, a)
	info, err := m.AppInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Demo", info.AppName)
	assert.True(t, info.IsSandboxed)
}

func TestManagerAppInfoAcceptsHierarchyShape(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": map[string]any{
				"appInfo": map[string]any{
					"appName":  "Demo",
					"bundleID": "com.example.demo",
				},
				"screenWidth":  float64(390),
				"screenHeight": float64(844),
			},
		})
		return CodeApp, payload
	})

	m := dialManager(t, a)
	info, err := m.AppInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Demo", info.AppName)
}

func TestManagerHierarchyDecodesTree(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": map[string]any{
				"screenWidth":  float64(390),
				"screenHeight": float64(844),
				"rootDisplayItem": map[string]any{
					"oid":         int64(1),
					"layerOid":    int64(10),
					"className":   "UIView",
					"frameX":      float64(0),
					"frameY":      float64(0),
					"frameWidth":  float64(390),
					"frameHeight": float64(844),
					"children": []any{
						map[string]any{
							"oid": int64(2), "layerOid": int64(20), "className": "UILabel",
							"frameX": float64(10), "frameY": float64(10), "frameWidth": float64(100), "frameHeight": float64(20),
						},
					},
				},
			},
		})
		return CodeHierarchy, payload
	})

	m := dialManager(t, a)
	h, err := m.Hierarchy(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h.RootDisplayItem)
	assert.Equal(t, uint64(1), h.RootDisplayItem.Oid)
	require.Len(t, h.RootDisplayItem.Children, 1)
	assert.Equal(t, "UILabel", h.RootDisplayItem.Children[0].ClassName)
}

func TestManagerModifyAttributeSurfacesServerError(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": nil,
			"error": map[string]any{
				"code":        int64(1),
				"description": "no such setter",
			},
		})
		return CodeInbuiltAttrModification, payload
	})

	m := dialManager(t, a)
	err := m.ModifyAttribute(context.Background(), lookin.LookinAttributeModification{
		TargetOid:      0,
		SetterSelector: "setFoo:",
		AttrType:       14,
		Value:          true,
	})
	require.Error(t, err)
	assert.True(t, lerrors.IsServerError(err))
}

func TestManagerInvokeMethodVoidSentinel(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": map[string]any{"description": voidReturnSentinel},
		})
		return CodeInvokeMethod, payload
	})

	m := dialManager(t, a)
	desc, err := m.InvokeMethod(context.Background(), 1, "setHidden:")
	require.NoError(t, err)
	assert.Empty(t, desc)
}

func TestManagerListSelectors(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		payload := archive.EncodeDict(map[string]any{
			"data": []any{"setHidden:", "setAlpha:"},
		})
		return CodeAllSelectorNames, payload
	})

	m := dialManager(t, a)
	names, err := m.ListSelectors(context.Background(), "UIView", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"setHidden:", "setAlpha:"}, names)
}

func TestManagerModifyAttributeEncodesColorAndWrapsAttachment(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)

	var captured *archive.KeyedObject
	a.serveOnce(t, func(req *frame.Frame) (uint32, []byte) {
		decoded, err := archive.DecodeKeyedArchive(req.Payload, nil)
		require.NoError(t, err)
		attachment, ok := decoded.(*archive.KeyedObject)
		require.True(t, ok, "request root should be a LookinAttachment")
		captured, ok = attachment.Fields["data"].(*archive.KeyedObject)
		require.True(t, ok, "attachment's data field should carry the LookinAttributeModification")

		payload := archive.EncodeDict(map[string]any{
			"data": map[string]any{"success": true},
		})
		return CodeInbuiltAttrModification, payload
	})

	m := dialManager(t, a)
	err := m.ModifyAttribute(context.Background(), lookin.LookinAttributeModification{
		TargetOid:      42,
		SetterSelector: "setBackgroundColor:",
		AttrType:       27,
		Value:          lookin.Color{R: 0.5, G: 1, B: 0, A: 1},
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "LookinAttributeModification", captured.ClassName)
	assert.Equal(t, "setBackgroundColor:", captured.Fields["setterSelector"])
	assert.Equal(t, []any{0.5, 1.0, 0.0, 1.0}, captured.Fields["value"])
}

func TestManagerTimeoutWhenAgentNeverReplies(t *testing.T) {
	t.Parallel()
	a := startFakeAgent(t)
	go func() {
		conn, err := a.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = frame.ReadFrame(conn)
		time.Sleep(5 * time.Second)
	}()

	c := transport.New()
	require.NoError(t, c.Connect(context.Background(), a.port()))
	t.Cleanup(func() { _ = c.Disconnect() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, _, err := NewManager(c).Ping(ctx)
	require.Error(t, err)
	assert.True(t, lerrors.IsTimeout(err))
}
