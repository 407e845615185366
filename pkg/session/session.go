// Package session holds the connection, request manager, and caches for
// one LookinMCP bridge instance, and orchestrates the multi-request
// workflows tool calls need: connect, hierarchy fetch with concurrent text
// enrichment, and oid resolution between views and layers.
package session

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/isnine/lookinmcp/pkg/attributes"
	"github.com/isnine/lookinmcp/pkg/config"
	"github.com/isnine/lookinmcp/pkg/discovery"
	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/logger"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/requests"
	"github.com/isnine/lookinmcp/pkg/transport"
)

// Session owns one LookinServer connection end-to-end and the caches built
// on top of it. Callers are expected to serialize calls externally (the MCP
// host dispatches tool calls one at a time); a mutex guards the Session's
// fields, but whole operations are not ordered against each other.
type Session struct {
	cfg     config.Config
	conn    *transport.Conn
	manager requests.Manager
	prober  *discovery.Prober

	mu                    sync.Mutex
	cachedHierarchy       *lookin.LookinHierarchyInfo
	cachedTextContentMap  map[uint64]string
	viewToLayerOid        map[uint64]uint64
}

// New returns a disconnected Session configured with cfg.
func New(cfg config.Config) *Session {
	return &Session{
		cfg:    cfg,
		prober: discovery.New(),
	}
}

// Connect probes the configured port range for a listening agent, connects
// to the first one found, and builds the request manager over it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil && s.conn.State() == transport.StateReady {
		s.mu.Unlock()
		return lerrors.NewAlreadyConnectedError("session already has a ready connection", nil)
	}
	s.mu.Unlock()

	port, ok := s.prober.FindFirst(ctx, s.cfg.PortRange(), s.cfg.ConnectTimeout)
	if !ok {
		return lerrors.NewConnectionFailedError("no LookinServer agent found on the configured port range", nil)
	}

	conn := transport.New()
	if err := conn.Connect(ctx, port); err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.manager = requests.NewManager(conn)
	s.mu.Unlock()

	logger.Infow("session connected", "port", port)
	return nil
}

// Disconnect tears the connection down and clears every cache.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.manager = nil
	s.cachedHierarchy = nil
	s.cachedTextContentMap = nil
	s.viewToLayerOid = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// Ready reports whether the session currently holds a Ready connection.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.State() == transport.StateReady
}

// SessionID returns the current connection's generated identifier, used to
// tag log lines and attribute modifications' clientReadableVersion field. It
// is empty when the session holds no connection.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.SessionID()
}

func (s *Session) requireManager() (requests.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager == nil {
		return nil, lerrors.NewNotConnectedError("no active session connection", nil)
	}
	return s.manager, nil
}

// Ping pings the connected agent. A failure drops the connection and clears
// caches so the next tool call starts cleanly from Idle.
func (s *Session) Ping(ctx context.Context) (alive bool, inBackground bool, err error) {
	m, err := s.requireManager()
	if err != nil {
		return false, false, err
	}
	alive, inBackground, err = m.Ping(ctx)
	if err != nil {
		_ = s.Disconnect()
		return false, false, err
	}
	return alive, inBackground, nil
}

// AppInfo fetches the app/device info for the connected agent.
func (s *Session) AppInfo(ctx context.Context) (*lookin.LookinAppInfo, error) {
	m, err := s.requireManager()
	if err != nil {
		return nil, err
	}
	return m.AppInfo(ctx)
}

// Hierarchy fetches and caches the view hierarchy, clearing the text cache
// and the view→layer oid index so later lookups target the new tree.
func (s *Session) Hierarchy(ctx context.Context) (*lookin.LookinHierarchyInfo, error) {
	m, err := s.requireManager()
	if err != nil {
		return nil, err
	}

	h, err := m.Hierarchy(ctx)
	if err != nil {
		_ = s.Disconnect()
		return nil, err
	}

	s.mu.Lock()
	s.cachedHierarchy = h
	s.cachedTextContentMap = nil
	s.viewToLayerOid = buildOidIndex(h)
	s.mu.Unlock()

	return h, nil
}

// CachedHierarchy returns the last fetched hierarchy, or nil if none has
// been fetched since connect or the last disconnect.
func (s *Session) CachedHierarchy() *lookin.LookinHierarchyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedHierarchy
}

func buildOidIndex(h *lookin.LookinHierarchyInfo) map[uint64]uint64 {
	idx := make(map[uint64]uint64)
	if h == nil {
		return idx
	}
	var walk func(item *lookin.LookinDisplayItem)
	walk = func(item *lookin.LookinDisplayItem) {
		if item == nil {
			return
		}
		idx[item.Oid] = item.LayerOid
		for _, c := range item.Children {
			walk(c)
		}
	}
	walk(h.RootDisplayItem)
	return idx
}

// resolveLayerOid translates a view oid to its layer oid using the cached
// hierarchy; if the cache is absent, or the oid is unknown, the oid is
// returned unchanged (best-effort, per the protocol's ambiguity here).
func (s *Session) resolveLayerOid(oid uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewToLayerOid == nil {
		return oid
	}
	if layerOid, ok := s.viewToLayerOid[oid]; ok {
		return layerOid
	}
	return oid
}

// AllAttrGroups fetches every attribute group for the layer backing oid,
// resolving a view oid to its layer oid via the cached hierarchy first.
func (s *Session) AllAttrGroups(ctx context.Context, oid uint64) ([]lookin.LookinAttributesGroup, error) {
	m, err := s.requireManager()
	if err != nil {
		return nil, err
	}
	return m.AllAttrGroups(ctx, s.resolveLayerOid(oid))
}

// ModifyAttribute parses rawValue according to the friendly attribute
// name's registered type, resolves the modification's target oid per the
// entry's target kind, sends the modification, and clears the text cache on
// success (the visible text may have changed).
func (s *Session) ModifyAttribute(ctx context.Context, oid uint64, friendlyName, rawValue, clientVersion string) error {
	m, err := s.requireManager()
	if err != nil {
		return err
	}

	entry, isHelp, ok := attributes.Lookup(friendlyName)
	if isHelp {
		return lerrors.NewUnknownAttributeError("\"help\" is not a modifiable attribute; call lookin_selectors or consult the help text", nil)
	}
	if !ok {
		return lerrors.NewUnknownAttributeError("attribute \""+friendlyName+"\" is not in the registry", nil)
	}

	value, err := attributes.ParseValue(friendlyName, rawValue, entry.AttrType)
	if err != nil {
		return err
	}

	targetOid := oid
	if entry.TargetKind == attributes.TargetLayer {
		targetOid = s.resolveLayerOid(oid)
	}

	mod := lookin.LookinAttributeModification{
		TargetOid:             targetOid,
		SetterSelector:        entry.SetterSelector,
		AttrType:              entry.AttrType,
		Value:                 value,
		ClientReadableVersion: clientVersion,
	}

	if err := m.ModifyAttribute(ctx, mod); err != nil {
		return err
	}

	s.mu.Lock()
	s.cachedTextContentMap = nil
	s.mu.Unlock()
	return nil
}

// InvokeMethod calls a zero-argument selector on oid and returns its
// server-reported return value description.
func (s *Session) InvokeMethod(ctx context.Context, oid uint64, selector string) (string, error) {
	m, err := s.requireManager()
	if err != nil {
		return "", err
	}
	return m.InvokeMethod(ctx, oid, selector)
}

// ListSelectors lists selector names the agent reports for className.
func (s *Session) ListSelectors(ctx context.Context, className string, hasArg bool) ([]string, error) {
	m, err := s.requireManager()
	if err != nil {
		return nil, err
	}
	return m.ListSelectors(ctx, className, hasArg)
}

// textBearingNode pairs a text-bearing display item's view and layer oid.
type textBearingNode struct {
	viewOid  uint64
	layerOid uint64
}

func collectTextBearingNodes(item *lookin.LookinDisplayItem) []textBearingNode {
	var out []textBearingNode
	var walk func(*lookin.LookinDisplayItem)
	walk = func(n *lookin.LookinDisplayItem) {
		if n == nil {
			return
		}
		if isTextBearingClass(n.ClassName) {
			out = append(out, textBearingNode{viewOid: n.Oid, layerOid: n.LayerOid})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(item)
	return out
}

// isTextBearingClass is a coarse class-name heuristic: the definitive
// signal is which attribute identifiers a view's group actually carries,
// checked by extractText, but visiting only classes that are
// plausibly text-bearing keeps the enrichment fan-out from querying every
// view in the tree.
func isTextBearingClass(className string) bool {
	for _, substr := range []string{"Label", "TextField", "TextView", "Button"} {
		if strings.Contains(className, substr) {
			return true
		}
	}
	return false
}

// FetchTextContentMap walks the cached hierarchy for text-bearing views and
// fetches their attribute groups in chunks of at most the configured
// enrichment concurrency, extracting text-bearing attribute values. Per-view
// failures are swallowed; the result is the aggregate viewOid→text mapping.
func (s *Session) FetchTextContentMap(ctx context.Context) (map[uint64]string, error) {
	s.mu.Lock()
	h := s.cachedHierarchy
	cached := s.cachedTextContentMap
	s.mu.Unlock()

	if cached != nil {
		return cached, nil
	}
	if h == nil {
		return nil, lerrors.NewInvalidFrameError("fetchTextContentMap called with no cached hierarchy; call Hierarchy first", nil)
	}

	m, err := s.requireManager()
	if err != nil {
		return nil, err
	}

	nodes := collectTextBearingNodes(h.RootDisplayItem)
	result := make(map[uint64]string)
	var resultMu sync.Mutex

	chunkSize := s.cfg.EnrichmentConcurrency
	if chunkSize <= 0 {
		chunkSize = 1
	}

	for start := 0; start < len(nodes); start += chunkSize {
		end := start + chunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		chunk := nodes[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(chunkSize)
		for _, n := range chunk {
			n := n
			g.Go(func() error {
				groups, err := m.AllAttrGroups(gctx, n.layerOid)
				if err != nil {
					return nil // per-view failures are swallowed
				}
				text := extractText(groups)
				if text == "" {
					return nil
				}
				resultMu.Lock()
				result[n.viewOid] = text
				resultMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.cachedTextContentMap = result
	s.mu.Unlock()

	return result, nil
}

func extractText(groups []lookin.LookinAttributesGroup) string {
	var parts []string
	for _, g := range groups {
		for _, a := range g.Attributes {
			if !attributes.TextBearingIdentifiers[a.Identifier] {
				continue
			}
			s, ok := a.Value.(string)
			if !ok || s == "" {
				continue
			}
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}
