package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/isnine/lookinmcp/pkg/attributes"
	"github.com/isnine/lookinmcp/pkg/config"
	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/logger"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/metrics"
	"github.com/isnine/lookinmcp/pkg/session"
)

const serverVersion = "0.1.0"

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server bridging a connected iOS Simulator app",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := config.Load(viperInstance)
	sess := session.New(cfg)
	h := &lookinHandler{session: sess}

	mcpServer := server.NewMCPServer("lookinmcp", serverVersion, server.WithToolCapabilities(false))
	registerTools(mcpServer, h)

	if cfg.DebugAddr != "" {
		rec, err := metrics.New()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		go serveDebugHTTP(cfg.DebugAddr, sess, rec)
	}

	logger.Info("starting lookinmcp stdio server")
	return server.ServeStdio(mcpServer)
}

func serveDebugHTTP(addr string, sess *session.Session, rec *metrics.Recorder) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if sess.Ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Handle("/metrics", rec.Handler())

	logger.Infow("starting debug HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil { //nolint:gosec // debug-only, local loopback by default
		logger.Errorw("debug HTTP server exited", "error", err)
	}
}

// lookinHandler adapts session.Session's typed API to mcp-go's
// text-in/text-out tool call convention.
type lookinHandler struct {
	session *session.Session
}

func registerTools(s *server.MCPServer, h *lookinHandler) {
	s.AddTool(mcp.Tool{
		Name:        "lookin_connect",
		Description: "Probe the local LookinServer agent's port range and connect to the first simulator app found",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.connect)

	s.AddTool(mcp.Tool{
		Name:        "lookin_disconnect",
		Description: "Disconnect from the currently connected simulator app",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.disconnect)

	s.AddTool(mcp.Tool{
		Name:        "lookin_ping",
		Description: "Ping the connected agent and report whether the app is foregrounded",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.ping)

	s.AddTool(mcp.Tool{
		Name:        "lookin_app_info",
		Description: "Fetch the connected app's name, bundle id, version, and device info",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.appInfo)

	s.AddTool(mcp.Tool{
		Name:        "lookin_hierarchy",
		Description: "Fetch and render a placeholder listing of the full view hierarchy",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.hierarchy)

	s.AddTool(mcp.Tool{
		Name:        "lookin_view_detail",
		Description: "Render a placeholder detail listing for a single view by oid",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"oid": map[string]any{"type": "string", "description": "view object id"}},
			Required:   []string{"oid"},
		},
	}, h.viewDetail)

	s.AddTool(mcp.Tool{
		Name:        "lookin_search",
		Description: "Search the cached hierarchy's enriched text for a substring",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"query": map[string]any{"type": "string", "description": "text to search for"}},
			Required:   []string{"query"},
		},
	}, h.search)

	s.AddTool(mcp.Tool{
		Name:        "lookin_subtree",
		Description: "Render a placeholder listing of the subtree rooted at a view by oid",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"oid": map[string]any{"type": "string", "description": "view object id"}},
			Required:   []string{"oid"},
		},
	}, h.subtree)

	s.AddTool(mcp.Tool{
		Name:        "lookin_modify",
		Description: "Modify a named attribute on a view or layer by oid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"oid":       map[string]any{"type": "string", "description": "target view object id"},
				"attribute": map[string]any{"type": "string", "description": "friendly attribute name, or \"help\" for the full list"},
				"value":     map[string]any{"type": "string", "description": "new value, format depends on the attribute"},
			},
			Required: []string{"oid", "attribute", "value"},
		},
	}, h.modify)

	s.AddTool(mcp.Tool{
		Name:        "lookin_invoke",
		Description: "Invoke a zero-argument selector on a view or layer by oid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"oid":      map[string]any{"type": "string", "description": "target object id"},
				"selector": map[string]any{"type": "string", "description": "Objective-C selector, e.g. setNeedsLayout"},
			},
			Required: []string{"oid", "selector"},
		},
	}, h.invoke)

	s.AddTool(mcp.Tool{
		Name:        "lookin_selectors",
		Description: "List selector names the agent reports for a class",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"className": map[string]any{"type": "string", "description": "Objective-C class name"},
				"hasArg":    map[string]any{"type": "boolean", "description": "restrict to selectors taking an argument"},
			},
			Required: []string{"className"},
		},
	}, h.selectors)
}

func textResult(s string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s), nil
}

func errResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func parseOid(raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, lerrors.NewParseErrorError("could not parse oid \""+raw+"\"", err)
	}
	return v, nil
}

func (h *lookinHandler) connect(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.session.Connect(ctx); err != nil {
		return errResult(err)
	}
	return textResult("connected")
}

func (h *lookinHandler) disconnect(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.session.Disconnect(); err != nil {
		return errResult(err)
	}
	return textResult("disconnected")
}

func (h *lookinHandler) ping(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alive, inBackground, err := h.session.Ping(ctx)
	if err != nil {
		return errResult(err)
	}
	return textResult(fmt.Sprintf("alive=%v appIsInBackground=%v", alive, inBackground))
}

func (h *lookinHandler) appInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := h.session.AppInfo(ctx)
	if err != nil {
		return errResult(err)
	}
	return textResult(fmt.Sprintf("%s (%s) v%s sandboxed=%v on %s",
		info.AppName, info.BundleID, info.AppVersion, info.IsSandboxed, info.DeviceInfo))
}

// renderItem is a placeholder indented listing of a display item; real
// prose rendering is the hierarchy-tree renderer's job, out of scope here.
func renderItem(item *lookin.LookinDisplayItem, depth int, sb *strings.Builder) {
	if item == nil {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(fmt.Sprintf("#%d %s frame=%.0f,%.0f,%.0f,%.0f\n",
		item.Oid, item.ClassName, item.Frame.Origin.X, item.Frame.Origin.Y, item.Frame.Size.W, item.Frame.Size.H))
	for _, c := range item.Children {
		renderItem(c, depth+1, sb)
	}
}

func (h *lookinHandler) hierarchy(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hi, err := h.session.Hierarchy(ctx)
	if err != nil {
		return errResult(err)
	}
	var sb strings.Builder
	renderItem(hi.RootDisplayItem, 0, &sb)
	return textResult(sb.String())
}

func findItem(item *lookin.LookinDisplayItem, oid uint64) *lookin.LookinDisplayItem {
	if item == nil {
		return nil
	}
	if item.Oid == oid {
		return item
	}
	for _, c := range item.Children {
		if found := findItem(c, oid); found != nil {
			return found
		}
	}
	return nil
}

func (h *lookinHandler) viewDetail(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Oid string `json:"oid"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}
	oid, err := parseOid(args.Oid)
	if err != nil {
		return errResult(err)
	}

	hi := h.session.CachedHierarchy()
	if hi == nil {
		return errResult(lerrors.NewInvalidFrameError("no cached hierarchy; call lookin_hierarchy first", nil))
	}
	item := findItem(hi.RootDisplayItem, oid)
	if item == nil {
		return errResult(lerrors.NewInvalidFrameError(fmt.Sprintf("no view with oid %d in cached hierarchy", oid), nil))
	}

	var sb strings.Builder
	renderItem(item, 0, &sb)
	return textResult(sb.String())
}

func (h *lookinHandler) subtree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Oid string `json:"oid"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}
	oid, err := parseOid(args.Oid)
	if err != nil {
		return errResult(err)
	}

	hi := h.session.CachedHierarchy()
	if hi == nil {
		return errResult(lerrors.NewInvalidFrameError("no cached hierarchy; call lookin_hierarchy first", nil))
	}
	item := findItem(hi.RootDisplayItem, oid)
	if item == nil {
		return errResult(lerrors.NewInvalidFrameError(fmt.Sprintf("no view with oid %d in cached hierarchy", oid), nil))
	}

	var sb strings.Builder
	renderItem(item, 0, &sb)
	return textResult(sb.String())
}

func (h *lookinHandler) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}

	textMap, err := h.session.FetchTextContentMap(ctx)
	if err != nil {
		return errResult(err)
	}

	var sb strings.Builder
	for oid, text := range textMap {
		if strings.Contains(strings.ToLower(text), strings.ToLower(args.Query)) {
			sb.WriteString(fmt.Sprintf("#%d: %s\n", oid, text))
		}
	}
	if sb.Len() == 0 {
		return textResult("no matches")
	}
	return textResult(sb.String())
}

func (h *lookinHandler) modify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Oid       string `json:"oid"`
		Attribute string `json:"attribute"`
		Value     string `json:"value"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}
	if _, isHelp, _ := attributes.Lookup(args.Attribute); isHelp {
		return textResult(attributes.Help())
	}
	oid, err := parseOid(args.Oid)
	if err != nil {
		return errResult(err)
	}

	if err := h.session.ModifyAttribute(ctx, oid, args.Attribute, args.Value, h.session.SessionID()); err != nil {
		return errResult(err)
	}
	return textResult("ok")
}

func (h *lookinHandler) invoke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Oid      string `json:"oid"`
		Selector string `json:"selector"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}
	oid, err := parseOid(args.Oid)
	if err != nil {
		return errResult(err)
	}

	desc, err := h.session.InvokeMethod(ctx, oid, args.Selector)
	if err != nil {
		return errResult(err)
	}
	if desc == "" {
		return textResult("void")
	}
	return textResult(desc)
}

func (h *lookinHandler) selectors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ClassName string `json:"className"`
		HasArg    bool   `json:"hasArg"`
	}
	if err := req.BindArguments(&args); err != nil {
		return errResult(lerrors.NewParseErrorError("invalid arguments", err))
	}

	names, err := h.session.ListSelectors(ctx, args.ClassName, args.HasArg)
	if err != nil {
		return errResult(err)
	}
	return textResult(strings.Join(names, "\n"))
}
