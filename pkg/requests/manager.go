package requests

import (
	"context"
	"fmt"

	"github.com/isnine/lookinmcp/pkg/archive"
	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/transport"
)

// Manager exposes the typed LookinServer operations. Every operation builds
// a request payload, sends it with the operation's default timeout, and
// decodes the response envelope, surfacing a server-reported error and
// validating the data shape before returning.
type Manager interface {
	Ping(ctx context.Context) (alive bool, inBackground bool, err error)
	AppInfo(ctx context.Context) (*lookin.LookinAppInfo, error)
	Hierarchy(ctx context.Context) (*lookin.LookinHierarchyInfo, error)
	AllAttrGroups(ctx context.Context, layerOid uint64) ([]lookin.LookinAttributesGroup, error)
	ModifyAttribute(ctx context.Context, mod lookin.LookinAttributeModification) error
	InvokeMethod(ctx context.Context, oid uint64, selector string) (string, error)
	ListSelectors(ctx context.Context, className string, hasArg bool) ([]string, error)
}

type manager struct {
	conn *transport.Conn
}

// NewManager returns a Manager built over an already-Ready connection.
func NewManager(conn *transport.Conn) Manager {
	return &manager{conn: conn}
}

func (m *manager) Ping(ctx context.Context) (bool, bool, error) {
	f, err := m.conn.SendRequest(ctx, CodePing, nil, TimeoutPing)
	if err != nil {
		return false, false, err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return false, false, err
	}
	if env.Error != nil {
		return false, false, lerrors.NewServerErrorError(env.Error.Description, nil)
	}
	return true, env.AppIsInBackground, nil
}

func (m *manager) AppInfo(ctx context.Context) (*lookin.LookinAppInfo, error) {
	payload := archive.EncodeAttachment(&archive.KeyedObject{
		ClassName: "LookinAttachment",
		Fields: map[string]any{
			"data": map[string]any{
				"needImages": false,
				"local":      []any{},
			},
		},
	})

	f, err := m.conn.SendRequest(ctx, CodeApp, payload, TimeoutAppInfo)
	if err != nil {
		return nil, err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	fields, err := dataFields(env.Data)
	if err != nil {
		return nil, err
	}

	// The open question in §9: code 201 occasionally answers with a full
	// LookinHierarchyInfo instead of LookinAppInfo; accept both shapes.
	if appInfoField, ok := fields["appInfo"]; ok {
		fields, err = dataFields(appInfoField)
		if err != nil {
			return nil, err
		}
	}

	return decodeAppInfo(fields)
}

func (m *manager) Hierarchy(ctx context.Context) (*lookin.LookinHierarchyInfo, error) {
	f, err := m.conn.SendRequest(ctx, CodeHierarchy, nil, TimeoutHierarchy)
	if err != nil {
		return nil, err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	fields, err := dataFields(env.Data)
	if err != nil {
		return nil, err
	}
	return decodeHierarchyInfo(fields)
}

func (m *manager) AllAttrGroups(ctx context.Context, layerOid uint64) ([]lookin.LookinAttributesGroup, error) {
	payload := archive.EncodeAttachment(&archive.KeyedObject{
		ClassName: "LookinAttachment",
		Fields:    map[string]any{"data": int64(layerOid)},
	})

	f, err := m.conn.SendRequest(ctx, CodeAllAttrGroups, payload, TimeoutAllAttrGroups)
	if err != nil {
		return nil, err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	items, ok := env.Data.([]any)
	if !ok {
		return nil, lerrors.NewInvalidFrameError("AllAttrGroups response data was not a list", nil)
	}

	groups := make([]lookin.LookinAttributesGroup, 0, len(items))
	for _, item := range items {
		fields, err := dataFields(item)
		if err != nil {
			return nil, err
		}
		g, err := decodeAttributesGroup(fields)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (m *manager) ModifyAttribute(ctx context.Context, mod lookin.LookinAttributeModification) error {
	payload := archive.EncodeAttachment(&archive.KeyedObject{
		ClassName: "LookinAttachment",
		Fields: map[string]any{
			"data": &archive.KeyedObject{
				ClassName: "LookinAttributeModification",
				Fields: map[string]any{
					"targetOid":             int64(mod.TargetOid),
					"setterSelector":        mod.SetterSelector,
					"attrType":              int64(mod.AttrType),
					"value":                 mod.Value,
					"clientReadableVersion": mod.ClientReadableVersion,
				},
			},
		},
	})

	f, err := m.conn.SendRequest(ctx, CodeInbuiltAttrModification, payload, TimeoutModify)
	if err != nil {
		return err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return err
	}
	if env.Error != nil {
		return lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	fields, err := dataFields(env.Data)
	if err != nil {
		return err
	}
	detail := decodeDisplayItemDetail(fields)
	if !detail.Success {
		return lerrors.NewServerErrorError(detail.ErrorDescription, nil)
	}
	return nil
}

func (m *manager) InvokeMethod(ctx context.Context, oid uint64, selector string) (string, error) {
	payload := archive.EncodeAttachment(&archive.KeyedObject{
		ClassName: "LookinAttachment",
		Fields: map[string]any{
			"data": map[string]any{
				"oid":  int64(oid),
				"text": selector,
			},
		},
	})

	f, err := m.conn.SendRequest(ctx, CodeInvokeMethod, payload, TimeoutInvoke)
	if err != nil {
		return "", err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return "", err
	}
	if env.Error != nil {
		return "", lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	fields, err := dataFields(env.Data)
	if err != nil {
		return "", err
	}
	desc, _ := fields["description"].(string)
	if desc == voidReturnSentinel {
		return "", nil
	}
	return desc, nil
}

func (m *manager) ListSelectors(ctx context.Context, className string, hasArg bool) ([]string, error) {
	payload := archive.EncodeAttachment(&archive.KeyedObject{
		ClassName: "LookinAttachment",
		Fields: map[string]any{
			"data": map[string]any{
				"className": className,
				"hasArg":    hasArg,
			},
		},
	})

	f, err := m.conn.SendRequest(ctx, CodeAllSelectorNames, payload, TimeoutListSelectors)
	if err != nil {
		return nil, err
	}
	env, err := archive.DecodeResponse(f.Payload)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, lerrors.NewServerErrorError(env.Error.Description, nil)
	}

	items, ok := env.Data.([]any)
	if !ok {
		return nil, lerrors.NewInvalidFrameError("AllSelectorNames response data was not a list", nil)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, lerrors.NewInvalidFrameError("AllSelectorNames list contained a non-string entry", nil)
		}
		names = append(names, s)
	}
	return names, nil
}

func dataFields(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case *archive.KeyedObject:
		return t.Fields, nil
	case nil:
		return nil, lerrors.NewInvalidFrameError("expected a dictionary but response data was empty", nil)
	default:
		return nil, lerrors.NewInvalidFrameError(fmt.Sprintf("expected a dictionary, got %T", v), nil)
	}
}

func asString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func asBool(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func asUint64(fields map[string]any, key string) uint64 {
	switch n := fields[key].(type) {
	case int64:
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}

func asFloat64(fields map[string]any, key string) float64 {
	switch n := fields[key].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func decodeAppInfo(fields map[string]any) (*lookin.LookinAppInfo, error) {
	return &lookin.LookinAppInfo{
		AppName:     asString(fields, "appName"),
		BundleID:    asString(fields, "bundleID"),
		AppVersion:  asString(fields, "appVersion"),
		IsSandboxed: asBool(fields, "isSandboxed"),
		DeviceInfo:  asString(fields, "deviceInfo"),
	}, nil
}

func decodeHierarchyInfo(fields map[string]any) (*lookin.LookinHierarchyInfo, error) {
	hi := &lookin.LookinHierarchyInfo{
		ScreenWidth:  asFloat64(fields, "screenWidth"),
		ScreenHeight: asFloat64(fields, "screenHeight"),
	}

	if appInfoField, ok := fields["appInfo"]; ok {
		appFields, err := dataFields(appInfoField)
		if err == nil {
			hi.AppInfo, _ = decodeAppInfo(appFields)
		}
	}

	rootField, ok := fields["rootDisplayItem"]
	if !ok {
		return nil, lerrors.NewInvalidFrameError("hierarchy response missing rootDisplayItem", nil)
	}
	rootFields, err := dataFields(rootField)
	if err != nil {
		return nil, err
	}
	root, err := decodeDisplayItem(rootFields)
	if err != nil {
		return nil, err
	}
	hi.RootDisplayItem = root
	return hi, nil
}

func decodeDisplayItem(fields map[string]any) (*lookin.LookinDisplayItem, error) {
	item := &lookin.LookinDisplayItem{
		Oid:       asUint64(fields, "oid"),
		LayerOid:  asUint64(fields, "layerOid"),
		ClassName: asString(fields, "className"),
		Frame: lookin.Rect{
			Origin: lookin.Point{X: asFloat64(fields, "frameX"), Y: asFloat64(fields, "frameY")},
			Size:   lookin.Size{W: asFloat64(fields, "frameWidth"), H: asFloat64(fields, "frameHeight")},
		},
	}

	childrenField, ok := fields["children"].([]any)
	if !ok {
		return item, nil
	}
	for _, c := range childrenField {
		childFields, err := dataFields(c)
		if err != nil {
			continue
		}
		child, err := decodeDisplayItem(childFields)
		if err != nil {
			continue
		}
		item.Children = append(item.Children, child)
	}
	return item, nil
}

func decodeAttributesGroup(fields map[string]any) (lookin.LookinAttributesGroup, error) {
	g := lookin.LookinAttributesGroup{GroupName: asString(fields, "groupName")}

	attrsField, ok := fields["attributes"].([]any)
	if !ok {
		return g, nil
	}
	for _, a := range attrsField {
		attrFields, err := dataFields(a)
		if err != nil {
			continue
		}
		g.Attributes = append(g.Attributes, lookin.LookinAttribute{
			Identifier: asString(attrFields, "identifier"),
			Value:      attrFields["value"],
		})
	}
	return g, nil
}

func decodeDisplayItemDetail(fields map[string]any) lookin.LookinDisplayItemDetail {
	return lookin.LookinDisplayItemDetail{
		Success:          asBool(fields, "success"),
		ErrorDescription: asString(fields, "errorDescription"),
	}
}
