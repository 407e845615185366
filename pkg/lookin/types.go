// Package lookin defines the data shapes the LookinServer agent's keyed
// archives decode into and encode from. Every type here is pure data: no
// I/O, no behavior beyond simple geometry accessors.
package lookin

// Point is a 2D coordinate, matching CGPoint's wire shape.
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair, matching CGSize's wire shape.
type Size struct {
	W float64
	H float64
}

// Rect is an origin and size, matching CGRect's wire shape.
type Rect struct {
	Origin Point
	Size   Size
}

// MaxX returns the rect's right edge.
func (r Rect) MaxX() float64 { return r.Origin.X + r.Size.W }

// MaxY returns the rect's bottom edge.
func (r Rect) MaxY() float64 { return r.Origin.Y + r.Size.H }

// EdgeInsets is a four-sided inset, matching UIEdgeInsets' wire shape.
type EdgeInsets struct {
	Top    float64
	Left   float64
	Bottom float64
	Right  float64
}

// Color is an RGBA color with every component in [0, 1].
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

// Image is a host-side shape for an image: pixel dimensions and raw bytes,
// not a renderable bitmap. The archive decoder does not produce it; archived
// images decode to a generic archive.KeyedObject.
type Image struct {
	Width  int
	Height int
	Data   []byte
}

// LookinAppInfo describes the inspected app and device, the payload of the
// App info request.
type LookinAppInfo struct {
	AppName     string
	BundleID    string
	AppVersion  string
	IsSandboxed bool
	DeviceInfo  string
}

// LookinHierarchyInfo is the full view-hierarchy snapshot returned by the
// hierarchy request: the app context, the root of the display-item tree, and
// the screen dimensions the tree's frames are expressed in.
type LookinHierarchyInfo struct {
	AppInfo         *LookinAppInfo
	RootDisplayItem *LookinDisplayItem
	ScreenWidth     float64
	ScreenHeight    float64
}

// LookinDisplayItem is one node of the view hierarchy: a view/layer pair
// identified by object id, its frame, and its children in z-order.
type LookinDisplayItem struct {
	Oid       uint64
	LayerOid  uint64
	ClassName string
	Frame     Rect
	Children  []*LookinDisplayItem
}

// LookinAttribute is a single named attribute value within a group.
type LookinAttribute struct {
	Identifier string
	Value      any
}

// LookinAttributesGroup is a named cluster of related attributes, the unit
// the AllAttrGroups request returns in bulk.
type LookinAttributesGroup struct {
	GroupName  string
	Attributes []LookinAttribute
}

// LookinAttributeModification is an outbound request to change one
// attribute on one target view or layer.
type LookinAttributeModification struct {
	TargetOid             uint64
	SetterSelector        string
	AttrType              int
	Value                 any
	ClientReadableVersion string
}

// LookinDisplayItemDetail reports the outcome of an attribute modification:
// whether it succeeded, and why not if it didn't.
type LookinDisplayItemDetail struct {
	Success          bool
	ErrorDescription string
}
