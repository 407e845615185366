// Package attributes holds the static registry mapping friendly attribute
// names to the wire tuples (setter selector, type code, target kind) the
// LookinServer agent expects, plus the value parsers for each type code.
package attributes

import (
	"sort"

	"github.com/isnine/lookinmcp/pkg/requests"
)

// TargetKind distinguishes whether an attribute is set on a view or its
// backing layer.
type TargetKind int

const (
	TargetView TargetKind = iota
	TargetLayer
)

// Entry is one immutable registry record.
type Entry struct {
	FriendlyName   string
	Identifier     string
	SetterSelector string
	AttrType       int
	TargetKind     TargetKind
	NeedsPatch     bool
	ValueHelp      string
}

// helpPseudoName is intercepted before lookup and returns the full help
// text rather than a registry entry.
const helpPseudoName = "help"

var registry = buildRegistry()

func buildRegistry() map[string]Entry {
	entries := []Entry{
		{"alpha", "v_a_f", "setAlpha:", requests.TypeFloat, TargetView, false, "decimal in [0,1], e.g. 0.5"},
		{"hidden", "v_h_b", "setHidden:", requests.TypeBool, TargetView, false, "true|yes|1 or false|no|0"},
		{"backgroundColor", "l_bgc_c", "setBackgroundColor:", requests.TypeUIColor, TargetLayer, true, "#RRGGBB, #RRGGBBAA, or r,g,b[,a] floats in [0,1]"},
		{"frame", "l_f_r", "setFrame:", requests.TypeCGRect, TargetLayer, true, "x,y,width,height"},
		{"bounds", "l_b_r", "setBounds:", requests.TypeCGRect, TargetLayer, true, "x,y,width,height"},
		{"position", "l_p_p", "setPosition:", requests.TypeCGPoint, TargetLayer, true, "x,y"},
		{"cornerRadius", "l_cr_f", "setCornerRadius:", requests.TypeFloat, TargetLayer, false, "decimal, e.g. 8.0"},
		{"borderWidth", "l_bw_f", "setBorderWidth:", requests.TypeFloat, TargetLayer, false, "decimal, e.g. 1.0"},
		{"opacity", "l_o_f", "setOpacity:", requests.TypeFloat, TargetLayer, false, "decimal in [0,1]"},
		{"text", "lb_t_t", "setText:", requests.TypeNSString, TargetView, false, "any string"},
		{"placeholder", "tf_p_p", "setPlaceholder:", requests.TypeNSString, TargetView, false, "any string"},
		{"edgeInsets", "v_ei_e", "setEdgeInsets:", requests.TypeUIEdgeInsets, TargetView, true, "top,left,bottom,right"},
		{"tag", "v_t_i", "setTag:", requests.TypeInt, TargetView, false, "signed integer"},
		{"contentMode", "v_cm_e", "setContentMode:", requests.TypeEnumInt, TargetView, false, "signed integer enum value"},
		{"userInteractionEnabled", "v_uie_b", "setUserInteractionEnabled:", requests.TypeBool, TargetView, false, "true|yes|1 or false|no|0"},
	}

	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.FriendlyName] = e
	}
	return m
}

// TextBearingIdentifiers are the server-side attribute identifiers whose
// string values constitute a view's user-visible text.
var TextBearingIdentifiers = map[string]bool{
	"lb_t_t": true,
	"tf_t_t": true,
	"tf_p_p": true,
	"te_t_t": true,
}

// helpText is the full registry listing returned for the help pseudo-name.
func helpText() string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := "Supported attributes:\n"
	for _, name := range names {
		out += "  " + name + ": " + registry[name].ValueHelp + "\n"
	}
	return out
}

// Lookup resolves a friendly name to its registry entry. The special name
// "help" is intercepted and returns ok=false with isHelp=true so callers can
// render the full help text instead of failing with UnknownAttribute.
func Lookup(friendlyName string) (entry Entry, isHelp bool, ok bool) {
	if friendlyName == helpPseudoName {
		return Entry{}, true, false
	}
	e, ok := registry[friendlyName]
	return e, false, ok
}

// Help returns the full help text for the help pseudo-name.
func Help() string {
	return helpText()
}

// RegisteredNames returns every friendly attribute name in the registry,
// sorted ascending.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders a TargetKind as "view" or "layer".
func (k TargetKind) String() string {
	if k == TargetLayer {
		return "layer"
	}
	return "view"
}
