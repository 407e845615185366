package attributes

import (
	"fmt"
	"strconv"
	"strings"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/requests"
)

// ParseValue converts a user-supplied string into the Go value the given
// attribute type code expects on the wire, per the registry entry's
// attrType. Any parse failure names the attribute and the offending string.
func ParseValue(friendlyName, raw string, attrType int) (any, error) {
	switch attrType {
	case requests.TypeBool:
		return parseBool(friendlyName, raw)
	case requests.TypeInt, requests.TypeEnumInt:
		return parseInt(friendlyName, raw, 32)
	case requests.TypeLong, requests.TypeEnumLong:
		return parseInt(friendlyName, raw, 64)
	case requests.TypeFloat, requests.TypeDouble:
		return parseFloat(friendlyName, raw)
	case requests.TypeNSString:
		return raw, nil
	case requests.TypeCGPoint:
		return parsePoint(friendlyName, raw)
	case requests.TypeCGSize:
		return parseSize(friendlyName, raw)
	case requests.TypeCGRect:
		return parseRect(friendlyName, raw)
	case requests.TypeUIEdgeInsets:
		return parseEdgeInsets(friendlyName, raw)
	case requests.TypeUIColor:
		return parseColor(friendlyName, raw)
	default:
		return nil, lerrors.NewParseErrorError(
			fmt.Sprintf("attribute %q has unsupported type code %d", friendlyName, attrType), nil)
	}
}

func parseFail(friendlyName, raw string, cause error) error {
	return lerrors.NewParseErrorError(
		fmt.Sprintf("could not parse %q for attribute %q", raw, friendlyName), cause)
}

func parseBool(friendlyName, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, parseFail(friendlyName, raw, nil)
	}
}

func parseInt(friendlyName, raw string, bits int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, bits)
	if err != nil {
		return 0, parseFail(friendlyName, raw, err)
	}
	return v, nil
}

func parseFloat(friendlyName, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, parseFail(friendlyName, raw, err)
	}
	return v, nil
}

func splitComponents(raw string, arity int) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != arity {
		return nil, fmt.Errorf("expected %d comma-separated components, got %d", arity, len(parts))
	}
	out := make([]float64, arity)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parsePoint(friendlyName, raw string) (lookin.Point, error) {
	c, err := splitComponents(raw, 2)
	if err != nil {
		return lookin.Point{}, parseFail(friendlyName, raw, err)
	}
	return lookin.Point{X: c[0], Y: c[1]}, nil
}

func parseSize(friendlyName, raw string) (lookin.Size, error) {
	c, err := splitComponents(raw, 2)
	if err != nil {
		return lookin.Size{}, parseFail(friendlyName, raw, err)
	}
	return lookin.Size{W: c[0], H: c[1]}, nil
}

func parseRect(friendlyName, raw string) (lookin.Rect, error) {
	c, err := splitComponents(raw, 4)
	if err != nil {
		return lookin.Rect{}, parseFail(friendlyName, raw, err)
	}
	return lookin.Rect{Origin: lookin.Point{X: c[0], Y: c[1]}, Size: lookin.Size{W: c[2], H: c[3]}}, nil
}

func parseEdgeInsets(friendlyName, raw string) (lookin.EdgeInsets, error) {
	c, err := splitComponents(raw, 4)
	if err != nil {
		return lookin.EdgeInsets{}, parseFail(friendlyName, raw, err)
	}
	return lookin.EdgeInsets{Top: c[0], Left: c[1], Bottom: c[2], Right: c[3]}, nil
}

// parseColor accepts "#RRGGBB", "#RRGGBBAA", or 3- or 4-component
// comma-separated floats in [0,1]; a 3-tuple implies alpha=1. Hex without a
// leading "#" is rejected, as are hex lengths other than 6 or 8 digits.
func parseColor(friendlyName, raw string) (lookin.Color, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "#") {
		hex := raw[1:]
		if len(hex) != 6 && len(hex) != 8 {
			return lookin.Color{}, parseFail(friendlyName, raw,
				fmt.Errorf("hex color must be 6 or 8 digits, got %d", len(hex)))
		}
		r, err1 := strconv.ParseUint(hex[0:2], 16, 8)
		g, err2 := strconv.ParseUint(hex[2:4], 16, 8)
		b, err3 := strconv.ParseUint(hex[4:6], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return lookin.Color{}, parseFail(friendlyName, raw, fmt.Errorf("invalid hex digits"))
		}
		a := uint64(255)
		if len(hex) == 8 {
			av, err := strconv.ParseUint(hex[6:8], 16, 8)
			if err != nil {
				return lookin.Color{}, parseFail(friendlyName, raw, fmt.Errorf("invalid hex digits"))
			}
			a = av
		}
		return lookin.Color{
			R: float64(r) / 255.0,
			G: float64(g) / 255.0,
			B: float64(b) / 255.0,
			A: float64(a) / 255.0,
		}, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return lookin.Color{}, parseFail(friendlyName, raw,
			fmt.Errorf("color must be #hex or 3-4 comma-separated floats, got %d components", len(parts)))
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return lookin.Color{}, parseFail(friendlyName, raw, err)
		}
		vals[i] = v
	}
	a := 1.0
	if len(vals) == 4 {
		a = vals[3]
	}
	return lookin.Color{R: vals[0], G: vals[1], B: vals[2], A: a}, nil
}
