package archive

import (
	"fmt"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/lookin"
)

// KeyedObject is a decoded, class-tagged dictionary: the generic shape every
// archived Objective-C object takes once its $class reference has been
// resolved to a class name and its instance variables collected into Fields.
type KeyedObject struct {
	ClassName string
	Fields    map[string]any
}

// Archive is a decoded NSKeyedArchiver payload: the resolved root object
// plus the raw object table, kept for lazy resolution of nested references.
type Archive struct {
	Root    any
	doc     *Document
	objects []int // $objects array refs, by object-table index position
	classes map[string]string
}

const (
	archiverKey      = "$archiver"
	versionKey       = "$version"
	topKey           = "$top"
	objectsKey       = "$objects"
	classKey         = "$class"
	classNameKey     = "$classname"
	classesKey       = "$classes"
	archiverName     = "NSKeyedArchiver"
	archiverVersion  = 100000
	nullPlaceholder  = "$null"
	topRootKey       = "root"
)

// EncodeKeyedArchive builds a bplist00 payload in the $archiver/$version/
// $top/$objects convention NSKeyedArchiver uses, rooted at value. value may
// be a bool, int64, float64, string, []byte, []any, map[string]any, or a
// *KeyedObject; nested values may freely mix these.
func EncodeKeyedArchive(value any, classMap map[string]string) []byte {
	d := NewDocument()
	nullIdx := d.AddString(nullPlaceholder)
	classCache := map[string]int{}

	rootRef := encodeValue(d, value, nullIdx, classCache, classMap)

	objectsArr := make([]int, 0, len(d.objects))
	// $objects[0] is conventionally the $null placeholder; everything else
	// already lives in the document in table order, so the $objects array
	// is just every index in sequence.
	for i := range d.objects {
		objectsArr = append(objectsArr, i)
	}
	objectsIdx := d.AddArray(objectsArr)

	archiverIdx := d.AddString(archiverName)
	versionIdx := d.AddInt(archiverVersion)

	topRootKeyIdx := d.AddString(topRootKey)
	topDict := d.AddDict([]int{topRootKeyIdx}, []int{rootRef})

	archiverKeyIdx := d.AddString(archiverKey)
	versionKeyIdx := d.AddString(versionKey)
	topKeyIdx := d.AddString(topKey)
	objectsKeyIdx := d.AddString(objectsKey)

	top := d.AddDict(
		[]int{archiverKeyIdx, versionKeyIdx, topKeyIdx, objectsKeyIdx},
		[]int{archiverIdx, versionIdx, topDict, objectsIdx},
	)
	d.SetTop(top)
	return d.Encode()
}

func encodeValue(d *Document, value any, nullIdx int, classCache map[string]int, classMap map[string]string) int {
	switch v := value.(type) {
	case nil:
		return nullIdx
	case bool:
		return d.AddBool(v)
	case int:
		return d.AddInt(int64(v))
	case int64:
		return d.AddInt(v)
	case float32:
		return d.AddReal(float64(v))
	case float64:
		return d.AddReal(v)
	case string:
		return d.AddString(v)
	case []byte:
		return d.AddData(v)
	case []any:
		refs := make([]int, len(v))
		for i, elem := range v {
			refs[i] = encodeValue(d, elem, nullIdx, classCache, classMap)
		}
		return d.AddArray(refs)
	case map[string]any:
		keys := make([]int, 0, len(v))
		vals := make([]int, 0, len(v))
		for k, val := range v {
			keys = append(keys, d.AddString(k))
			vals = append(vals, encodeValue(d, val, nullIdx, classCache, classMap))
		}
		return d.AddDict(keys, vals)
	case *KeyedObject:
		return encodeKeyedObject(d, v, nullIdx, classCache, classMap)
	case lookin.Color:
		return encodeValue(d, []any{v.R, v.G, v.B, v.A}, nullIdx, classCache, classMap)
	case lookin.Point:
		return encodeValue(d, []any{v.X, v.Y}, nullIdx, classCache, classMap)
	case lookin.Size:
		return encodeValue(d, []any{v.W, v.H}, nullIdx, classCache, classMap)
	case lookin.Rect:
		return encodeValue(d, []any{v.Origin.X, v.Origin.Y, v.Size.W, v.Size.H}, nullIdx, classCache, classMap)
	case lookin.EdgeInsets:
		return encodeValue(d, []any{v.Top, v.Left, v.Bottom, v.Right}, nullIdx, classCache, classMap)
	default:
		panic(fmt.Sprintf("archive: unsupported value type %T", value))
	}
}

func encodeKeyedObject(d *Document, obj *KeyedObject, nullIdx int, classCache map[string]int, classMap map[string]string) int {
	className := obj.ClassName
	if mapped, ok := classMap[className]; ok {
		className = mapped
	}

	classRef, ok := classCache[className]
	if !ok {
		nameIdx := d.AddString(className)
		namesIdx := d.AddArray([]int{nameIdx})
		classNameKeyIdx := d.AddString(classNameKey)
		classesKeyIdx := d.AddString(classesKey)
		classRef = d.AddDict([]int{classNameKeyIdx, classesKeyIdx}, []int{nameIdx, namesIdx})
		classCache[className] = classRef
	}

	keys := make([]int, 0, len(obj.Fields)+1)
	vals := make([]int, 0, len(obj.Fields)+1)
	classKeyIdx := d.AddString(classKey)
	keys = append(keys, classKeyIdx)
	vals = append(vals, classRef)
	for k, v := range obj.Fields {
		keys = append(keys, d.AddString(k))
		vals = append(vals, encodeValue(d, v, nullIdx, classCache, classMap))
	}
	return d.AddDict(keys, vals)
}

// DecodeKeyedArchive parses a bplist00 payload in the NSKeyedArchiver
// convention and resolves it into plain Go values: KeyedObject for classed
// dictionaries, []any, map[string]any, and scalar types. classMap remaps
// archived class names the way DefaultClassMap documents.
func DecodeKeyedArchive(data []byte, classMap map[string]string) (any, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	keys, vals := doc.Dict(doc.Top())
	var objectsIdx, topIdx int = -1, -1
	for i, k := range keys {
		switch doc.String(k) {
		case objectsKey:
			objectsIdx = vals[i]
		case topKey:
			topIdx = vals[i]
		}
	}
	if objectsIdx == -1 || topIdx == -1 {
		return nil, lerrors.NewInvalidFrameError("keyed archive missing $objects or $top", nil)
	}

	topKeys, topVals := doc.Dict(topIdx)
	var rootRef int = -1
	for i, k := range topKeys {
		if doc.String(k) == topRootKey {
			rootRef = topVals[i]
		}
	}
	if rootRef == -1 {
		return nil, lerrors.NewInvalidFrameError("keyed archive $top missing root entry", nil)
	}

	resolved := make(map[int]any)
	resolving := make(map[int]bool)
	return resolveObject(doc, rootRef, resolved, resolving, classMap)
}

func resolveObject(doc *Document, ref int, resolved map[int]any, resolving map[int]bool, classMap map[string]string) (any, error) {
	if v, ok := resolved[ref]; ok {
		return v, nil
	}
	if resolving[ref] {
		return nil, lerrors.NewInvalidFrameError("keyed archive contains a reference cycle", nil)
	}

	switch doc.Kind(ref) {
	case "null":
		return nil, nil
	case "bool":
		return doc.Bool(ref), nil
	case "int":
		return doc.Int(ref), nil
	case "real":
		return doc.Real(ref), nil
	case "data":
		return doc.Data(ref), nil
	case "string":
		if doc.String(ref) == nullPlaceholder {
			return nil, nil
		}
		return doc.String(ref), nil
	case "array":
		resolving[ref] = true
		refs := doc.Array(ref)
		out := make([]any, len(refs))
		for i, r := range refs {
			v, err := resolveObject(doc, r, resolved, resolving, classMap)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		delete(resolving, ref)
		resolved[ref] = out
		return out, nil
	case "dict":
		resolving[ref] = true
		keys, vals := doc.Dict(ref)

		var classRef int = -1
		fields := make(map[string]any, len(keys))
		for i, k := range keys {
			name := doc.String(k)
			if name == classKey {
				classRef = vals[i]
				continue
			}
			v, err := resolveObject(doc, vals[i], resolved, resolving, classMap)
			if err != nil {
				return nil, err
			}
			fields[name] = v
		}
		delete(resolving, ref)

		if classRef == -1 {
			resolved[ref] = fields
			return fields, nil
		}

		className, err := resolveClassName(doc, classRef)
		if err != nil {
			return nil, err
		}
		if mapped, ok := classMap[className]; ok {
			className = mapped
		}

		switch className {
		case ClassNSArray, ClassNSMutableArr:
			out := orderedArrayFields(fields)
			resolved[ref] = out
			return out, nil
		case ClassNSDictionary, ClassNSMutableDict:
			out := dictionaryFromKeyedFields(fields)
			resolved[ref] = out
			return out, nil
		case ClassNSString, ClassNSMutableStr:
			if s, ok := fields["NS.string"]; ok {
				resolved[ref] = s
				return s, nil
			}
		}

		obj := &KeyedObject{ClassName: className, Fields: fields}
		resolved[ref] = obj
		return obj, nil
	default:
		return nil, fmt.Errorf("archive: unsupported object kind %q", doc.Kind(ref))
	}
}

func resolveClassName(doc *Document, classRef int) (string, error) {
	keys, vals := doc.Dict(classRef)
	for i, k := range keys {
		if doc.String(k) == classNameKey {
			return doc.String(vals[i]), nil
		}
	}
	return "", lerrors.NewInvalidFrameError("keyed archive class entry missing $classname", nil)
}

// orderedArrayFields reconstructs an NSArray's element order from its
// NS.objects field, the convention NSKeyedArchiver uses for boxed
// collections, falling back to the field values in unspecified order if
// absent.
func orderedArrayFields(fields map[string]any) []any {
	if objs, ok := fields["NS.objects"].([]any); ok {
		return objs
	}
	out := make([]any, 0, len(fields))
	for _, v := range fields {
		out = append(out, v)
	}
	return out
}

func dictionaryFromKeyedFields(fields map[string]any) map[string]any {
	keysAny, hasKeys := fields["NS.keys"].([]any)
	valsAny, hasVals := fields["NS.objects"].([]any)
	if !hasKeys || !hasVals || len(keysAny) != len(valsAny) {
		return fields
	}
	out := make(map[string]any, len(keysAny))
	for i, k := range keysAny {
		ks, ok := k.(string)
		if !ok {
			continue
		}
		out[ks] = valsAny[i]
	}
	return out
}
