package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
)

// kind identifies the concrete type an object-table entry holds.
type kind int

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindReal
	kindData
	kindString
	kindArray
	kindDict
)

// node is one entry of a Document's flat object table. Composite kinds
// (array, dict) reference children by table index rather than embedding
// them, mirroring how Apple's binary property list format itself works:
// every object, however deeply nested, is its own table entry.
type node struct {
	kind     kind
	boolVal  bool
	intVal   int64
	realVal  float64
	strVal   string
	dataVal  []byte
	arrVal   []int
	dictKeys []int
	dictVals []int
}

// Document is a flattened bplist00 object graph: a single object table plus
// a designated root ("top") index. It is the minimal decoder the design
// notes call for — enough to round-trip the exact shapes the LookinServer
// protocol uses, not an arbitrary-archive-compatible implementation.
type Document struct {
	objects []node
	top     int
}

// NewDocument returns an empty Document with no root set.
func NewDocument() *Document {
	return &Document{}
}

func (d *Document) add(n node) int {
	d.objects = append(d.objects, n)
	return len(d.objects) - 1
}

// AddNull appends a null entry and returns its index.
func (d *Document) AddNull() int { return d.add(node{kind: kindNull}) }

// AddBool appends a boolean entry and returns its index.
func (d *Document) AddBool(b bool) int { return d.add(node{kind: kindBool, boolVal: b}) }

// AddInt appends a signed integer entry and returns its index.
func (d *Document) AddInt(v int64) int { return d.add(node{kind: kindInt, intVal: v}) }

// AddReal appends a floating point entry and returns its index.
func (d *Document) AddReal(v float64) int { return d.add(node{kind: kindReal, realVal: v}) }

// AddString appends a UTF-8 string entry and returns its index.
func (d *Document) AddString(s string) int { return d.add(node{kind: kindString, strVal: s}) }

// AddData appends an opaque byte-string entry and returns its index.
func (d *Document) AddData(b []byte) int { return d.add(node{kind: kindData, dataVal: b}) }

// AddArray appends an array entry referencing the given child indices.
func (d *Document) AddArray(refs []int) int { return d.add(node{kind: kindArray, arrVal: refs}) }

// AddDict appends a dict entry with parallel key/value index slices.
func (d *Document) AddDict(keys, vals []int) int {
	if len(keys) != len(vals) {
		panic("archive: AddDict key/value length mismatch")
	}
	return d.add(node{kind: kindDict, dictKeys: keys, dictVals: vals})
}

// SetTop designates idx as the document's root object.
func (d *Document) SetTop(idx int) { d.top = idx }

// Top returns the document's root object index.
func (d *Document) Top() int { return d.top }

// Kind reports the kind of the object at idx.
func (d *Document) Kind(idx int) string {
	switch d.objects[idx].kind {
	case kindNull:
		return "null"
	case kindBool:
		return "bool"
	case kindInt:
		return "int"
	case kindReal:
		return "real"
	case kindData:
		return "data"
	case kindString:
		return "string"
	case kindArray:
		return "array"
	case kindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Bool returns the boolean value at idx.
func (d *Document) Bool(idx int) bool { return d.objects[idx].boolVal }

// Int returns the integer value at idx.
func (d *Document) Int(idx int) int64 { return d.objects[idx].intVal }

// Real returns the floating point value at idx.
func (d *Document) Real(idx int) float64 { return d.objects[idx].realVal }

// String returns the string value at idx.
func (d *Document) String(idx int) string { return d.objects[idx].strVal }

// Data returns the byte-string value at idx.
func (d *Document) Data(idx int) []byte { return d.objects[idx].dataVal }

// Array returns the child indices of the array at idx.
func (d *Document) Array(idx int) []int { return d.objects[idx].arrVal }

// Dict returns the parallel key/value index slices of the dict at idx.
func (d *Document) Dict(idx int) ([]int, []int) {
	n := d.objects[idx]
	return n.dictKeys, n.dictVals
}

const bplistMagic = "bplist00"

// byteWidth returns the smallest power-of-two byte width able to hold v
// (1, 2, 4, or 8), matching the size classes bplist's marker bytes encode.
func byteWidth(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func putUint(buf *bytes.Buffer, v uint64, width int) {
	b := make([]byte, width)
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(b, v)
	}
	buf.Write(b)
}

func writeCount(buf *bytes.Buffer, marker byte, count int) {
	if count < 0xF {
		buf.WriteByte(marker | byte(count))
		return
	}
	buf.WriteByte(marker | 0xF)
	buf.WriteByte(0x10 | byte(math.Log2(float64(byteWidth(uint64(count))))))
	putUint(buf, uint64(count), byteWidth(uint64(count)))
}

// Encode renders the document as bplist00 binary data.
func (d *Document) Encode() []byte {
	refSize := byteWidth(uint64(len(d.objects)))
	var body bytes.Buffer
	offsets := make([]int, len(d.objects))

	for i, n := range d.objects {
		offsets[i] = body.Len()
		switch n.kind {
		case kindNull:
			body.WriteByte(0x00)
		case kindBool:
			if n.boolVal {
				body.WriteByte(0x09)
			} else {
				body.WriteByte(0x08)
			}
		case kindInt:
			w := byteWidth(uint64(n.intVal))
			if n.intVal < 0 {
				w = 8
			}
			logw := int(math.Log2(float64(w)))
			body.WriteByte(0x10 | byte(logw))
			putUint(&body, uint64(n.intVal), w)
		case kindReal:
			body.WriteByte(0x23) // 8-byte double
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(n.realVal))
			body.Write(b[:])
		case kindData:
			writeCount(&body, 0x40, len(n.dataVal))
			body.Write(n.dataVal)
		case kindString:
			if isASCII(n.strVal) {
				writeCount(&body, 0x50, len(n.strVal))
				body.WriteString(n.strVal)
			} else {
				units := encodeUTF16BE(n.strVal)
				writeCount(&body, 0x60, len(units))
				for _, u := range units {
					var b [2]byte
					binary.BigEndian.PutUint16(b[:], u)
					body.Write(b[:])
				}
			}
		case kindArray:
			writeCount(&body, 0xA0, len(n.arrVal))
			for _, ref := range n.arrVal {
				putUint(&body, uint64(ref), refSize)
			}
		case kindDict:
			writeCount(&body, 0xD0, len(n.dictKeys))
			for _, ref := range n.dictKeys {
				putUint(&body, uint64(ref), refSize)
			}
			for _, ref := range n.dictVals {
				putUint(&body, uint64(ref), refSize)
			}
		}
	}

	offsetTableStart := len(bplistMagic) + body.Len()
	offsetIntSize := byteWidth(uint64(offsetTableStart))

	var out bytes.Buffer
	out.WriteString(bplistMagic)
	out.Write(body.Bytes())

	for _, off := range offsets {
		putUint(&out, uint64(len(bplistMagic)+off), offsetIntSize)
	}

	trailer := make([]byte, 32)
	trailer[6] = byte(offsetIntSize)
	trailer[7] = byte(refSize)
	binary.BigEndian.PutUint64(trailer[8:16], uint64(len(d.objects)))
	binary.BigEndian.PutUint64(trailer[16:24], uint64(d.top))
	binary.BigEndian.PutUint64(trailer[24:32], uint64(offsetTableStart))
	out.Write(trailer)

	return out.Bytes()
}

type bplistReader struct {
	buf []byte
}

func (r *bplistReader) u(off, size int) (uint64, error) {
	if off < 0 || off+size > len(r.buf) {
		return 0, fmt.Errorf("out of bounds read at %d (+%d) of %d", off, size, len(r.buf))
	}
	var v uint64
	for i := 0; i < size; i++ {
		v = v<<8 | uint64(r.buf[off+i])
	}
	return v, nil
}

// Decode parses bplist00 binary data into a Document.
func Decode(data []byte) (*Document, error) {
	if len(data) < len(bplistMagic)+32 {
		return nil, lerrors.NewInvalidFrameError("archive payload too small for bplist", nil)
	}
	if string(data[:6]) != "bplist" {
		return nil, lerrors.NewInvalidFrameError("missing bplist magic", nil)
	}

	trailer := data[len(data)-32:]
	offsetIntSize := int(trailer[6])
	refSize := int(trailer[7])
	numObjects := int(binary.BigEndian.Uint64(trailer[8:16]))
	topObject := int(binary.BigEndian.Uint64(trailer[16:24]))
	offsetTableOffset := int(binary.BigEndian.Uint64(trailer[24:32]))

	r := &bplistReader{buf: data}

	offsets := make([]int, numObjects)
	for i := 0; i < numObjects; i++ {
		off, err := r.u(offsetTableOffset+i*offsetIntSize, offsetIntSize)
		if err != nil {
			return nil, lerrors.NewInvalidFrameError("malformed bplist offset table", err)
		}
		offsets[i] = int(off)
	}

	doc := &Document{objects: make([]node, numObjects), top: topObject}
	for i, off := range offsets {
		n, err := decodeObject(r, off, refSize)
		if err != nil {
			return nil, lerrors.NewInvalidFrameError(fmt.Sprintf("malformed bplist object %d", i), err)
		}
		doc.objects[i] = n
	}
	if topObject < 0 || topObject >= numObjects {
		return nil, lerrors.NewInvalidFrameError("bplist top object index out of range", nil)
	}
	return doc, nil
}

func decodeCount(r *bplistReader, off int, lowNibble byte) (count int, dataStart int, err error) {
	if lowNibble != 0xF {
		return int(lowNibble), off + 1, nil
	}
	marker, err := r.u(off+1, 1)
	if err != nil {
		return 0, 0, err
	}
	width := 1 << (marker & 0x0F)
	v, err := r.u(off+2, width)
	if err != nil {
		return 0, 0, err
	}
	return int(v), off + 2 + width, nil
}

func decodeObject(r *bplistReader, off, refSize int) (node, error) {
	marker, err := r.u(off, 1)
	if err != nil {
		return node{}, err
	}
	hi := byte(marker) & 0xF0
	lo := byte(marker) & 0x0F

	switch hi {
	case 0x00:
		switch marker {
		case 0x00:
			return node{kind: kindNull}, nil
		case 0x08:
			return node{kind: kindBool, boolVal: false}, nil
		case 0x09:
			return node{kind: kindBool, boolVal: true}, nil
		default:
			return node{}, fmt.Errorf("unsupported null-class marker 0x%02x", marker)
		}
	case 0x10:
		width := 1 << lo
		v, err := r.u(off+1, width)
		if err != nil {
			return node{}, err
		}
		return node{kind: kindInt, intVal: int64(v)}, nil
	case 0x20:
		width := 1 << lo
		v, err := r.u(off+1, width)
		if err != nil {
			return node{}, err
		}
		if width == 4 {
			return node{kind: kindReal, realVal: float64(math.Float32frombits(uint32(v)))}, nil
		}
		return node{kind: kindReal, realVal: math.Float64frombits(v)}, nil
	case 0x40:
		count, start, err := decodeCount(r, off, lo)
		if err != nil {
			return node{}, err
		}
		if start+count > len(r.buf) {
			return node{}, fmt.Errorf("data object out of bounds")
		}
		return node{kind: kindData, dataVal: append([]byte(nil), r.buf[start:start+count]...)}, nil
	case 0x50:
		count, start, err := decodeCount(r, off, lo)
		if err != nil {
			return node{}, err
		}
		if start+count > len(r.buf) {
			return node{}, fmt.Errorf("ascii string object out of bounds")
		}
		return node{kind: kindString, strVal: string(r.buf[start : start+count])}, nil
	case 0x60:
		count, start, err := decodeCount(r, off, lo)
		if err != nil {
			return node{}, err
		}
		runes := make([]uint16, count)
		for i := 0; i < count; i++ {
			v, err := r.u(start+i*2, 2)
			if err != nil {
				return node{}, err
			}
			runes[i] = uint16(v)
		}
		return node{kind: kindString, strVal: decodeUTF16BE(runes)}, nil
	case 0xA0:
		count, start, err := decodeCount(r, off, lo)
		if err != nil {
			return node{}, err
		}
		refs := make([]int, count)
		for i := 0; i < count; i++ {
			v, err := r.u(start+i*refSize, refSize)
			if err != nil {
				return node{}, err
			}
			refs[i] = int(v)
		}
		return node{kind: kindArray, arrVal: refs}, nil
	case 0xD0:
		count, start, err := decodeCount(r, off, lo)
		if err != nil {
			return node{}, err
		}
		keys := make([]int, count)
		vals := make([]int, count)
		for i := 0; i < count; i++ {
			v, err := r.u(start+i*refSize, refSize)
			if err != nil {
				return node{}, err
			}
			keys[i] = int(v)
		}
		for i := 0; i < count; i++ {
			v, err := r.u(start+count*refSize+i*refSize, refSize)
			if err != nil {
				return node{}, err
			}
			vals[i] = int(v)
		}
		return node{kind: kindDict, dictKeys: keys, dictVals: vals}, nil
	default:
		return node{}, fmt.Errorf("unsupported bplist marker 0x%02x", marker)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

func encodeUTF16BE(s string) []uint16 {
	var units []uint16
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}

func decodeUTF16BE(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			u2 := units[i+1]
			if u2 >= 0xDC00 && u2 <= 0xDFFF {
				r := (rune(u-0xD800)<<10 | rune(u2-0xDC00)) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
