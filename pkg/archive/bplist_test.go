package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentScalarRoundtrip(t *testing.T) {
	t.Parallel()
	d := NewDocument()
	n := d.AddNull()
	b := d.AddBool(true)
	i := d.AddInt(-12345)
	f := d.AddReal(3.5)
	s := d.AddString("hello lookin")
	data := d.AddData([]byte{0x01, 0x02, 0xFF})
	arr := d.AddArray([]int{n, b, i, f, s, data})
	d.SetTop(arr)

	encoded := d.Encode()
	got, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, "null", got.Kind(n))
	assert.Equal(t, "bool", got.Kind(b))
	assert.Equal(t, true, got.Bool(b))
	assert.Equal(t, int64(-12345), got.Int(i))
	assert.InDelta(t, 3.5, got.Real(f), 0.0001)
	assert.Equal(t, "hello lookin", got.String(s))
	assert.Equal(t, []byte{0x01, 0x02, 0xFF}, got.Data(data))
	assert.Equal(t, []int{n, b, i, f, s, data}, got.Array(got.Top()))
}

func TestDocumentDictRoundtrip(t *testing.T) {
	t.Parallel()
	d := NewDocument()
	k1 := d.AddString("width")
	k2 := d.AddString("height")
	v1 := d.AddReal(100)
	v2 := d.AddReal(200)
	dict := d.AddDict([]int{k1, k2}, []int{v1, v2})
	d.SetTop(dict)

	got, err := Decode(d.Encode())
	require.NoError(t, err)

	keys, vals := got.Dict(got.Top())
	require.Len(t, keys, 2)
	assert.Equal(t, "width", got.String(keys[0]))
	assert.Equal(t, "height", got.String(keys[1]))
	assert.InDelta(t, 100, got.Real(vals[0]), 0.0001)
	assert.InDelta(t, 200, got.Real(vals[1]), 0.0001)
}

func TestDocumentLargeObjectTableUsesWiderRefs(t *testing.T) {
	t.Parallel()
	d := NewDocument()
	refs := make([]int, 0, 300)
	for i := 0; i < 300; i++ {
		refs = append(refs, d.AddInt(int64(i)))
	}
	arr := d.AddArray(refs)
	d.SetTop(arr)

	got, err := Decode(d.Encode())
	require.NoError(t, err)
	gotRefs := got.Array(got.Top())
	require.Len(t, gotRefs, 300)
	for i, ref := range gotRefs {
		assert.Equal(t, int64(i), got.Int(ref))
	}
}

func TestDocumentUnicodeStringRoundtrip(t *testing.T) {
	t.Parallel()
	d := NewDocument()
	s := d.AddString("café \U0001F600")
	d.SetTop(s)

	got, err := Decode(d.Encode())
	require.NoError(t, err)
	assert.Equal(t, "café \U0001F600", got.String(got.Top()))
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsMissingMagic(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 40)
	copy(buf, "notbplist")
	_, err := Decode(buf)
	require.Error(t, err)
}
