package attributes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/isnine/lookinmcp/pkg/errors"
	"github.com/isnine/lookinmcp/pkg/lookin"
	"github.com/isnine/lookinmcp/pkg/requests"
)

func TestParseColorHexRoundtrip(t *testing.T) {
	t.Parallel()
	v, err := ParseValue("backgroundColor", "#80FF00", requests.TypeUIColor)
	require.NoError(t, err)
	c := v.(lookin.Color)
	assert.InDelta(t, 0.502, c.R, 0.005)
	assert.InDelta(t, 1.0, c.G, 0.005)
	assert.InDelta(t, 0.0, c.B, 0.005)
	assert.InDelta(t, 1.0, c.A, 0.005)
}

func TestParseColorThreeComponentFloats(t *testing.T) {
	t.Parallel()
	v, err := ParseValue("backgroundColor", "1,0,0", requests.TypeUIColor)
	require.NoError(t, err)
	c := v.(lookin.Color)
	assert.Equal(t, lookin.Color{R: 1, G: 0, B: 0, A: 1}, c)
}

func TestParseColorRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := ParseValue("backgroundColor", "bad", requests.TypeUIColor)
	require.Error(t, err)
	assert.True(t, lerrors.IsParseError(err))
}

func TestParseColorRejectsHexWithoutHash(t *testing.T) {
	t.Parallel()
	_, err := ParseValue("backgroundColor", "80FF00", requests.TypeUIColor)
	require.Error(t, err)
	assert.True(t, lerrors.IsParseError(err))
}

func TestParseColorRejectsWrongHexLength(t *testing.T) {
	t.Parallel()
	_, err := ParseValue("backgroundColor", "#80F", requests.TypeUIColor)
	require.Error(t, err)
}

func TestParseColorEightDigitHex(t *testing.T) {
	t.Parallel()
	v, err := ParseValue("backgroundColor", "#FF000080", requests.TypeUIColor)
	require.NoError(t, err)
	c := v.(lookin.Color)
	assert.InDelta(t, 1.0, c.R, 0.005)
	assert.InDelta(t, 0.502, c.A, 0.005)
}

func TestParseBoolVariants(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"true", "YES", "1", " True "} {
		v, err := ParseValue("hidden", s, requests.TypeBool)
		require.NoError(t, err, s)
		assert.Equal(t, true, v)
	}
	for _, s := range []string{"false", "NO", "0"} {
		v, err := ParseValue("hidden", s, requests.TypeBool)
		require.NoError(t, err, s)
		assert.Equal(t, false, v)
	}
	_, err := ParseValue("hidden", "maybe", requests.TypeBool)
	require.Error(t, err)
}

func TestParseRectRequiresFourComponents(t *testing.T) {
	t.Parallel()
	v, err := ParseValue("frame", "1,2,3,4", requests.TypeCGRect)
	require.NoError(t, err)
	r := v.(lookin.Rect)
	assert.Equal(t, lookin.Rect{Origin: lookin.Point{X: 1, Y: 2}, Size: lookin.Size{W: 3, H: 4}}, r)

	_, err = ParseValue("frame", "1,2,3", requests.TypeCGRect)
	require.Error(t, err)
}

func TestLookupHelpPseudoName(t *testing.T) {
	t.Parallel()
	_, isHelp, ok := Lookup("help")
	assert.True(t, isHelp)
	assert.False(t, ok)
	assert.NotEmpty(t, Help())
}

func TestLookupUnknownAttribute(t *testing.T) {
	t.Parallel()
	_, isHelp, ok := Lookup("definitelyNotARealAttribute")
	assert.False(t, isHelp)
	assert.False(t, ok)
}

func TestLookupKnownAttribute(t *testing.T) {
	t.Parallel()
	e, isHelp, ok := Lookup("backgroundColor")
	require.True(t, ok)
	assert.False(t, isHelp)
	assert.Equal(t, "setBackgroundColor:", e.SetterSelector)
	assert.Equal(t, TargetLayer, e.TargetKind)
}

func TestTextBearingIdentifiers(t *testing.T) {
	t.Parallel()
	assert.True(t, TextBearingIdentifiers["lb_t_t"])
	assert.True(t, TextBearingIdentifiers["tf_p_p"])
	assert.False(t, TextBearingIdentifiers["l_bgc_c"])
}
