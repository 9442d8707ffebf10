package xrelay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upperCodec struct{ JSONCodec }

func (upperCodec) Name() string { return "upper" }

func TestNewCodec_JSON(t *testing.T) {
	c, err := NewCodec("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	b, err := c.Marshal(point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(b))

	p, err := Decode[point](c, b)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, p)
}

func TestNewCodec_Unknown(t *testing.T) {
	_, err := NewCodec("nope")
	assert.ErrorIs(t, err, ErrUnknownCodec)
	assert.EqualError(t, err, `codec "nope" not registered`)
}

func TestRegisterCodec(t *testing.T) {
	require.Error(t, RegisterCodec("", func() Codec { return upperCodec{} }))
	require.Error(t, RegisterCodec("upper", nil))
	require.NoError(t, RegisterCodec("upper", func() Codec { return upperCodec{} }))

	c, err := NewCodec("upper")
	require.NoError(t, err)
	assert.Equal(t, "upper", c.Name())
	assert.Contains(t, RegisteredCodecs(), "upper")
	assert.Contains(t, RegisteredCodecs(), "json")
}

func TestDecode_Error(t *testing.T) {
	_, err := Decode[map[string]int](JSONCodec{}, []byte("{"))
	assert.Error(t, err)
}
