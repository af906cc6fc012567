package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promptc/errors"
)

func TestNewOptionsShapeFreedom(t *testing.T) {
	tests := []struct {
		name string
		sf   float64
		want float64
	}{
		{"half", 0.5, 0.2062994740159002},
		{"none", 0, 1},
		{"full", 1, 0},
		{"eighth", 0.125, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]Value{OptionShapeFreedom: FloatValue(tt.sf)}
			opts, err := NewOptions(raw)
			require.NoError(t, err)

			_, present := opts.Get(OptionShapeFreedom)
			assert.False(t, present)
			assert.InDelta(t, tt.want, opts.SEnd(), 1e-12)

			// input map is left alone
			_, present = raw[OptionShapeFreedom]
			assert.True(t, present)
		})
	}
}

func TestShapeFreedomHalfIsDefaultSEnd(t *testing.T) {
	opts, err := NewOptions(map[string]Value{OptionShapeFreedom: FloatValue(0.5)})
	require.NoError(t, err)

	sEnd, ok := opts.Get(OptionSEnd)
	require.True(t, ok)
	got, _ := sEnd.Float()
	assert.Equal(t, DefaultSEnd, got)
	assert.Equal(t, DefaultSEnd, opts.SEnd())
}

func TestNewOptionsOverridesExplicitSEnd(t *testing.T) {
	opts, err := NewOptions(map[string]Value{
		OptionSEnd:         FloatValue(0.9),
		OptionShapeFreedom: FloatValue(0.5),
	})
	require.NoError(t, err)
	assert.InDelta(t, DefaultSEnd, opts.SEnd(), 1e-12)
}

func TestNewOptionsRejects(t *testing.T) {
	bad := []map[string]Value{
		{OptionShapeFreedom: FloatValue(1.01)},
		{OptionShapeFreedom: FloatValue(-0.5)},
		{OptionShapeFreedom: StringValue("loose")},
		{OptionShapeFreedom: BoolValue(true)},
		{OptionSStart: StringValue("early")},
		{OptionTEnd: BoolValue(true)},
	}
	for _, raw := range bad {
		_, err := NewOptions(raw)
		assert.True(t, errors.Is(err, errors.ErrInvalidOption), "%v", raw)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts, err := NewOptions(nil)
	require.NoError(t, err)
	assert.Empty(t, opts)

	assert.Equal(t, 0.0, opts.SStart())
	assert.Equal(t, DefaultSEnd, opts.SEnd())
	assert.Equal(t, 0.0, opts.TStart())
	assert.Equal(t, 1.0, opts.TEnd())
	assert.Equal(t, 3.0, opts.Float("unknown", 3))
	assert.False(t, opts.Flag("fast"))
	assert.Nil(t, opts.Map())
}

func TestOptionsAccessors(t *testing.T) {
	opts, err := NewOptions(map[string]Value{
		OptionTStart: FloatValue(0.2),
		"fast":       BoolValue(true),
		"mode":       StringValue("soft"),
		OptionWeight: FloatValue(0.5),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.2, opts.TStart())
	assert.True(t, opts.Flag("fast"))
	assert.False(t, opts.Flag("mode"))
	assert.Equal(t, 0.5, opts.Float(OptionWeight, 1))
	assert.Equal(t, []string{"fast", "mode", "t_start", "weight"}, opts.Keys())
	assert.Equal(t, map[string]interface{}{
		"fast": true, "mode": "soft", "t_start": 0.2, "weight": 0.5,
	}, opts.Map())
}

func TestValue(t *testing.T) {
	f := FloatValue(0.25)
	v, ok := f.Float()
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
	_, ok = f.Str()
	assert.False(t, ok)
	assert.Equal(t, "0.25", f.String())
	assert.Equal(t, ValueFloat, f.Kind())

	s := StringValue("soft")
	str, ok := s.Str()
	assert.True(t, ok)
	assert.Equal(t, "soft", str)
	assert.Equal(t, "string", s.Kind().String())

	b := BoolValue(false)
	bv, ok := b.Bool()
	assert.True(t, ok)
	assert.False(t, bv)
	assert.Equal(t, false, b.Interface())
	assert.Equal(t, "false", b.String())
}
