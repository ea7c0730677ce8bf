package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
)

func testOptions() []Option {
	return []Option{
		{Name: "period", Type: OptionTypeInt, Default: 14, Min: 2, Max: 500},
		{Name: "threshold", Type: OptionTypeFloat, Default: 30.0, Min: 0, Max: 100},
		{Name: "mode", Type: OptionTypeString, Default: "simple"},
		{Name: "trailing", Type: OptionTypeBool, Default: false},
	}
}

func TestResolveParams_Defaults(t *testing.T) {
	params, err := ResolveParams(testOptions(), nil)
	require.NoError(t, err)

	require.Equal(t, 14, params.Int("period"))
	require.Equal(t, 30.0, params.Float("threshold"))
	require.Equal(t, "simple", params.String("mode"))
	require.False(t, params.Bool("trailing"))
}

func TestResolveParams_Overrides(t *testing.T) {
	params, err := ResolveParams(testOptions(), Params{
		"period":   21,
		"trailing": true,
	})
	require.NoError(t, err)

	require.Equal(t, 21, params.Int("period"))
	require.True(t, params.Bool("trailing"))
	// untouched parameters keep their defaults
	require.Equal(t, 30.0, params.Float("threshold"))
}

func TestResolveParams_UnknownParameter(t *testing.T) {
	_, err := ResolveParams(testOptions(), Params{"priod": 21})
	require.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestResolveParams_TypeMismatch(t *testing.T) {
	_, err := ResolveParams(testOptions(), Params{"period": "fast"})
	require.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = ResolveParams(testOptions(), Params{"period": 14.5})
	require.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = ResolveParams(testOptions(), Params{"mode": 3})
	require.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = ResolveParams(testOptions(), Params{"trailing": "yes"})
	require.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestResolveParams_OutOfRange(t *testing.T) {
	_, err := ResolveParams(testOptions(), Params{"period": 1})
	require.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = ResolveParams(testOptions(), Params{"threshold": 101.0})
	require.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestResolveParams_WholeFloatAcceptedAsInt(t *testing.T) {
	params, err := ResolveParams(testOptions(), Params{"period": 21.0})
	require.NoError(t, err)
	require.Equal(t, 21, params.Int("period"))
}
