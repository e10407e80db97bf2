package sqlite

import (
	"testing"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens-io/querylens/pkg/eval"
)

func TestName(t *testing.T) {
	assert.Equal(t, "sqlite", New(nil).Name())
}

func TestRegistered(t *testing.T) {
	assert.True(t, eval.IsRegistered("sqlite"), "sqlite should self-register via init()")
}

func TestParamsDecode(t *testing.T) {
	raw := map[string]any{
		"pragmas": map[string]any{
			"case_sensitive_like": "ON",
		},
	}

	var params Params
	require.NoError(t, mapstructure.Decode(raw, &params))
	assert.Equal(t, "ON", params.Pragmas["case_sensitive_like"])
}
