package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration(t *testing.T) {
	var v struct {
		D Duration `yaml:"d" json:"d"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("d: 1m2.5s"), &v))
	assert.Equal(t, 62.5, v.D.Seconds())

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "d: 1m2.5s\n", string(out))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"1m2.5s"}`, string(data))

	v.D = 0
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, NewDuration(62500*time.Millisecond), v.D)

	require.Error(t, yaml.Unmarshal([]byte("d: 12"), &v), "unit is required")
	require.Error(t, json.Unmarshal([]byte(`{"d":"x"}`), &v))

	assert.Error(t, NewDuration(-time.Second).Validate())
	assert.NoError(t, NewDuration(0).Validate())
}

func TestSecondsDuration(t *testing.T) {
	assert.Equal(t, "22.3186s", secondsDuration(22.3186).String())
	assert.Equal(t, "0s", secondsDuration(0).String())
}
