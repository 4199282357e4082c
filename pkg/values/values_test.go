package values_test

import (
	"testing"

	"github.com/hacluster/pcsd/pkg/values"
	"github.com/stretchr/testify/assert"
)

func TestIsBoolean(t *testing.T) {
	for _, v := range []string{"true", "False", "ON", "no", "Y", "n", "1", "0"} {
		assert.True(t, values.IsBoolean(v), v)
	}
	for _, v := range []string{"", "maybe", "2"} {
		assert.False(t, values.IsBoolean(v), v)
	}
}

func TestIsTrueIsFalse(t *testing.T) {
	assert.True(t, values.IsTrue("YES"))
	assert.False(t, values.IsTrue("no"))
	assert.True(t, values.IsFalse("off"))
	assert.False(t, values.IsFalse("on"))
}

func TestIsScore(t *testing.T) {
	for _, v := range []string{"0", "100", "-5", "+5", "INFINITY", "-INFINITY", "+INFINITY"} {
		assert.True(t, values.IsScore(v), v)
	}
	for _, v := range []string{"", "-", "abc", "1.5", "INFINITY2"} {
		assert.False(t, values.IsScore(v), v)
	}
}

func TestValidateID(t *testing.T) {
	ok, bad := values.ValidateID("my-node_1.2")
	assert.True(t, ok)
	assert.Zero(t, bad)

	ok, bad = values.ValidateID("1bad")
	assert.False(t, ok)
	assert.Equal(t, '1', bad)

	ok, _ = values.ValidateID("")
	assert.False(t, ok)

	ok, bad = values.ValidateID("ok-until-$-here")
	assert.False(t, ok)
	assert.Equal(t, '$', bad)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "node_1", values.SanitizeID("1node_1", ""))
	assert.Equal(t, "node1", values.SanitizeID("node$1", ""))
	assert.Equal(t, "", values.SanitizeID("", ""))
}
