package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanemesh/pkg/laneerror"
)

func TestParseTarget(t *testing.T) {
	tgt, err := ParseTarget("/orders.prod")
	require.NoError(t, err)
	assert.Equal(t, Target{Service: "orders", Namespace: "prod", Port: 0}, tgt)
	assert.Equal(t, "orders.prod", tgt.FullName())
}

func TestParseTargetWithPort(t *testing.T) {
	tgt, err := ParseTarget("orders.prod:9090")
	require.NoError(t, err)
	assert.Equal(t, 9090, tgt.Port)
}

func TestParseTargetInvalid(t *testing.T) {
	cases := []string{
		"",
		"noservice",
		"orders.",
		".prod",
		"orders.prod:not-a-port",
		"orders.prod:99999",
		"ord$ers.prod",
	}
	for _, endpoint := range cases {
		_, err := ParseTarget(endpoint)
		require.Error(t, err, endpoint)
		var le *laneerror.Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, laneerror.InvalidTarget, le.Kind)
	}
}
