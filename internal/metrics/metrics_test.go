package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SessionCreated()
	c.SessionCreated()
	c.TokenRevoked()
	c.TokenRotated()
	c.ActiveSessions(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.SessionsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.TokenRevocations))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.TokenRotations))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.ActiveSessionsGauge))
}
