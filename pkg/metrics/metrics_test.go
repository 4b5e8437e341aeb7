package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAgainstRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("neuroscan", reg)

	m.ChatDroppedFrames.Inc()
	m.AuthFailures.WithLabelValues("expired").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatDroppedFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("expired")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewTwiceWithSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
