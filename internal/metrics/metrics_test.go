package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveRequest("nft", "200")
	m.ObserveRPC("1", "ok", 20*time.Millisecond)
	m.ObserveFetch("ok", 2048)
	m.ObserveFetch("size_limit", 0)
	m.ObserveHops(2)
	m.ObserveInlined("failed", 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.With(Labels{"route": "nft", "status": "200"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResourceFetches.With(Labels{"status": "size_limit"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InlinedResources.With(Labels{"outcome": "failed"})))

	_, err = New(reg)
	assert.Error(t, err, "second registration must collide")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("data", "200")
		m.ObserveRPC("1", "ok", time.Second)
		m.ObserveFetch("ok", 1)
		m.ObserveHops(1)
		m.ObserveInlined("ok", 1)
	})
}
