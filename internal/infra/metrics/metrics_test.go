package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "test")

	c.ObserveDispatch("delivered", 120*time.Millisecond)
	c.ObserveDispatch("delivered", 80*time.Millisecond)
	c.ObserveDispatch("failed", time.Second)
	c.ObserveSubscription("register")
	c.SetArmedTimers(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.dispatches.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptions.WithLabelValues("register")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.armedTimers))

	n, err := testutil.GatherAndCount(reg, "test_delivery_dispatch_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
