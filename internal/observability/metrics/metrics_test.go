package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveTurn("booked", 1.2)
	m.ObserveTurn("reply", 0.8)
	m.ObserveTurn("reply", 0.4)
	m.ObserveExtraction("action")
	m.ObserveBooking("confirmed")
	m.ObserveBooking("slot_taken")
	m.ObserveAvailability("ok", 9)
	m.ObserveAvailability("read_error", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionsTotal.WithLabelValues("action")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("slot_taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.availabilityTotal.WithLabelValues("read_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.freeSlots))
}

func TestSchedulingMetricsDefaultRegistry(t *testing.T) {
	m := NewSchedulingMetrics(nil)
	m.ObserveBooking("confirmed")
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveTurn("reply", 0.1)
	m.ObserveExtraction("none")
	m.ObserveBooking("confirmed")
	m.ObserveAvailability("ok", 3)
}
