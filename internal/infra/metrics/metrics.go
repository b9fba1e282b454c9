package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bpark_commands_total",
		Help: "Commands processed, labelled by command and outcome.",
	}, []string{"command", "outcome"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bpark_connections_active",
		Help: "Currently connected clients.",
	})

	ReservationsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpark_reservations_cancelled_total",
		Help: "Reservations cancelled by the expiry sweep.",
	})

	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpark_reminders_sent_total",
		Help: "Reservation reminders dispatched.",
	})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bpark_sweep_duration_seconds",
		Help:    "Duration of reconciliation sweeps.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})
)
