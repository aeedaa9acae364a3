package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	assignmentResultAssigned      = "assigned"
	assignmentResultNoVendor      = "no_eligible_vendor"
	assignmentResultLockTimeout   = "lock_timeout"
	assignmentResultConfiguration = "configuration_error"
	assignmentResultPersistence   = "persistence_error"
	assignmentResultInvalid       = "invalid_request"
	assignmentResultCanceled      = "canceled"
)

var (
	// Assignments partitioned by outcome
	leadAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_assignments_total",
			Help: "Total number of lead assignment attempts by result",
		},
		[]string{"result"},
	)

	// End-to-end latency of Assign, lock wait included
	leadAssignmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_assignment_duration_seconds",
			Help:    "Lead assignment latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	tenantLockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenant_lock_wait_seconds",
			Help:    "Time spent waiting for a tenant distribution lock",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"provider"},
	)

	assignmentLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_assignment_log_dropped_total",
			Help: "Assignment audit entries dropped because the buffer was full or closed",
		},
	)

	assignmentLogWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_assignment_log_write_failures_total",
			Help: "Assignment audit entries that could not be persisted",
		},
	)

	assignmentEventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_assignment_event_publish_failures_total",
			Help: "Assignment events that could not be published",
		},
	)
)
