package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the collectors registered on it.
// All recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	stageTransitions     *prometheus.CounterVec
	pointsAwarded        *prometheus.CounterVec
	otpVerifications     *prometheus.CounterVec
	notificationsCreated *prometheus.CounterVec
	messagesDispatched   *prometheus.CounterVec
	jobRuns              *prometheus.CounterVec
}

// New creates the collectors with the given name prefix
func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = "realestate"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_transaction_stage_transitions_total",
			Help: "Transaction stage updates by target stage",
		}, []string{"stage"}),
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_referral_points_awarded_total",
			Help: "Points written to the ledger by reason",
		}, []string{"reason"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_otp_verifications_total",
			Help: "OTP verification attempts by outcome",
		}, []string{"outcome"}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_created_total",
			Help: "Notifications created by type",
		}, []string{"type"}),
		messagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_messages_dispatched_total",
			Help: "Outbound e-mail/SMS messages by channel and outcome",
		}, []string{"channel", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_scheduler_job_runs_total",
			Help: "Background job runs by job and outcome",
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.stageTransitions,
		m.pointsAwarded,
		m.otpVerifications,
		m.notificationsCreated,
		m.messagesDispatched,
		m.jobRuns,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) StageTransition(stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(stage).Inc()
}

func (m *Metrics) PointsAwarded(reason string, points int64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(reason).Add(float64(points))
}

func (m *Metrics) OTPVerification(outcome string) {
	if m == nil {
		return
	}
	m.otpVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotificationCreated(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsCreated.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) MessageDispatched(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.messagesDispatched.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}
