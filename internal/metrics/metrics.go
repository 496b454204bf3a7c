// Package metrics exposes bancho counters and gauges to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/soumetsu-project/soumetsu/internal/protocol"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name (default: "soumetsu").
	Namespace string

	// Registry receives the collectors (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer

	// Buckets are the poll duration histogram buckets.
	Buckets []float64
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

// WithRegistry sets the registerer the collectors are added to.
func WithRegistry(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = r }
}

// WithBuckets sets the poll duration buckets.
func WithBuckets(b []float64) Option {
	return func(c *Config) { c.Buckets = b }
}

// Metrics holds every collector. It implements router.Observer.
type Metrics struct {
	packetsTotal     *prometheus.CounterVec
	dispatchErrors   *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	onlineSessions   prometheus.Gauge
	mailboxOverflows prometheus.Counter
	sessionsClosed   *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "soumetsu",
		Registry:  prometheus.DefaultRegisterer,
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		packetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "packets_total",
			Help:      "Client packets processed, by packet name and whether a handler was registered",
		}, []string{"packet", "handled"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "dispatch_errors_total",
			Help:      "Requests aborted during packet dispatch",
		}, []string{"kind"}),

		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent handling one poll request",
			Buckets:   cfg.Buckets,
		}),

		onlineSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "online_sessions",
			Help:      "Sessions currently logged in",
		}),

		mailboxOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "mailbox_overflows_total",
			Help:      "Sessions disconnected because their mailbox exceeded the limit",
		}),

		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions destroyed, by reason",
		}, []string{"reason"}),
	}
}

// unhandledPacket labels every packet without a handler. Clients choose
// those ids freely, so they must not become label values.
const unhandledPacket = "unhandled"

// PacketHandled counts one packet.
func (m *Metrics) PacketHandled(id protocol.PacketID, registered bool) {
	if !registered {
		m.packetsTotal.WithLabelValues(unhandledPacket, "false").Inc()
		return
	}
	m.packetsTotal.WithLabelValues(id.String(), "true").Inc()
}

// DispatchFailed counts an aborted dispatch.
func (m *Metrics) DispatchFailed(err error) {
	kind := "handler"
	if errors.Is(err, protocol.ErrTruncatedBuffer) {
		kind = "truncated"
	}
	m.dispatchErrors.WithLabelValues(kind).Inc()
}

// LoginResult counts a login attempt; result is "ok" or a failure name.
func (m *Metrics) LoginResult(result string) {
	m.loginsTotal.WithLabelValues(result).Inc()
}

// ObservePoll records how long a poll took.
func (m *Metrics) ObservePoll(d time.Duration) {
	m.pollDuration.Observe(d.Seconds())
}

// SessionOpened increments the online gauge.
func (m *Metrics) SessionOpened() {
	m.onlineSessions.Inc()
}

// SessionClosed decrements the online gauge and counts the reason.
func (m *Metrics) SessionClosed(reason string) {
	m.onlineSessions.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

// MailboxOverflow counts a forced disconnect.
func (m *Metrics) MailboxOverflow() {
	m.mailboxOverflows.Inc()
}
