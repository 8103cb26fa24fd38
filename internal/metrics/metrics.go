// Package metrics holds the Prometheus collectors for one run and pushes
// them to a Pushgateway, since a batch process is gone before it can be
// scraped.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "slotwatch"

type Metrics struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	slotsFound    prometheus.Gauge
	datesSkipped  prometheus.Counter
	alertsSent    prometheus.Counter
	sendFailures  prometheus.Counter
	commands      prometheus.Counter
	lastSuccess   prometheus.Gauge
}

// New returns metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.reg = reg
	return m
}

// MustNewMetrics registers the collectors on reg. Collectors already
// registered there are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Invocations by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "Wall time of one invocation.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		slotsFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "slots_found",
			Help: "Bookable slots found by the last scan after filtering.",
		}),
		datesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dates_skipped_total",
			Help: "Dates skipped because the page never became ready.",
		}),
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alert_messages_delivered_total",
			Help: "Alert messages delivered to at least one chat.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "send_failures_total",
			Help: "Failed message sends.",
		}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_processed_total",
			Help: "Recognized chat commands handled.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last invocation that completed without error.",
		}),
	}

	m.runs = register(reg, m.runs)
	m.runDuration = register(reg, m.runDuration)
	m.stageDuration = register(reg, m.stageDuration)
	m.slotsFound = register(reg, m.slotsFound)
	m.datesSkipped = register(reg, m.datesSkipped)
	m.alertsSent = register(reg, m.alertsSent)
	m.sendFailures = register(reg, m.sendFailures)
	m.commands = register(reg, m.commands)
	m.lastSuccess = register(reg, m.lastSuccess)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun records the end of an invocation. status is "ok" or "error".
func (m *Metrics) ObserveRun(status string, d time.Duration, end time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	if status == "ok" {
		m.lastSuccess.Set(float64(end.Unix()))
	}
}

func (m *Metrics) SetSlots(n int) {
	if m == nil {
		return
	}
	m.slotsFound.Set(float64(n))
}

func (m *Metrics) AddSkippedDates(n int) {
	if m != nil {
		addN(m.datesSkipped, n)
	}
}

func (m *Metrics) AddDelivered(n int) {
	if m != nil {
		addN(m.alertsSent, n)
	}
}

func (m *Metrics) AddSendFailures(n int) {
	if m != nil {
		addN(m.sendFailures, n)
	}
}

func (m *Metrics) AddCommands(n int) {
	if m != nil {
		addN(m.commands, n)
	}
}

func addN(c prometheus.Counter, n int) {
	if n > 0 {
		c.Add(float64(n))
	}
}

// Gatherer is the registry behind New; nil for MustNewMetrics on a
// caller-owned registerer.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.reg == nil {
		return nil
	}
	return m.reg
}

// Pusher sends a gatherer to a Pushgateway under one job name.
type Pusher struct {
	url    string
	job    string
	client *http.Client
}

func NewPusher(url, job string, timeout time.Duration) *Pusher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pusher{url: url, job: job, client: &http.Client{Timeout: timeout}}
}

// Push replaces the job's metric group on the gateway.
func (p *Pusher) Push(ctx context.Context, g prometheus.Gatherer, grouping map[string]string) error {
	if p == nil || p.url == "" || g == nil {
		return nil
	}
	pu := push.New(p.url, p.job).Gatherer(g).Client(p.client)
	for k, v := range grouping {
		pu = pu.Grouping(k, v)
	}
	if err := pu.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
