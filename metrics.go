package auth

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts activity events and HTTP responses on its own registry.
type Metrics struct {
	registry  *prometheus.Registry
	events    *prometheus.CounterVec
	responses *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "activity_events_total",
			Help:      "Authentication activity events by type.",
		}, []string{"event"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "http_responses_total",
			Help:      "HTTP responses by route and status code.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.events,
		m.responses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record implements ActivitySink.
func (m *Metrics) Record(_ context.Context, event ActivityEvent) error {
	m.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Middleware counts every response once the downstream chain has run.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}

		route := c.Route().Path
		m.responses.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()

		return err
	}
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
