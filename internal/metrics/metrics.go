package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "heimursaga",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Sync metrics
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "sync",
		Name:      "fetches_total",
		Help:      "Data source fetches by logical operation and result",
	}, []string{"operation", "result"})

	StaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "sync",
		Name:      "stale_responses_total",
		Help:      "Responses dropped because a newer request superseded them",
	}, []string{"operation"})

	DrawerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "drawer",
		Name:      "transitions_total",
		Help:      "Drawer state transitions by target state",
	}, []string{"to"})

	DetailFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "drawer",
		Name:      "detail_fallbacks_total",
		Help:      "Expansions that fell back to preview data after a failed detail fetch",
	})

	EnrichFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "heimursaga",
		Subsystem: "journey",
		Name:      "enrich_failures_total",
		Help:      "Journey waypoints left un-enriched after a failed post fetch",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "heimursaga",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	ActiveViews = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "heimursaga",
		Subsystem: "views",
		Name:      "active",
		Help:      "Open view sessions",
	})
)

// ObserveFetch records the outcome of one data source call.
func ObserveFetch(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Fetches.WithLabelValues(operation, result).Inc()
}

// Middleware records request metrics. It runs before fiber's error handler,
// so the status of a returned error is taken from the error itself. Label
// values are copied since prometheus keeps them for the life of the series.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(statusOf(c, err))
		path := c.Route().Path
		if path == "" {
			path = utils.CopyString(c.Path())
		}
		method := utils.CopyString(c.Method())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
