package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RateLimitDenials counts requests rejected by the rate limiter, by
// resource name.
var RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "instapurr_rate_limit_denials_total",
	Help: "Total number of requests rejected by the rate limiter",
}, []string{"resource"})

// InitMetrics builds the Prometheus request middleware. The caller
// registers it on the app and exposes it at /metrics.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}
