package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// redisErrors counts Redis failures by operation. Errors here never
// fail a request, so the counter is the only place they surface besides
// logs.
var redisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "instapurr_redis_errors_total",
	Help: "Total number of Redis errors by operation type",
}, []string{"operation"})
