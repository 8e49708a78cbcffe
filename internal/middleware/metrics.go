package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "booking_redis_errors_total",
	Help: "Total number of failed Redis commands",
}, []string{"command"})

// RateLimitRejections counts requests refused by the rate limiter.
var RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "booking_rate_limit_rejections_total",
	Help: "Total number of requests rejected by rate limiting",
}, []string{"resource", "reason"})

// InitMetrics returns the HTTP metrics collector. Call RegisterAt and use Middleware on the app.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	prom := fiberprometheus.New(serviceName)
	prom.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	return prom
}
