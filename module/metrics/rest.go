package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tsswallet/tss-wallet/module"
)

type RestCollector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ module.RestMetrics = (*RestCollector)(nil)

func NewRestCollector(registerer prometheus.Registerer) *RestCollector {
	factory := promauto.With(registerer)

	return &RestCollector{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemRest,
			Name:      "requests_total",
			Help:      "number of served http requests",
		}, []string{LabelRoute, LabelCode}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemRest,
			Name:      "request_duration_seconds",
			Help:      "duration of served http requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelRoute}),
	}
}

func (rc *RestCollector) ObserveRequest(route string, code int, duration time.Duration) {
	rc.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	rc.duration.WithLabelValues(route).Observe(duration.Seconds())
}
