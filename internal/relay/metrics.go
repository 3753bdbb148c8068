package relay

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeJSON      = "json"
	outcomeMalformed = "malformed"
)

type metrics struct {
	messages   *prometheus.CounterVec
	reconnects prometheus.Counter
}

var (
	metricsOnce sync.Once
	shared      *metrics
)

func loadMetrics() *metrics {
	metricsOnce.Do(func() {
		shared = &metrics{
			messages: registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vercel",
				Subsystem: "relay",
				Name:      "messages_total",
				Help:      "Broker log messages relayed, by decode outcome.",
			}, []string{"outcome"})),
			reconnects: registerCounter(prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vercel",
				Subsystem: "relay",
				Name:      "reconnects_total",
				Help:      "Broker subscription losses followed by a resubscribe.",
			})),
		}
	})
	return shared
}

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func registerCounter(c prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}
