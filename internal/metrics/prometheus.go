package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "funding_hedge_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		Cycles:            promCounter{counter("cycles_total", "Total number of completed control-loop cycles.")},
		CyclesSkipped:     promCounter{counter("cycles_skipped_total", "Total number of cycles skipped for safety or data-quorum reasons.")},
		OrdersPlaced:      promCounter{counter("orders_placed_total", "Total number of orders placed.")},
		OrdersFailed:      promCounter{counter("orders_failed_total", "Total number of order placement failures.")},
		LegsTimedOut:      promCounter{counter("legs_timed_out_total", "Total number of legs abandoned at the execution timeout.")},
		Rebalances:        promCounter{counter("rebalances_total", "Total number of corrective rebalance legs executed.")},
		SafetyEscalations: promCounter{counter("safety_escalations_total", "Total number of cycles with a safety level above NORMAL.")},
		VenueErrors:       promCounter{counter("venue_errors_total", "Total number of venue calls omitted from an aggregate.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
