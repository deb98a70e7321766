package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nutribot/internal/domain"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Advisor records the outcome and latency of every call to the wrapped advisor.
type Advisor struct {
	next     domain.Advisor
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

func InstrumentAdvisor(next domain.Advisor, reg prometheus.Registerer) (*Advisor, error) {
	a := &Advisor{
		next: next,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "advice_requests_total",
			Help:      "Round-trips to the advice service by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nutribot",
			Name:      "advice_request_duration_seconds",
			Help:      "Latency of round-trips to the advice service.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{a.requests, a.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Advisor) Advise(ctx context.Context, query string) (string, error) {
	start := time.Now()
	resp, err := a.next.Advise(ctx, query)
	a.duration.Observe(time.Since(start).Seconds())

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	a.requests.WithLabelValues(outcome).Inc()
	return resp, err
}

var _ domain.Advisor = (*Advisor)(nil)
