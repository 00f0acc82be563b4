package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdate",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdate",
			Name:      "date_cache_events_total",
			Help:      "Date-list cache hits and misses.",
		},
		[]string{"result"},
	)

	exclusionMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdate",
			Name:      "exclusion_mutations_total",
			Help:      "Count of exclusion create/update/delete operations.",
		},
		[]string{"op"},
	)

	checkoutValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdate",
			Name:      "checkout_validations_total",
			Help:      "Collection-date checkout validations by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, cacheEvents, exclusionMutations, checkoutValidations)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncCache(result string) {
	cacheEvents.WithLabelValues(result).Inc()
}

func IncExclusionMutation(op string) {
	exclusionMutations.WithLabelValues(op).Inc()
}

func IncCheckout(outcome string) {
	checkoutValidations.WithLabelValues(outcome).Inc()
}
