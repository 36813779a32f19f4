package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Price resolver metrics
	PriceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omniswap_price_lookups_total",
			Help: "Price provider attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omniswap_price_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omniswap_price_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	PriceUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omniswap_price_unavailable_total",
		Help: "Tokens for which every provider failed",
	})

	// Quote metrics
	QuoteCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omniswap_quote_cycles_total",
			Help: "Quote cycles by outcome",
		},
		[]string{"outcome"},
	)

	QuoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omniswap_quote_duration_seconds",
		Help:    "Time from cycle start to routes computed",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	})

	RouteRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omniswap_route_recommendations_total",
			Help: "Recommended route per published quote",
		},
		[]string{"route"},
	)

	RecorderWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omniswap_recorder_writes_total",
			Help: "Transaction recorder writes by outcome",
		},
		[]string{"outcome"},
	)
)
