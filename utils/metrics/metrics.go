package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "keeper"

// Quote error kinds
const (
	QuoteErrorNoRoute   = "no_route"
	QuoteErrorTransport = "transport"
	QuoteErrorTimeout   = "timeout"
)

type QuoteMetrics struct {
	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewQuoteMetrics(reg prometheus.Registerer, namespace string) *QuoteMetrics {
	f := promauto.With(reg)
	return &QuoteMetrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of venue quote requests",
		}, []string{"venue"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "errors_total",
			Help:      "Total number of failed venue quotes by kind",
		}, []string{"venue", "kind"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "latency_seconds",
			Help:      "Venue quote latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"venue"}),
	}
}

type StrategyMetrics struct {
	Opportunities prometheus.Counter
	Rejections    *prometheus.CounterVec
	Attempts      prometheus.Counter
	Successes     prometheus.Counter
	Failures      prometheus.Counter
	ProfitTotal   *prometheus.CounterVec
	GasUsed       prometheus.Histogram
	ExecutionTime prometheus.Histogram
	ScanDuration  prometheus.Histogram
	InFlight      prometheus.Gauge
}

func NewStrategyMetrics(reg prometheus.Registerer, namespace string) *StrategyMetrics {
	f := promauto.With(reg)
	return &StrategyMetrics{
		Opportunities: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Total number of opportunities admitted for execution",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of pipeline rejections by reason",
		}, []string{"reason"}),
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_attempted_total",
			Help:      "Total number of submitted executions",
		}),
		Successes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_succeeded_total",
			Help:      "Total number of executions confirmed on chain",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_failed_total",
			Help:      "Total number of reverted or failed executions",
		}),
		ProfitTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profit_total",
			Help:      "Realized profit in smallest units of the input token",
		}, []string{"token"}),
		GasUsed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used per execution",
			Buckets:   prometheus.ExponentialBuckets(50000, 2, 8),
		}),
		ExecutionTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_time_seconds",
			Help:      "Time from submission to receipt",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a full scan over all pairs",
			Buckets:   prometheus.DefBuckets,
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Current number of unconfirmed executions",
		}),
	}
}

type GasMetrics struct {
	GasPrice prometheus.Histogram
	Current  prometheus.Gauge
}

func NewGasMetrics(reg prometheus.Registerer, namespace string) *GasMetrics {
	f := promauto.With(reg)
	return &GasMetrics{
		GasPrice: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_price_gwei",
			Help:      "Observed gas price distribution in gwei",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		Current: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_price_current_gwei",
			Help:      "Most recently observed gas price in gwei",
		}),
	}
}

type SystemMetrics struct {
	CPUUsage    prometheus.Gauge
	MaxRSS      prometheus.Gauge
	Goroutines  prometheus.Gauge
	HeapAlloc   prometheus.Gauge
	HeapObjects prometheus.Gauge
	GCPause     prometheus.Gauge
	Paused      prometheus.Gauge
	State       prometheus.Gauge
}

func NewSystemMetrics(reg prometheus.Registerer, namespace string) *SystemMetrics {
	f := promauto.With(reg)
	return &SystemMetrics{
		CPUUsage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_percent",
			Help:      "Process CPU usage since the previous sample",
		}),
		MaxRSS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_rss_bytes",
			Help:      "Peak resident set size",
		}),
		Goroutines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),
		HeapAlloc: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_alloc_bytes",
			Help:      "Current heap allocation in bytes",
		}),
		HeapObjects: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_objects",
			Help:      "Current number of heap objects",
		}),
		GCPause: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gc_pause_milliseconds",
			Help:      "Most recent GC pause",
		}),
		Paused: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 when execution is paused locally",
		}),
		State: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scanning",
			Help:      "1 while a scan is running",
		}),
	}
}

// KeeperMetrics bundles every collector the keeper exports
type KeeperMetrics struct {
	Registry *prometheus.Registry
	Quotes   *QuoteMetrics
	Strategy *StrategyMetrics
	Gas      *GasMetrics
	System   *SystemMetrics
}

// NewKeeperMetrics registers all keeper collectors on a fresh registry
func NewKeeperMetrics() *KeeperMetrics {
	reg := prometheus.NewRegistry()
	return &KeeperMetrics{
		Registry: reg,
		Quotes:   NewQuoteMetrics(reg, Namespace),
		Strategy: NewStrategyMetrics(reg, Namespace),
		Gas:      NewGasMetrics(reg, Namespace),
		System:   NewSystemMetrics(reg, Namespace),
	}
}
