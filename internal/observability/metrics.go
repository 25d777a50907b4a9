package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	idempotencyCounter    *prometheus.CounterVec
	stageRunCounter       *prometheus.CounterVec
	cycleDuration         prometheus.Histogram
	promotionCounter      *prometheus.CounterVec
	matchCounter          prometheus.Counter
	flagCounter           *prometheus.CounterVec
	statementLineCounter  *prometheus.CounterVec
	releaseCounter        prometheus.Counter
	releaseFailureCounter *prometheus.CounterVec
	settledPendingGauge   prometheus.Gauge
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		stageRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_stage_runs_total",
			Help: "Engine stage run outcomes",
		}, []string{"stage", "result"})

		cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Wall time of one promotion, matching and release cycle",
			Buckets: prometheus.DefBuckets,
		})

		promotionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_deposit_checks_total",
			Help: "Provisional deposit escrow checks by outcome",
		}, []string{"outcome"})

		matchCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_deals_matched_total",
			Help: "Deals created by the matching stage",
		})

		flagCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_deal_flags_set_total",
			Help: "Fiat leg flags set from bank statements",
		}, []string{"flag"})

		statementLineCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_statement_lines_total",
			Help: "Bank statement lines by parse result",
		}, []string{"result"})

		releaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_deals_released_total",
			Help: "Deals whose escrow was released and records removed",
		})

		releaseFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_release_failures_total",
			Help: "Release attempts that did not complete",
		}, []string{"reason"})

		settledPendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_settled_deals_pending",
			Help: "Deals with both fiat legs confirmed that are still awaiting release",
		})

		prometheus.MustRegister(
			httpDurationHistogram,
			idempotencyCounter,
			stageRunCounter,
			cycleDuration,
			promotionCounter,
			matchCounter,
			flagCounter,
			statementLineCounter,
			releaseCounter,
			releaseFailureCounter,
			settledPendingGauge,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementStageRun(stage, result string) {
	if stageRunCounter == nil {
		return
	}
	stageRunCounter.WithLabelValues(stage, result).Inc()
}

func ObserveCycle(duration time.Duration) {
	if cycleDuration == nil {
		return
	}
	cycleDuration.Observe(duration.Seconds())
}

// IncrementDepositCheck counts one escrow check: promoted, pending, stale or failed.
func IncrementDepositCheck(outcome string) {
	if promotionCounter == nil {
		return
	}
	promotionCounter.WithLabelValues(outcome).Inc()
}

func AddMatches(n int) {
	if matchCounter == nil || n <= 0 {
		return
	}
	matchCounter.Add(float64(n))
}

func IncrementFlagSet(flag string) {
	if flagCounter == nil {
		return
	}
	flagCounter.WithLabelValues(flag).Inc()
}

func AddStatementLines(result string, n int) {
	if statementLineCounter == nil || n <= 0 {
		return
	}
	statementLineCounter.WithLabelValues(result).Add(float64(n))
}

func IncrementReleased() {
	if releaseCounter == nil {
		return
	}
	releaseCounter.Inc()
}

func IncrementReleaseFailure(reason string) {
	if releaseFailureCounter == nil {
		return
	}
	releaseFailureCounter.WithLabelValues(reason).Inc()
}

func SetSettledPending(n int64) {
	if settledPendingGauge == nil {
		return
	}
	settledPendingGauge.Set(float64(n))
}
