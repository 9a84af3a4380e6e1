package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes
const (
	OutcomePrompted    = "prompted"    // a text reply (menu or prompt) was sent
	OutcomeSynthesized = "synthesized" // a voice reply was sent
	OutcomeFailed      = "failed"      // synthesis failed, an error notice was sent
)

var (
	// Turn metrics
	activeTurns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_reader_active_turns",
		Help: "Number of conversation turns being processed",
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_reader_turns_total",
		Help: "Total number of conversation turns by outcome",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_reader_turn_duration_seconds",
		Help:    "Duration of conversation turns in seconds",
		Buckets: []float64{0.05, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	chunksPerTurn = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_reader_chunks_per_turn",
		Help:    "Number of text chunks synthesized per voice reply",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_reader_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_reader_tts_latency_seconds",
		Help:    "TTS request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_reader_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_reader_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	trackedConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_reader_tracked_conversations",
		Help: "Number of conversations with state held in memory",
	})

	// Audio metrics
	audioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_reader_audio_bytes_total",
		Help: "Total synthesized audio bytes delivered",
	})
)

// TurnMetrics tracks metrics for a single conversation turn
type TurnMetrics struct {
	startTime    time.Time
	ttsStartTime time.Time
	mu           sync.Mutex
	ended        bool
}

// NewTurnMetrics starts tracking a turn
func NewTurnMetrics() *TurnMetrics {
	activeTurns.Inc()
	return &TurnMetrics{
		startTime: time.Now(),
	}
}

// RecordTurnEnd records the end of the turn; later calls are ignored
func (m *TurnMetrics) RecordTurnEnd(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return
	}
	m.ended = true

	activeTurns.Dec()
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTTSStart records the start of one TTS request
func (m *TurnMetrics) RecordTTSStart() {
	m.mu.Lock()
	m.ttsStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTTSEnd records the end of one TTS request
func (m *TurnMetrics) RecordTTSEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ttsStartTime.IsZero() {
		ttsLatency.Observe(time.Since(m.ttsStartTime).Seconds())
		m.ttsStartTime = time.Time{}
	}

	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
}

// RecordChunks records how many chunks a voice reply needed
func (m *TurnMetrics) RecordChunks(n int) {
	chunksPerTurn.Observe(float64(n))
}

// RecordAudioBytes records delivered audio bytes
func (m *TurnMetrics) RecordAudioBytes(n int) {
	audioBytesSent.Add(float64(n))
}

// RecordError records an error
func (m *TurnMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside of a turn
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// SetTrackedConversations updates the tracked conversations gauge
func SetTrackedConversations(n int) {
	trackedConversations.Set(float64(n))
}

// RegisterCircuitBreakerFailureRate exports a breaker's failure rate in
// percent, read from rate at scrape time. Registering the same service twice
// is a no-op.
func RegisterCircuitBreakerFailureRate(reg prometheus.Registerer, service string, rate func() float64) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "voice_reader_circuit_breaker_failure_rate",
		Help:        "Percentage of guarded calls that counted as failures",
		ConstLabels: prometheus.Labels{"service": service},
	}, rate)

	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}
