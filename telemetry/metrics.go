// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesReceived  prometheus.Counter
	MessagesFiltered  prometheus.Counter
	SpamDetected      prometheus.Counter
	CommandsProcessed prometheus.Counter
	CommandErrors     prometheus.Counter
	BotMentions       prometheus.Counter
	AIRequests        prometheus.Counter
	AICacheHits       prometheus.Counter
	GreetingsSent     prometheus.Counter
	TTSMessages       prometheus.Counter

	// Histograms (seconds)
	AICompletionDuration prometheus.Observer
	DispatchDuration     prometheus.Observer

	// Gauges
	QueueDepthGauge  prometheus.Gauge
	ActiveUsersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_received_total", Help: "Chat messages received from the transport"})
		MessagesFiltered = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_filtered_total", Help: "Messages dropped by filtering (echo, ignore list, blocked phrase, spam)"})
		SpamDetected = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_spam_detected_total", Help: "Messages classified as spam"})
		CommandsProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_processed_total", Help: "Commands routed through the dispatcher"})
		CommandErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_command_errors_total", Help: "Command handler failures contained at the dispatch boundary"})
		BotMentions = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_mentions_total", Help: "Messages routed as bot mentions"})
		AIRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_ai_requests_total", Help: "Chat completion requests sent upstream"})
		AICacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_ai_cache_hits_total", Help: "Mention replies served from the response cache"})
		GreetingsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_greetings_sent_total", Help: "First-seen user greetings sent"})
		TTSMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_tts_messages_total", Help: "Utterances queued to the TTS sink"})
		AICompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_ai_completion_duration_seconds", Help: "Chat completion round-trip seconds", Buckets: prometheus.DefBuckets})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_dispatch_duration_seconds", Help: "Command dispatch duration seconds", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_ingest_queue_depth", Help: "Messages waiting in the ingestion queue"})
		ActiveUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_active_users", Help: "Users active in the current metrics window"})
	})
}

// SetQueueDepth records the current ingestion queue depth.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// SetActiveUsers records the size of the active-user set.
func SetActiveUsers(n int) {
	if ActiveUsersGauge != nil {
		ActiveUsersGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
