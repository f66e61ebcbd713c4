package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/oasis-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	purchaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_state_transitions_total",
			Help: "Purchase attempt state changes",
		},
		[]string{"from", "to"},
	)
	purchaseConfirmPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purchase_confirm_polls",
			Help:    "Number of confirmation polls issued per submitted transaction",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 30},
		},
	)
	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Latency of calls to marketplace services and the identity provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "status"},
	)
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Circuit breaker state per upstream service (0 closed, 1 half-open, 2 open)",
		},
		[]string{"service"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_users",
			Help: "Users with a live conversation state",
		},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_by_state",
			Help: "Number of users per conversation state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks conversation FSM transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordPurchaseTransition tracks purchase attempt state changes.
func RecordPurchaseTransition(from, to string) {
	purchaseTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordConfirmPolls observes how many confirmation polls one transaction needed.
func RecordConfirmPolls(n int) {
	purchaseConfirmPolls.Observe(float64(n))
}

// RecordUpstream observes one upstream HTTP call. status is the HTTP code or "transport".
func RecordUpstream(service, method, status string, duration time.Duration) {
	upstreamRequestDuration.WithLabelValues(orUnknown(service), method, status).Observe(duration.Seconds())
}

// SetBreakerState publishes a breaker state for service.
func SetBreakerState(service string, value int) {
	breakerState.WithLabelValues(orUnknown(service)).Set(float64(value))
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// SetActiveUsers updates the gauge for current active users.
func SetActiveUsers(count int) {
	activeUsers.Set(float64(count))
}

// SetUsersByState updates the gauge for the given state.
func SetUsersByState(state string, count int) {
	usersByState.WithLabelValues(orUnknown(state)).Set(float64(count))
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// StateCollector periodically gathers conversation state counts and emits gauge metrics.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.StateMachine, interval time.Duration) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StateCollector{fsm: fsm, interval: interval}
}

// Run polls the FSM until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	SetActiveUsers(len(states))

	stateCounts := make(map[string]int, len(states))
	for _, st := range states {
		label := "unknown"
		if st != nil && st.CurrentState != "" {
			label = string(st.CurrentState)
		}
		stateCounts[label]++
	}

	usersByState.Reset()

	for _, tracked := range state.All() {
		label := string(tracked)
		SetUsersByState(label, stateCounts[label])
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		SetUsersByState(label, count)
	}

	return nil
}
