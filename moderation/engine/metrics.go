package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_command_duration_sec",
	Help: "Total duration of moderation command processing",
}, []string{"action"})

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_commands_processed",
	Help: "Number of moderation commands processed, by outcome code",
}, []string{"action", "code"})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_auto_escalations",
	Help: "Number of automatic escalations triggered by warning thresholds",
}, []string{"level"})

var fanoutFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_fanout_account_failures",
	Help: "Number of per-account state writes that failed during cross-platform fan-out",
})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_notify_errors",
	Help: "Number of notification deliveries that failed",
})
