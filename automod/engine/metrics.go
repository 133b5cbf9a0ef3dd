package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_event_duration_sec",
	Help: "Total duration of automod event processing",
}, []string{"kind"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_processed",
	Help: "Number of events processed",
}, []string{"kind"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_errors",
	Help: "Number of events which failed processing",
}, []string{"stage"})

var ruleTriggerCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_triggers",
	Help: "Number of rule triggers",
}, []string{"instance", "rule"})

var actionReportCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_action_reports",
	Help: "Number of reports filed",
}, []string{"category"})

var actionRestrictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_action_restricts",
	Help: "Number of restrict actions applied",
}, []string{"kind"})

var actionFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_action_failures",
	Help: "Number of failed moderation API calls",
}, []string{"action"})
