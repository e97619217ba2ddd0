package domain

import "time"

// TurnStatus labels the outcome of an orchestrated turn.
type TurnStatus string

const (
	// TurnStatusAnswered indicates a tool-free direct answer.
	TurnStatusAnswered TurnStatus = "answered"
	// TurnStatusExecuted indicates the turn dispatched tool calls.
	TurnStatusExecuted TurnStatus = "executed"
	// TurnStatusDegraded indicates the turn completed with reduced
	// capability (search down, nothing confirmed, hydration failed).
	TurnStatusDegraded TurnStatus = "degraded"
	// TurnStatusError indicates the turn failed.
	TurnStatusError TurnStatus = "error"
)

// CallStatus labels the outcome of a single dispatched tool call.
type CallStatus string

const (
	CallStatusSuccess  CallStatus = "success"
	CallStatusFailure  CallStatus = "failure"
	CallStatusRejected CallStatus = "rejected"
)

// Metrics records operational metrics for the orchestration pipeline.
type Metrics interface {
	ObserveTurn(status TurnStatus, duration time.Duration)
	ObserveStage(stage Stage, duration time.Duration)
	ObserveSearch(strategy string, results int, duration time.Duration)
	ObserveModelTokens(provider, model string, tokens int)
	ObserveModelLatency(provider, model string, duration time.Duration)
	ObserveHydration(uri string, err error)
	ObserveToolCall(status CallStatus, duration time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveTurn(TurnStatus, time.Duration)             {}
func (NopMetrics) ObserveStage(Stage, time.Duration)                 {}
func (NopMetrics) ObserveSearch(string, int, time.Duration)          {}
func (NopMetrics) ObserveModelTokens(string, string, int)            {}
func (NopMetrics) ObserveModelLatency(string, string, time.Duration) {}
func (NopMetrics) ObserveHydration(string, error)                    {}
func (NopMetrics) ObserveToolCall(CallStatus, time.Duration)         {}
