package domain

import "time"

type ProgressStep string

const (
	StepConnect ProgressStep = "connect"
	StepScrape  ProgressStep = "scrape"
	StepPhoto   ProgressStep = "photo"
	StepAI      ProgressStep = "ai"
	StepFinish  ProgressStep = "finish"
	StepFailed  ProgressStep = "failed"
)

// ProgressEvent is one step of an analysis run, broadcast to live subscribers.
type ProgressEvent struct {
	Step     ProgressStep `json:"step"`
	Username string       `json:"username"`
	Message  string       `json:"message,omitempty"`
	At       time.Time    `json:"at"`
}

// ProgressReporter receives analysis steps. Implementations must not block.
type ProgressReporter interface {
	Publish(ev ProgressEvent)
}

// NopProgress discards events.
type NopProgress struct{}

func (NopProgress) Publish(ProgressEvent) {}
