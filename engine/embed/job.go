package embed

import "time"

// NATS subjects for the embedding job queue.
const (
	SubjectJobs = "lexbase.embed.jobs"
	SubjectDLQ  = "lexbase.embed.dlq"
)

// Job is a queued embedding request. Either ResourceIDs or CategoryID is
// set; a category job is expanded to its member resources by the consumer.
type Job struct {
	ResourceIDs []string  `json:"resource_ids,omitempty"`
	CategoryID  string    `json:"category_id,omitempty"`
	Force       bool      `json:"force"`
	Clean       bool      `json:"clean"`
	RequestedAt time.Time `json:"requested_at"`
}

// DeadLetter wraps a job that could not be processed.
type DeadLetter struct {
	Job    Job       `json:"job"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
