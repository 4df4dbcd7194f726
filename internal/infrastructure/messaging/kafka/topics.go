// Package kafka publishes and consumes the platform's domain events.
package kafka

// Topic names.  Consumers and producers share these constants so a renamed
// topic cannot drift between the two sides.
const (
	TopicResponsePending = "signalweave.response.pending_embedding"
	TopicResponseLabeled = "signalweave.response.labeled"
	TopicThemeCreated    = "signalweave.theme.created"
	TopicAlertRaised     = "signalweave.alert.raised"
	TopicBatchCompleted  = "signalweave.batch.completed"
	TopicDeadLetter      = "signalweave.dead_letter.synthesis"
)
