package config

const (
	// TopicExtractTask is the NSQ topic carrying inbound extraction requests
	// relayed by external collaborators (e.g. the chat listener).
	TopicExtractTask = "extract.task"

	// TopicExtractResult is the NSQ topic for terminal-state notifications.
	// Delivery is best-effort and never affects the persisted job.
	TopicExtractResult = "extract.result"
)
