package models

// UsageMessage is the SQS body for one deferred usage increment.
type UsageMessage struct {
	ID        string `json:"id"`         // uuid, the consumer's dedup key
	AccountID string `json:"account_id"` // identity subject
	QueuedAt  int64  `json:"queued_at"`  // unix seconds
}
