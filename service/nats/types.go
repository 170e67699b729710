package nats

import (
	"time"
)

// DiscoveryEvent represents a first-transaction discovery published to
// NATS. It is published to the subject "discoveries.{program_id}" in
// JetStream.
type DiscoveryEvent struct {
	// Program identity
	ProgramID string `json:"program_id"`
	Network   string `json:"network"` // "mainnet" or "devnet"

	// The discovered first transaction
	FirstTransactionTimestamp int64     `json:"first_transaction_timestamp"`
	FirstTransactionTime      time.Time `json:"first_transaction_time"`

	// Which source strategy produced the answer ("helius" or "rpc"),
	// or "cache" when the result was served without a network call.
	Source string `json:"source"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
