package nats

import (
	"time"
)

// EventKind names what happened on chain. It is the last token of the subject.
type EventKind string

const (
	EventKindTransfer EventKind = "transfer"
	EventKindDrain    EventKind = "drain"
	EventKindAirdrop  EventKind = "airdrop"
	EventKindEnroll   EventKind = "enroll"
)

// Event is a confirmed on-chain action published to NATS.
// This is published to the subject "wba.events.{kind}" in JetStream.
type Event struct {
	Kind      EventKind `json:"kind"`
	Signature string    `json:"signature"`

	// Accounts involved; To is empty for enrollment
	From string `json:"from"`
	To   string `json:"to,omitempty"`

	Lamports uint64 `json:"lamports"`
	Fee      uint64 `json:"fee,omitempty"`

	Cluster     string `json:"cluster"`
	ExplorerURL string `json:"explorer_url"`

	// Timing information
	ConfirmedAt time.Time `json:"confirmed_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject the event is published to.
func (e *Event) Subject() string {
	return SubjectPrefix + string(e.Kind)
}
