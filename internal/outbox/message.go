// Package outbox records external side effects in the same transaction as the
// state change that caused them and relays them to the resource directory
// until they are delivered or declared dead.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names the external effect a message carries.
type Topic string

const (
	TopicDomainOperator Topic = "resource.domain.operator"
	TopicVaptUpdate     Topic = "resource.vapt.update"
	TopicIPUpdate       Topic = "resource.ip.update"
)

// AggregateType names the request family that owns a message.
type AggregateType string

const (
	AggregateTransfer    AggregateType = "transfer"
	AggregateVaptRenewal AggregateType = "vapt_renewal"
	AggregateIPRenewal   AggregateType = "ip_renewal"
)

// Message is one pending external effect.
type Message struct {
	ID            uuid.UUID
	Topic         Topic
	AggregateType AggregateType
	AggregateID   int64
	Payload       json.RawMessage
	Attempts      int
	AvailableAt   time.Time
	LockedAt      *time.Time
	PublishedAt   *time.Time
	DeadAt        *time.Time
	LastError     string
	CreatedAt     time.Time
}

// NewMessage marshals payload and stamps the message as immediately available.
func NewMessage(topic Topic, aggType AggregateType, aggID int64, payload any, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return Message{
		ID:            uuid.New(),
		Topic:         topic,
		AggregateType: aggType,
		AggregateID:   aggID,
		Payload:       raw,
		AvailableAt:   now,
		CreatedAt:     now,
	}, nil
}

// Stats is a snapshot of queue depth.
type Stats struct {
	Pending int64
	Locked  int64
	Dead    int64
}
