package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaEmitter produces events as JSON records keyed by domain id, so events
// for one domain stay ordered within a partition.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
}

func NewKafkaEmitter(client *kgo.Client, topic string) *KafkaEmitter {
	return &KafkaEmitter{client: client, topic: topic}
}

func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(strconv.FormatInt(int64(event.Data.DomainID), 10)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := e.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}
