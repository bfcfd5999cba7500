//go:build integration

package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"renewals/internal/notification"
	"renewals/internal/platform/config"
	"renewals/internal/platform/kafka"
	"renewals/pkg/testutil/containers"
)

type KafkaEmitterSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaEmitterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaEmitterSuite))
}

func (s *KafkaEmitterSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaEmitterSuite) TestProducesKeyedJSON() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "notifications-" + time.Now().Format("150405.000")

	producer, err := kafka.NewClient(config.KafkaConfig{Brokers: s.brokers, NotificationTopic: topic})
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, topic, 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, topic, 1, 1), "second ensure is a no-op")

	s.Require().NoError(notification.NewKafkaEmitter(producer, topic).Emit(ctx, sampleEvent()))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("10", string(records[0].Key))

	var got notification.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(notification.EventTransferApproved, got.EventType)
}
