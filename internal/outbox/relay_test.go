package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"renewals/internal/outbox"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []outbox.Message
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg outbox.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, msg)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type syncEvent struct {
	aggType outbox.AggregateType
	aggID   int64
	synced  bool
	reason  string
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []syncEvent
}

func (r *recordingRecorder) MarkSynced(_ context.Context, aggType outbox.AggregateType, aggID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, syncEvent{aggType: aggType, aggID: aggID, synced: true})
	return nil
}

func (r *recordingRecorder) MarkSyncFailed(_ context.Context, aggType outbox.AggregateType, aggID int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, syncEvent{aggType: aggType, aggID: aggID, reason: reason})
	return nil
}

type RelaySuite struct {
	suite.Suite
	now        time.Time
	store      *outbox.MemoryStore
	dispatcher *recordingDispatcher
	recorder   *recordingRecorder
	relay      *outbox.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.store = outbox.NewMemoryStore(outbox.WithStoreClock(clock))
	s.dispatcher = &recordingDispatcher{}
	s.recorder = &recordingRecorder{}

	relay, err := outbox.NewRelay(s.store, s.dispatcher, s.recorder, outbox.RelayOptions{
		MaxAttempts: 3,
		MaxBackoff:  time.Minute,
		Jitter:      0,
		Clock:       clock,
	})
	s.Require().NoError(err)
	s.relay = relay
}

func (s *RelaySuite) enqueue(aggID int64) outbox.Message {
	msg, err := outbox.NewMessage(outbox.TopicVaptUpdate, outbox.AggregateVaptRenewal, aggID,
		map[string]any{"vapt_id": aggID}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Enqueue(context.Background(), msg))
	return msg
}

func (s *RelaySuite) TestDeliverSuccess() {
	ctx := context.Background()
	s.enqueue(11)

	n, err := s.relay.ProcessOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	msgs := s.store.Messages()
	s.Require().Len(msgs, 1)
	s.NotNil(msgs[0].PublishedAt)
	s.Equal(1, msgs[0].Attempts)
	s.Equal([]syncEvent{{aggType: outbox.AggregateVaptRenewal, aggID: 11, synced: true}}, s.recorder.events)

	s.Run("published messages are not redelivered", func() {
		n, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Zero(n)
		s.Equal(1, s.dispatcher.count())
	})
}

func (s *RelaySuite) TestRetryThenDead() {
	ctx := context.Background()
	s.enqueue(12)
	s.dispatcher.err = errors.New("upstream outage")

	_, err := s.relay.ProcessOnce(ctx)
	s.Require().NoError(err)

	msg := s.store.Messages()[0]
	s.Nil(msg.DeadAt)
	s.Equal("upstream outage", msg.LastError)
	s.Equal(s.now.Add(time.Second), msg.AvailableAt)
	s.Empty(s.recorder.events)

	s.Run("not claimable before backoff elapses", func() {
		n, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("second failure doubles the delay", func() {
		s.now = s.now.Add(time.Second)
		_, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Equal(s.now.Add(2*time.Second), s.store.Messages()[0].AvailableAt)
	})

	s.Run("final attempt marks dead and records sync failure", func() {
		s.now = s.now.Add(2 * time.Second)
		_, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)

		msg := s.store.Messages()[0]
		s.NotNil(msg.DeadAt)
		s.Equal(3, msg.Attempts)
		s.Require().Len(s.recorder.events, 1)
		s.False(s.recorder.events[0].synced)
		s.Equal("upstream outage", s.recorder.events[0].reason)
	})

	s.Run("requeue makes it deliverable again", func() {
		s.dispatcher.err = nil
		s.Require().NoError(s.store.Requeue(ctx, outbox.AggregateVaptRenewal, 12))
		n, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.NotNil(s.store.Messages()[0].PublishedAt)
	})
}

func (s *RelaySuite) TestPermanentErrorGoesDeadImmediately() {
	s.enqueue(13)
	s.dispatcher.err = outbox.Permanent(errors.New("vapt not found"))

	_, err := s.relay.ProcessOnce(context.Background())
	s.Require().NoError(err)

	msg := s.store.Messages()[0]
	s.NotNil(msg.DeadAt)
	s.Equal(1, msg.Attempts)
	s.Require().Len(s.recorder.events, 1)
	s.False(s.recorder.events[0].synced)
}

func (s *RelaySuite) TestRunDeliversOnKick() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay, err := outbox.NewRelay(s.store, s.dispatcher, s.recorder, outbox.RelayOptions{
		PollInterval: time.Hour,
		Clock:        func() time.Time { return s.now },
	})
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	s.enqueue(14)
	relay.Kick()
	s.Eventually(func() bool { return s.dispatcher.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	s.NoError(<-done)

	s.Run("leadership is released on shutdown", func() {
		release, ok, err := s.store.TryLead(context.Background())
		s.Require().NoError(err)
		s.True(ok)
		release()
	})
}

func (s *RelaySuite) TestSecondRelayWaitsForLeader() {
	release, ok, err := s.store.TryLead(context.Background())
	s.Require().NoError(err)
	s.Require().True(ok)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	relay, err := outbox.NewRelay(s.store, s.dispatcher, s.recorder, outbox.RelayOptions{
		PollInterval: 10 * time.Millisecond,
		Clock:        func() time.Time { return s.now },
	})
	s.Require().NoError(err)

	s.enqueue(15)
	s.NoError(relay.Run(ctx))
	s.Zero(s.dispatcher.count())
}

func (s *RelaySuite) TestNewRelayRequiresCollaborators() {
	_, err := outbox.NewRelay(nil, s.dispatcher, nil, outbox.RelayOptions{})
	s.Error(err)
	_, err = outbox.NewRelay(s.store, nil, nil, outbox.RelayOptions{})
	s.Error(err)
}
